package kv

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Store backed by a map. It is safe for concurrent
// use and intended primarily for tests. Expired entries are dropped lazily
// on access.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry

	// now is overridable in tests.
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := key.String()
	m.mu.RLock()
	e, ok := m.data[k]
	m.mu.RUnlock()
	if !ok || e.expired(m.now()) {
		return nil, ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte) error {
	return m.SetTTL(ctx, key, value, 0)
}

func (m *Memory) SetTTL(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key.String()] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Expire(_ context.Context, key Key, ttl time.Duration) (bool, error) {
	k := key.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[k]
	if !ok || e.expired(m.now()) {
		delete(m.data, k)
		return false, nil
	}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	m.data[k] = e
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	delete(m.data, key.String())
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := prefixBytes(prefix)
	now := m.now()

	// Snapshot live matches under the read lock so the iterator does
	// not hold it while the caller runs.
	m.mu.RLock()
	var matches []Entry
	for k, e := range m.data {
		if e.expired(now) {
			continue
		}
		if len(p) == 0 || bytes.HasPrefix([]byte(k), p) {
			matches = append(matches, Entry{
				Key:   decodeKey([]byte(k)),
				Value: bytes.Clone(e.value),
			})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Key.String() < matches[j].Key.String()
	})

	return func(yield func(Entry, error) bool) {
		for _, e := range matches {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	for _, e := range entries {
		m.data[e.Key.String()] = memoryEntry{value: bytes.Clone(e.Value)}
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
