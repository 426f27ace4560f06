// Package kv provides a key-value store with hierarchical path-based keys
// and per-entry time-to-live. Keys are string slices (e.g.
// ["session", "token", "abc"]) joined with ':' for storage.
//
// Two implementations are provided: a BadgerDB-backed store for production
// and an in-memory store for testing. Both honor TTLs; expired entries
// behave as if they were never written.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("kv: not found")

// separator joins key segments in the encoded representation.
// Segments must not contain it.
const separator = ":"

// Key is a hierarchical path represented as a slice of string segments.
type Key []string

// String returns the encoded form of the key.
func (k Key) String() string {
	return strings.Join(k, separator)
}

func encodeKey(k Key) []byte {
	return []byte(k.String())
}

func decodeKey(b []byte) Key {
	return Key(strings.Split(string(b), separator))
}

// prefixBytes returns the encoded prefix with a trailing separator so that
// prefix ["a","b"] matches ["a","b","c"] but not ["a","bc"]. An empty
// prefix matches everything.
func prefixBytes(prefix Key) []byte {
	if len(prefix) == 0 {
		return nil
	}
	return []byte(prefix.String() + separator)
}

// Entry is a key-value pair, as returned by List and consumed by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the contract shared by the session and catalog backends.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if the key
	// is absent or its TTL has lapsed.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair without expiry, overwriting any
	// existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// SetTTL stores a key-value pair that expires after ttl.
	// A non-positive ttl is equivalent to Set.
	SetTTL(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Expire resets the TTL of an existing key. It reports whether the
	// key was present.
	Expire(ctx context.Context, key Key, ttl time.Duration) (bool, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// List iterates over all live entries whose key starts with the
	// given prefix, in lexicographic order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple entries without expiry.
	BatchSet(ctx context.Context, entries []Entry) error

	// Close releases any resources held by the store.
	Close() error
}
