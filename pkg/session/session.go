// Package session manages TTL-bounded user session records. Records are
// msgpack-encoded into a kv.Store under both the credential token and the
// user identity, so the realtime endpoint can resolve an identity without
// seeing the token.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adforge/adforge/pkg/kv"
)

// ErrUnauthorized is returned when a credential token cannot be verified.
var ErrUnauthorized = errors.New("session: unauthorized")

// DefaultTTL is the session lifetime applied when none is configured.
const DefaultTTL = time.Hour

// Record is the user session as stored. The core treats it as read-only.
type Record struct {
	Name     string `msgpack:"name" json:"name"`
	Email    string `msgpack:"email" json:"email"`
	Identity string `msgpack:"identity" json:"identity"`
}

// Verifier checks an opaque external credential token and resolves it to
// a user record. Implementations call out to the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (Record, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (Record, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Record, error) {
	return f(ctx, token)
}

// Manager owns session records in a kv.Store.
type Manager struct {
	store    kv.Store
	verifier Verifier
	ttl      time.Duration
}

// NewManager creates a Manager. A non-positive ttl falls back to
// DefaultTTL.
func NewManager(store kv.Store, verifier Verifier, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, verifier: verifier, ttl: ttl}
}

func tokenKey(token string) kv.Key { return kv.Key{"session", "token", token} }
func identityKey(id string) kv.Key { return kv.Key{"session", "id", id} }

// Login resolves a credential token to a session record, creating the
// session if none exists. Logging in twice with the same token returns
// the already-live session.
func (m *Manager) Login(ctx context.Context, token string) (Record, error) {
	if rec, err := m.getKey(ctx, tokenKey(token)); err == nil {
		return rec, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return Record{}, err
	}

	rec, err := m.verifier.Verify(ctx, token)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("session: encode record: %w", err)
	}
	if err := m.store.SetTTL(ctx, tokenKey(token), data, m.ttl); err != nil {
		return Record{}, fmt.Errorf("session: store token record: %w", err)
	}
	if err := m.store.SetTTL(ctx, identityKey(rec.Identity), data, m.ttl); err != nil {
		return Record{}, fmt.Errorf("session: store identity record: %w", err)
	}
	return rec, nil
}

// Logout removes the session for a token. Logging out an unknown token
// succeeds.
func (m *Manager) Logout(ctx context.Context, token string) error {
	rec, err := m.getKey(ctx, tokenKey(token))
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, tokenKey(token)); err != nil {
		return fmt.Errorf("session: delete token record: %w", err)
	}
	if err := m.store.Delete(ctx, identityKey(rec.Identity)); err != nil {
		return fmt.Errorf("session: delete identity record: %w", err)
	}
	return nil
}

// GetByIdentity looks up the live session for an identity. Returns
// ErrUnauthorized if no session exists.
func (m *Manager) GetByIdentity(ctx context.Context, identity string) (Record, error) {
	rec, err := m.getKey(ctx, identityKey(identity))
	if errors.Is(err, kv.ErrNotFound) {
		return Record{}, ErrUnauthorized
	}
	return rec, err
}

// Extend refreshes the TTL of an identity's session. Extending an absent
// session is a no-op.
func (m *Manager) Extend(ctx context.Context, identity string) error {
	if _, err := m.store.Expire(ctx, identityKey(identity), m.ttl); err != nil {
		return fmt.Errorf("session: extend: %w", err)
	}
	return nil
}

func (m *Manager) getKey(ctx context.Context, key kv.Key) (Record, error) {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("session: decode record: %w", err)
	}
	return rec, nil
}
