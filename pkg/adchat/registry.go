package adchat

import (
	"log/slog"
	"sync"

	"github.com/adforge/adforge/pkg/session"
)

// Conn is an open, identity-tagged outbound channel. The websocket
// adapter lives in pkg/server; tests use in-memory implementations.
type Conn interface {
	// Send writes one outbound frame.
	Send(data []byte) error

	// Close tears the channel down, best-effort, with a diagnostic
	// reason.
	Close(reason string) error
}

// Registry owns the identity → connection mapping. It is the single
// source of truth for "is this user connected" and mediates all outbound
// delivery. Safe for concurrent use by arbitrary identities.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	conns    map[string]Conn
	sessions map[string]session.Record
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		conns:    make(map[string]Conn),
		sessions: make(map[string]session.Record),
	}
}

// Connect installs conn as the one live connection for identity,
// superseding (and closing, best-effort) any previous connection.
func (r *Registry) Connect(identity string, conn Conn, rec session.Record) {
	r.mu.Lock()
	old := r.conns[identity]
	r.conns[identity] = conn
	r.sessions[identity] = rec
	r.mu.Unlock()

	if old != nil && old != conn {
		// Failures to close the superseded channel are swallowed; the
		// new connection is already installed.
		_ = old.Close("replaced by a new connection")
		r.logger.Info("adchat: superseded connection", "identity", identity)
	}
}

// Send delivers one event to the identity's connection. If the identity
// is not connected the event is dropped silently (at-most-once delivery,
// no durability). A write failure evicts the connection.
func (r *Registry) Send(identity string, e Event) {
	r.mu.Lock()
	conn, ok := r.conns[identity]
	r.mu.Unlock()
	if !ok {
		return
	}

	data, err := Encode(e)
	if err != nil {
		r.logger.Error("adchat: encode event", "identity", identity, "err", err)
		return
	}
	if err := conn.Send(data); err != nil {
		r.logger.Warn("adchat: send failed, evicting connection", "identity", identity, "err", err)
		r.release(identity, conn)
	}
}

// Disconnect removes the connection and session entry for identity.
// Idempotent; disconnecting an unknown identity is a no-op.
func (r *Registry) Disconnect(identity string) {
	r.mu.Lock()
	delete(r.conns, identity)
	delete(r.sessions, identity)
	r.mu.Unlock()
}

// release removes identity's entry only if conn is still the registered
// connection, so a superseded channel loop cannot tear down its
// replacement.
func (r *Registry) release(identity string, conn Conn) {
	r.mu.Lock()
	if r.conns[identity] == conn {
		delete(r.conns, identity)
		delete(r.sessions, identity)
	}
	r.mu.Unlock()
}

// Broadcast delivers one event to every live connection, best-effort. A
// failing connection is evicted without aborting delivery to the others.
func (r *Registry) Broadcast(e Event) {
	data, err := Encode(e)
	if err != nil {
		r.logger.Error("adchat: encode broadcast", "err", err)
		return
	}

	r.mu.Lock()
	targets := make(map[string]Conn, len(r.conns))
	for id, c := range r.conns {
		targets[id] = c
	}
	r.mu.Unlock()

	for id, c := range targets {
		if err := c.Send(data); err != nil {
			r.logger.Warn("adchat: broadcast send failed, evicting connection", "identity", id, "err", err)
			r.release(id, c)
		}
	}
}

// Session returns the cached session record for a connected identity.
func (r *Registry) Session(identity string) (session.Record, bool) {
	r.mu.Lock()
	rec, ok := r.sessions[identity]
	r.mu.Unlock()
	return rec, ok
}

// Connected reports whether identity has a live connection.
func (r *Registry) Connected(identity string) bool {
	r.mu.Lock()
	_, ok := r.conns[identity]
	r.mu.Unlock()
	return ok
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	n := len(r.conns)
	r.mu.Unlock()
	return n
}

// Close tears down every connection. Used at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.sessions = make(map[string]session.Record)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close("server shutting down")
	}
}
