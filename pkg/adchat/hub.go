package adchat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/adforge/adforge/pkg/catalog"
	"github.com/adforge/adforge/pkg/genx"
	"github.com/adforge/adforge/pkg/session"
	"github.com/adforge/adforge/pkg/storage"
)

// Config tunes per-orchestrator behavior. Zero fields take defaults.
type Config struct {
	ChatModel  string
	ImageModel string

	// SuggestionLimit caps how many catalog templates a suggestion
	// event carries.
	SuggestionLimit int

	// GenTimeout bounds each generator call; StoreTimeout bounds each
	// catalog or archive access.
	GenTimeout   time.Duration
	StoreTimeout time.Duration

	// Retention keeps a disconnected identity's orchestrator (and its
	// transcript) around for this long, so a quick reconnect resumes
	// the conversation. Zero evicts immediately.
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if c.SuggestionLimit <= 0 {
		c.SuggestionLimit = 5
	}
	if c.GenTimeout <= 0 {
		c.GenTimeout = 60 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// Hub ties the connection registry to the per-identity orchestrators.
// One hub serves all chat channels of a process.
type Hub struct {
	Registry *Registry

	sessions *session.Manager
	gen      genx.Generator
	catalog  catalog.Store
	archive  storage.Archive
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	orchs  map[string]*orchEntry
	closed bool
}

type orchEntry struct {
	orch  *Orchestrator
	timer *time.Timer // pending eviction, nil while connected
}

// NewHub wires a hub. archive may be nil to disable image archiving.
func NewHub(sessions *session.Manager, gen genx.Generator, cat catalog.Store, archive storage.Archive, cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Registry: NewRegistry(logger),
		sessions: sessions,
		gen:      gen,
		catalog:  cat,
		archive:  archive,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		orchs:    make(map[string]*orchEntry),
	}
}

// Orchestrator returns the identity's orchestrator, creating one on
// first use. A pending eviction for the identity is cancelled.
func (h *Hub) Orchestrator(identity string) *Orchestrator {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.orchs[identity]
	if !ok {
		e = &orchEntry{orch: newOrchestrator(identity, h.gen, h.catalog, h.archive, h.cfg, h.logger)}
		h.orchs[identity] = e
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	return e.orch
}

// Release marks the identity's orchestrator as disconnected. With a
// retention window configured the orchestrator lingers, preserving the
// transcript for a reconnect; otherwise it is dropped now. A superseded
// channel releasing while its replacement is live is a no-op.
func (h *Hub) Release(identity string) {
	if h.Registry.Connected(identity) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.orchs[identity]
	if !ok || h.closed {
		return
	}
	if h.cfg.Retention <= 0 {
		delete(h.orchs, identity)
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(h.cfg.Retention, func() {
		h.evict(identity, e.orch)
	})
}

func (h *Hub) evict(identity string, orch *Orchestrator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.orchs[identity]; ok && e.orch == orch {
		delete(h.orchs, identity)
	}
}

// Sessions exposes the session manager used during channel acceptance.
func (h *Hub) Sessions() *session.Manager {
	return h.sessions
}

// Close shuts down every live channel and drops all orchestrators.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	for id, e := range h.orchs {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(h.orchs, id)
	}
	h.mu.Unlock()
	h.Registry.Close()
	return nil
}
