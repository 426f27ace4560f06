package adchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/adforge/adforge/pkg/catalog"
	"github.com/adforge/adforge/pkg/genx"
	"github.com/adforge/adforge/pkg/storage"
)

// Frame is one inbound client message: free text or a template selection.
type Frame struct {
	Message    string `json:"message"`
	TemplateID string `json:"template_id"`
}

// ErrMalformedFrame is returned by ParseFrame for frames the orchestrator
// cannot route.
var ErrMalformedFrame = errors.New("adchat: malformed frame")

// ParseFrame decodes an inbound frame. A frame must be valid JSON and
// carry either a message or a template id.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Message == "" && f.TemplateID == "" {
		return Frame{}, fmt.Errorf("%w: neither message nor template_id", ErrMalformedFrame)
	}
	return f, nil
}

// phase is the orchestrator's position in the conversation state machine.
type phase int

const (
	phaseCollecting phase = iota
	phaseAwaitingSelection
	phaseGenerating
)

func (p phase) String() string {
	switch p {
	case phaseCollecting:
		return "collecting_info"
	case phaseAwaitingSelection:
		return "awaiting_selection"
	case phaseGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

// Orchestrator drives one identity's conversation. It owns the transcript
// and is re-entered on every inbound frame; frames for the same identity
// are processed strictly sequentially.
type Orchestrator struct {
	identity string
	gen      genx.Generator
	catalog  catalog.Store
	archive  storage.Archive // nil disables image archiving
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	// mu serializes dispatches, including across a reconnect where the
	// superseded channel loop may still be draining its last dispatch.
	mu         sync.Mutex
	transcript []genx.Message
	phase      phase
}

func newOrchestrator(identity string, gen genx.Generator, cat catalog.Store, archive storage.Archive, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		identity: identity,
		gen:      gen,
		catalog:  cat,
		archive:  archive,
		cfg:      cfg,
		logger:   logger.With("identity", identity),
		now:      time.Now,
		phase:    phaseCollecting,
	}
}

// Handle processes one inbound frame and returns the finite, ordered
// sequence of outbound events it produces. The sequence is single-use and
// does the generation work as it is consumed, so the caller controls
// pacing by how fast it drains events.
func (o *Orchestrator) Handle(ctx context.Context, frame Frame) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		o.mu.Lock()
		defer o.mu.Unlock()

		if frame.TemplateID != "" {
			// A selection short-circuits into a generation round,
			// bypassing information collection.
			o.phase = phaseGenerating
			o.runRound(ctx, frame.TemplateID, yield)
			o.phase = phaseCollecting
			return
		}
		o.handleText(ctx, frame.Message, yield)
	}
}

// handleText runs one information-collection turn: append the user
// message, ask the generator for a reply, and offer templates once the
// readiness sentinel appears.
func (o *Orchestrator) handleText(ctx context.Context, message string, yield func(Event) bool) {
	o.phase = phaseCollecting
	o.transcript = append(o.transcript, genx.UserText(message))

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenTimeout)
	defer cancel()
	reply, err := o.gen.GenerateText(gctx, &genx.Request{
		System:   collectInfoDirective,
		Messages: o.transcript,
		Model:    o.cfg.ChatModel,
	})
	if err != nil {
		// The turn is abandoned; the user message stays in the
		// transcript for the next attempt.
		o.logger.Error("adchat: text turn failed", "err", err)
		yield(o.errorEvent("The assistant could not respond, please try again."))
		return
	}
	o.transcript = append(o.transcript, genx.ModelText(reply))
	if !yield(o.textEvent(reply)) {
		return
	}

	if !strings.Contains(reply, ReadySentinel) {
		return
	}
	if !yield(o.textEvent("I have everything I need. Preparing template suggestions...")) {
		return
	}

	sctx, scancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer scancel()
	templates, err := o.catalog.List(sctx, o.cfg.SuggestionLimit)
	if err != nil {
		o.logger.Error("adchat: template listing failed", "err", err)
		yield(o.errorEvent("Could not load template suggestions, please try again."))
		return
	}
	yield(TemplateSuggestionEvent{
		Envelope:  envelope(CategoryTemplateSuggestion, o.now()),
		Message:   "Pick a template to generate your advertisement.",
		Templates: templates,
	})
	o.phase = phaseAwaitingSelection
}

// Transcript returns a copy of the conversation so far.
func (o *Orchestrator) Transcript() []genx.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]genx.Message, len(o.transcript))
	copy(out, o.transcript)
	return out
}

func (o *Orchestrator) textEvent(message string) TextEvent {
	return TextEvent{
		Envelope: envelope(CategoryText, o.now()),
		Role:     "assistant",
		Message:  message,
	}
}

func (o *Orchestrator) errorEvent(message string) ErrorEvent {
	return ErrorEvent{
		Envelope: envelope(CategoryError, o.now()),
		Message:  message,
	}
}
