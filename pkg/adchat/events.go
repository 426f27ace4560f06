package adchat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adforge/adforge/pkg/catalog"
	"github.com/adforge/adforge/pkg/encoding"
)

// Event categories, carried in the "category" field of every outbound
// frame.
const (
	CategoryText               = "text"
	CategoryTemplateSuggestion = "template_suggestion"
	CategoryFinalTemplates     = "final_templates"
	CategoryError              = "error"
)

// Event is one outbound frame. The concrete variants are TextEvent,
// TemplateSuggestionEvent, FinalTemplatesEvent, and ErrorEvent; Encode is
// exhaustive over them.
type Event interface {
	isEvent()
}

// Envelope is the part shared by every event.
type Envelope struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// TextEvent carries one conversational turn or progress notice.
type TextEvent struct {
	Envelope
	Role    string `json:"role"`
	Message string `json:"message"`
}

func (TextEvent) isEvent() {}

// TemplateSuggestionEvent carries the bounded catalog page offered once
// the conversation has collected enough product information.
type TemplateSuggestionEvent struct {
	Envelope
	Message   string             `json:"message"`
	Templates []catalog.Template `json:"templates"`
}

func (TemplateSuggestionEvent) isEvent() {}

// FinalTemplatesEvent carries the aggregate of one generation round.
type FinalTemplatesEvent struct {
	Envelope
	Templates []FinalTemplate `json:"templates"`
	Stats     RoundStats      `json:"stats"`
}

func (FinalTemplatesEvent) isEvent() {}

// ErrorEvent reports a non-fatal fault to the client.
type ErrorEvent struct {
	Envelope
	Message string `json:"message"`
}

func (ErrorEvent) isEvent() {}

// FinalTemplate is the unit returned to the client after a generation
// round: one generated image with its caption, tags, and template
// metadata.
type FinalTemplate struct {
	// Position numbers templates 1..K in image completion order.
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`

	// Image is the generated image bytes, base64 on the wire.
	Image encoding.StdBase64Data `json:"image"`

	// ImagePath is set when the image was archived.
	ImagePath string `json:"image_path,omitempty"`

	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`

	// Warning annotates a template whose caption fell back to the
	// default after a caption-generation failure.
	Warning string `json:"warning,omitempty"`
}

// RoundStats summarizes one fan-out round.
type RoundStats struct {
	TotalRequested     int `json:"total_requested"`
	ImagesSuccessful   int `json:"images_successful"`
	CaptionsSuccessful int `json:"captions_successful"`
	CaptionsDefaulted  int `json:"captions_defaulted"`
}

// Encode serializes an event to its wire frame. The type switch is
// deliberately exhaustive: adding an event category without extending it
// is a bug surfaced at the first send.
func Encode(e Event) ([]byte, error) {
	switch v := e.(type) {
	case TextEvent:
		return json.Marshal(v)
	case TemplateSuggestionEvent:
		return json.Marshal(v)
	case FinalTemplatesEvent:
		return json.Marshal(v)
	case ErrorEvent:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("adchat: unknown event type %T", e)
	}
}

func envelope(category string, now time.Time) Envelope {
	return Envelope{Category: category, Timestamp: now.UTC()}
}
