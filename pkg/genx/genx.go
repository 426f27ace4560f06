// Package genx abstracts generative back-ends behind a single Generator
// interface covering the three modes the service needs: free text,
// schema-constrained JSON, and raw image bytes.
//
// Requests carry an ordered transcript of role-tagged messages whose parts
// are text or binary blobs, plus an optional system directive. Backends
// are provided for OpenAI and Google Gemini.
package genx

import (
	"context"
	"unicode/utf8"
)

// ModelParams tunes a generation call. Zero values are omitted from the
// provider request.
type ModelParams struct {
	MaxTokens   int     `json:"max_tokens,omitzero"`
	Temperature float32 `json:"temperature,omitzero"`
	TopP        float32 `json:"top_p,omitzero"`
}

// Request is one generation call: a system directive, an ordered
// transcript, and an optional model override.
type Request struct {
	// System is the system directive prepended to the transcript.
	System string

	// Messages is the ordered, role-tagged transcript.
	Messages []Message

	// Model overrides the generator's default model when non-empty.
	Model string

	// Params tunes the call. Nil uses provider defaults.
	Params *ModelParams
}

// Generator produces artifacts from a prompt. Implementations must be safe
// for concurrent use; every method blocks until the provider settles.
type Generator interface {
	// GenerateText returns a free-text completion of the transcript.
	GenerateText(ctx context.Context, req *Request) (string, error)

	// GenerateStructured returns raw JSON conforming to the given output
	// schema. Decode it with Unmarshal, which repairs near-miss JSON.
	GenerateStructured(ctx context.Context, req *Request, out *OutputSchema) (string, error)

	// GenerateImage returns raw image bytes rendered from the transcript.
	GenerateImage(ctx context.Context, req *Request) ([]byte, error)
}

// prompt flattens the request's text parts into one prompt string for
// providers whose image endpoint takes a single prompt.
func (r *Request) prompt() string {
	var b []byte
	for _, msg := range r.Messages {
		for _, p := range msg.Parts {
			if t, ok := p.(Text); ok {
				if len(b) > 0 {
					b = utf8.AppendRune(b, '\n')
				}
				b = append(b, t...)
			}
		}
	}
	return string(b)
}

func (r *Request) model(fallback string) string {
	if r.Model != "" {
		return r.Model
	}
	return fallback
}
