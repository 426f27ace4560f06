package genx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator implements Generator using the Google Gemini API.
// Images come back as inline blobs on a multimodal model, so all three
// generation modes share the GenerateContent call.
type GeminiGenerator struct {
	Client *genai.Client

	// Model is the default text/structured model. Must not start with
	// "models/".
	Model string

	// ImageModel is the image-capable model used by GenerateImage.
	ImageModel string
}

func (g *GeminiGenerator) GenerateText(ctx context.Context, req *Request) (string, error) {
	cfg, contents, err := geminiConvRequest(req)
	if err != nil {
		return "", err
	}
	resp, err := g.Client.Models.GenerateContent(ctx, req.model(g.Model), contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genx: gemini text: %w", geminiUnwrap(err))
	}
	return geminiTextCandidate(resp)
}

func (g *GeminiGenerator) GenerateStructured(ctx context.Context, req *Request, out *OutputSchema) (string, error) {
	cfg, contents, err := geminiConvRequest(req)
	if err != nil {
		return "", err
	}
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = geminiConvSchema(out.Schema)
	resp, err := g.Client.Models.GenerateContent(ctx, req.model(g.Model), contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genx: gemini structured: %w", geminiUnwrap(err))
	}
	return geminiTextCandidate(resp)
}

func (g *GeminiGenerator) GenerateImage(ctx context.Context, req *Request) ([]byte, error) {
	cfg, contents, err := geminiConvRequest(req)
	if err != nil {
		return nil, err
	}
	cfg.ResponseModalities = []string{"TEXT", "IMAGE"}
	resp, err := g.Client.Models.GenerateContent(ctx, req.model(g.ImageModel), contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("genx: gemini image: %w", geminiUnwrap(err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("genx: gemini image: no candidates")
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data, nil
		}
	}
	return nil, errors.New("genx: gemini image: no image data in response")
}

func geminiUnwrap(err error) error {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		return ae.Unwrap()
	}
	return err
}

func geminiTextCandidate(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("genx: gemini: no candidates")
	}
	t := resp.Candidates[0]
	if t.FinishReason != genai.FinishReasonStop {
		if t.FinishReason == genai.FinishReasonMaxTokens {
			return "", errors.New("genx: gemini: response truncated at max tokens")
		}
		return "", fmt.Errorf("genx: gemini: unexpected finish reason: %s", t.FinishReason)
	}
	if t.Content == nil {
		return "", errors.New("genx: gemini: no content")
	}
	var sb strings.Builder
	for _, p := range t.Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

func geminiConvRequest(req *Request) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if mp := req.Params; mp != nil {
		if mp.MaxTokens > 0 {
			cfg.MaxOutputTokens = int32(mp.MaxTokens)
		}
		if mp.Temperature > 0 {
			cfg.Temperature = genai.Ptr(mp.Temperature)
		}
		if mp.TopP > 0 {
			cfg.TopP = genai.Ptr(mp.TopP)
		}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var role genai.Role
		switch msg.Role {
		case RoleUser:
			role = genai.RoleUser
		case RoleModel:
			role = genai.RoleModel
		default:
			return nil, nil, fmt.Errorf("genx: gemini: unsupported role %q", msg.Role)
		}
		parts := make([]*genai.Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch v := p.(type) {
			case Text:
				if v != "" {
					parts = append(parts, genai.NewPartFromText(string(v)))
				}
			case *Blob:
				parts = append(parts, genai.NewPartFromBytes(v.Data, v.MIMEType))
			default:
				return nil, nil, fmt.Errorf("genx: gemini: unsupported part type %T", p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("genx: gemini: no contents")
	}
	return cfg, contents, nil
}

func geminiConvSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       geminiConvSchema(schema.Items),
		Required:    schema.Required,
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = geminiConvSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
