package genx

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

var _ Generator = (*OpenAIGenerator)(nil)

const (
	oaiFinishReasonStop          = "stop"
	oaiFinishReasonLength        = "length"
	oaiFinishReasonContentFilter = "content_filter"
)

// OpenAIGenerator implements Generator using the OpenAI API. Text and
// structured calls go through chat completions; images go through the
// image generation endpoint with the request flattened to one prompt.
type OpenAIGenerator struct {
	Client *openai.Client

	// Model is the default chat model.
	Model string

	// ImageModel is the image generation model (e.g. "gpt-image-1").
	ImageModel string
}

func (g *OpenAIGenerator) GenerateText(ctx context.Context, req *Request) (string, error) {
	params, err := g.chatCompletion(req)
	if err != nil {
		return "", err
	}
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("genx: openai text: %w", err)
	}
	return oaiTextChoice(resp)
}

func (g *OpenAIGenerator) GenerateStructured(ctx context.Context, req *Request, out *OutputSchema) (string, error) {
	params, err := g.chatCompletion(req)
	if err != nil {
		return "", err
	}
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        out.Name,
				Description: param.NewOpt(out.Description),
				Schema:      any(formatStrictSchema(out.Schema.CloneSchemas())),
				Strict:      param.NewOpt(true),
			},
		},
	}
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("genx: openai structured: %w", err)
	}
	return oaiTextChoice(resp)
}

func (g *OpenAIGenerator) GenerateImage(ctx context.Context, req *Request) ([]byte, error) {
	prompt := req.prompt()
	if prompt == "" {
		return nil, errors.New("genx: image request has no text")
	}
	resp, err := g.Client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(req.model(g.ImageModel)),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              param.NewOpt(int64(1)),
	})
	if err != nil {
		return nil, fmt.Errorf("genx: openai image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("genx: openai image: no image data in response")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("genx: openai image: decode payload: %w", err)
	}
	return data, nil
}

func oaiTextChoice(resp *openai.ChatCompletion) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("genx: openai: no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("genx: openai: blocked: %s", choice.Message.Refusal)
	}
	switch choice.FinishReason {
	case oaiFinishReasonStop:
	case oaiFinishReasonLength:
		return "", errors.New("genx: openai: response truncated at max tokens")
	case oaiFinishReasonContentFilter:
		return "", errors.New("genx: openai: response blocked by content filter")
	default:
		return "", fmt.Errorf("genx: openai: unexpected finish reason: %s", choice.FinishReason)
	}
	if choice.Message.Content == "" {
		return "", errors.New("genx: openai: no content")
	}
	return choice.Message.Content, nil
}

func (g *OpenAIGenerator) chatCompletion(req *Request) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for i := range req.Messages {
		mp, err := oaiConvMessage(&req.Messages[i])
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, mp)
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    req.model(g.Model),
	}
	if mp := req.Params; mp != nil {
		if mp.MaxTokens > 0 {
			params.MaxCompletionTokens = param.NewOpt(int64(mp.MaxTokens))
		}
		if mp.Temperature > 0 {
			params.Temperature = param.NewOpt(float64(mp.Temperature))
		}
		if mp.TopP > 0 {
			params.TopP = param.NewOpt(float64(mp.TopP))
		}
	}
	return params, nil
}

func oaiConvMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case RoleModel:
		return openai.AssistantMessage(msg.TextContent()), nil
	case RoleUser:
		var parts []openai.ChatCompletionContentPartUnionParam
		hasBlob := false
		for _, p := range msg.Parts {
			switch v := p.(type) {
			case Text:
				if v != "" {
					parts = append(parts, openai.TextContentPart(string(v)))
				}
			case *Blob:
				hasBlob = true
				url := fmt.Sprintf("data:%s;base64,%s", v.MIMEType, base64.StdEncoding.EncodeToString(v.Data))
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: url,
				}))
			default:
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("genx: openai: unsupported part type %T", p)
			}
		}
		if len(parts) == 0 {
			return openai.ChatCompletionMessageParamUnion{}, errors.New("genx: openai: user message is empty")
		}
		if !hasBlob {
			return openai.UserMessage(msg.TextContent()), nil
		}
		return openai.UserMessage(parts), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("genx: openai: unsupported role %q", msg.Role)
	}
}
