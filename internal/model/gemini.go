package model

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient creates a Gemini-backed invoker.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

// Name returns the backend name
func (g *GeminiClient) Name() string { return "gemini:" + g.model }

// Invoke sends the messages and returns the model's text reply.
func (g *GeminiClient) Invoke(ctx context.Context, messages []Message) (string, error) {
	return g.generate(ctx, messages, "")
}

// InvokeStructured requests application/json output and decodes it against schema.
func (g *GeminiClient) InvokeStructured(ctx context.Context, messages []Message, schema *Schema, out any) error {
	raw, err := g.generate(ctx, messages, "application/json")
	if err != nil {
		return err
	}
	return schema.Decode(raw, out)
}

func (g *GeminiClient) generate(ctx context.Context, messages []Message, mimeType string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if mimeType != "" {
		config.ResponseMIMEType = mimeType
	}

	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			// Gemini takes system text as a separate instruction, not a turn
			if config.SystemInstruction == nil {
				config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			} else {
				config.SystemInstruction.Parts = append(config.SystemInstruction.Parts, &genai.Part{Text: msg.Content})
			}
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
