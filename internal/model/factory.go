package model

import (
	"context"
	"fmt"
)

// Config contains model provider configuration
type Config struct {
	// Provider name: "openai" or "gemini"
	Provider string

	// OpenAI-compatible configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// Retry policy applied around every invocation
	Retry RetryPolicy
}

// NewInvoker creates a retry-wrapped invoker based on configuration.
func NewInvoker(ctx context.Context, cfg *Config) (Invoker, error) {
	var inner Invoker

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: OPENAI_API_KEY is required")
		}
		model := cfg.OpenAIModel
		if model == "" {
			model = "gpt-4o"
		}
		inner = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model)

	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini: GEMINI_API_KEY is required")
		}
		model := cfg.GeminiModel
		if model == "" {
			model = "gemini-2.0-flash"
		}
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		inner = client

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, gemini)", cfg.Provider)
	}

	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	return WithRetry(inner, policy), nil
}
