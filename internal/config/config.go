package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the triage-agent service
type Config struct {
	// Server settings
	Port int

	// GitHub App settings
	GitHubAppID         string
	GitHubPrivateKey    string
	GitHubWebhookSecret string
	GitHubToken         string // fallback PAT when no App credentials are set

	// Model provider selection: "openai" or "gemini"
	Provider string

	// OpenAI-compatible settings
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Gemini settings
	GeminiAPIKey string
	GeminiModel  string

	// Embedding settings (vector localization strategy)
	EmbeddingModel string

	// Project store settings
	ProjectsStore string

	// Localization settings
	Strategy     string // "hierarchical" or "vector"
	TopNPackages int
	TopNFiles    int

	// Model retry settings
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryJitter       bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnvInt("PORT", 8000),
		GitHubAppID:         os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKey:    normalizePrivateKey(os.Getenv("GITHUB_PRIVATE_KEY")),
		GitHubWebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		Provider:            getEnv("MODEL_PROVIDER", "openai"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		ProjectsStore:       getEnv("PROJECTS_STORE", "projects"),
		Strategy:            getEnv("LOCALIZATION_STRATEGY", "hierarchical"),
		TopNPackages:        getEnvInt("TOP_N_PACKAGES", 3),
		TopNFiles:           getEnvInt("TOP_N_FILES", 5),
		RetryMaxAttempts:    getEnvInt("MODEL_RETRY_MAX_ATTEMPTS", 10),
		RetryInitialDelay:   time.Duration(getEnvInt("MODEL_RETRY_INITIAL_SECONDS", 1)) * time.Second,
		RetryJitter:         getEnvBool("MODEL_RETRY_JITTER", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalizePrivateKey unwraps quoting and escaped newlines that survive
// docker-compose / systemd environment files.
func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// validate checks that all required configuration is present
func (c *Config) validate() error {
	if err := c.validateGitHubCredentials(); err != nil {
		return err
	}

	if err := c.validateProviderConfig(); err != nil {
		return err
	}

	return c.validateLocalizationConfig()
}

func (c *Config) validateGitHubCredentials() error {
	if c.GitHubWebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	// Either App credentials or a plain token must be available
	if c.GitHubAppID == "" && c.GitHubToken == "" {
		return fmt.Errorf("either GITHUB_APP_ID/GITHUB_PRIVATE_KEY or GITHUB_TOKEN is required")
	}
	if c.GitHubAppID != "" && c.GitHubPrivateKey == "" {
		return fmt.Errorf("GITHUB_PRIVATE_KEY is required when GITHUB_APP_ID is set")
	}
	return nil
}

func (c *Config) validateProviderConfig() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for openai provider")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for gemini provider")
		}
	default:
		return fmt.Errorf("invalid provider: %s (must be 'openai' or 'gemini')", c.Provider)
	}
	return nil
}

func (c *Config) validateLocalizationConfig() error {
	switch c.Strategy {
	case "hierarchical", "vector":
	default:
		return fmt.Errorf("invalid localization strategy: %s (must be 'hierarchical' or 'vector')", c.Strategy)
	}
	if c.TopNPackages <= 0 {
		return fmt.Errorf("TOP_N_PACKAGES must be greater than 0")
	}
	if c.TopNFiles <= 0 {
		return fmt.Errorf("TOP_N_FILES must be greater than 0")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("MODEL_RETRY_MAX_ATTEMPTS must be greater than 0")
	}
	return nil
}

// getEnv gets environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
