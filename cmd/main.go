package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/cort/triage/internal/config"
	"github.com/cort/triage/internal/github"
	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
	"github.com/cort/triage/internal/webhook"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

var (
	loadDotEnv         = godotenv.Load
	newInvoker         = model.NewInvoker
	newProjectManager  = project.NewManager
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Printf("Starting triage-agent server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Provider: %s", cfg.Provider)
	log.Printf("Localization strategy: %s", cfg.Strategy)
	log.Printf("Projects store: %s", cfg.ProjectsStore)

	// Initialize the model backend with retries around every call
	invoker, err := newInvoker(ctx, &model.Config{
		Provider:      cfg.Provider,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		Retry: model.RetryPolicy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			Multiplier:   2.0,
			Jitter:       cfg.RetryJitter,
			Retryable:    model.IsRateLimitError,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize model backend: %w", err)
	}
	log.Printf("Model backend: %s", invoker.Name())

	// Initialize the projects registry
	projects, err := newProjectManager(cfg.ProjectsStore)
	if err != nil {
		return fmt.Errorf("failed to initialize projects store: %w", err)
	}

	// Initialize webhook handler
	handler := webhook.NewHandler(webhook.Config{
		WebhookSecret: cfg.GitHubWebhookSecret,
		GitHubToken:   cfg.GitHubToken,
		Strategy:      cfg.Strategy,
		TopNFiles:     cfg.TopNFiles,
		TopNPackages:  cfg.TopNPackages,
	}, projects, invoker)

	if cfg.GitHubAppID != "" {
		handler.SetAuth(&github.AppAuth{
			AppID:      cfg.GitHubAppID,
			PrivateKey: cfg.GitHubPrivateKey,
		})
		log.Printf("GitHub App ID: %s", cfg.GitHubAppID)
	}

	// The vector strategy and summary indexing need an embedding backend
	if cfg.OpenAIAPIKey != "" {
		handler.SetEmbedder(model.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel))
	} else if cfg.Strategy == "vector" {
		return fmt.Errorf("vector strategy requires OPENAI_API_KEY for embeddings")
	}

	// Setup router
	r := mux.NewRouter()

	// Webhook endpoint
	r.HandleFunc("/webhook", handler.Handle).Methods("POST")

	// Onboarding endpoints
	r.HandleFunc("/onboard", handler.HandleOnboard).Methods("POST", "PUT")

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Root endpoint with info
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"service":"triage-agent","status":"running","strategy":"%s"}`, cfg.Strategy)
	}).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Webhook endpoint: http://localhost%s/webhook", addr)
	log.Printf("Onboarding endpoint: http://localhost%s/onboard", addr)
	log.Printf("Health check: http://localhost%s/health", addr)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}
