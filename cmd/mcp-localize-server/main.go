package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storePath := os.Getenv("PROJECTS_STORE")
	if storePath == "" {
		storePath = "projects"
	}

	log.Println("[MCP Localize Server] Starting Issue Localization MCP Server v1.0.0")
	log.Printf("[MCP Localize Server] Projects store: %s", storePath)

	projects, err := project.NewManager(storePath)
	if err != nil {
		log.Fatalf("[MCP Localize Server] Failed to open projects store: %v", err)
	}

	provider := os.Getenv("MODEL_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	invoker, err := model.NewInvoker(ctx, &model.Config{
		Provider:      provider,
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),
	})
	if err != nil {
		log.Fatalf("[MCP Localize Server] Failed to initialize model backend: %v", err)
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "issue-localize-server",
		Version: "v1.0.0",
	}, nil)

	handler := &localizeServer{projects: projects, invoker: invoker}
	tool := &mcp.Tool{
		Name:        "localize_issue",
		Description: "Find the files in an onboarded repository most relevant to an issue, using its semantic code summaries",
	}
	mcp.AddTool(server, tool, handler.HandleLocalize)
	log.Println("[MCP Localize Server] Registered tool: localize_issue")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[MCP Localize Server] Received shutdown signal")
		cancel()
	}()

	log.Println("[MCP Localize Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP Localize Server] Server error: %v", err)
	}
	log.Println("[MCP Localize Server] Server stopped gracefully")
}
