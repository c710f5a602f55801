package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cort/triage/internal/issue"
	"github.com/cort/triage/internal/localize"
	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultTopN = 5

// LocalizeParams defines the input parameters for the localize_issue tool
type LocalizeParams struct {
	RepoFullName string `json:"repo_full_name" jsonschema:"The repository in owner/name form"`
	Title        string `json:"title" jsonschema:"The issue title"`
	Description  string `json:"description" jsonschema:"The issue description"`
	TopN         int    `json:"top_n,omitempty" jsonschema:"Maximum number of files to return (default 5)"`
}

type localizeServer struct {
	projects *project.Manager
	invoker  model.Invoker
}

// HandleLocalize handles the localize_issue tool call: it runs hierarchical
// localization against the onboarded project's summaries and returns the
// candidate file paths.
func (s *localizeServer) HandleLocalize(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params LocalizeParams,
) (*mcp.CallToolResult, any, error) {
	log.Printf("[MCP Localize Server] Received localize_issue request for %s", params.RepoFullName)

	if params.RepoFullName == "" {
		return nil, nil, fmt.Errorf("repo_full_name parameter is required")
	}
	if params.Title == "" && params.Description == "" {
		return nil, nil, fmt.Errorf("at least one of title and description is required")
	}

	info, ok := s.projects.Get(params.RepoFullName)
	if !ok {
		return errorResult(fmt.Sprintf("project not onboarded: %s", params.RepoFullName)), nil, nil
	}

	topN := params.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	proj := project.New(s.projects.StorePath(), info)
	strategy := localize.NewHierarchical(proj, s.invoker)

	// Assemble the conversation the strategy prompts replay; comments are
	// not available over this surface, so it is the opening message only.
	iss := issue.NewAnalyzer(nil).Analyze(ctx, params.RepoFullName, issue.Details{
		Title: params.Title,
		Body:  params.Description,
	})

	files, err := strategy.Localize(ctx, iss, topN)
	if err != nil {
		log.Printf("[MCP Localize Server] Localization failed: %v", err)
		return errorResult(fmt.Sprintf("localization failed: %v", err)), nil, nil
	}
	if files == nil {
		files = []string{}
	}

	payload, err := json.Marshal(map[string]any{
		"repo":  params.RepoFullName,
		"files": files,
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[MCP Localize Server] Localized %s to %d files", params.RepoFullName, len(files))
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(payload)},
		},
	}, nil, nil
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + message},
		},
		IsError: true,
	}
}
