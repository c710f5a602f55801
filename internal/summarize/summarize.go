// Package summarize generates the machine-written semantic documentation the
// localization index is built from: one markdown fragment per source file and
// one abstractive summary per top-level package.
package summarize

import (
	"context"
	"fmt"

	"github.com/cort/triage/internal/extract"
	"github.com/cort/triage/internal/model"
)

// Summarizer produces file and package summaries through a model backend.
type Summarizer struct {
	invoker  model.Invoker
	language string
}

// New builds a Summarizer for source files in the given language ("Python",
// "Go", ...). The language only flavors the prompts; empty defaults to
// "Python".
func New(invoker model.Invoker, language string) *Summarizer {
	if language == "" {
		language = "Python"
	}
	return &Summarizer{invoker: invoker, language: language}
}

// ForExtension builds a Summarizer whose prompts name the language matching
// a source file extension.
func ForExtension(invoker model.Invoker, ext string) *Summarizer {
	return New(invoker, languageForExt(ext))
}

func languageForExt(ext string) string {
	switch ext {
	case ".py":
		return "Python"
	case ".go":
		return "Go"
	case ".js", ".jsx":
		return "JavaScript"
	case ".ts", ".tsx":
		return "TypeScript"
	case ".java":
		return "Java"
	case ".rb":
		return "Ruby"
	case ".rs":
		return "Rust"
	default:
		return "Python"
	}
}

// SummarizeFile generates the semantic description of one source file. The
// model is asked for a fenced markdown document; a single wrapping fence, if
// present, is stripped.
func (s *Summarizer) SummarizeFile(ctx context.Context, code string) (string, error) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: fileSystemPrompt},
		{Role: model.RoleUser, Content: fileSummaryPrompt(s.language, code)},
	}

	raw, err := s.invoker.Invoke(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate file summary: %w", err)
	}
	return extract.CodeBlockContent(raw), nil
}

// SummarizePackage generates the abstractive summary of one top-level
// package from its collated hierarchical documentation.
func (s *Summarizer) SummarizePackage(ctx context.Context, name, details string) (string, error) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: packageSystemPrompt},
		{Role: model.RoleUser, Content: packageSummaryPrompt(s.language, name, details)},
	}

	raw, err := s.invoker.Invoke(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary for package %s: %w", name, err)
	}
	return extract.CodeBlockContent(raw), nil
}
