package issue

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cort/triage/internal/localize"
	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
)

// Suggester drafts code-change suggestions for a localized issue in one
// free-text model pass.
type Suggester struct {
	invoker model.Invoker
	logger  *log.Logger
}

// NewSuggester builds a Suggester.
func NewSuggester(invoker model.Invoker) *Suggester {
	return &Suggester{invoker: invoker, logger: log.Default()}
}

// SetLogger injects the logging sink.
func (s *Suggester) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SuggestChanges asks the model for change suggestions against the topN
// localized files, returning the raw markdown response.
func (s *Suggester) SuggestChanges(ctx context.Context, proj *project.Project, iss localize.Issue, paths []string, topN int) (string, error) {
	if topN > 0 && len(paths) > topN {
		paths = paths[:topN]
	}
	s.logger.Printf("[Suggest] Files being added to the prompt: %v", paths)

	files := proj.ReadRepoFiles(paths)

	var codeFiles strings.Builder
	for _, f := range files {
		fmt.Fprintf(&codeFiles, "\nfile: %s\n```\n%s\n```\n", f.Path, f.Content)
	}

	system := fmt.Sprintf(`You are an AI assistant that specializes in analysing issues and understanding code, and make code change suggestions to address issues.

Following files have been suggested as relevant to the issue and discussion:

[FILE-SUGGESTIONS-START]
%s
[FILE-SUGGESTIONS-END]

Here are the corresponding code files:
%s

Based on the issue details and ensuing discussion please suggest code or changes to it in these files and (or any new code) along with your reasoning. In case of code change, don't write the entire code or function. Focus on just the relevant parts that are changed.`,
		strings.Join(paths, "\n"), codeFiles.String())

	messages := make([]model.Message, 0, len(iss.Conversation)+1)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	for _, m := range iss.Conversation {
		role := model.RoleAssistant
		if m.Role == model.RoleUser {
			role = model.RoleUser
		}
		messages = append(messages, model.Message{Role: role, Content: m.Content})
	}

	response, err := s.invoker.Invoke(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate change suggestions: %w", err)
	}
	return response, nil
}
