// Package issue turns GitHub issues into model-ready conversations and
// drafts code-change suggestions for them.
package issue

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cort/triage/internal/localize"
	"github.com/cort/triage/internal/model"
)

// AgentMarker tags comments the agent itself posted. Comments carrying it
// are replayed to the model as assistant turns; everything else is a user
// turn.
const AgentMarker = "<!-- triage-agent -->"

// Details is the slice of a GitHub issue the agent works from.
type Details struct {
	Number int
	Title  string
	Body   string
}

// CommentFetcher fetches the discussion thread of an issue.
type CommentFetcher interface {
	FetchIssueComments(ctx context.Context, repoFullName string, number int) ([]string, error)
}

// Analyzer assembles the issue conversation for localization.
type Analyzer struct {
	comments CommentFetcher
	logger   *log.Logger
}

// NewAnalyzer builds an Analyzer. fetcher may be nil when comments are not
// available (e.g. a freshly opened issue).
func NewAnalyzer(fetcher CommentFetcher) *Analyzer {
	return &Analyzer{comments: fetcher, logger: log.Default()}
}

// SetLogger injects the logging sink.
func (a *Analyzer) SetLogger(l *log.Logger) {
	if l != nil {
		a.logger = l
	}
}

// Analyze builds the localization input: the issue title and body as the
// opening user message, then every comment in thread order. A comment fetch
// failure degrades to just the opening message.
func (a *Analyzer) Analyze(ctx context.Context, repoFullName string, d Details) localize.Issue {
	conversation := []model.Message{{
		Role:    model.RoleUser,
		Content: fmt.Sprintf("Issue: %s\n\nDescription: %s", d.Title, d.Body),
	}}

	if a.comments != nil {
		comments, err := a.comments.FetchIssueComments(ctx, repoFullName, d.Number)
		if err != nil {
			a.logger.Printf("[Issue] Error fetching comments for %s#%d: %v", repoFullName, d.Number, err)
		}
		for _, body := range comments {
			role := model.RoleUser
			if strings.Contains(body, AgentMarker) {
				role = model.RoleAssistant
			}
			conversation = append(conversation, model.Message{Role: role, Content: body})
		}
	}

	return localize.Issue{
		Title:        d.Title,
		Description:  d.Body,
		Conversation: conversation,
	}
}
