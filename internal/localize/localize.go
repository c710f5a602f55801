// Package localize narrows a repository down to the source files most likely
// relevant to an issue. The primary strategy is a two-stage hierarchical
// search over machine-generated semantic summaries: select top-level packages
// first, then rank files within them, reconciling the model's output against
// the real file tree at every step.
package localize

import (
	"context"

	"github.com/cort/triage/internal/model"
)

// Issue carries the issue under triage plus its full discussion thread.
// Conversation messages keep their roles so the model sees who said what.
type Issue struct {
	Title        string
	Description  string
	Conversation []model.Message
}

// Suggestion is one candidate localization produced by the model. It is
// consumed immediately to compute a repository-relative path, never stored.
type Suggestion struct {
	Package    string  `json:"package"`
	File       string  `json:"file"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Strategy localizes an issue to at most topN repository-relative file
// paths, best candidates first. An empty result means the issue could not be
// localized; strategies reserve errors for infrastructure failures, not for
// the model being unhelpful.
type Strategy interface {
	Localize(ctx context.Context, issue Issue, topN int) ([]string, error)
}

type relevantPackages struct {
	RelevantPackages []string `json:"relevant_packages"`
}

type fileSuggestions struct {
	FileLocalizationSuggestions []Suggestion `json:"file_localization_suggestions"`
}

var (
	relevantPackagesSchema = model.MustSchemaFor[relevantPackages]()
	fileSuggestionsSchema  = model.MustSchemaFor[fileSuggestions]()
)
