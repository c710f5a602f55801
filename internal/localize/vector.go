package localize

import (
	"context"
	"fmt"

	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/vectorstore"
)

// searcher is the slice of the vector store the strategy needs.
type searcher interface {
	Search(ctx context.Context, vector []float64, k int) ([]vectorstore.Result, error)
}

// VectorSearch localizes by embedding the issue title and description and
// looking up the nearest file-summary embeddings.
type VectorSearch struct {
	store    searcher
	embedder model.Embedder
}

// NewVectorSearch builds the strategy over a vector store.
func NewVectorSearch(store *vectorstore.Store, embedder model.Embedder) *VectorSearch {
	return &VectorSearch{store: store, embedder: embedder}
}

// Localize embeds "title: description" and returns the topN closest paths.
func (v *VectorSearch) Localize(ctx context.Context, issue Issue, topN int) ([]string, error) {
	query := fmt.Sprintf("%s: %s", issue.Title, issue.Description)
	vector, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed issue: %w", err)
	}

	results, err := v.store.Search(ctx, vector, topN)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	return paths, nil
}
