package vectorstore

import (
	"context"
	"fmt"

	"github.com/cort/triage/internal/model"
)

// Indexer embeds file summaries and writes them to a Store. It plugs into
// the codebase-understanding builder as its summary indexer.
type Indexer struct {
	store    *Store
	embedder model.Embedder
}

// NewIndexer builds an Indexer over store using embedder.
func NewIndexer(store *Store, embedder model.Embedder) *Indexer {
	return &Indexer{store: store, embedder: embedder}
}

// Add embeds content and stores it under path.
func (i *Indexer) Add(ctx context.Context, path, content string) error {
	vector, err := i.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed summary for %s: %w", path, err)
	}
	return i.store.Put(ctx, path, content, vector)
}
