// Package vectorstore persists file-summary embeddings in a SQLite database
// and answers nearest-neighbor queries over them. It backs the vector-search
// localization strategy.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	path      TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	embedding TEXT NOT NULL
);`

// Store is a SQLite-backed embedding store. One row per source file, keyed by
// repository-relative path; re-adding a path replaces its row.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at the given database path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores or replaces the embedding for one file.
func (s *Store) Put(ctx context.Context, path, content string, vector []float64) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO summaries (path, content, embedding) VALUES (?, ?, ?)`,
		path, content, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", path, err)
	}
	return nil
}

// Result is one nearest-neighbor hit.
type Result struct {
	Path  string
	Score float64
}

// Search returns the k stored paths closest to vector by cosine similarity,
// best first.
func (s *Store) Search(ctx context.Context, vector []float64, k int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, embedding FROM summaries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var path, encoded string
		if err := rows.Scan(&path, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan vector store row: %w", err)
		}
		var stored []float64
		if err := json.Unmarshal([]byte(encoded), &stored); err != nil {
			return nil, fmt.Errorf("corrupt embedding for %s: %w", path, err)
		}
		results = append(results, Result{Path: path, Score: cosine(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
