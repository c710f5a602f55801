package vectorstore

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	puts := map[string][]float64{
		"pkg/auth.py":    {1, 0, 0},
		"pkg/parser.py":  {0, 1, 0},
		"pkg/metrics.py": {0.9, 0.1, 0},
	}
	for path, vec := range puts {
		if err := s.Put(ctx, path, "summary of "+path, vec); err != nil {
			t.Fatalf("Put(%s) failed: %v", path, err)
		}
	}

	results, err := s.Search(ctx, []float64{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Path != "pkg/auth.py" {
		t.Errorf("best match = %s, want pkg/auth.py", results[0].Path)
	}
	if results[1].Path != "pkg/metrics.py" {
		t.Errorf("second match = %s, want pkg/metrics.py", results[1].Path)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not sorted by descending similarity")
	}
}

func TestStorePutReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "a.py", "old", []float64{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "a.py", "new", []float64{1, 0}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, []float64{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d rows after replace, want 1", len(results))
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %f, want the replaced embedding", results[0].Score)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosine = %f, want %f", got, tt.want)
			}
		})
	}
}
