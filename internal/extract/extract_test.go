package extract

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cort/triage/internal/model"
)

type relevantPackages struct {
	RelevantPackages []string `json:"relevant_packages"`
}

var relevantPackagesSchema = model.MustSchemaFor[relevantPackages]()

func TestStructured_SingleFencedBlock(t *testing.T) {
	raw := "Here is the result you asked for:\n\n```json\n{\"relevant_packages\": [\"retrieval\"]}\n```\n\nLet me know if you need more."

	var out relevantPackages
	if err := Structured(raw, relevantPackagesSchema, &out); err != nil {
		t.Fatalf("Structured() error = %v", err)
	}
	if !reflect.DeepEqual(out.RelevantPackages, []string{"retrieval"}) {
		t.Errorf("Structured() = %v, want [retrieval]", out.RelevantPackages)
	}
}

func TestStructured_FenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"relevant_packages\": [\"localize\", \"project\"]}\n```"

	var out relevantPackages
	if err := Structured(raw, relevantPackagesSchema, &out); err != nil {
		t.Fatalf("Structured() error = %v", err)
	}
	if len(out.RelevantPackages) != 2 {
		t.Errorf("Structured() = %v, want two packages", out.RelevantPackages)
	}
}

func TestStructured_IgnoresNonValidatingBlocks(t *testing.T) {
	raw := "```python\nprint('hello')\n```\n\n```json\n{\"relevant_packages\": [\"core\"]}\n```"

	var out relevantPackages
	if err := Structured(raw, relevantPackagesSchema, &out); err != nil {
		t.Fatalf("Structured() error = %v", err)
	}
	if len(out.RelevantPackages) != 1 || out.RelevantPackages[0] != "core" {
		t.Errorf("Structured() = %v, want [core]", out.RelevantPackages)
	}
}

func TestStructured_NoValidBlock(t *testing.T) {
	raw := "I could not produce JSON, sorry.\n```text\nnothing here\n```"

	var out relevantPackages
	err := Structured(raw, relevantPackagesSchema, &out)
	if !errors.Is(err, ErrNoStructuredOutput) {
		t.Errorf("Structured() error = %v, want ErrNoStructuredOutput", err)
	}
}

func TestStructured_AmbiguousBlocks(t *testing.T) {
	raw := "```json\n{\"relevant_packages\": [\"a\"]}\n```\nor maybe\n```json\n{\"relevant_packages\": [\"b\"]}\n```"

	var out relevantPackages
	err := Structured(raw, relevantPackagesSchema, &out)
	if !errors.Is(err, ErrAmbiguousOutput) {
		t.Errorf("Structured() error = %v, want ErrAmbiguousOutput", err)
	}
}

func TestFilenames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "mixed prose",
			raw:  "The bug is probably in localize/hierarchical.py or in project.py. Check hierarchical.py again.",
			want: []string{"localize/hierarchical.py", "project.py", "hierarchical.py"},
		},
		{
			name: "no filenames",
			raw:  "No idea where this lives.",
			want: nil,
		},
		{
			name: "multiple extensions",
			raw:  "handler.go calls helper.ts and util.rs",
			want: []string{"handler.go", "helper.ts", "util.rs"},
		},
		{
			name: "deduplicated preserving order",
			raw:  "a.py b.py a.py",
			want: []string{"a.py", "b.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filenames(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filenames(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCodeBlockContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "wrapped in fence",
			input: "```markdown\n# Semantic Summary\nParses config.\n```",
			want:  "# Semantic Summary\nParses config.",
		},
		{
			name:  "not wrapped",
			input: "# Semantic Summary\nParses config.",
			want:  "# Semantic Summary\nParses config.",
		},
		{
			name:  "fence without language",
			input: "```\ncontent\n```",
			want:  "content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeBlockContent(tt.input); got != tt.want {
				t.Errorf("CodeBlockContent(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
