package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cort/triage/internal/model"
)

type fakeInvoker struct {
	response string
	err      error
	messages []model.Message
}

func (f *fakeInvoker) Invoke(ctx context.Context, messages []model.Message) (string, error) {
	f.messages = messages
	return f.response, f.err
}

func (f *fakeInvoker) InvokeStructured(ctx context.Context, messages []model.Message, schema *model.Schema, out any) error {
	return errors.New("not used")
}

func (f *fakeInvoker) Name() string { return "fake" }

func TestSummarizeFile(t *testing.T) {
	inv := &fakeInvoker{response: "```\n# Semantic Summary\n\nParses widgets.\n```"}
	s := New(inv, "Python")

	got, err := s.SummarizeFile(context.Background(), "def parse(): pass")
	if err != nil {
		t.Fatalf("SummarizeFile failed: %v", err)
	}
	if got != "# Semantic Summary\n\nParses widgets." {
		t.Errorf("summary = %q, want fence stripped", got)
	}

	if len(inv.messages) != 2 || inv.messages[0].Role != model.RoleSystem {
		t.Fatalf("messages = %+v, want system + user", inv.messages)
	}
	user := inv.messages[1].Content
	if !strings.Contains(user, "def parse(): pass") {
		t.Error("prompt missing the source code")
	}
	if !strings.Contains(user, "Python file") {
		t.Error("prompt missing the language")
	}
}

func TestSummarizeFileUnfencedResponse(t *testing.T) {
	inv := &fakeInvoker{response: "# Semantic Summary\n\nNo fence here."}
	s := New(inv, "Python")

	got, err := s.SummarizeFile(context.Background(), "x = 1")
	if err != nil {
		t.Fatal(err)
	}
	if got != inv.response {
		t.Errorf("summary = %q, want response unchanged", got)
	}
}

func TestSummarizeFileError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("model unavailable")}
	s := New(inv, "Python")

	if _, err := s.SummarizeFile(context.Background(), "x = 1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSummarizePackage(t *testing.T) {
	inv := &fakeInvoker{response: "```markdown\n# widgets\n\n## Semantic Summary\n\nWidget handling.\n```"}
	s := New(inv, "Python")

	got, err := s.SummarizePackage(context.Background(), "widgets", "# widgets\n\n## parse.py\n\ndetails")
	if err != nil {
		t.Fatalf("SummarizePackage failed: %v", err)
	}
	if !strings.HasPrefix(got, "# widgets") || strings.Contains(got, "```") {
		t.Errorf("summary = %q, want fence stripped", got)
	}

	user := inv.messages[1].Content
	if !strings.Contains(user, "package widgets") {
		t.Error("prompt missing the package name")
	}
	if !strings.Contains(user, "## parse.py") {
		t.Error("prompt missing the package documentation")
	}
}

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".py", "Python"},
		{".go", "Go"},
		{".ts", "TypeScript"},
		{".weird", "Python"},
	}
	for _, tt := range tests {
		s := ForExtension(&fakeInvoker{}, tt.ext)
		if s.language != tt.want {
			t.Errorf("ForExtension(%s) language = %s, want %s", tt.ext, s.language, tt.want)
		}
	}
}
