package localize

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
)

// fakeInvoker replays canned raw responses through the real schema decoder,
// so malformed responses produce the same validation errors a live model
// would.
type fakeInvoker struct {
	responses []string
	err       error
	calls     int
	messages  [][]model.Message
}

func (f *fakeInvoker) Invoke(ctx context.Context, messages []model.Message) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeInvoker) InvokeStructured(ctx context.Context, messages []model.Message, schema *model.Schema, out any) error {
	f.messages = append(f.messages, messages)
	if f.err != nil {
		return f.err
	}
	if f.calls >= len(f.responses) {
		return errors.New("unexpected model call")
	}
	raw := f.responses[f.calls]
	f.calls++
	return schema.Decode(raw, out)
}

func (f *fakeInvoker) Name() string { return "fake" }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fixtureProject lays out a project with two packages (auth, parser), their
// summaries and details, and a checked-out source tree.
func fixtureProject(t *testing.T) *project.Project {
	t.Helper()
	p := project.New(t.TempDir(), project.Info{
		RepoFullName: "acme/widgets",
		SrcFolder:    "my_module",
		MainBranch:   "main",
	})
	p.SetLogger(log.New(io.Discard, "", 0))

	writeFile(t, filepath.Join(p.SummariesFolder, "auth.md"), "# auth\n\nlogin and sessions")
	writeFile(t, filepath.Join(p.SummariesFolder, "parser.md"), "# parser\n\ninput parsing")
	writeFile(t, filepath.Join(p.DetailsFolder, "auth", "login.py.md"), "# Semantic Summary\n\nlogin flow")
	writeFile(t, filepath.Join(p.DetailsFolder, "parser", "tokens.py.md"), "# Semantic Summary\n\ntokenizer")

	writeFile(t, filepath.Join(p.SrcFolder, "auth", "login.py"), "def login(): pass")
	writeFile(t, filepath.Join(p.SrcFolder, "parser", "tokens.py"), "def tokenize(): pass")
	return p
}

func newStrategy(p *project.Project, inv model.Invoker) *Hierarchical {
	h := NewHierarchical(p, inv)
	h.SetLogger(log.New(io.Discard, "", 0))
	return h
}

func testIssue() Issue {
	return Issue{
		Title:       "Login fails",
		Description: "Login throws an error on empty password",
		Conversation: []model.Message{
			{Role: model.RoleUser, Content: "Login fails\n\nLogin throws an error on empty password"},
		},
	}
}

func TestHierarchicalLocalize(t *testing.T) {
	p := fixtureProject(t)
	inv := &fakeInvoker{responses: []string{
		`{"relevant_packages": ["auth"]}`,
		`{"file_localization_suggestions": [{"package": "auth", "file": "login.py", "confidence": 0.9, "reason": "login flow"}]}`,
	}}

	paths, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 3)
	if err != nil {
		t.Fatalf("Localize failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "my_module/auth/login.py" {
		t.Errorf("paths = %v, want [my_module/auth/login.py]", paths)
	}
	if inv.calls != 2 {
		t.Errorf("model calls = %d, want 2", inv.calls)
	}
}

func TestHierarchicalLocalizeFencedJSONResponse(t *testing.T) {
	p := fixtureProject(t)

	// A fenced response must produce the same result as a strictly
	// conformant one.
	inv := &fakeInvoker{responses: []string{
		"Here you go:\n```json\n{\"relevant_packages\": [\"auth\"]}\n```",
		"```json\n{\"file_localization_suggestions\": [{\"package\": \"auth\", \"file\": \"login.py\", \"confidence\": 0.8, \"reason\": \"r\"}]}\n```",
	}}

	paths, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 3)
	if err != nil {
		t.Fatalf("Localize failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "my_module/auth/login.py" {
		t.Errorf("paths = %v, want [my_module/auth/login.py]", paths)
	}
}

func TestHierarchicalLocalizeFilenameFallback(t *testing.T) {
	p := fixtureProject(t)

	// Neither stage ever produces JSON; both recover from bare filenames.
	inv := &fakeInvoker{responses: []string{
		"You should look into login.py for this one.",
		"The issue is most likely in auth/login.py somewhere.",
	}}

	paths, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 3)
	if err != nil {
		t.Fatalf("Localize failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "my_module/auth/login.py" {
		t.Errorf("paths = %v, want [my_module/auth/login.py]", paths)
	}
}

func TestHierarchicalLocalizeModelFailure(t *testing.T) {
	p := fixtureProject(t)
	inv := &fakeInvoker{err: errors.New("maximum number of retries (10) exceeded: status 429")}

	paths, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 3)
	if err != nil {
		t.Fatalf("model failure must not surface as an error, got %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("paths = %v, want empty on model failure", paths)
	}
}

func TestHierarchicalLocalizeSinglePackageShortCircuit(t *testing.T) {
	p := project.New(t.TempDir(), project.Info{
		RepoFullName: "acme/widgets",
		SrcFolder:    "my_module",
		MainBranch:   "main",
	})
	p.SetLogger(log.New(io.Discard, "", 0))
	writeFile(t, filepath.Join(p.SummariesFolder, "auth.md"), "# auth")
	writeFile(t, filepath.Join(p.DetailsFolder, "auth", "login.py.md"), "login details")
	writeFile(t, filepath.Join(p.SrcFolder, "auth", "login.py"), "def login(): pass")

	// Only the file-ranking response; package selection must be skipped.
	inv := &fakeInvoker{responses: []string{
		`{"file_localization_suggestions": [{"package": "auth", "file": "login.py", "confidence": 0.7, "reason": "r"}]}`,
	}}

	paths, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 3)
	if err != nil {
		t.Fatalf("Localize failed: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("paths = %v, want one result", paths)
	}
	if inv.calls != 1 {
		t.Errorf("model calls = %d, want 1 (package selection skipped)", inv.calls)
	}
}

func TestHierarchicalLocalizeNoSummaries(t *testing.T) {
	p := project.New(t.TempDir(), project.Info{
		RepoFullName: "acme/widgets",
		SrcFolder:    "my_module",
		MainBranch:   "main",
	})
	p.SetLogger(log.New(io.Discard, "", 0))
	inv := &fakeInvoker{}

	paths, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 || inv.calls != 0 {
		t.Errorf("expected no results and no model calls, got %v after %d calls", paths, inv.calls)
	}
}

func TestHierarchicalLocalizeTopNOverride(t *testing.T) {
	p := fixtureProject(t)
	p.Info.TopNPackages = 1

	inv := &fakeInvoker{responses: []string{
		`{"relevant_packages": ["parser", "auth"]}`,
		`{"file_localization_suggestions": []}`,
	}}

	if _, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 3); err != nil {
		t.Fatal(err)
	}

	// The file-ranking prompt must only carry the first package's details.
	system := inv.messages[1][0].Content
	if !strings.Contains(system, "tokenizer") {
		t.Error("file ranking prompt missing the selected package's details")
	}
	if strings.Contains(system, "login flow") {
		t.Error("file ranking prompt includes details beyond the package budget")
	}
}

func TestHierarchicalLocalizeConfiguredPackageCap(t *testing.T) {
	p := fixtureProject(t)

	inv := &fakeInvoker{responses: []string{
		`{"relevant_packages": ["parser", "auth"]}`,
		`{"file_localization_suggestions": []}`,
	}}

	strategy := newStrategy(p, inv)
	strategy.SetTopNPackages(1)
	if _, err := strategy.Localize(context.Background(), testIssue(), 5); err != nil {
		t.Fatal(err)
	}

	system := inv.messages[1][0].Content
	if !strings.Contains(system, "tokenizer") {
		t.Error("file ranking prompt missing the selected package's details")
	}
	if strings.Contains(system, "login flow") {
		t.Error("file ranking prompt includes details beyond the configured package cap")
	}
}

func TestHierarchicalLocalizeCapsReturnedPaths(t *testing.T) {
	p := fixtureProject(t)

	inv := &fakeInvoker{responses: []string{
		`{"relevant_packages": ["auth", "parser"]}`,
		`{"file_localization_suggestions": [
			{"package": "auth", "file": "login.py", "confidence": 0.9, "reason": "r"},
			{"package": "parser", "file": "tokens.py", "confidence": 0.6, "reason": "r"}
		]}`,
	}}

	paths, err := newStrategy(p, inv).Localize(context.Background(), testIssue(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "my_module/auth/login.py" {
		t.Errorf("paths = %v, want the single highest-ranked file", paths)
	}
}

func TestMapPackages(t *testing.T) {
	p := fixtureProject(t)
	h := newStrategy(p, &fakeInvoker{})
	packageList := []string{"auth", "parser"}

	tests := []struct {
		name      string
		suggested []string
		want      []string
	}{
		{"exact", []string{"auth"}, []string{"auth"}},
		{"path form", []string{"my_module/auth"}, []string{"auth"}},
		{"extension stripped", []string{"parser.py"}, []string{"parser"}},
		{"filename fallback", []string{"src/login.py"}, []string{"auth"}},
		{"dedup preserving order", []string{"parser", "auth", "parser"}, []string{"parser", "auth"}},
		{"unknown dropped", []string{"nonexistent"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.mapPackages(tt.suggested, packageList)
			if len(got) != len(tt.want) {
				t.Fatalf("mapPackages(%v) = %v, want %v", tt.suggested, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("mapPackages(%v) = %v, want %v", tt.suggested, got, tt.want)
				}
			}
		})
	}
}

func TestFilePath(t *testing.T) {
	p := fixtureProject(t)
	h := newStrategy(p, &fakeInvoker{})

	tests := []struct {
		name       string
		suggestion Suggestion
		want       string
	}{
		{
			"package plus file",
			Suggestion{Package: "auth", File: "login.py"},
			"my_module/auth/login.py",
		},
		{
			"dotted package",
			Suggestion{Package: "auth.backends", File: "ldap.py"},
			"my_module/auth/backends/ldap.py",
		},
		{
			"package already rooted at source folder",
			Suggestion{Package: "my_module.auth", File: "login.py"},
			"my_module/auth/login.py",
		},
		{
			"single-file package",
			Suggestion{Package: "my_module", File: "my_module.py"},
			"my_module.py",
		},
		{
			"package last segment names the file",
			Suggestion{Package: "auth.login", File: "login.py"},
			"my_module/auth/login.py",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.filePath(tt.suggestion); got != tt.want {
				t.Errorf("filePath(%+v) = %q, want %q", tt.suggestion, got, tt.want)
			}
		})
	}
}

func TestFuzzyFilePath(t *testing.T) {
	p := fixtureProject(t)
	h := newStrategy(p, &fakeInvoker{})

	// Wrong package, real filename: corrected to the file's actual location
	got := h.fuzzyFilePath(Suggestion{Package: "parser", File: "login.py"})
	if got != "my_module/auth/login.py" {
		t.Errorf("fuzzyFilePath = %q, want my_module/auth/login.py", got)
	}

	// Filename that exists nowhere: dropped
	if got := h.fuzzyFilePath(Suggestion{Package: "auth", File: "missing.py"}); got != "" {
		t.Errorf("fuzzyFilePath = %q, want empty for unknown file", got)
	}
}
