package issue

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cort/triage/internal/localize"
	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
)

func localizeIssue(msgs ...model.Message) localize.Issue {
	return localize.Issue{Conversation: msgs}
}

type fakeComments struct {
	comments []string
	err      error
}

func (f *fakeComments) FetchIssueComments(ctx context.Context, repoFullName string, number int) ([]string, error) {
	return f.comments, f.err
}

func TestAnalyze(t *testing.T) {
	fetcher := &fakeComments{comments: []string{
		"I can reproduce this on 1.4.2",
		AgentMarker + "\nLikely in the auth package.",
		"That fix did not help",
	}}
	a := NewAnalyzer(fetcher)
	a.SetLogger(log.New(io.Discard, "", 0))

	iss := a.Analyze(context.Background(), "acme/widgets", Details{
		Number: 42,
		Title:  "Login fails",
		Body:   "Empty password crashes login",
	})

	if iss.Title != "Login fails" || iss.Description != "Empty password crashes login" {
		t.Errorf("issue = %+v", iss)
	}
	if len(iss.Conversation) != 4 {
		t.Fatalf("conversation length = %d, want 4", len(iss.Conversation))
	}
	first := iss.Conversation[0]
	if first.Role != model.RoleUser || !strings.Contains(first.Content, "Issue: Login fails") {
		t.Errorf("opening message = %+v", first)
	}
	wantRoles := []string{model.RoleUser, model.RoleUser, model.RoleAssistant, model.RoleUser}
	for i, want := range wantRoles {
		if iss.Conversation[i].Role != want {
			t.Errorf("conversation[%d].Role = %s, want %s", i, iss.Conversation[i].Role, want)
		}
	}
}

func TestAnalyzeCommentFetchFailure(t *testing.T) {
	a := NewAnalyzer(&fakeComments{err: errors.New("api unavailable")})
	a.SetLogger(log.New(io.Discard, "", 0))

	iss := a.Analyze(context.Background(), "acme/widgets", Details{Number: 1, Title: "t", Body: "b"})
	if len(iss.Conversation) != 1 {
		t.Errorf("conversation length = %d, want just the opening message", len(iss.Conversation))
	}
}

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

func TestSuggestChanges(t *testing.T) {
	proj := project.New(t.TempDir(), project.Info{
		RepoFullName: "acme/widgets",
		SrcFolder:    "src",
		MainBranch:   "main",
	})
	path := filepath.Join(proj.SrcFolder, "auth.py")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("def login(): pass"), 0o644); err != nil {
		t.Fatal(err)
	}

	inv := &fakeInvoker{response: "Change the login check."}
	s := NewSuggester(inv)
	s.SetLogger(log.New(io.Discard, "", 0))

	iss := model.Message{Role: model.RoleUser, Content: "Issue: login broken"}
	got, err := s.SuggestChanges(context.Background(),
		proj,
		localizeIssue(iss),
		[]string{"src/auth.py", "src/missing.py"}, 5)
	if err != nil {
		t.Fatalf("SuggestChanges failed: %v", err)
	}
	if got != "Change the login check." {
		t.Errorf("response = %q", got)
	}

	system := inv.messages[0].Content
	if !strings.Contains(system, "file: src/auth.py") || !strings.Contains(system, "def login(): pass") {
		t.Error("prompt missing the localized file content")
	}
	if strings.Contains(system, "file: src/missing.py") {
		t.Error("prompt includes a file that does not exist")
	}
	if inv.messages[1].Content != "Issue: login broken" {
		t.Error("prompt missing the issue conversation")
	}
}

func TestSuggestChangesTopNCap(t *testing.T) {
	proj := project.New(t.TempDir(), project.Info{
		RepoFullName: "acme/widgets",
		SrcFolder:    "src",
		MainBranch:   "main",
	})
	for _, name := range []string{"a.py", "b.py"} {
		p := filepath.Join(proj.SrcFolder, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("code "+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	inv := &fakeInvoker{response: "ok"}
	s := NewSuggester(inv)
	s.SetLogger(log.New(io.Discard, "", 0))

	_, err := s.SuggestChanges(context.Background(), proj,
		localizeIssue(model.Message{Role: model.RoleUser, Content: "c"}),
		[]string{"src/a.py", "src/b.py"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	system := inv.messages[0].Content
	if !strings.Contains(system, "file: src/a.py") {
		t.Error("prompt missing the top file")
	}
	if strings.Contains(system, "file: src/b.py") {
		t.Error("prompt exceeds the file budget")
	}
}
