package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cort/triage/internal/concurrency"
	"github.com/cort/triage/internal/github"
	"github.com/cort/triage/internal/issue"
	"github.com/cort/triage/internal/localize"
	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
	"github.com/cort/triage/internal/summarize"
	"github.com/cort/triage/internal/vectorstore"
)

// Config carries the handler's service-level settings.
type Config struct {
	WebhookSecret string
	GitHubToken   string

	// Strategy selects the localization strategy: "hierarchical" or "vector".
	Strategy string

	// TopNFiles caps both localization results and files quoted in the
	// change-suggestion prompt.
	TopNFiles int

	// TopNPackages caps the hierarchical strategy's package fan-out;
	// a per-project override wins.
	TopNPackages int
}

// gitHubClient is the GitHub API surface the handler needs.
type gitHubClient interface {
	FetchIssueComments(ctx context.Context, repoFullName string, number int) ([]string, error)
	PostIssueComment(ctx context.Context, repoFullName string, number int, body string) error
}

// Handler processes GitHub webhook events: new issues and issue comments get
// triaged, pushes to the main branch refresh the codebase understanding.
// Events for the same repository are serialized through the lock manager.
type Handler struct {
	cfg      Config
	projects *project.Manager
	locks    *concurrency.Manager
	invoker  model.Invoker
	embedder model.Embedder
	auth     github.AuthProvider
	logger   *log.Logger

	// Seams for tests
	newClient func(token, apiURL string) (gitHubClient, error)
	syncRepo  func(repoFullName, branch, token, apiURL, dest string) error
}

// NewHandler creates a webhook handler.
func NewHandler(cfg Config, projects *project.Manager, invoker model.Invoker) *Handler {
	return &Handler{
		cfg:      cfg,
		projects: projects,
		locks:    concurrency.NewManager(),
		invoker:  invoker,
		logger:   log.Default(),
		newClient: func(token, apiURL string) (gitHubClient, error) {
			return github.NewClient(token, apiURL)
		},
		syncRepo: github.Sync,
	}
}

// SetAuth installs GitHub App authentication for installation tokens.
func (h *Handler) SetAuth(auth github.AuthProvider) { h.auth = auth }

// SetEmbedder installs the embedding backend used by the vector strategy
// and for indexing summaries during understanding updates.
func (h *Handler) SetEmbedder(e model.Embedder) { h.embedder = e }

// SetLogger injects the logging sink.
func (h *Handler) SetLogger(l *log.Logger) {
	if l != nil {
		h.logger = l
	}
}

// Handle processes a GitHub webhook delivery.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("[Webhook] Error reading payload: %v", err)
		writeStatus(w, http.StatusBadRequest, "error reading payload")
		return
	}

	if err := VerifySignature(payload, r.Header.Get("X-Hub-Signature-256"), h.cfg.WebhookSecret); err != nil {
		h.logger.Printf("[Webhook] Signature rejected: %v", err)
		writeStatus(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	switch r.Header.Get("X-GitHub-Event") {
	case "issues":
		h.handleIssues(w, r.Context(), payload)
	case "issue_comment":
		h.handleIssueComment(w, r.Context(), payload)
	case "push":
		h.handlePush(w, r.Context(), payload)
	default:
		writeStatus(w, http.StatusOK, "ignored event")
	}
}

func (h *Handler) handleIssues(w http.ResponseWriter, ctx context.Context, payload []byte) {
	var ev IssuesEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		writeStatus(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if ev.Action != "opened" {
		writeStatus(w, http.StatusOK, "ignored event")
		return
	}
	if ev.Issue.PullRequest != nil {
		writeStatus(w, http.StatusOK, "ignored pull request")
		return
	}

	info, ok := h.projects.Get(ev.Repository.FullName)
	if !ok {
		writeStatus(w, http.StatusNotFound, "project not onboarded")
		return
	}

	if err := h.processIssue(ctx, info, ev.Issue); err != nil {
		h.logger.Printf("[Webhook] Error processing issue %s#%d: %v", info.RepoFullName, ev.Issue.Number, err)
		writeStatus(w, http.StatusInternalServerError, "error processing issue")
		return
	}
	writeStatus(w, http.StatusOK, "recommendations comment added to the issue")
}

func (h *Handler) handleIssueComment(w http.ResponseWriter, ctx context.Context, payload []byte) {
	var ev IssueCommentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		writeStatus(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if ev.Action != "created" {
		writeStatus(w, http.StatusOK, "ignored event")
		return
	}
	if ev.Issue.PullRequest != nil {
		writeStatus(w, http.StatusOK, "ignored pull request")
		return
	}
	if ev.Issue.State == "closed" {
		writeStatus(w, http.StatusOK, "ignored comment on closed issue")
		return
	}
	// Never respond to the agent's own comments
	if strings.Contains(ev.Comment.Body, issue.AgentMarker) {
		writeStatus(w, http.StatusOK, "ignored agent comment")
		return
	}

	info, ok := h.projects.Get(ev.Repository.FullName)
	if !ok {
		writeStatus(w, http.StatusNotFound, "project not onboarded")
		return
	}

	if err := h.processIssue(ctx, info, ev.Issue); err != nil {
		h.logger.Printf("[Webhook] Error processing comment on %s#%d: %v", info.RepoFullName, ev.Issue.Number, err)
		writeStatus(w, http.StatusInternalServerError, "error processing comment")
		return
	}
	writeStatus(w, http.StatusOK, "recommendations comment added to the issue")
}

// processIssue runs the triage pipeline: analyze the thread, localize, draft
// suggestions, and post them back on the issue.
func (h *Handler) processIssue(ctx context.Context, info project.Info, iss Issue) error {
	if err := h.locks.Acquire(ctx, info.RepoFullName); err != nil {
		return err
	}
	defer h.locks.Release(info.RepoFullName)

	token := h.tokenFor(ctx, info)
	client, err := h.newClient(token, info.APIURL)
	if err != nil {
		return err
	}

	proj := project.New(h.projects.StorePath(), info)
	proj.SetLogger(h.logger)

	analyzer := issue.NewAnalyzer(client)
	analyzer.SetLogger(h.logger)
	analyzed := analyzer.Analyze(ctx, info.RepoFullName, issue.Details{
		Number: iss.Number,
		Title:  iss.Title,
		Body:   iss.Body,
	})

	strategy, closeStrategy, err := h.strategyFor(proj)
	if err != nil {
		return err
	}
	defer closeStrategy()

	paths, err := strategy.Localize(ctx, analyzed, h.cfg.TopNFiles)
	if err != nil {
		return err
	}
	h.logger.Printf("[Webhook] Localization results for %s#%d: %v", info.RepoFullName, iss.Number, paths)

	suggester := issue.NewSuggester(h.invoker)
	suggester.SetLogger(h.logger)
	suggestions, err := suggester.SuggestChanges(ctx, proj, analyzed, paths, h.cfg.TopNFiles)
	if err != nil {
		return err
	}

	comment := issue.AgentMarker + "\n" + suggestions
	if err := client.PostIssueComment(ctx, info.RepoFullName, iss.Number, comment); err != nil {
		return err
	}
	return nil
}

func (h *Handler) handlePush(w http.ResponseWriter, ctx context.Context, payload []byte) {
	var ev PushEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		writeStatus(w, http.StatusBadRequest, "malformed payload")
		return
	}

	info, ok := h.projects.Get(ev.Repository.FullName)
	if !ok {
		writeStatus(w, http.StatusNotFound, "project not onboarded")
		return
	}
	if ev.Ref != "refs/heads/"+info.MainBranch || len(ev.Commits) == 0 {
		writeStatus(w, http.StatusOK, "ignored event")
		return
	}

	modified := changedSourceFiles(ev.Commits, info.SrcFolder, info.Ext())
	if len(modified) == 0 {
		h.logger.Printf("[Webhook] No code files changed in push to %s", info.RepoFullName)
		writeStatus(w, http.StatusOK, "no code files changed")
		return
	}

	if err := h.updateUnderstanding(ctx, info, modified); err != nil {
		h.logger.Printf("[Webhook] Error updating codebase understanding for %s: %v", info.RepoFullName, err)
		writeStatus(w, http.StatusInternalServerError, "error updating codebase understanding")
		return
	}
	writeStatus(w, http.StatusOK, "codebase understanding updated")
}

// changedSourceFiles collects source files touched by the commits, as paths
// relative to the source folder, deduplicated and sorted.
func changedSourceFiles(commits []Commit, srcFolder, ext string) []string {
	seen := make(map[string]struct{})
	prefix := srcFolder + "/"
	for _, commit := range commits {
		for _, file := range append(commit.Added, commit.Modified...) {
			if !strings.HasPrefix(file, prefix) || !strings.HasSuffix(file, ext) {
				continue
			}
			seen[strings.TrimPrefix(file, prefix)] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// updateUnderstanding syncs the checkout and reruns summarization for the
// given source-root-relative files (all files when nil).
func (h *Handler) updateUnderstanding(ctx context.Context, info project.Info, modified []string) error {
	if err := h.locks.Acquire(ctx, info.RepoFullName); err != nil {
		return err
	}
	defer h.locks.Release(info.RepoFullName)

	proj := project.New(h.projects.StorePath(), info)
	proj.SetLogger(h.logger)

	token := h.tokenFor(ctx, info)
	if err := h.syncRepo(info.RepoFullName, info.MainBranch, token, info.APIURL, proj.RepoFolder); err != nil {
		return fmt.Errorf("failed to sync repository: %w", err)
	}

	proj.SetSummarizer(summarize.ForExtension(h.invoker, info.Ext()))
	if h.embedder != nil {
		store, err := vectorstore.Open(vectorStorePath(proj))
		if err != nil {
			return err
		}
		defer store.Close()
		proj.SetIndexer(vectorstore.NewIndexer(store, h.embedder))
		return proj.UpdateCodebaseUnderstanding(ctx, modified)
	}

	return proj.UpdateCodebaseUnderstanding(ctx, modified)
}

// strategyFor builds the configured localization strategy for one project.
// The returned func releases any resources the strategy holds.
func (h *Handler) strategyFor(proj *project.Project) (localize.Strategy, func(), error) {
	if h.cfg.Strategy == "vector" {
		if h.embedder == nil {
			return nil, nil, fmt.Errorf("vector strategy requires an embedding backend")
		}
		store, err := vectorstore.Open(vectorStorePath(proj))
		if err != nil {
			return nil, nil, err
		}
		return localize.NewVectorSearch(store, h.embedder), func() { store.Close() }, nil
	}

	hier := localize.NewHierarchical(proj, h.invoker)
	hier.SetLogger(h.logger)
	hier.SetTopNPackages(h.cfg.TopNPackages)
	return hier, func() {}, nil
}

func vectorStorePath(proj *project.Project) string {
	return filepath.Join(proj.MetadataFolder, "vectors.db")
}

// tokenFor resolves the GitHub token for a project: per-project override,
// then App installation token, then the service token.
func (h *Handler) tokenFor(ctx context.Context, info project.Info) string {
	if info.GitHubToken != "" {
		return info.GitHubToken
	}
	if h.auth != nil {
		token, err := h.auth.GetInstallationToken(ctx, info.RepoFullName)
		if err == nil {
			return token.Token
		}
		h.logger.Printf("[Webhook] Error getting installation token for %s: %v", info.RepoFullName, err)
	}
	return h.cfg.GitHubToken
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
