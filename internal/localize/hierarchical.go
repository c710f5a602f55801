package localize

import (
	"context"
	"errors"
	"log"
	"path"
	"strings"

	"github.com/cort/triage/internal/extract"
	"github.com/cort/triage/internal/model"
	"github.com/cort/triage/internal/project"
)

const defaultTopNPackages = 3

// Hierarchical is the two-stage localization strategy: package selection over
// package summaries, then file ranking over the selected packages' detailed
// documentation. Model output is reconciled fuzzily against the real
// repository at both stages.
type Hierarchical struct {
	project      *project.Project
	invoker      model.Invoker
	topNPackages int
	logger       *log.Logger
}

// NewHierarchical builds the strategy for one project.
func NewHierarchical(proj *project.Project, invoker model.Invoker) *Hierarchical {
	return &Hierarchical{
		project:      proj,
		invoker:      invoker,
		topNPackages: defaultTopNPackages,
		logger:       log.Default(),
	}
}

// SetLogger injects the logging sink. Defaults to log.Default().
func (h *Hierarchical) SetLogger(l *log.Logger) {
	if l != nil {
		h.logger = l
	}
}

// SetTopNPackages caps how many selected packages feed the file-ranking
// stage. A per-project Info.TopNPackages override takes precedence.
func (h *Hierarchical) SetTopNPackages(n int) {
	if n > 0 {
		h.topNPackages = n
	}
}

// Localize runs the two-stage search; topN caps the number of returned file
// paths. A model failure at either stage yields an empty result rather than
// an error: the caller treats it as "could not localize". Errors are reserved
// for failures reading the summary store.
func (h *Hierarchical) Localize(ctx context.Context, issue Issue, topN int) ([]string, error) {
	topNPackages := h.topNPackages
	if h.project.Info.TopNPackages > 0 {
		topNPackages = h.project.Info.TopNPackages
	}

	summaries, packageList, err := h.project.FetchPackageSummaries()
	if err != nil {
		return nil, err
	}
	if len(packageList) == 0 {
		h.logger.Printf("[Localize] %s: no package summaries available", h.project.Info.RepoFullName)
		return nil, nil
	}

	// With a single package there is nothing to disambiguate
	relevant := packageList
	if len(packageList) > 1 {
		relevant = h.selectPackages(ctx, issue, summaries, packageList)
		if len(relevant) == 0 {
			return nil, nil
		}
	}
	if len(relevant) > topNPackages {
		relevant = relevant[:topNPackages]
	}

	details, err := h.project.FetchPackageDetails(relevant)
	if err != nil {
		return nil, err
	}

	suggestions := h.rankFiles(ctx, issue, details)

	var paths []string
	for _, s := range suggestions {
		if p := h.fuzzyFilePath(s); p != "" {
			paths = append(paths, p)
		}
	}
	if topN > 0 && len(paths) > topN {
		paths = paths[:topN]
	}
	return paths, nil
}

// selectPackages asks the model for relevant packages and maps its answer
// onto real package names. Returns nil when the model call fails outright.
func (h *Hierarchical) selectPackages(ctx context.Context, issue Issue, summaries string, packageList []string) []string {
	messages := packageSelectionMessages(issue, summaries)

	var resp relevantPackages
	err := h.invokeStructured(ctx, messages, relevantPackagesSchema, &resp)
	suggested := resp.RelevantPackages
	if err != nil {
		var verr *model.SchemaValidationError
		if !errors.As(err, &verr) {
			h.logger.Printf("[Localize] Error calling model for relevant packages: %v", err)
			return nil
		}
		// The response never yielded valid JSON; bare filename-like tokens
		// are the last signal left in it.
		suggested = extract.Filenames(verr.Raw)
		h.logger.Printf("[Localize] Structured package selection failed, recovered %d filename tokens", len(suggested))
	}

	mapped := h.mapPackages(suggested, packageList)
	h.logger.Printf("[Localize] Relevant packages: %v", mapped)
	return mapped
}

// rankFiles asks the model to rank candidate files within the selected
// packages. Returns nil when the model call fails outright.
func (h *Hierarchical) rankFiles(ctx context.Context, issue Issue, details string) []Suggestion {
	messages := fileRankingMessages(issue, details)

	var resp fileSuggestions
	err := h.invokeStructured(ctx, messages, fileSuggestionsSchema, &resp)
	if err == nil {
		return resp.FileLocalizationSuggestions
	}

	var verr *model.SchemaValidationError
	if !errors.As(err, &verr) {
		h.logger.Printf("[Localize] Error calling model for file localization: %v", err)
		return nil
	}

	// Last resort: every filename-like token becomes a neutral suggestion
	names := extract.Filenames(verr.Raw)
	h.logger.Printf("[Localize] Structured file ranking failed, recovered %d filename tokens", len(names))
	suggestions := make([]Suggestion, 0, len(names))
	for _, name := range names {
		suggestions = append(suggestions, Suggestion{File: name, Confidence: 0.5})
	}
	return suggestions
}

// invokeStructured calls the model in schema-constrained mode and, when the
// response fails strict validation, retries the parse via fenced-block
// extraction. The original validation error (carrying the raw text) is
// returned when both fail.
func (h *Hierarchical) invokeStructured(ctx context.Context, messages []model.Message, schema *model.Schema, out any) error {
	err := h.invoker.InvokeStructured(ctx, messages, schema, out)
	if err == nil {
		return nil
	}
	var verr *model.SchemaValidationError
	if !errors.As(err, &verr) {
		return err
	}
	if exErr := extract.Structured(verr.Raw, schema, out); exErr == nil {
		return nil
	}
	return err
}

// mapPackages fuzzily maps model-returned package strings onto real package
// names: normalize separators and extensions, accept exact or last-component
// suffix matches, and finally fall back to the package containing a file
// named after the string's last path segment. At most one match per input
// token; duplicates collapse preserving first-seen order.
func (h *Hierarchical) mapPackages(suggested, packageList []string) []string {
	ext := h.project.Info.Ext()

	var mapped []string
	seen := make(map[string]bool)
	for _, token := range suggested {
		normalized := strings.ReplaceAll(token, "/", ".")
		normalized = strings.TrimSuffix(normalized, ext)

		var match string
		for _, pkg := range packageList {
			last := pkg
			if i := strings.LastIndex(pkg, "."); i >= 0 {
				last = pkg[i+1:]
			}
			if normalized == pkg || strings.HasSuffix(normalized, last) {
				match = pkg
				break
			}
		}
		if match == "" {
			filename := path.Base(strings.ReplaceAll(token, "\\", "/"))
			if pkg, ok := h.project.PackageForFile(filename); ok {
				match = pkg
			}
		}
		if match != "" && !seen[match] {
			seen[match] = true
			mapped = append(mapped, match)
		}
	}
	return mapped
}

// filePath computes the repository-relative path a suggestion points at. The
// package's dots become path separators under the source root, with one
// adjustment: when the package's last segment already names the file, the
// package path itself plus the file's extension is the path (single-file
// packages are pkg.py, not pkg/pkg.py).
func (h *Hierarchical) filePath(s Suggestion) string {
	pkg := strings.ReplaceAll(s.Package, ".", "/")
	src := h.project.Info.SrcFolder
	pkgPath := pkg
	if !strings.HasPrefix(pkg, src) {
		pkgPath = path.Join(src, pkg)
	}

	ext := path.Ext(s.File)
	base := strings.TrimSuffix(s.File, ext)
	segments := strings.Split(pkg, "/")
	if segments[len(segments)-1] == base {
		return pkgPath + ext
	}
	return path.Join(pkgPath, s.File)
}

// fuzzyFilePath validates a suggestion's computed path against the checked
// out repository, searching the source tree for the bare filename when the
// computed path is wrong. Unresolvable suggestions yield "".
func (h *Hierarchical) fuzzyFilePath(s Suggestion) string {
	fp := h.filePath(s)
	if h.project.PathExists(fp) {
		return fp
	}
	h.logger.Printf("[Localize] Path %q does not exist, attempting fuzzy correction", fp)

	filename := path.Base(strings.ReplaceAll(s.File, "\\", "/"))
	if corrected, ok := h.project.FindFileByName(filename); ok {
		h.logger.Printf("[Localize] Fuzzily corrected file path to %q", corrected)
		return corrected
	}

	h.logger.Printf("[Localize] Unable to fuzzily correct file path for %q", s.File)
	return ""
}
