// Package project manages the per-repository working state: the cloned
// repository, the persisted semantic documentation tree, and the resumable
// checkpoint that tracks codebase-understanding progress.
package project

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Summarizer produces the semantic descriptions persisted by the
// understanding builder. Implemented by internal/summarize.
type Summarizer interface {
	// SummarizeFile describes one source file's purpose and declarations.
	SummarizeFile(ctx context.Context, code string) (string, error)

	// SummarizePackage aggregates a package's file summaries into one
	// higher-level description.
	SummarizePackage(ctx context.Context, name, details string) (string, error)
}

// Indexer receives summaries as they are produced, for search backends that
// maintain their own store (the vector localization strategy).
type Indexer interface {
	Add(ctx context.Context, path, content string) error
}

// Project is one onboarded repository and its metadata tree:
//
//	<store>/<owner>/<repo>/repo                              checked-out repository
//	<store>/<owner>/<repo>/metadata/package_details/...      per-file summaries (<rel-path>.md)
//	<store>/<owner>/<repo>/metadata/package_summaries/...    per-package summaries (<pkg>.md)
//	<store>/<owner>/<repo>/metadata/checkpoint.json          understanding progress
type Project struct {
	Info Info

	RootFolder      string
	RepoFolder      string
	MetadataFolder  string
	SrcFolder       string
	DetailsFolder   string
	SummariesFolder string
	CheckpointPath  string

	summarizer Summarizer
	indexer    Indexer
	logger     *log.Logger
}

// New builds the Project for info under the projects store. Nothing is
// created on disk until an operation needs it.
func New(storePath string, info Info) *Project {
	root := filepath.Join(storePath, filepath.FromSlash(info.RepoFullName))
	repo := filepath.Join(root, "repo")
	metadata := filepath.Join(root, "metadata")

	return &Project{
		Info:            info,
		RootFolder:      root,
		RepoFolder:      repo,
		MetadataFolder:  metadata,
		SrcFolder:       filepath.Join(repo, filepath.FromSlash(info.SrcFolder)),
		DetailsFolder:   filepath.Join(metadata, "package_details"),
		SummariesFolder: filepath.Join(metadata, "package_summaries"),
		CheckpointPath:  filepath.Join(metadata, "checkpoint.json"),
		logger:          log.Default(),
	}
}

// SetSummarizer injects the summarizer used by UpdateCodebaseUnderstanding.
func (p *Project) SetSummarizer(s Summarizer) { p.summarizer = s }

// SetIndexer injects an optional summary indexer.
func (p *Project) SetIndexer(i Indexer) { p.indexer = i }

// SetLogger injects the logging sink. Defaults to log.Default().
func (p *Project) SetLogger(l *log.Logger) {
	if l != nil {
		p.logger = l
	}
}

// TopLevelPackage maps a source-root-relative file path to its top-level
// package: the first path segment, or the source folder itself for files that
// live directly under the root.
func (p *Project) TopLevelPackage(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	if i := strings.Index(relPath, "/"); i >= 0 {
		return relPath[:i]
	}
	return p.Info.SrcFolder
}

// SourceFiles lists all source files under the source folder, as paths
// relative to it, in lexicographic order.
func (p *Project) SourceFiles() ([]string, error) {
	ext := p.Info.Ext()
	if _, err := os.Stat(p.SrcFolder); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(p.SrcFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(p.SrcFolder, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// PathExists reports whether a repository-relative path exists in the
// checked-out repository.
func (p *Project) PathExists(relPath string) bool {
	_, err := os.Stat(filepath.Join(p.RepoFolder, filepath.FromSlash(relPath)))
	return err == nil
}

// FindFileByName searches the source tree for a file with exactly the given
// name and returns its repository-relative path. The search ignores package
// structure; it exists to recover from structurally wrong model suggestions.
func (p *Project) FindFileByName(filename string) (string, bool) {
	var found string

	err := filepath.WalkDir(p.SrcFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == filename {
			rel, relErr := filepath.Rel(p.RepoFolder, path)
			if relErr != nil {
				return relErr
			}
			found = filepath.ToSlash(rel)
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil || found == "" {
		return "", false
	}
	return found, true
}

// PackageForFile returns the top-level package containing a file with the
// given name, or false when no such file exists.
func (p *Project) PackageForFile(filename string) (string, bool) {
	var pkg string

	err := filepath.WalkDir(p.SrcFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == filename {
			rel, relErr := filepath.Rel(p.SrcFolder, path)
			if relErr != nil {
				return relErr
			}
			pkg = p.TopLevelPackage(filepath.ToSlash(rel))
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil || pkg == "" {
		return "", false
	}
	return pkg, true
}

// FetchPackageSummaries concatenates all persisted package summaries and
// returns them together with the list of package names, sorted.
func (p *Project) FetchPackageSummaries() (string, []string, error) {
	entries, err := os.ReadDir(p.SummariesFolder)
	if os.IsNotExist(err) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	var summaries strings.Builder
	var packages []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.SummariesFolder, entry.Name()))
		if err != nil {
			return "", nil, err
		}
		summaries.Write(data)
		summaries.WriteString("\n\n")
		packages = append(packages, strings.TrimSuffix(entry.Name(), ".md"))
	}

	return summaries.String(), packages, nil
}

// FetchPackageDetails collates the detailed hierarchical documentation for
// the given packages. The root package (the source folder itself) is rendered
// flat so nested packages are not duplicated into it.
func (p *Project) FetchPackageDetails(packages []string) (string, error) {
	var details strings.Builder

	for _, pkg := range packages {
		dir := filepath.Join(p.DetailsFolder, pkg)
		recurse := true
		if pkg == p.Info.SrcFolder {
			dir = p.DetailsFolder
			recurse = false
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}

		doc, err := p.HierarchicalDocument(dir, recurse)
		if err != nil {
			return "", err
		}
		details.WriteString(doc)
		details.WriteString("\n\n")
	}

	return details.String(), nil
}

// RepoFile pairs a repository-relative path with its content.
type RepoFile struct {
	Path    string
	Content string
}

// ReadRepoFiles returns the contents of repository-relative paths, skipping
// any that do not exist.
func (p *Project) ReadRepoFiles(paths []string) []RepoFile {
	var contents []RepoFile
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(p.RepoFolder, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		contents = append(contents, RepoFile{Path: rel, Content: string(data)})
	}
	return contents
}
