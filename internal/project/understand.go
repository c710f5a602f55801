package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// UpdateCodebaseUnderstanding incrementally (re)builds the semantic
// documentation tree. With no modifiedFiles the whole source tree is scanned;
// otherwise only the given source-root-relative paths are considered. Files
// already recorded in the checkpoint are skipped, so reruns after a crash or
// partial failure resume where they left off.
//
// Per-file summarization failures are logged and recorded in the checkpoint,
// never raised; they degrade the batch and are retried on the next
// invocation. The checkpoint is deleted only when every file and package in
// the batch completed with nothing pending.
func (p *Project) UpdateCodebaseUnderstanding(ctx context.Context, modifiedFiles []string) error {
	if p.summarizer == nil {
		return fmt.Errorf("project %s: no summarizer configured", p.Info.RepoFullName)
	}

	ext := p.Info.Ext()
	files := modifiedFiles
	if len(files) == 0 {
		all, err := p.SourceFiles()
		if err != nil {
			return fmt.Errorf("failed to scan source tree: %w", err)
		}
		files = all
	} else {
		kept := files[:0]
		for _, f := range files {
			if strings.HasSuffix(f, ext) {
				kept = append(kept, filepath.ToSlash(f))
			}
		}
		files = kept
	}

	if len(files) == 0 {
		p.logger.Printf("[Understand] %s: no source files to process", p.Info.RepoFullName)
		return nil
	}

	cp, err := LoadCheckpoint(p.CheckpointPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.DetailsFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create details folder: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.CheckpointPath), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata folder: %w", err)
	}

	for _, file := range files {
		if cp.HasFile(file) {
			p.logger.Printf("[Understand] Skipping already processed file: %s", file)
			continue
		}
		p.summarizeFile(ctx, cp, file)
	}

	// Regenerate summaries for every top-level package the batch touched
	packages := make(map[string]struct{}, len(files))
	for _, file := range files {
		packages[p.TopLevelPackage(file)] = struct{}{}
	}
	packageNames := make([]string, 0, len(packages))
	for pkg := range packages {
		packageNames = append(packageNames, pkg)
	}
	sort.Strings(packageNames)

	if err := os.MkdirAll(p.SummariesFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create summaries folder: %w", err)
	}

	for _, pkg := range packageNames {
		if cp.HasPackage(pkg) && !cp.PackagePending(pkg) {
			p.logger.Printf("[Understand] Skipping already processed package: %s", pkg)
			continue
		}
		p.summarizePackage(ctx, cp, pkg)
	}

	if cp.Complete(len(files), len(packageNames)) {
		if err := DeleteCheckpoint(p.CheckpointPath); err != nil {
			return err
		}
		p.logger.Printf("[Understand] %s: batch complete, checkpoint deleted", p.Info.RepoFullName)
	}

	return nil
}

// summarizeFile processes one source file: empty files are marked processed
// without a summary, failures are recorded under the file's package, and the
// checkpoint is persisted after every file so a crash loses at most one.
func (p *Project) summarizeFile(ctx context.Context, cp *Checkpoint, file string) {
	pkg := p.TopLevelPackage(file)

	fullPath := filepath.Join(p.SrcFolder, filepath.FromSlash(file))
	code, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		// Deleted between the push event and now; nothing to summarize
		p.logger.Printf("[Understand] Skipped missing file: %s", file)
		cp.MarkFile(file)
		p.saveCheckpoint(cp)
		return
	}
	if err != nil {
		p.logger.Printf("[Understand] Error reading file %q: %v", file, err)
		cp.RecordFailure(pkg, file)
		p.saveCheckpoint(cp)
		return
	}

	if strings.TrimSpace(string(code)) == "" {
		// No summary for empty files; marked processed so reruns skip them
		p.logger.Printf("[Understand] Skipped empty file: %s", file)
		cp.MarkFile(file)
		p.saveCheckpoint(cp)
		return
	}

	summary, err := p.summarizer.SummarizeFile(ctx, string(code))
	if err != nil {
		p.logger.Printf("[Understand] Error summarizing file %q: %v", file, err)
		cp.RecordFailure(pkg, file)
		p.saveCheckpoint(cp)
		return
	}

	docPath := filepath.Join(p.DetailsFolder, filepath.FromSlash(file)+".md")
	if err := os.MkdirAll(filepath.Dir(docPath), 0o755); err != nil {
		p.logger.Printf("[Understand] Error creating folder for %q: %v", file, err)
		cp.RecordFailure(pkg, file)
		p.saveCheckpoint(cp)
		return
	}
	if err := os.WriteFile(docPath, []byte(summary), 0o644); err != nil {
		p.logger.Printf("[Understand] Error writing summary for %q: %v", file, err)
		cp.RecordFailure(pkg, file)
		p.saveCheckpoint(cp)
		return
	}
	p.logger.Printf("[Understand] Updated semantic summary for file: %s", file)

	if p.indexer != nil {
		indexPath := filepath.ToSlash(filepath.Join(p.Info.SrcFolder, file))
		if err := p.indexer.Add(ctx, indexPath, summary); err != nil {
			p.logger.Printf("[Understand] Error indexing summary for %q: %v", file, err)
		}
	}

	cp.MarkFile(file)
	p.saveCheckpoint(cp)
}

// summarizePackage regenerates one package summary. Failures are logged and
// leave the package unmarked so the next run retries it.
func (p *Project) summarizePackage(ctx context.Context, cp *Checkpoint, pkg string) {
	details, err := p.FetchPackageDetails([]string{pkg})
	if err != nil {
		p.logger.Printf("[Understand] Error collating details for package %q: %v", pkg, err)
		return
	}
	if strings.TrimSpace(details) == "" {
		// Nothing under the package produced a summary; count it done
		cp.MarkPackage(pkg)
		cp.Reconcile(pkg)
		p.saveCheckpoint(cp)
		return
	}

	summary, err := p.summarizer.SummarizePackage(ctx, pkg, details)
	if err != nil {
		p.logger.Printf("[Understand] Error summarizing package %q: %v", pkg, err)
		return
	}

	docPath := filepath.Join(p.SummariesFolder, pkg+".md")
	if err := os.WriteFile(docPath, []byte(summary), 0o644); err != nil {
		p.logger.Printf("[Understand] Error writing package summary %q: %v", pkg, err)
		return
	}
	p.logger.Printf("[Understand] Updated package summary for top-level package: %s", pkg)

	cp.MarkPackage(pkg)
	cp.Reconcile(pkg)
	p.saveCheckpoint(cp)
}

func (p *Project) saveCheckpoint(cp *Checkpoint) {
	if err := cp.Save(p.CheckpointPath); err != nil {
		p.logger.Printf("[Understand] Error saving checkpoint: %v", err)
	}
}
