package project

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// Checkpoint records the progress of a codebase-understanding batch so an
// interrupted run can resume without reprocessing. Its on-disk shape is
// stable: other processes consume it.
type Checkpoint struct {
	FilesProcessed    []string            `json:"files_processed"`
	PackagesProcessed []string            `json:"packages_processed"`
	Unprocessed       map[string][]string `json:"unprocessed"`
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		FilesProcessed:    []string{},
		PackagesProcessed: []string{},
		Unprocessed:       map[string][]string{},
	}
}

// LoadCheckpoint reads the checkpoint at path, returning a fresh one when the
// file does not exist. Malformed fields are normalized rather than rejected.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	cp := NewCheckpoint()
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	cp.normalize()
	return cp, nil
}

func (c *Checkpoint) normalize() {
	if c.FilesProcessed == nil {
		c.FilesProcessed = []string{}
	}
	if c.PackagesProcessed == nil {
		c.PackagesProcessed = []string{}
	}
	if c.Unprocessed == nil {
		c.Unprocessed = map[string][]string{}
	}
}

// Save writes the checkpoint to path.
func (c *Checkpoint) Save(path string) error {
	c.normalize()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint file if present.
func DeleteCheckpoint(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Reset clears all recorded progress.
func (c *Checkpoint) Reset() {
	c.FilesProcessed = []string{}
	c.PackagesProcessed = []string{}
	c.Unprocessed = map[string][]string{}
}

// HasFile reports whether a file was already summarized.
func (c *Checkpoint) HasFile(path string) bool {
	return slices.Contains(c.FilesProcessed, path)
}

// MarkFile records a file as summarized.
func (c *Checkpoint) MarkFile(path string) {
	if !c.HasFile(path) {
		c.FilesProcessed = append(c.FilesProcessed, path)
	}
}

// HasPackage reports whether a package summary was already generated.
func (c *Checkpoint) HasPackage(pkg string) bool {
	return slices.Contains(c.PackagesProcessed, pkg)
}

// MarkPackage records a package as summarized.
func (c *Checkpoint) MarkPackage(pkg string) {
	if !c.HasPackage(pkg) {
		c.PackagesProcessed = append(c.PackagesProcessed, pkg)
	}
}

// RecordFailure notes a file whose summarization failed, under its package.
func (c *Checkpoint) RecordFailure(pkg, path string) {
	if slices.Contains(c.Unprocessed[pkg], path) {
		return
	}
	c.Unprocessed[pkg] = append(c.Unprocessed[pkg], path)
}

// PackagePending reports whether a package still has failed files on record.
func (c *Checkpoint) PackagePending(pkg string) bool {
	_, ok := c.Unprocessed[pkg]
	return ok
}

// Reconcile drops failed entries for pkg that have since been processed, and
// removes the package entry once nothing remains.
func (c *Checkpoint) Reconcile(pkg string) {
	pending, ok := c.Unprocessed[pkg]
	if !ok {
		return
	}

	remaining := pending[:0]
	for _, path := range pending {
		if !c.HasFile(path) {
			remaining = append(remaining, path)
		}
	}

	if len(remaining) == 0 {
		delete(c.Unprocessed, pkg)
	} else {
		c.Unprocessed[pkg] = remaining
	}
}

// Complete reports whether the batch (fileCount files over packageCount
// packages) finished with nothing pending. Only then may the checkpoint be
// deleted.
func (c *Checkpoint) Complete(fileCount, packageCount int) bool {
	return len(c.FilesProcessed) == fileCount &&
		len(c.PackagesProcessed) == packageCount &&
		len(c.Unprocessed) == 0
}
