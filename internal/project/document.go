package project

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var markdownHeaderRegex = regexp.MustCompile(`(?m)^(#+)`)

// HierarchicalDocument assembles a single nested markdown document from the
// per-file summary fragments under rootFolder. Heading depth follows package
// nesting depth; fragment contents have their own headers bumped below the
// containing heading so nested summaries never outrank their container.
// Output is deterministic: directories and files are processed in
// lexicographic order. With recurse=false only the immediate folder's
// fragments are included.
func (p *Project) HierarchicalDocument(rootFolder string, recurse bool) (string, error) {
	return p.buildDocument(rootFolder, 1, recurse)
}

func (p *Project) buildDocument(folder string, level int, recurse bool) (string, error) {
	headerPrefix := strings.Repeat("#", level)

	// The package name is the folder's path relative to the details root,
	// dot-joined; the details root itself is the source folder's package.
	packageName := p.Info.SrcFolder
	if rel, err := filepath.Rel(p.DetailsFolder, folder); err == nil && rel != "." {
		packageName = strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
	}

	var doc strings.Builder
	doc.WriteString(headerPrefix + " " + packageName + "\n\n")

	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", err
	}

	// os.ReadDir returns entries sorted by name
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(folder, entry.Name()))
		if err != nil {
			return "", err
		}

		fileName := strings.TrimSuffix(entry.Name(), ".md")
		doc.WriteString(headerPrefix + "# " + fileName + "\n\n")
		doc.WriteString(bumpHeaders(string(data), level+1) + "\n\n")
	}

	if recurse {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			sub, err := p.buildDocument(filepath.Join(folder, entry.Name()), level+1, true)
			if err != nil {
				return "", err
			}
			doc.WriteString(sub)
		}
	}

	return doc.String(), nil
}

// bumpHeaders prefixes every markdown header in content with offset hashes.
func bumpHeaders(content string, offset int) string {
	prefix := strings.Repeat("#", offset)
	return markdownHeaderRegex.ReplaceAllString(content, prefix+"$1")
}
