// Package extract recovers structured results from model responses that
// failed strict schema validation: fenced-JSON extraction first, bare
// filename extraction as a last resort.
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/cort/triage/internal/model"
)

var (
	// ErrNoStructuredOutput means no fenced block parsed and validated.
	ErrNoStructuredOutput = errors.New("no valid structured output found in response")

	// ErrAmbiguousOutput means more than one fenced block validated.
	ErrAmbiguousOutput = errors.New("multiple valid structured outputs found in response")
)

var (
	fencedBlockRegex   = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \\t]*\\r?\\n(.*?)\\r?\\n[ \\t]*```")
	wrappingFenceRegex = regexp.MustCompile("(?s)^```[a-zA-Z0-9]*[ \\t]*\\r?\\n(.*?)\\r?\\n```$")
	filenameRegex      = regexp.MustCompile(`[\w\-./]*[\w\-]+\.(?:py|go|js|jsx|ts|tsx|java|rb|rs|c|cc|cpp|h|hpp|cs|scala|kt)\b`)
)

// Structured scans raw for fenced code blocks whose content parses as JSON and
// validates against schema. Exactly one validating block is unmarshaled into
// out; zero yields ErrNoStructuredOutput, more than one ErrAmbiguousOutput.
func Structured(raw string, schema *model.Schema, out any) error {
	matches := fencedBlockRegex.FindAllStringSubmatch(raw, -1)

	var valid []string
	for _, match := range matches {
		content := strings.TrimSpace(match[1])

		var v any
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			continue
		}
		if err := schema.Validate(v); err != nil {
			continue
		}
		valid = append(valid, content)
	}

	switch len(valid) {
	case 0:
		return ErrNoStructuredOutput
	case 1:
		return json.Unmarshal([]byte(valid[0]), out)
	default:
		return ErrAmbiguousOutput
	}
}

// Filenames returns source-file-looking tokens found in raw, deduplicated in
// first-seen order. Used only when structured and fenced-JSON extraction both
// fail.
func Filenames(raw string) []string {
	matches := filenameRegex.FindAllString(raw, -1)

	seen := make(map[string]struct{}, len(matches))
	var names []string
	for _, match := range matches {
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		names = append(names, match)
	}
	return names
}

// CodeBlockContent strips a single code fence wrapping the whole string, if
// present. Model-generated markdown summaries often arrive wrapped this way.
func CodeBlockContent(s string) string {
	if match := wrappingFenceRegex.FindStringSubmatch(strings.TrimSpace(s)); match != nil {
		return match[1]
	}
	return s
}
