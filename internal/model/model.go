// Package model implements the model invocation collaborator: chat-style
// round-trips to a text-generation backend, in free-text or schema-constrained
// mode, with retry applied at the call site.
package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Message roles understood by all backends
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Invoker is the interface all model backends implement
type Invoker interface {
	// Invoke sends the messages and returns the raw text response
	Invoke(ctx context.Context, messages []Message) (string, error)

	// InvokeStructured sends the messages requesting output conforming to
	// schema, and unmarshals the validated response into out. A response
	// that fails strict parsing or schema validation returns a
	// *SchemaValidationError carrying the raw text.
	InvokeStructured(ctx context.Context, messages []Message, schema *Schema, out any) error

	// Name returns the backend name
	Name() string
}

// SchemaValidationError reports a model response that did not conform to the
// requested schema. Raw carries the full response text so recovery can act on it.
type SchemaValidationError struct {
	Raw string
	Err error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("model response failed schema validation: %v", e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// Schema bundles a JSON schema with its resolved validator and the format
// instructions embedded into prompts.
type Schema struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	text     string
}

// SchemaFor derives a Schema from a Go struct type.
func SchemaFor[T any]() (*Schema, error) {
	js, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to derive schema: %w", err)
	}
	resolved, err := js.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema: %w", err)
	}
	raw, err := json.Marshal(js)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return &Schema{schema: js, resolved: resolved, text: string(raw)}, nil
}

// MustSchemaFor is SchemaFor that panics on error; for package-level schemas.
func MustSchemaFor[T any]() *Schema {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks an unmarshaled JSON value against the schema.
func (s *Schema) Validate(v any) error {
	return s.resolved.Validate(v)
}

// Instructions returns format instructions suitable for inclusion in a prompt.
func (s *Schema) Instructions() string {
	return "The output should be a JSON object conforming to the following JSON schema:\n```json\n" + s.text + "\n```"
}

// Decode strictly parses raw as JSON, validates it against the schema, and
// unmarshals it into out. Failures are reported as *SchemaValidationError.
func (s *Schema) Decode(raw string, out any) error {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return &SchemaValidationError{Raw: raw, Err: err}
	}
	if err := s.resolved.Validate(v); err != nil {
		return &SchemaValidationError{Raw: raw, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &SchemaValidationError{Raw: raw, Err: err}
	}
	return nil
}
