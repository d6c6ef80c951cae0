// Package config loads and validates the host-facing Options document
// (spec.md §6's "{import_files, repl, max_import_size}") from JSON, the way
// the teacher validates structured input throughout core/types: compile a
// JSON Schema once with github.com/santhosh-tekuri/jsonschema/v5, reuse the
// compiled validator, and fail closed on anything the schema doesn't allow.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Options is the JSON-loadable form of a VM's host configuration. Field
// names mirror spec.md §6 exactly so a document round-trips without
// translation.
type Options struct {
	ImportFiles   bool   `json:"import_files"`
	Repl          bool   `json:"repl"`
	MaxImportSize uint32 `json:"max_import_size"`
	MaxCallDepth  int    `json:"max_call_depth"`
}

const schemaDoc = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"import_files": {"type": "boolean"},
		"repl": {"type": "boolean"},
		"max_import_size": {"type": "integer", "minimum": 0, "maximum": 4294967295},
		"max_call_depth": {"type": "integer", "minimum": 0}
	}
}`

var schema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "bog://options.json"
	if err := compiler.AddResource(url, strings.NewReader(schemaDoc)); err != nil {
		panic(fmt.Sprintf("config: invalid built-in options schema: %v", err))
	}
	s, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("config: options schema failed to compile: %v", err))
	}
	return s
}

// Load parses and validates an Options document. Validation runs against
// the decoded generic JSON value (as jsonschema/v5 requires) before the
// typed unmarshal, so a malformed document is rejected with a schema error
// rather than a field-by-field json.Unmarshal type error.
func Load(data []byte) (Options, error) {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return Options{}, fmt.Errorf("config: invalid JSON: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return Options{}, fmt.Errorf("config: options document failed validation: %w", err)
	}
	var opts Options
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return Options{}, fmt.Errorf("config: %w", err)
	}
	return opts, nil
}
