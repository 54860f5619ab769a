package mcpserver

import (
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// schemaFor generates a JSON schema for a tool's argument struct the same
// way githubnext-gh-aw's pkg/cli.GenerateOutputSchema does: reflect.TypeOf a
// zero value of T, then hand it to jsonschema.ForType. Returns nil if T's
// shape can't be reflected into a schema, since a missing input schema is
// cosmetic (tools/list degrades to name+description only).
func schemaFor[T any]() *jsonschema.Schema {
	var zero T
	schema, err := jsonschema.ForType(reflect.TypeOf(zero), &jsonschema.ForOptions{})
	if err != nil {
		log.Printf("generating schema for %T: %v", zero, err)
		return nil
	}
	return schema
}

// ToolMeta is the descriptive metadata tools/list reports alongside a tool's
// name: a human-readable description and its generated input schema.
type ToolMeta struct {
	Description string
	InputSchema *jsonschema.Schema
}
