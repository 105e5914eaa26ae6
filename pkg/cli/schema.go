package cli

import (
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// GenerateOutputSchema generates an MCP OutputSchema from a Go struct type,
// the same helper the teacher pack uses for its own structured tool
// outputs — respecting json tags for field names and jsonschema tags for
// descriptions.
func GenerateOutputSchema[T any]() (*jsonschema.Schema, error) {
	var zero T
	schema, err := jsonschema.ForType(reflect.TypeOf(zero), &jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	return schema, nil
}
