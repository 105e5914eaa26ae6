package report

import (
	"encoding/json"
	"fmt"
	"reflect"

	jsonschemago "github.com/google/jsonschema-go/jsonschema"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// LintReportSchema generates the JSON Schema document describing LintReport,
// used both to validate scanner output at read-time and to back the MCP
// OutputSchema field for version_keeper_scan.
func LintReportSchema() (*jsonschemago.Schema, error) {
	return schemaFor[LintReport]()
}

// FixReportSchema generates the JSON Schema document describing FixReport.
func FixReportSchema() (*jsonschemago.Schema, error) {
	return schemaFor[FixReport]()
}

func schemaFor[T any]() (*jsonschemago.Schema, error) {
	var zero T
	schema, err := jsonschemago.ForType(reflect.TypeOf(zero), &jsonschemago.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %T: %w", zero, err)
	}
	return schema, nil
}

// validator wraps a compiled santhosh-tekuri/jsonschema/v6 schema built from
// a jsonschema-go generated document, so malformed scanner/patcher output is
// rejected before it is ever unmarshalled into a Go struct.
type validator struct {
	schema *jsonschema.Schema
}

func newValidator(doc *jsonschemago.Schema) (*validator, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generated schema: %w", err)
	}
	var asAny any
	if err := json.Unmarshal(raw, &asAny); err != nil {
		return nil, fmt.Errorf("failed to decode generated schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	const resourceURL = "mem://qualitykeeper/report-schema.json"
	if err := c.AddResource(resourceURL, asAny); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &validator{schema: compiled}, nil
}

func (v *validator) Validate(data []byte) error {
	var inst any
	if err := json.Unmarshal(data, &inst); err != nil {
		return pipelineerr.Newf(pipelineerr.MalformedOutput, "invalid JSON: %v", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return pipelineerr.Newf(pipelineerr.SchemaError, "schema validation failed: %v", err)
	}
	return nil
}

var (
	lintValidator *validator
	fixValidator  *validator
)

func init() {
	if doc, err := LintReportSchema(); err == nil {
		if v, err := newValidator(doc); err == nil {
			lintValidator = v
		}
	}
	if doc, err := FixReportSchema(); err == nil {
		if v, err := newValidator(doc); err == nil {
			fixValidator = v
		}
	}
}
