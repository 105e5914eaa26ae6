// Package pipelineerr defines the discriminated error type shared by every
// pipeline package from the subprocess runner upward. Every adapter and
// orchestrator operation returns ok(value) or an *Error carrying one of the
// fixed codes below; pkg/cli is the single place that translates an *Error
// into an MCP JSON-RPC error or a CLI exit code.
package pipelineerr

import "fmt"

// Code is one of the fixed error categories from the error taxonomy.
type Code string

const (
	InvalidRequest   Code = "InvalidRequest"
	NotFound         Code = "NotFound"
	Conflict         Code = "Conflict"
	InvalidWorkspace Code = "InvalidWorkspace"
	MissingTool      Code = "MissingTool"
	InvalidProfile   Code = "InvalidProfile"
	SpawnFailed      Code = "SpawnFailed"
	Timeout          Code = "Timeout"
	ToolError        Code = "ToolError"
	MalformedOutput  Code = "MalformedOutput"
	SchemaError      Code = "SchemaError"
	PartialSuccess   Code = "PartialSuccess"
	Internal         Code = "Internal"
)

// Error is the tagged result type carried by every fallible pipeline
// operation: a stable code, a human-readable message, and optional
// machine-readable details (e.g. a stderr snippet or a path).
type Error struct {
	Code    Code
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an *Error with no details.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e with detail key/value attached.
func (e *Error) WithDetail(key, value string) *Error {
	d := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		d[k] = v
	}
	d[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: d}
}

// As extracts a *Error from a generic error, if it is one.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	pe, ok := err.(*Error)
	return pe, ok
}
