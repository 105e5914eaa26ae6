package cli

import (
	"encoding/json"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

// Envelope is the response shape every MCP tool returns (spec §6.2):
// {tool, status, session_id?, execution_time_ms, results|error}.
type Envelope struct {
	Tool            string         `json:"tool"`
	Status          string         `json:"status"`
	SessionID       string         `json:"session_id,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	Results         any            `json:"results,omitempty"`
	Error           *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError is the typed error shape carried in Envelope.Error: a
// stable code from the pipelineerr taxonomy, a human message, and — for a
// hard failure with a captured subprocess — the path to its stderr so the
// caller can inspect it (spec §7's "user-visible behavior").
type EnvelopeError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StderrPath string `json:"stderr_path,omitempty"`
}

// successEnvelope builds a status=success envelope, used both for outright
// success and for partial success (spec §7: "status=success with warnings").
func successEnvelope(tool, sessionID string, start time.Time, results any) Envelope {
	return Envelope{
		Tool:            tool,
		Status:          "success",
		SessionID:       sessionID,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Results:         results,
	}
}

// marshalEnvelope renders env as the JSON text every tool's TextContent
// payload carries (spec §4.7).
func marshalEnvelope(env Envelope) (string, error) {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// errorEnvelope builds a status=error envelope from a pipeline error. A
// non-pipelineerr error (should not happen past C2, but defends against a
// missed translation) is reported as Internal rather than panicking.
func errorEnvelope(tool, sessionID string, start time.Time, err error) Envelope {
	pe, ok := pipelineerr.As(err)
	if !ok {
		pe = pipelineerr.Newf(pipelineerr.Internal, "%v", err)
	}
	return Envelope{
		Tool:            tool,
		Status:          "error",
		SessionID:       sessionID,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Error: &EnvelopeError{
			Code:       string(pe.Code),
			Message:    pe.Message,
			StderrPath: pe.Details["stderr_path"],
		},
	}
}
