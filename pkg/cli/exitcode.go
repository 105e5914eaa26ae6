package cli

import "github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"

// Exit codes for the qk CLI (spec §6.5): 0 success; 2 invalid arguments;
// 3 session not found; 4 tool error; 5 timeout; 1 internal error.
const (
	ExitSuccess         = 0
	ExitInternal        = 1
	ExitInvalidArgs     = 2
	ExitSessionNotFound = 3
	ExitToolError       = 4
	ExitTimeout         = 5
)

// ExitCodeFor maps a pipeline error to the CLI exit code it should produce
// (spec §6.5). A nil error always means success.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	pe, ok := pipelineerr.As(err)
	if !ok {
		return ExitInternal
	}
	switch pe.Code {
	case pipelineerr.InvalidRequest, pipelineerr.InvalidProfile,
		pipelineerr.InvalidWorkspace, pipelineerr.MissingTool:
		return ExitInvalidArgs
	case pipelineerr.NotFound:
		return ExitSessionNotFound
	case pipelineerr.Timeout:
		return ExitTimeout
	case pipelineerr.ToolError, pipelineerr.MalformedOutput, pipelineerr.Conflict,
		pipelineerr.SpawnFailed, pipelineerr.SchemaError:
		return ExitToolError
	default:
		return ExitInternal
	}
}
