package cli

import (
	"testing"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/stretchr/testify/assert"
)

func TestSuccessEnvelopeShape(t *testing.T) {
	env := successEnvelope("version_keeper_scan", "sess1", time.Now(), map[string]int{"total_issues": 3})
	assert.Equal(t, "version_keeper_scan", env.Tool)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "sess1", env.SessionID)
	assert.Nil(t, env.Error)
	assert.NotNil(t, env.Results)
}

func TestErrorEnvelopeExtractsPipelineErrCode(t *testing.T) {
	err := pipelineerr.New(pipelineerr.NotFound, "unknown session: sess1").WithDetail("stderr_path", "/tmp/x.log")
	env := errorEnvelope("pipeline_status", "sess1", time.Now(), err)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, string(pipelineerr.NotFound), env.Error.Code)
	assert.Equal(t, "unknown session: sess1", env.Error.Message)
	assert.Equal(t, "/tmp/x.log", env.Error.StderrPath)
}

func TestErrorEnvelopeFallsBackToInternalForNonPipelineErr(t *testing.T) {
	env := errorEnvelope("pipeline_status", "", time.Now(), assertError{})
	assert.Equal(t, string(pipelineerr.Internal), env.Error.Code)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestMarshalEnvelopeProducesJSON(t *testing.T) {
	env := successEnvelope("mcp_compliance_check", "", time.Now(), nil)
	text, err := marshalEnvelope(env)
	assert.NoError(t, err)
	assert.Contains(t, text, `"tool": "mcp_compliance_check"`)
	assert.Contains(t, text, `"status": "success"`)
}

func TestExitCodeForMapsErrorTaxonomy(t *testing.T) {
	cases := []struct {
		code pipelineerr.Code
		want int
	}{
		{pipelineerr.InvalidRequest, ExitInvalidArgs},
		{pipelineerr.InvalidWorkspace, ExitInvalidArgs},
		{pipelineerr.NotFound, ExitSessionNotFound},
		{pipelineerr.Timeout, ExitTimeout},
		{pipelineerr.ToolError, ExitToolError},
		{pipelineerr.Internal, ExitInternal},
	}
	for _, tc := range cases {
		got := ExitCodeFor(pipelineerr.New(tc.code, "x"))
		assert.Equal(t, tc.want, got, "code=%s", tc.code)
	}
	assert.Equal(t, ExitSuccess, ExitCodeFor(nil))
	assert.Equal(t, ExitInternal, ExitCodeFor(assertError{}))
}
