package procexec

import (
	"context"
	"testing"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccessWithJSON(t *testing.T) {
	r := NewRunner(4)
	res, err := r.Run(context.Background(), Request{
		Cmd:         "/bin/sh",
		Args:        []string{"-c", `echo '{"ok":true}'`},
		CaptureJSON: true,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	require.NoError(t, res.ParseErr)
	assert.JSONEq(t, `{"ok":true}`, string(res.ParsedJSON))
}

func TestRunNonZeroExitNoError(t *testing.T) {
	r := NewRunner(4)
	res, err := r.Run(context.Background(), Request{
		Cmd:     "/bin/sh",
		Args:    []string{"-c", "exit 7"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestRunMalformedJSON(t *testing.T) {
	r := NewRunner(4)
	res, err := r.Run(context.Background(), Request{
		Cmd:         "/bin/sh",
		Args:        []string{"-c", `echo 'not json'`},
		CaptureJSON: true,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	require.Error(t, res.ParseErr)
	pe, ok := pipelineerr.As(res.ParseErr)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.MalformedOutput, pe.Code)
}

func TestRunSpawnFailed(t *testing.T) {
	r := NewRunner(4)
	_, err := r.Run(context.Background(), Request{
		Cmd:     "definitely-not-a-real-binary-xyz",
		Timeout: 5 * time.Second,
	})
	require.Error(t, err)
	pe, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.SpawnFailed, pe.Code)
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner(4)
	res, err := r.Run(context.Background(), Request{
		Cmd:       "/bin/sh",
		Args:      []string{"-c", "sleep 5"},
		Timeout:   200 * time.Millisecond,
		KillGrace: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestCappedBufferTruncates(t *testing.T) {
	b := newCappedBuffer(8)
	_, _ = b.Write([]byte("0123456789"))
	assert.True(t, b.truncated)
	assert.Equal(t, "23456789", string(b.Bytes()))
}
