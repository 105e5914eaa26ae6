// Package procexec is the Subprocess Runner: it launches an external
// process with arguments, env, cwd and a timeout, captures stdout/stderr
// into memory-bounded buffers, optionally parses stdout as JSON, and maps
// exit conditions onto the pipelineerr taxonomy. It never raises on a
// nonzero exit code — the caller interprets exit_code itself.
package procexec

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/constants"
	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/sourcegraph/conc/pool"
)

var execLog = logger.New("pipeline:procexec")

// Request describes one subprocess invocation.
type Request struct {
	Cmd         string
	Args        []string
	Env         []string // merged over the inherited environment
	Cwd         string
	Timeout     time.Duration
	CaptureJSON bool
	KillGrace   time.Duration // default constants.DefaultKillGrace
	BufferCap   int           // default constants.DefaultOutputBufferCap
}

// Result is the outcome of Run. Run returns a nil Result only together with
// a SpawnFailed error (the process could not be started or waited on); a
// nonzero exit code or JSON parse failure never fails Run, they're surfaced
// as fields for the caller.
type Result struct {
	ExitCode       int
	Stdout         []byte
	Stderr         []byte
	StdoutTrunc    bool
	StderrTrunc    bool
	ParsedJSON     json.RawMessage
	ParseErr       error
	TimedOut       bool
	DurationMillis int64
}

// Runner gates concurrent subprocess starts across all sessions behind a
// shared ceiling (max_concurrent_subprocesses, default 8). A caller whose
// Run would exceed the ceiling suspends until a slot frees rather than
// erroring, matching the "delay them" option in the resource-bounds policy.
type Runner struct {
	pool *pool.Pool
}

// NewRunner creates a Runner whose concurrent subprocess ceiling is
// maxConcurrent; a non-positive value selects the default of 8.
func NewRunner(maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = constants.DefaultMaxConcurrentSubs
	}
	return &Runner{pool: pool.New().WithMaxGoroutines(maxConcurrent)}
}

// Run executes req, blocking the calling goroutine until either the
// subprocess exits/is killed or a slot in the concurrency ceiling becomes
// available and the run completes.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	type out struct {
		res *Result
		err error
	}
	ch := make(chan out, 1)
	r.pool.Go(func() {
		res, err := run(ctx, req)
		ch <- out{res, err}
	})
	o := <-ch
	return o.res, o.err
}

func run(ctx context.Context, req Request) (*Result, error) {
	killGrace := req.KillGrace
	if killGrace <= 0 {
		killGrace = constants.DefaultKillGrace
	}
	bufCap := req.BufferCap
	if bufCap <= 0 {
		bufCap = constants.DefaultOutputBufferCap
	}

	execLog.Printf("Running: %s %v (timeout=%s)", req.Cmd, req.Args, req.Timeout)

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, req.Cmd, req.Args...)
	cmd.Dir = req.Cwd
	cmd.Env = mergeEnv(os.Environ(), req.Env)
	// Detach from the parent's controlling terminal so the child cannot
	// receive terminal signals intended for the CLI/MCP server process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	// Cancel() is replaced below so context expiry sends SIGTERM first
	// instead of the default SIGKILL, honoring the grace period.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace

	stdoutBuf := newCappedBuffer(bufCap)
	stderrBuf := newCappedBuffer(bufCap)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	start := time.Now()
	err := cmd.Start()
	if err != nil {
		return nil, pipelineerr.Newf(pipelineerr.SpawnFailed, "failed to start %s: %v", req.Cmd, err)
	}

	waitErr := cmd.Wait()
	duration := time.Since(start)

	res := &Result{
		Stdout:         stdoutBuf.Bytes(),
		Stderr:         stderrBuf.Bytes(),
		StdoutTrunc:    stdoutBuf.truncated,
		StderrTrunc:    stderrBuf.truncated,
		DurationMillis: duration.Milliseconds(),
	}

	timedOut := req.Timeout > 0 && runCtx.Err() == context.DeadlineExceeded
	res.TimedOut = timedOut

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else if waitErr != nil && !timedOut {
		return nil, pipelineerr.Newf(pipelineerr.SpawnFailed, "process wait failed for %s: %v", req.Cmd, waitErr)
	} else if timedOut {
		res.ExitCode = -1
	}

	if req.CaptureJSON && res.ExitCode == 0 && !timedOut {
		trimmed := bytes.TrimSpace(res.Stdout)
		if err := json.Unmarshal(trimmed, &res.ParsedJSON); err != nil {
			res.ParseErr = pipelineerr.Newf(pipelineerr.MalformedOutput, "stdout of %s is not valid JSON: %v", req.Cmd, err)
		}
	}

	execLog.Printf("Finished: %s exit=%d timed_out=%v duration=%dms", req.Cmd, res.ExitCode, res.TimedOut, res.DurationMillis)
	return res, nil
}

func mergeEnv(base, overrides []string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overrides))
	merged = append(merged, base...)
	merged = append(merged, overrides...)
	return merged
}
