// Package ghtrigger implements the github_workflow_trigger tool: a thin
// passthrough that invokes a configured command (default "gh workflow run")
// through the Subprocess Runner, authenticating the same way the rest of
// the ecosystem invokes gh — via go-gh/v2's pkg/auth token resolution — so
// a caller never has to pass a token through MCP arguments.
package ghtrigger

import (
	"context"
	"fmt"
	"time"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/procexec"
)

var triggerLog = logger.New("pipeline:ghtrigger")

const tokenSourceGHToken = "GH_TOKEN"

// Request is the caller-supplied input to Trigger.
type Request struct {
	Workflow string
	Ref      string
	Inputs   map[string]string
}

// Result is the tool's return shape per spec: exit code and captured
// stdout/stderr, no further parsing.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Trigger runs the configured trigger command line (triggerCmd, e.g.
// "gh workflow run") with req's arguments appended, through runner, with
// a GitHub token injected into the environment when go-gh can resolve one.
func Trigger(ctx context.Context, runner *procexec.Runner, triggerCmd, cwd string, timeout time.Duration, req Request) (*Result, error) {
	argv, err := buildArgv(triggerCmd, req)
	if err != nil {
		return nil, err
	}

	env := tokenEnv()

	res, err := runner.Run(ctx, procexec.Request{
		Cmd:     argv[0],
		Args:    argv[1:],
		Env:     env,
		Cwd:     cwd,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		ExitCode: res.ExitCode,
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
	}, nil
}

// buildArgv splits triggerCmd into its program and base arguments, then
// appends the workflow name, --ref, and one -f key=value per input.
func buildArgv(triggerCmd string, req Request) ([]string, error) {
	base, err := splitCmd(triggerCmd)
	if err != nil {
		return nil, err
	}
	argv := append([]string{}, base...)
	argv = append(argv, req.Workflow)
	if req.Ref != "" {
		argv = append(argv, "--ref", req.Ref)
	}
	for k, v := range req.Inputs {
		argv = append(argv, "-f", fmt.Sprintf("%s=%s", k, v))
	}
	return argv, nil
}

func splitCmd(cmd string) ([]string, error) {
	var fields []string
	start := -1
	for i, r := range cmd {
		if r == ' ' {
			if start >= 0 {
				fields = append(fields, cmd[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, cmd[start:])
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty trigger command")
	}
	return fields, nil
}

// tokenEnv resolves a GitHub token the same way go-gh's own gh-CLI wrapper
// does and, when the source isn't already GH_TOKEN, injects it explicitly
// so the child process sees it regardless of where go-gh found it.
func tokenEnv() []string {
	token, source := auth.TokenForHost("github.com")
	if token == "" || source == tokenSourceGHToken {
		return nil
	}
	triggerLog.Printf("Injecting resolved token from %s into trigger command environment", source)
	return []string{"GH_TOKEN=" + token}
}
