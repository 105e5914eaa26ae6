package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/procexec"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/session"
	"github.com/qualitykeeper/qualitykeeper/pkg/stringutil"
)

// runCommit executes the configured commit command (supplement to spec
// §1's "(d) optionally commits results") after a cycle reaches done with
// zero remaining issues. A non-zero exit is recorded as a warning on the
// result, never a hard pipeline failure — committing is explicitly "beyond
// invoking a configured command" (spec §1 non-goals).
func (o *Orchestrator) runCommit(ctx context.Context, sess *session.Session, opts Options, result *PipelineResult) {
	message := opts.CommitMessageTmpl
	if message == "" {
		message = "qualitykeeper: cycle " + strconv.Itoa(len(result.Cycles)) + " for session " + sess.ID
	}

	h, err := o.Store.BeginStage(sess.ID, session.StageCommitting)
	if err != nil {
		result.CommitWarning = "commit stage skipped: " + err.Error()
		return
	}

	timeout := time.Duration(o.Cfg.CommitTimeoutS) * time.Second
	res, err := o.Runner.Run(ctx, procexec.Request{
		Cmd:     "/bin/sh",
		Args:    []string{"-c", strings.ReplaceAll(o.Cfg.CommitCommand, "<message>", message)},
		Cwd:     o.Cfg.WorkspaceRoot,
		Timeout: timeout,
	})
	if err != nil {
		_ = o.Store.EndStage(h, session.Outcome{Failed: true, Err: err, CommitCommand: o.Cfg.CommitCommand})
		result.CommitWarning = "commit_warning: " + err.Error()
		return
	}

	_ = o.Store.EndStage(h, session.Outcome{
		ExitCode:       res.ExitCode,
		CommitCommand:  o.Cfg.CommitCommand,
		CommitExitCode: res.ExitCode,
	})
	_ = o.Store.PersistSnapshot(sess.ID)

	if res.ExitCode != 0 {
		result.CommitWarning = "commit_warning: commit command exited " + strconv.Itoa(res.ExitCode) + ": " + stringutil.Truncate(string(res.Stderr), 500)
	}
}
