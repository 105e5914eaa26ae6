// Package stage implements the Stage Adapters: thin translators between
// adapter-level inputs and the scanner/patcher CLI contract (spec §6.1).
// Each adapter builds argv, runs it through the Subprocess Runner, parses
// the resulting report via pkg/pipeline/report, and updates the session via
// pkg/pipeline/session.
package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/config"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/procexec"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/report"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/session"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/qualitykeeper/qualitykeeper/pkg/stringutil"
)

var stageLog = logger.New("pipeline:stage")

// ScanOptions are the caller-supplied inputs to ScanAdapter.Scan.
type ScanOptions struct {
	Comprehensive bool
	ExtraArgs     []string
	Cycle         int
}

// FixOptions are the caller-supplied inputs to FixAdapter.Fix.
type FixOptions struct {
	MaxFixes       int
	AutoApply      bool
	ClaudeAgent    bool
	LintReportPath string
	Cycle          int
}

// ScanAdapter invokes the version-keeper (scanner).
type ScanAdapter struct {
	Runner *procexec.Runner
	Store  *session.Store
	Cfg    *config.ResolvedConfig
}

// Scan runs the scanner for sess with the given options, updates the
// session, and returns the parsed LintReport.
func (a *ScanAdapter) Scan(ctx context.Context, sess *session.Session, opts ScanOptions) (report.LintReport, error) {
	h, err := a.Store.BeginStage(sess.ID, session.StageScanning)
	if err != nil {
		return report.LintReport{}, err
	}

	if err := os.MkdirAll(a.Cfg.ReportsDir(sess.ID), 0o755); err != nil {
		wErr := pipelineerr.Newf(pipelineerr.Internal, "cannot create reports directory: %v", err)
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: wErr})
		return report.LintReport{}, wErr
	}
	reportPath := reportPath(a.Cfg.ReportsDir(sess.ID), "lint", opts.Cycle)
	args := []string{
		"--session-dir", sess.SessionDir,
		"--output-format", "json",
		"--output-file", reportPath,
	}
	if opts.Comprehensive {
		args = append(args, "--comprehensive")
	}
	args = append(args, opts.ExtraArgs...)

	stageLog.Printf("Scanning session %s cycle=%d comprehensive=%v", sess.ID, opts.Cycle, opts.Comprehensive)

	res, err := a.Runner.Run(ctx, procexec.Request{
		Cmd:     resolveCmd(a.Cfg.Interpreter, a.Cfg.ScannerCmd),
		Args:    prependInterpreterArgs(a.Cfg.Interpreter, a.Cfg.ScannerCmd, args),
		Cwd:     a.Cfg.WorkspaceRoot,
		Timeout: time.Duration(a.Cfg.ScanTimeoutS) * time.Second,
	})
	if err != nil {
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: err})
		return report.LintReport{}, err
	}

	if res.TimedOut {
		tErr := attachStderr(pipelineerr.Newf(pipelineerr.Timeout, "scanner timed out after %ds", a.Cfg.ScanTimeoutS), a.Cfg.ReportsDir(sess.ID), "scan", opts.Cycle, res.Stderr)
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, TimedOut: true, Err: tErr, ExitCode: res.ExitCode})
		return report.LintReport{}, tErr
	}
	if res.ExitCode != 0 {
		msg := stringutil.SanitizeErrorMessage(string(res.Stderr))
		tErr := attachStderr(pipelineerr.Newf(pipelineerr.ToolError, "scanner exited %d: %s", res.ExitCode, stringutil.Truncate(msg, 2000)), a.Cfg.ReportsDir(sess.ID), "scan", opts.Cycle, res.Stderr)
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: tErr, ExitCode: res.ExitCode})
		return report.LintReport{}, tErr
	}

	lint, err := report.ReadLint(reportPath)
	if err != nil {
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: err, ExitCode: res.ExitCode})
		return report.LintReport{}, err
	}

	summary := report.SummarizeLint(lint)
	advance := summary.Total == 0

	_ = a.Store.EndStage(h, session.Outcome{
		ExitCode:        res.ExitCode,
		ReportPath:      reportPath,
		ReportKind:      session.ReportScan,
		IssuesFound:     summary.Total,
		RemainingIssues: summary.Total,
		AdvanceCycle:    advance,
	})
	_ = a.Store.PersistSnapshot(sess.ID)
	return lint, nil
}

// FixAdapter invokes the quality-patcher.
type FixAdapter struct {
	Runner *procexec.Runner
	Store  *session.Store
	Cfg    *config.ResolvedConfig
}

// Fix runs the patcher for sess with the given options, updates the
// session, and returns the parsed FixReport. A nonzero exit with a valid
// report is a partial success, not a hard failure: the report is returned
// together with a PartialSuccess error.
func (a *FixAdapter) Fix(ctx context.Context, sess *session.Session, opts FixOptions) (report.FixReport, error) {
	h, err := a.Store.BeginStage(sess.ID, session.StageFixing)
	if err != nil {
		return report.FixReport{}, err
	}

	maxFixes := opts.MaxFixes
	if maxFixes <= 0 {
		maxFixes = 10
	}

	if err := os.MkdirAll(a.Cfg.ReportsDir(sess.ID), 0o755); err != nil {
		wErr := pipelineerr.Newf(pipelineerr.Internal, "cannot create reports directory: %v", err)
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: wErr})
		return report.FixReport{}, wErr
	}
	reportPath := reportPath(a.Cfg.ReportsDir(sess.ID), "fix", opts.Cycle)
	args := []string{
		"--session-dir", sess.SessionDir,
		"--lint-report", opts.LintReportPath,
		"--max-fixes", fmt.Sprintf("%d", maxFixes),
		"--output-format", "json",
		"--output-file", reportPath,
	}
	if opts.AutoApply {
		args = append(args, "--auto-apply")
	}
	if opts.ClaudeAgent {
		args = append(args, "--claude-agent")
	}

	stageLog.Printf("Fixing session %s cycle=%d maxFixes=%d", sess.ID, opts.Cycle, maxFixes)

	res, err := a.Runner.Run(ctx, procexec.Request{
		Cmd:     resolveCmd(a.Cfg.Interpreter, a.Cfg.PatcherCmd),
		Args:    prependInterpreterArgs(a.Cfg.Interpreter, a.Cfg.PatcherCmd, args),
		Cwd:     a.Cfg.WorkspaceRoot,
		Timeout: time.Duration(a.Cfg.FixTimeoutS) * time.Second,
	})
	if err != nil {
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: err})
		return report.FixReport{}, err
	}

	if res.TimedOut {
		tErr := attachStderr(pipelineerr.Newf(pipelineerr.Timeout, "patcher timed out after %ds", a.Cfg.FixTimeoutS), a.Cfg.ReportsDir(sess.ID), "fix", opts.Cycle, res.Stderr)
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, TimedOut: true, Err: tErr, ExitCode: res.ExitCode})
		return report.FixReport{}, tErr
	}

	fix, readErr := report.ReadFix(reportPath)
	if readErr != nil {
		if res.ExitCode != 0 {
			// Nonzero exit and no parseable report: hard failure, not a
			// partial success.
			msg := stringutil.SanitizeErrorMessage(string(res.Stderr))
			tErr := attachStderr(pipelineerr.Newf(pipelineerr.ToolError, "patcher exited %d: %s", res.ExitCode, stringutil.Truncate(msg, 2000)), a.Cfg.ReportsDir(sess.ID), "fix", opts.Cycle, res.Stderr)
			_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: tErr, ExitCode: res.ExitCode})
			return report.FixReport{}, tErr
		}
		if pe, ok := pipelineerr.As(readErr); ok && pe.Code == pipelineerr.SchemaError {
			readErr = pipelineerr.New(pipelineerr.MalformedOutput, pe.Message)
		}
		_ = a.Store.EndStage(h, session.Outcome{Failed: true, Err: readErr, ExitCode: res.ExitCode})
		return report.FixReport{}, readErr
	}

	// A fix that attempted nothing (fix.FixesAttempted == 0) is treated as
	// the cycle-terminal "fix with nothing left" per spec §4.3;
	// fix.RemainingIssues is not consulted.
	advance := fix.FixesAttempted == 0

	outcome := session.Outcome{
		ExitCode:        res.ExitCode,
		ReportPath:      reportPath,
		ReportKind:      session.ReportFix,
		FixesApplied:    fix.FixesApplied,
		FixesFailed:     fix.FixesFailed,
		RemainingIssues: fix.RemainingIssues,
		AdvanceCycle:    advance,
	}
	if res.ExitCode != 0 {
		// Partial success: nonzero exit but a valid report. Recorded as a
		// warning on the stage, not a hard failure.
		outcome.Err = pipelineerr.Newf(pipelineerr.PartialSuccess, "patcher exited %d with a valid report (%d failed of %d attempted)", res.ExitCode, fix.FixesFailed, fix.FixesAttempted)
	}
	_ = a.Store.EndStage(h, outcome)
	_ = a.Store.PersistSnapshot(sess.ID)
	if outcome.Err != nil {
		return fix, outcome.Err
	}
	return fix, nil
}

// attachStderr persists stderr to a file alongside the cycle's reports and
// attaches its path as a detail on err, so a hard-failure response can point
// the caller at the full captured output (spec §7's user-visible behavior).
// A write failure is logged and swallowed — it must never mask the original
// stage error.
func attachStderr(err *pipelineerr.Error, reportsDir, kind string, cycle int, stderr []byte) *pipelineerr.Error {
	path := filepath.Join(reportsDir, fmt.Sprintf("%s-%d-stderr.log", kind, cycle))
	if writeErr := os.WriteFile(path, stderr, 0o644); writeErr != nil {
		stageLog.Printf("failed to persist stderr to %s: %v", path, writeErr)
		return err
	}
	return err.WithDetail("stderr_path", path)
}

func reportPath(reportsDir, kind string, cycle int) string {
	name := fmt.Sprintf("%s-%d-%s.json", kind, cycle, time.Now().UTC().Format("20060102T150405.000000000Z"))
	return filepath.Join(reportsDir, name)
}

// resolveCmd returns the program to exec: the interpreter if configured,
// else the tool command itself (so a compiled scanner/patcher binary with
// no interpreter still works).
func resolveCmd(interpreter, toolCmd string) string {
	if interpreter != "" {
		return interpreter
	}
	return toolCmd
}

// prependInterpreterArgs prepends the tool command to args when an
// interpreter is configured (e.g. "python3 scripts/version_keeper.py ...").
func prependInterpreterArgs(interpreter, toolCmd string, args []string) []string {
	if interpreter == "" {
		return args
	}
	full := make([]string, 0, len(args)+1)
	full = append(full, toolCmd)
	full = append(full, args...)
	return full
}
