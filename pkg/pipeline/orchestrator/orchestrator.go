// Package orchestrator implements the Pipeline Orchestrator: the cycle
// state machine that drives scan → fix → validate → (optional) commit,
// enforcing termination, retry, and progress semantics.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/config"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/procexec"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/report"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/session"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/stage"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

var orchLog = logger.New("pipeline:orchestrator")

// TerminationReason is one of the fixed values a PipelineResult ends with.
type TerminationReason string

const (
	ZeroIssues      TerminationReason = "zero_issues"
	BudgetExhausted TerminationReason = "budget_exhausted"
)

func failedReason(stageName string) TerminationReason {
	return TerminationReason(fmt.Sprintf("failed: %s", stageName))
}

// Options are the caller-supplied inputs to RunFull.
type Options struct {
	MaxCycles         int
	MaxFixesPerCycle  int
	BreakOnNoIssues   bool
	Comprehensive     bool
	ExtraArgs         []string
	AutoApply         bool
	ClaudeAgent       bool
	AutoCommit        bool
	CommitMessageTmpl string
}

// CycleSummary records one cycle's scan/fix/validate outcome.
type CycleSummary struct {
	Cycle             int
	InitialIssues     int
	FixesAttempted    int
	FixesApplied      int
	FixesFailed       int
	ValidatedIssues   int
	ScanDurationMs    int64
	FixDurationMs     int64
	ValidateDurationMs int64
	Stalled           bool
}

// PipelineResult is RunFull's return value (spec §4.6).
type PipelineResult struct {
	SessionID        string
	Cycles           []CycleSummary
	FinalMetrics     session.Metrics
	Success          bool
	TerminationReason TerminationReason
	CommitWarning    string
}

// Orchestrator wires the stage adapters and session store together to drive
// the full scan/fix/validate/commit cycle.
type Orchestrator struct {
	Scan    *stage.ScanAdapter
	Fix     *stage.FixAdapter
	Store   *session.Store
	Runner  *procexec.Runner
	Cfg     *config.ResolvedConfig
}

// New constructs an Orchestrator from a resolved config, creating its own
// procexec.Runner sized to cfg's ceiling. Callers that need the
// max_concurrent_subprocesses ceiling shared across multiple sessions or
// multiple Orchestrator instances (the MCP server, which builds one
// Orchestrator per tool call against the same config watcher) should use
// NewWithRunner instead.
func New(cfg *config.ResolvedConfig, store *session.Store) *Orchestrator {
	return NewWithRunner(cfg, store, procexec.NewRunner(cfg.MaxConcurrentSubprocesses))
}

// NewWithRunner constructs an Orchestrator that dispatches subprocesses
// through the given Runner instead of creating its own, so the
// max_concurrent_subprocesses ceiling is shared across every call site that
// passes in the same Runner.
func NewWithRunner(cfg *config.ResolvedConfig, store *session.Store, runner *procexec.Runner) *Orchestrator {
	return &Orchestrator{
		Scan:   &stage.ScanAdapter{Runner: runner, Store: store, Cfg: cfg},
		Fix:    &stage.FixAdapter{Runner: runner, Store: store, Cfg: cfg},
		Store:  store,
		Runner: runner,
		Cfg:    cfg,
	}
}

// RunFull drives sess through scan → fix → validate cycles until zero
// issues remain, the cycle budget is exhausted, or a stage fails.
func (o *Orchestrator) RunFull(ctx context.Context, sess *session.Session, opts Options) (*PipelineResult, error) {
	if opts.MaxCycles == 0 {
		return nil, pipelineerr.New(pipelineerr.InvalidRequest, "max_cycles=0 is rejected; omit the option or pass a positive value")
	}
	maxCycles := opts.MaxCycles
	if maxCycles < 0 {
		maxCycles = 10
	}
	maxFixes := opts.MaxFixesPerCycle
	if maxFixes <= 0 {
		maxFixes = 10
	}
	// break_on_no_issues defaults to true; the MCP/CLI layer applies that
	// default when parsing the request, so Options.BreakOnNoIssues here is
	// already the caller's resolved intent.
	breakOnNoIssues := opts.BreakOnNoIssues

	result := &PipelineResult{SessionID: sess.ID}
	scanOpts := stage.ScanOptions{Comprehensive: opts.Comprehensive, ExtraArgs: opts.ExtraArgs}

	var lastRemaining = -1
	var stalledStreak int

	for cycle := 0; cycle < maxCycles; cycle++ {
		scanOpts.Cycle = cycle
		scanStart := time.Now()
		lint, err := o.Scan.Scan(ctx, sess, scanOpts)
		scanDuration := time.Since(scanStart).Milliseconds()
		if err != nil {
			result.Success = false
			result.TerminationReason = failedReason("scan")
			return o.finish(sess, result)
		}

		summary := report.SummarizeLint(lint)
		cs := CycleSummary{Cycle: cycle, InitialIssues: summary.Total, ScanDurationMs: scanDuration}

		if summary.Total == 0 && breakOnNoIssues {
			result.Cycles = append(result.Cycles, cs)
			result.Success = true
			result.TerminationReason = ZeroIssues
			return o.afterSuccess(ctx, sess, opts, result)
		}

		snap, _ := o.Store.Snapshot(sess.ID)
		lintPath := snap.LastScanReport

		fixStart := time.Now()
		fix, err := o.Fix.Fix(ctx, sess, stage.FixOptions{
			MaxFixes:       maxFixes,
			AutoApply:      opts.AutoApply,
			ClaudeAgent:    opts.ClaudeAgent,
			LintReportPath: lintPath,
			Cycle:          cycle,
		})
		cs.FixDurationMs = time.Since(fixStart).Milliseconds()
		if err != nil {
			if pe, ok := pipelineerr.As(err); !ok || pe.Code != pipelineerr.PartialSuccess {
				result.Cycles = append(result.Cycles, cs)
				result.Success = false
				result.TerminationReason = failedReason("fix")
				return o.finish(sess, result)
			}
		}
		cs.FixesAttempted = fix.FixesAttempted
		cs.FixesApplied = fix.FixesApplied
		cs.FixesFailed = fix.FixesFailed

		// Validating is a second Scan call with the same options; its
		// result overwrites remaining_issues on the session (spec §4.6:
		// "trust the validation scan" on disagreement with the patcher).
		validateStart := time.Now()
		validateOpts := scanOpts
		validateOpts.Cycle = cycle
		validateLint, err := o.Scan.Scan(ctx, sess, validateOpts)
		cs.ValidateDurationMs = time.Since(validateStart).Milliseconds()
		if err != nil {
			result.Cycles = append(result.Cycles, cs)
			result.Success = false
			result.TerminationReason = failedReason("validate")
			return o.finish(sess, result)
		}
		validateSummary := report.SummarizeLint(validateLint)
		cs.ValidatedIssues = validateSummary.Total

		if fix.FixesAttempted == 0 && validateSummary.Total == lastRemaining {
			stalledStreak++
		} else {
			stalledStreak = 0
		}
		lastRemaining = validateSummary.Total
		if stalledStreak >= 2 {
			cs.Stalled = true
			result.Cycles = append(result.Cycles, cs)
			result.Success = true
			result.TerminationReason = BudgetExhausted
			orchLog.Printf("session %s stalled after %d cycles with no progress", sess.ID, cycle+1)
			return o.afterSuccess(ctx, sess, opts, result)
		}

		result.Cycles = append(result.Cycles, cs)

		if validateSummary.Total == 0 {
			result.Success = true
			result.TerminationReason = ZeroIssues
			return o.afterSuccess(ctx, sess, opts, result)
		}
	}

	result.Success = true
	result.TerminationReason = BudgetExhausted
	return o.afterSuccess(ctx, sess, opts, result)
}

func (o *Orchestrator) afterSuccess(ctx context.Context, sess *session.Session, opts Options, result *PipelineResult) (*PipelineResult, error) {
	if opts.AutoCommit && o.Cfg.CommitCommand != "" && result.TerminationReason == ZeroIssues {
		o.runCommit(ctx, sess, opts, result)
	}
	return o.finish(sess, result)
}

func (o *Orchestrator) finish(sess *session.Session, result *PipelineResult) (*PipelineResult, error) {
	snap, err := o.Store.Snapshot(sess.ID)
	if err != nil {
		return result, err
	}
	result.FinalMetrics = snap.Metrics
	return result, nil
}
