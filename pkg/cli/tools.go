package cli

import (
	"context"
	"time"

	jsonschemago "github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/ghtrigger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/orchestrator"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/report"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/stage"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

// NewMCPServer builds the MCP server advertising the six tools of spec
// §6.2, every handler backed directly by s's orchestrator/store rather than
// shelling back out to the qk binary.
func NewMCPServer(s *Server) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "qualitykeeper",
		Version: s.Version,
	}, nil)

	lintSchema, err := report.LintReportSchema()
	if err != nil {
		serverLog.Printf("failed to generate LintReport schema: %v", err)
	}
	fixSchema, err := report.FixReportSchema()
	if err != nil {
		serverLog.Printf("failed to generate FixReport schema: %v", err)
	}
	runFullSchema, err := GenerateOutputSchema[RunFullResults]()
	if err != nil {
		serverLog.Printf("failed to generate pipeline_run_full output schema: %v", err)
	}

	registerScan(srv, s, lintSchema)
	registerFix(srv, s, fixSchema)
	registerRunFull(srv, s, runFullSchema)
	registerGithubWorkflowTrigger(srv, s)
	registerPipelineStatus(srv, s)
	registerComplianceCheck(srv, s)

	return srv
}

func toolResult(env Envelope) (*mcp.CallToolResult, *Envelope, error) {
	text, err := marshalEnvelope(env)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, &env, nil
}

type scanArgs struct {
	SessionID     string `json:"session_id,omitempty" jsonschema:"existing or new session id; a new one is generated if omitted"`
	Comprehensive *bool  `json:"comprehensive,omitempty" jsonschema:"run the scanner's comprehensive mode (default true)"`
	OutputFormat  string `json:"output_format,omitempty" jsonschema:"report output format; only json is supported"`
}

func registerScan(srv *mcp.Server, s *Server, outSchema *jsonschemago.Schema) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:         "version_keeper_scan",
		Description:  "Run the configured scanner (version keeper) against a session's workspace and return the LintReport.",
		OutputSchema: outSchema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args scanArgs) (*mcp.CallToolResult, *Envelope, error) {
		start := time.Now()
		sess := s.resolveSession(args.SessionID)

		comprehensive := true
		if args.Comprehensive != nil {
			comprehensive = *args.Comprehensive
		}

		cfg := s.Watcher.Current()
		adapter := &stage.ScanAdapter{Runner: s.Runner, Store: s.Store, Cfg: cfg}
		lint, err := adapter.Scan(ctx, sess, stage.ScanOptions{Comprehensive: comprehensive})
		if err != nil {
			return toolResult(errorEnvelope("version_keeper_scan", sess.ID, start, err))
		}

		results := ScanResults{LintReport: lint, Session: s.snapshotOrZero(sess.ID)}
		return toolResult(successEnvelope("version_keeper_scan", sess.ID, start, results))
	})
}

type fixArgs struct {
	SessionID   string `json:"session_id,omitempty" jsonschema:"existing or new session id; a new one is generated if omitted"`
	MaxFixes    int    `json:"max_fixes,omitempty" jsonschema:"maximum number of fixes to attempt this call (default 10)"`
	AutoApply   *bool  `json:"auto_apply,omitempty" jsonschema:"apply fixes without further confirmation (default true)"`
	ClaudeAgent *bool  `json:"claude_agent,omitempty" jsonschema:"delegate fix generation to the configured agent (default true)"`
}

func registerFix(srv *mcp.Server, s *Server, outSchema *jsonschemago.Schema) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:         "quality_patcher_fix",
		Description:  "Run the configured patcher (quality patcher) against a session's latest lint report and return the FixReport.",
		OutputSchema: outSchema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fixArgs) (*mcp.CallToolResult, *Envelope, error) {
		start := time.Now()
		sess := s.resolveSession(args.SessionID)

		if sess.LastScanReport == "" {
			err := pipelineerr.New(pipelineerr.InvalidRequest, "no lint report for this session; call version_keeper_scan first")
			return toolResult(errorEnvelope("quality_patcher_fix", sess.ID, start, err))
		}

		autoApply, claudeAgent := true, true
		if args.AutoApply != nil {
			autoApply = *args.AutoApply
		}
		if args.ClaudeAgent != nil {
			claudeAgent = *args.ClaudeAgent
		}
		maxFixes := args.MaxFixes
		if maxFixes <= 0 {
			maxFixes = 10
		}

		cfg := s.Watcher.Current()
		adapter := &stage.FixAdapter{Runner: s.Runner, Store: s.Store, Cfg: cfg}
		fix, err := adapter.Fix(ctx, sess, stage.FixOptions{
			MaxFixes:       maxFixes,
			AutoApply:      autoApply,
			ClaudeAgent:    claudeAgent,
			LintReportPath: sess.LastScanReport,
		})
		if err != nil {
			if pe, ok := pipelineerr.As(err); ok && pe.Code == pipelineerr.PartialSuccess {
				results := FixResults{FixReport: fix, Session: s.snapshotOrZero(sess.ID), Warnings: []string{pe.Message}}
				return toolResult(successEnvelope("quality_patcher_fix", sess.ID, start, results))
			}
			return toolResult(errorEnvelope("quality_patcher_fix", sess.ID, start, err))
		}

		results := FixResults{FixReport: fix, Session: s.snapshotOrZero(sess.ID)}
		return toolResult(successEnvelope("quality_patcher_fix", sess.ID, start, results))
	})
}

type runFullArgs struct {
	SessionID        string `json:"session_id,omitempty" jsonschema:"existing or new session id; a new one is generated if omitted"`
	MaxCycles        *int   `json:"max_cycles,omitempty" jsonschema:"cycle budget (default 10; 0 is rejected)"`
	MaxFixesPerCycle int    `json:"max_fixes_per_cycle,omitempty" jsonschema:"maximum fixes attempted per cycle (default 10)"`
	BreakOnNoIssues  *bool  `json:"break_on_no_issues,omitempty" jsonschema:"stop as soon as a scan finds zero issues (default true)"`
	Comprehensive    *bool  `json:"comprehensive,omitempty" jsonschema:"run the scanner's comprehensive mode (default true)"`
	Profile          string `json:"profile,omitempty" jsonschema:"named scan/fix profile from .qualitykeeper.yaml; call-time options override it"`
}

func registerRunFull(srv *mcp.Server, s *Server, outSchema *jsonschemago.Schema) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:         "pipeline_run_full",
		Description:  "Drive a session through repeated scan/fix/validate cycles until zero issues remain or the cycle budget is exhausted.",
		OutputSchema: outSchema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args runFullArgs) (*mcp.CallToolResult, *Envelope, error) {
		start := time.Now()
		sess := s.resolveSession(args.SessionID)

		opts := orchestrator.Options{
			MaxCycles:        10,
			MaxFixesPerCycle: args.MaxFixesPerCycle,
			BreakOnNoIssues:  true,
			Comprehensive:    true,
		}
		if args.MaxCycles != nil {
			opts.MaxCycles = *args.MaxCycles
		}
		if args.BreakOnNoIssues != nil {
			opts.BreakOnNoIssues = *args.BreakOnNoIssues
		}
		if args.Comprehensive != nil {
			opts.Comprehensive = *args.Comprehensive
		}

		if args.Profile != "" {
			cfg := s.Watcher.Current()
			profile, perr := cfg.ResolveProfile(args.Profile)
			if perr != nil {
				return toolResult(errorEnvelope("pipeline_run_full", sess.ID, start, perr))
			}
			if args.Comprehensive == nil {
				opts.Comprehensive = profile.Comprehensive
			}
			opts.ExtraArgs = profile.ExtraArgs
			if profile.MaxFixes > 0 && args.MaxFixesPerCycle <= 0 {
				opts.MaxFixesPerCycle = profile.MaxFixes
			}
			opts.AutoApply = profile.AutoApply
		}

		orch := s.orchestratorFor()
		result, err := orch.RunFull(ctx, sess, opts)
		if err != nil {
			return toolResult(errorEnvelope("pipeline_run_full", sess.ID, start, err))
		}

		results := RunFullResults{PipelineResult: *result}
		if result.CommitWarning != "" {
			results.Warnings = append(results.Warnings, result.CommitWarning)
		}
		if !result.Success {
			return toolResult(errorEnvelope("pipeline_run_full", sess.ID, start, pipelineerr.New(pipelineerr.ToolError, string(result.TerminationReason))))
		}
		return toolResult(successEnvelope("pipeline_run_full", sess.ID, start, results))
	})
}

type triggerArgs struct {
	Workflow string            `json:"workflow" jsonschema:"required; workflow name or file to trigger"`
	Inputs   map[string]string `json:"inputs,omitempty" jsonschema:"workflow_dispatch input key/value pairs"`
	Ref      string            `json:"ref,omitempty" jsonschema:"git ref to run the workflow on"`
}

func registerGithubWorkflowTrigger(srv *mcp.Server, s *Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "github_workflow_trigger",
		Description: "Trigger a GitHub Actions workflow via the configured gh command. A thin passthrough; has no effect on session state.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args triggerArgs) (*mcp.CallToolResult, *Envelope, error) {
		start := time.Now()
		if args.Workflow == "" {
			err := pipelineerr.New(pipelineerr.InvalidRequest, "workflow is required")
			return toolResult(errorEnvelope("github_workflow_trigger", "", start, err))
		}

		cfg := s.Watcher.Current()
		res, err := ghtrigger.Trigger(ctx, s.Runner, cfg.TriggerCmd, cfg.WorkspaceRoot, time.Duration(cfg.TriggerTimeoutS)*time.Second, ghtrigger.Request{
			Workflow: args.Workflow,
			Ref:      args.Ref,
			Inputs:   args.Inputs,
		})
		if err != nil {
			return toolResult(errorEnvelope("github_workflow_trigger", "", start, err))
		}

		results := TriggerResults{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
		return toolResult(successEnvelope("github_workflow_trigger", "", start, results))
	})
}

type statusArgs struct {
	SessionID string `json:"session_id" jsonschema:"required; session id to report on"`
}

func registerPipelineStatus(srv *mcp.Server, s *Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "pipeline_status",
		Description: "Return a session's current snapshot without mutating it.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args statusArgs) (*mcp.CallToolResult, *Envelope, error) {
		start := time.Now()
		sess, err := s.requireSession(args.SessionID)
		if err != nil {
			return toolResult(errorEnvelope("pipeline_status", args.SessionID, start, err))
		}

		snap, err := s.Store.Snapshot(sess.ID)
		if err != nil {
			return toolResult(errorEnvelope("pipeline_status", sess.ID, start, err))
		}

		results := StatusResults{Session: snap}
		return toolResult(successEnvelope("pipeline_status", sess.ID, start, results))
	})
}

type complianceArgs struct{}

func registerComplianceCheck(srv *mcp.Server, s *Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "mcp_compliance_check",
		Description: "Static introspection of the server's MCP feature support; never mutates state.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args complianceArgs) (*mcp.CallToolResult, *Envelope, error) {
		start := time.Now()
		results := ComplianceResults{
			Tools: []string{
				"version_keeper_scan",
				"quality_patcher_fix",
				"pipeline_run_full",
				"github_workflow_trigger",
				"pipeline_status",
				"mcp_compliance_check",
			},
			Features: ComplianceFlags{
				StructuredErrors:   true,
				SessionConcurrency: true,
				JSONReports:        true,
			},
			Version: s.Version,
		}
		return toolResult(successEnvelope("mcp_compliance_check", "", start, results))
	})
}
