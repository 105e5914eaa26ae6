package cli

import (
	"context"
	"fmt"

	"github.com/qualitykeeper/qualitykeeper/pkg/console"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/stage"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/spf13/cobra"
)

// NewFixCommand drives a single fix stage against a session's last scan
// report, outside of the MCP server.
func NewFixCommand() *cobra.Command {
	var (
		workspaceRoot  string
		sessionID      string
		maxFixes       int
		autoApply      bool
		claudeAgent    bool
		lintReportPath string
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Run the configured patcher against a session's latest lint report",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDirectRuntime(workspaceRoot)
			if err != nil {
				return err
			}
			sess := rt.resolveSession(sessionID)

			reportPath := lintReportPath
			if reportPath == "" {
				reportPath = sess.LastScanReport
			}
			if reportPath == "" {
				return pipelineerr.New(pipelineerr.InvalidRequest, "no lint report for this session; run scan first or pass --lint-report")
			}

			spinner := console.NewSpinner("Fixing " + sess.ID)
			spinner.Start()
			adapter := &stage.FixAdapter{Runner: rt.orch.Runner, Store: rt.store, Cfg: rt.cfg}
			fix, err := adapter.Fix(context.Background(), sess, stage.FixOptions{
				MaxFixes:       maxFixes,
				AutoApply:      autoApply,
				ClaudeAgent:    claudeAgent,
				LintReportPath: reportPath,
			})
			if err != nil {
				if pe, ok := pipelineerr.As(err); ok && pe.Code == pipelineerr.PartialSuccess {
					spinner.StopWithMessage(console.FormatWarningMessage(pe.Message))
					return console.OutputStructOrJSON(fix, asJSON)
				}
				spinner.StopWithMessage(console.FormatErrorMessage(err.Error()))
				return err
			}
			spinner.StopWithMessage(console.FormatSuccessMessage(fmt.Sprintf("fix complete: %d/%d applied", fix.FixesApplied, fix.FixesAttempted)))

			return console.OutputStructOrJSON(fix, asJSON)
		},
	}

	cmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root (default: process cwd)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Existing or new session id (generated if omitted)")
	cmd.Flags().IntVar(&maxFixes, "max-fixes", 10, "Maximum number of fixes to attempt")
	cmd.Flags().BoolVar(&autoApply, "auto-apply", true, "Apply fixes without further confirmation")
	cmd.Flags().BoolVar(&claudeAgent, "claude-agent", true, "Delegate fix generation to the configured agent")
	cmd.Flags().StringVar(&lintReportPath, "lint-report", "", "Lint report path (default: the session's last scan report)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw FixReport as JSON")

	return cmd
}
