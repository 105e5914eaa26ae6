package cli

import (
	"context"
	"fmt"

	"github.com/qualitykeeper/qualitykeeper/pkg/console"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/orchestrator"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/spf13/cobra"
)

// NewRunCommand drives a session through repeated scan/fix/validate cycles
// until zero issues remain or the cycle budget is exhausted (spec §4.6),
// outside of the MCP server.
func NewRunCommand() *cobra.Command {
	var (
		workspaceRoot    string
		sessionID        string
		maxCycles        int
		maxFixesPerCycle int
		breakOnNoIssues  bool
		comprehensive    bool
		profile          string
		asJSON           bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a session through scan/fix/validate cycles to convergence or budget exhaustion",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDirectRuntime(workspaceRoot)
			if err != nil {
				return err
			}
			sess := rt.resolveSession(sessionID)

			opts := orchestrator.Options{
				MaxCycles:        maxCycles,
				MaxFixesPerCycle: maxFixesPerCycle,
				BreakOnNoIssues:  breakOnNoIssues,
				Comprehensive:    comprehensive,
			}
			if profile != "" {
				prof, perr := rt.cfg.ResolveProfile(profile)
				if perr != nil {
					return perr
				}
				if !cmd.Flags().Changed("comprehensive") {
					opts.Comprehensive = prof.Comprehensive
				}
				opts.ExtraArgs = prof.ExtraArgs
				if prof.MaxFixes > 0 && !cmd.Flags().Changed("max-fixes-per-cycle") {
					opts.MaxFixesPerCycle = prof.MaxFixes
				}
				opts.AutoApply = prof.AutoApply
			}

			spinner := console.NewSpinner("Running pipeline for " + sess.ID)
			spinner.Start()
			result, err := rt.orch.RunFull(context.Background(), sess, opts)
			if err != nil {
				spinner.StopWithMessage(console.FormatErrorMessage(err.Error()))
				return err
			}
			if !result.Success {
				spinner.StopWithMessage(console.FormatErrorMessage(string(result.TerminationReason)))
				return pipelineerr.New(pipelineerr.ToolError, string(result.TerminationReason))
			}
			spinner.StopWithMessage(console.FormatSuccessMessage(fmt.Sprintf("pipeline converged after %d cycle(s): %s", len(result.Cycles), result.TerminationReason)))
			if result.CommitWarning != "" {
				fmt.Fprintln(cmdStderr, console.FormatWarningMessage(result.CommitWarning))
			}

			return console.OutputStructOrJSON(result, asJSON)
		},
	}

	cmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root (default: process cwd)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Existing or new session id (generated if omitted)")
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 10, "Cycle budget (0 is rejected; a negative value selects 10)")
	cmd.Flags().IntVar(&maxFixesPerCycle, "max-fixes-per-cycle", 10, "Maximum fixes attempted per cycle")
	cmd.Flags().BoolVar(&breakOnNoIssues, "break-on-no-issues", true, "Stop as soon as a scan finds zero issues")
	cmd.Flags().BoolVar(&comprehensive, "comprehensive", true, "Run the scanner's comprehensive mode")
	cmd.Flags().StringVar(&profile, "profile", "", "Named scan/fix profile from .qualitykeeper.yaml")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw PipelineResult as JSON")

	return cmd
}
