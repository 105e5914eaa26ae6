package cli

import (
	"context"
	"fmt"

	"github.com/qualitykeeper/qualitykeeper/pkg/console"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/stage"
	"github.com/spf13/cobra"
)

// NewScanCommand drives a single scan stage outside of the MCP server, for
// ad-hoc use from a shell or a script (spec §6.1's scanner contract,
// exercised directly rather than through a tool call).
func NewScanCommand() *cobra.Command {
	var (
		workspaceRoot string
		sessionID     string
		comprehensive bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the configured scanner against a session's workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDirectRuntime(workspaceRoot)
			if err != nil {
				return err
			}
			sess := rt.resolveSession(sessionID)

			spinner := console.NewSpinner("Scanning " + sess.ID)
			spinner.Start()
			adapter := &stage.ScanAdapter{Runner: rt.orch.Runner, Store: rt.store, Cfg: rt.cfg}
			lint, err := adapter.Scan(context.Background(), sess, stage.ScanOptions{Comprehensive: comprehensive})
			if err != nil {
				spinner.StopWithMessage(console.FormatErrorMessage(err.Error()))
				return err
			}
			spinner.StopWithMessage(console.FormatSuccessMessage(fmt.Sprintf("scan complete: %d issue(s)", lint.Summary.TotalIssues)))

			return console.OutputStructOrJSON(lint, asJSON)
		},
	}

	cmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root (default: process cwd)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Existing or new session id (generated if omitted)")
	cmd.Flags().BoolVar(&comprehensive, "comprehensive", true, "Run the scanner's comprehensive mode")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw LintReport as JSON")

	return cmd
}
