package cli

import (
	"github.com/qualitykeeper/qualitykeeper/pkg/console"
	"github.com/spf13/cobra"
)

// NewStatusCommand reports a session's current snapshot without mutating
// it — the CLI equivalent of the pipeline_status tool.
func NewStatusCommand() *cobra.Command {
	var (
		workspaceRoot string
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Report a session's current snapshot without mutating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			rt, err := newDirectRuntime(workspaceRoot)
			if err != nil {
				return err
			}
			if _, err := rt.store.Get(sessionID); err != nil {
				return err
			}
			snap, err := rt.store.Snapshot(sessionID)
			if err != nil {
				return err
			}
			return console.OutputStructOrJSON(snap, asJSON)
		},
	}

	cmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root (default: process cwd)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw Snapshot as JSON")

	return cmd
}
