package main

import (
	"fmt"
	"os"

	"github.com/qualitykeeper/qualitykeeper/pkg/cli"
	"github.com/qualitykeeper/qualitykeeper/pkg/console"
	"github.com/spf13/cobra"
)

// version is set by GoReleaser at build time.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "qk",
	Short: "qualitykeeper: a code-quality scan/fix/validate/commit pipeline",
	Long: `qualitykeeper drives a configured scanner and patcher through
repeated scan, fix, and validate cycles until a workspace is clean or a
cycle budget is exhausted, and exposes the same pipeline as an MCP stdio
tool server for agent-driven callers.

Common tasks:
  qk scan                 # run the scanner once
  qk fix --lint-report F   # run the patcher against a lint report file
  qk run                  # drive a session to convergence
  qk status ID             # report a session's snapshot (same-process sessions only)
  qk mcp-server            # serve the pipeline as MCP tools over stdio`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n", console.FormatInfoMessage("qk version {{.Version}}")))
	rootCmd.Version = version

	cli.SetVersionInfo(version)

	rootCmd.AddCommand(cli.NewScanCommand())
	rootCmd.AddCommand(cli.NewFixCommand())
	rootCmd.AddCommand(cli.NewRunCommand())
	rootCmd.AddCommand(cli.NewStatusCommand())
	rootCmd.AddCommand(cli.NewMCPServerCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(cli.ExitCodeFor(err))
	}
}
