package cli

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/qualitykeeper/qualitykeeper/pkg/console"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/config"
	"github.com/spf13/cobra"
)

// NewMCPServerCommand creates the mcp-server command: a stdio JSON-RPC
// server exposing the six pipeline tools (spec §4.7). Unlike an HTTP/SSE
// transport, stdio needs no listening socket and no further non-goal
// (GUI/dashboard) surface, so it is the only transport offered here.
func NewMCPServerCommand() *cobra.Command {
	var (
		workspaceRoot string
		configPath    string
	)

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the qualitykeeper MCP server over stdio",
		Long: `Run an MCP (Model Context Protocol) stdio server exposing the
code-quality pipeline as six tools: version_keeper_scan, quality_patcher_fix,
pipeline_run_full, github_workflow_trigger, pipeline_status, and
mcp_compliance_check.

Configuration is read from .mcp-server-config.json in the workspace root (if
present) and hot-reloaded while the server runs; every flag below is a
fallback applied only where the config file and environment are silent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServer(workspaceRoot, configPath)
		},
	}

	cmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root (default: process cwd)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to .mcp-server-config.json (default: <workspace>/.mcp-server-config.json)")

	return cmd
}

func runMCPServer(workspaceRoot, configPath string) error {
	base := config.Params{WorkspaceRoot: workspaceRoot}
	srv, err := NewServer(configPath, base, GetVersion())
	if err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}
	defer func() { _ = srv.Watcher.Close() }()

	fmt.Fprintln(cmdStderr, console.FormatInfoMessage("qualitykeeper MCP server starting on stdio"))

	mcpServer := NewMCPServer(srv)
	return mcpServer.Run(context.Background(), &mcp.StdioTransport{})
}
