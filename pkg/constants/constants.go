// Package constants holds shared string and numeric defaults referenced
// across the pipeline packages and the CLI.
package constants

import "time"

// CLIName is the prefix used in user-facing output to refer to the CLI binary.
const CLIName = "qk"

// SessionDirName is the directory (relative to the workspace root) that holds
// all per-session state and report artifacts.
const SessionDirName = "pipeline-sessions"

// ReportsDirName is the directory (relative to a session directory) that
// holds lint/fix report JSON files.
const ReportsDirName = "reports"

// SessionSnapshotFile is the filename of the latest session snapshot,
// rewritten atomically after every stage transition.
const SessionSnapshotFile = "session.json"

// Default external tool command lines, resolved relative to the workspace
// root unless overridden by configuration.
const (
	DefaultScannerCmd = "scripts/version_keeper.py"
	DefaultPatcherCmd = "scripts/claude_quality_patcher.py"
)

// Default subprocess timeouts, per spec.
const (
	DefaultScanTimeout   = 600 * time.Second
	DefaultFixTimeout    = 1800 * time.Second
	DefaultCommitTimeout = 60 * time.Second
	DefaultKillGrace     = 5 * time.Second
)

// Default cycle budget and fix batch size for pipeline_run_full.
const (
	DefaultMaxCycles         = 10
	DefaultMaxFixesPerCycle  = 10
	DefaultMaxConcurrentSubs = 8
)

// DefaultOutputBufferCap bounds how much of a subprocess's stdout/stderr is
// retained in memory; output beyond this is truncated, retaining the tail.
const DefaultOutputBufferCap = 16 * 1024 * 1024 // 16 MiB

// DefaultProfilesFile is the default name of the YAML profile file consulted
// by the Path & Env Resolver.
const DefaultProfilesFile = ".qualitykeeper.yaml"

// DefaultServerConfigFile is the default MCP server configuration file.
const DefaultServerConfigFile = ".mcp-server-config.json"

// DefaultTriggerCmd is the base command line the github_workflow_trigger
// tool appends its workflow/ref/input arguments to.
const DefaultTriggerCmd = "gh workflow run"

// DefaultTriggerTimeout bounds how long a triggered gh command may run.
const DefaultTriggerTimeout = 30 * time.Second

