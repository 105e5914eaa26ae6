package cli

import (
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/orchestrator"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/report"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/session"
)

// ScanResults is the structured results payload for version_keeper_scan.
type ScanResults struct {
	LintReport report.LintReport `json:"lint_report"`
	Session    session.Snapshot  `json:"session"`
}

// FixResults is the structured results payload for quality_patcher_fix.
// Warnings is populated on a partial success (nonzero exit, valid report).
type FixResults struct {
	FixReport report.FixReport `json:"fix_report"`
	Session   session.Snapshot `json:"session"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// RunFullResults is the structured results payload for pipeline_run_full.
type RunFullResults struct {
	orchestrator.PipelineResult
	Warnings []string `json:"warnings,omitempty"`
}

// TriggerResults is the structured results payload for
// github_workflow_trigger: a thin passthrough of the command's outcome.
type TriggerResults struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// StatusResults is the structured results payload for pipeline_status.
type StatusResults struct {
	Session session.Snapshot `json:"session"`
}

// ComplianceResults is the structured results payload for
// mcp_compliance_check: a static description of the server's adherence to
// the MCP feature set it actually implements.
type ComplianceResults struct {
	Tools    []string        `json:"tools"`
	Features ComplianceFlags `json:"features"`
	Version  string          `json:"version"`
}

// ComplianceFlags enumerates the MCP feature set the server claims support
// for (spec §4.7's mcp_compliance_check contract).
type ComplianceFlags struct {
	StructuredErrors  bool `json:"structured_errors"`
	SessionConcurrency bool `json:"session_concurrency"`
	JSONReports       bool `json:"json_reports"`
}
