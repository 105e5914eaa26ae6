// Package config implements the Path & Env Resolver: it normalizes a
// workspace root, derives the per-session directory layout, resolves the
// scanner/patcher/interpreter command lines from configuration, and loads
// optional scan/fix profiles and MCP server config.
package config

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/qualitykeeper/qualitykeeper/pkg/constants"
	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

var configLog = logger.New("pipeline:config")

// Params are the caller-supplied inputs to Resolve.
type Params struct {
	WorkspaceRoot             string
	Interpreter               string
	ScannerCmd                string
	PatcherCmd                string
	ScanTimeoutS              int
	FixTimeoutS               int
	CommitCommand             string
	CommitTimeoutS            int
	TriggerCmd                string
	TriggerTimeoutS           int
	MaxConcurrentSubprocesses int
	ProfilesFile              string
}

// ResolvedConfig is the immutable result of Resolve: every path is absolute,
// every command line is a concrete, resolved string.
type ResolvedConfig struct {
	WorkspaceRoot             string
	SessionsRoot              string
	Interpreter               string
	ScannerCmd                string
	PatcherCmd                string
	ScanTimeoutS              int
	FixTimeoutS               int
	CommitCommand             string
	CommitTimeoutS            int
	TriggerCmd                string
	TriggerTimeoutS           int
	MaxConcurrentSubprocesses int
	Profiles                  map[string]Profile
}

// Profile is one named entry from the profiles file (.qualitykeeper.yaml):
// a bundle of scan/fix options a caller can select by name instead of
// passing every option explicitly.
type Profile struct {
	Comprehensive bool     `yaml:"comprehensive"`
	ExtraArgs     []string `yaml:"extra_args"`
	MaxFixes      int      `yaml:"max_fixes"`
	AutoApply     bool     `yaml:"auto_apply"`
}

// profilesDoc is the top-level shape of .qualitykeeper.yaml.
type profilesDoc struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Resolve validates the workspace and produces a ResolvedConfig. It is
// idempotent and pure with respect to the filesystem except for the mkdir
// of the sessions root.
func Resolve(p Params) (*ResolvedConfig, error) {
	configLog.Printf("Resolving config for workspace=%s", p.WorkspaceRoot)

	root := p.WorkspaceRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, pipelineerr.Newf(pipelineerr.InvalidWorkspace, "cannot determine process cwd: %v", err)
		}
		root = wd
	}
	if !filepath.IsAbs(root) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, pipelineerr.Newf(pipelineerr.InvalidWorkspace, "cannot resolve relative workspace root: %v", err)
		}
		root = filepath.Join(wd, root)
	}
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, pipelineerr.Newf(pipelineerr.InvalidWorkspace, "workspace root does not exist or is not a directory: %s", root)
	}

	scannerCmd := p.ScannerCmd
	if scannerCmd == "" {
		scannerCmd = constants.DefaultScannerCmd
	}
	if err := checkTool(root, scannerCmd); err != nil {
		return nil, err
	}

	patcherCmd := p.PatcherCmd
	if patcherCmd == "" {
		patcherCmd = constants.DefaultPatcherCmd
	}
	if err := checkTool(root, patcherCmd); err != nil {
		return nil, err
	}

	scanTimeout := p.ScanTimeoutS
	if scanTimeout <= 0 {
		scanTimeout = int(constants.DefaultScanTimeout.Seconds())
	}
	fixTimeout := p.FixTimeoutS
	if fixTimeout <= 0 {
		fixTimeout = int(constants.DefaultFixTimeout.Seconds())
	}
	commitTimeout := p.CommitTimeoutS
	if commitTimeout <= 0 {
		commitTimeout = int(constants.DefaultCommitTimeout.Seconds())
	}
	triggerCmd := p.TriggerCmd
	if triggerCmd == "" {
		triggerCmd = constants.DefaultTriggerCmd
	}
	triggerTimeout := p.TriggerTimeoutS
	if triggerTimeout <= 0 {
		triggerTimeout = int(constants.DefaultTriggerTimeout.Seconds())
	}
	maxConcurrent := p.MaxConcurrentSubprocesses
	if maxConcurrent <= 0 {
		maxConcurrent = constants.DefaultMaxConcurrentSubs
	}

	sessionsRoot := filepath.Join(root, constants.SessionDirName)
	if err := os.MkdirAll(sessionsRoot, 0o755); err != nil {
		return nil, pipelineerr.Newf(pipelineerr.InvalidWorkspace, "cannot create sessions directory %s: %v", sessionsRoot, err)
	}

	profilesFile := p.ProfilesFile
	if profilesFile == "" {
		profilesFile = constants.DefaultProfilesFile
	}
	profiles, err := loadProfiles(root, profilesFile)
	if err != nil {
		return nil, err
	}

	cfg := &ResolvedConfig{
		WorkspaceRoot:             root,
		SessionsRoot:              sessionsRoot,
		Interpreter:               p.Interpreter,
		ScannerCmd:                scannerCmd,
		PatcherCmd:                patcherCmd,
		ScanTimeoutS:              scanTimeout,
		FixTimeoutS:               fixTimeout,
		CommitCommand:             p.CommitCommand,
		CommitTimeoutS:            commitTimeout,
		TriggerCmd:                triggerCmd,
		TriggerTimeoutS:           triggerTimeout,
		MaxConcurrentSubprocesses: maxConcurrent,
		Profiles:                  profiles,
	}
	configLog.Printf("Resolved config: sessionsRoot=%s scanner=%s patcher=%s", sessionsRoot, scannerCmd, patcherCmd)
	return cfg, nil
}

// SessionDir returns the absolute session directory for sessionID.
func (c *ResolvedConfig) SessionDir(sessionID string) string {
	return filepath.Join(c.SessionsRoot, sessionID)
}

// ReportsDir returns the absolute reports directory for sessionID.
func (c *ResolvedConfig) ReportsDir(sessionID string) string {
	return filepath.Join(c.SessionDir(sessionID), constants.ReportsDirName)
}

// checkTool verifies the configured command resolves to an executable file,
// either absolute/relative to root or found on PATH.
func checkTool(root, cmd string) error {
	path := cmd
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, cmd)
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
		return nil
	}
	if _, err := exec.LookPath(cmd); err == nil {
		return nil
	}
	return pipelineerr.Newf(pipelineerr.MissingTool, "configured tool not found or not executable: %s", cmd)
}
