// Package cli implements the MCP Tool Server (C7): the stdio JSON-RPC
// front door onto the orchestrator, stage adapters, and session store. It
// owns the pipeline in-process — unlike the teacher's mcp-server, which
// wraps a separate CLI binary as a subprocess to keep secrets at arm's
// length, this server needs no such boundary because it never handles
// caller secrets itself (only a resolved GitHub token via go-gh, scoped to
// the github_workflow_trigger tool).
package cli

import (
	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/config"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/orchestrator"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/procexec"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/session"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

var serverLog = logger.New("cli:server")

// Server bundles the process-wide singletons every tool handler shares: the
// session store, the config watcher (hot-reloaded per spec §4.1), and a
// single Subprocess Runner so max_concurrent_subprocesses is a real ceiling
// across every session and every tool call, not per-call.
type Server struct {
	Store   *session.Store
	Watcher *config.Watcher
	Runner  *procexec.Runner
	Version string
}

// NewServer resolves the initial configuration from base and starts the
// hot-reload watcher, constructing the shared Runner from that initial
// config's max_concurrent_subprocesses. A later config reload can change
// other fields for the next tool call but does not resize the shared
// Runner's pool, since sourcegraph/conc's pool has no resize operation —
// the ceiling is fixed for the process lifetime.
func NewServer(configPath string, base config.Params, version string) (*Server, error) {
	watcher, err := config.NewWatcher(configPath, base)
	if err != nil {
		return nil, err
	}
	cfg := watcher.Current()
	return &Server{
		Store:   session.NewStore(),
		Watcher: watcher,
		Runner:  procexec.NewRunner(cfg.MaxConcurrentSubprocesses),
		Version: version,
	}, nil
}

// orchestratorFor builds an Orchestrator against the server's current
// (possibly just-reloaded) config, sharing Store and Runner.
func (s *Server) orchestratorFor() *orchestrator.Orchestrator {
	return orchestrator.NewWithRunner(s.Watcher.Current(), s.Store, s.Runner)
}

// resolveSession returns the named session, creating it against the
// current config if sessionID is new or empty.
func (s *Server) resolveSession(sessionID string) *session.Session {
	cfg := s.Watcher.Current()
	return s.Store.GetOrCreate(sessionID, cfg.WorkspaceRoot, cfg.SessionDir(sessionID))
}

// snapshotOrZero returns the session's snapshot, swallowing a NotFound that
// should be unreachable at this call site (the session was just created).
func (s *Server) snapshotOrZero(sessionID string) session.Snapshot {
	snap, err := s.Store.Snapshot(sessionID)
	if err != nil {
		serverLog.Printf("unexpected missing session %s while snapshotting: %v", sessionID, err)
	}
	return snap
}

// requireSession fetches an existing session or an MCP NotFound error —
// used by pipeline_status, which must never create a session as a
// side effect (spec §8: "pipeline_status is idempotent and never mutates
// the session").
func (s *Server) requireSession(sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, pipelineerr.New(pipelineerr.InvalidRequest, "session_id is required")
	}
	return s.Store.Get(sessionID)
}

