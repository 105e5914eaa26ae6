package cli

import (
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/config"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/orchestrator"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/session"
)

// directRuntime is the set of singletons a standalone qk subcommand (scan,
// fix, run, status) needs when driving the pipeline in-process, without an
// MCP server wrapped around it. Unlike Server, it resolves configuration
// once at invocation time rather than hot-reloading it, since a one-shot CLI
// command has no long-running process to reload into.
//
// Its session.Store is process-memory only, like the MCP server's: a
// session created by one qk invocation is invisible to the next. The
// on-disk report files under the session directory, not the in-memory
// Session, are the durable cross-process artifact (spec's "filesystem as
// IPC" design note). Every qk subcommand is its own invocation with a fresh
// store, so `qk status` reports NotFound for a session created by an
// earlier `qk scan`, `qk fix` or `qk run` process.
type directRuntime struct {
	cfg   *config.ResolvedConfig
	store *session.Store
	orch  *orchestrator.Orchestrator
}

func newDirectRuntime(workspaceRoot string) (*directRuntime, error) {
	cfg, err := config.Resolve(config.Params{WorkspaceRoot: workspaceRoot})
	if err != nil {
		return nil, err
	}
	store := session.NewStore()
	return &directRuntime{
		cfg:   cfg,
		store: store,
		orch:  orchestrator.New(cfg, store),
	}, nil
}

func (r *directRuntime) resolveSession(sessionID string) *session.Session {
	return r.store.GetOrCreate(sessionID, r.cfg.WorkspaceRoot, r.cfg.SessionDir(sessionID))
}
