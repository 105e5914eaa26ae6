package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/qualitykeeper/qualitykeeper/pkg/constants"
	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
)

var serverConfigLog = logger.New("pipeline:config:serverconfig")

// ServerConfigFile is the JSON shape of .mcp-server-config.json (spec §6.4).
type ServerConfigFile struct {
	WorkspaceRoot             string `json:"workspace_root,omitempty"`
	Interpreter               string `json:"interpreter,omitempty"`
	ScannerCmd                string `json:"scanner_cmd,omitempty"`
	PatcherCmd                string `json:"patcher_cmd,omitempty"`
	ScanTimeoutS              int    `json:"scan_timeout_s,omitempty"`
	FixTimeoutS               int    `json:"fix_timeout_s,omitempty"`
	CommitCommand             string `json:"commit_command,omitempty"`
	CommitTimeoutS            int    `json:"commit_timeout_s,omitempty"`
	TriggerCmd                string `json:"trigger_cmd,omitempty"`
	TriggerTimeoutS           int    `json:"trigger_timeout_s,omitempty"`
	MaxConcurrentSubprocesses int    `json:"max_concurrent_subprocesses,omitempty"`
	ProfilesFile              string `json:"profiles_file,omitempty"`
}

// ReadServerConfigFile reads and parses the server config file. A missing
// file returns a zero-value ServerConfigFile (all fields take Resolve's
// defaults), not an error.
func ReadServerConfigFile(path string) (ServerConfigFile, error) {
	var scf ServerConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return scf, nil
		}
		return scf, err
	}
	if err := json.Unmarshal(data, &scf); err != nil {
		return scf, err
	}
	return scf, nil
}

func (scf ServerConfigFile) toParams() Params {
	return Params{
		WorkspaceRoot:             scf.WorkspaceRoot,
		Interpreter:               scf.Interpreter,
		ScannerCmd:                scf.ScannerCmd,
		PatcherCmd:                scf.PatcherCmd,
		ScanTimeoutS:              scf.ScanTimeoutS,
		FixTimeoutS:               scf.FixTimeoutS,
		CommitCommand:             scf.CommitCommand,
		CommitTimeoutS:            scf.CommitTimeoutS,
		TriggerCmd:                scf.TriggerCmd,
		TriggerTimeoutS:           scf.TriggerTimeoutS,
		MaxConcurrentSubprocesses: scf.MaxConcurrentSubprocesses,
		ProfilesFile:              scf.ProfilesFile,
	}
}

// Watcher holds the live ResolvedConfig for a running MCP server and
// re-resolves it whenever the on-disk server config file changes. Tool
// handlers call Current() once at the start of a call; an in-flight stage
// keeps whatever config it already captured (the suspension-point model —
// a reload only affects the *next* tool call).
type Watcher struct {
	path    string
	current atomic.Pointer[ResolvedConfig]
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher resolves the initial config from path (if present, merged under
// base Params — file values win over base, since base carries only
// process-level defaults like workspace root) and starts watching it for
// changes.
func NewWatcher(path string, base Params) (*Watcher, error) {
	if path == "" {
		path = filepath.Join(base.WorkspaceRoot, constants.DefaultServerConfigFile)
	}
	w := &Watcher{path: path, done: make(chan struct{})}
	if err := w.reload(base); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Hot-reload is a convenience; a platform without inotify-equivalent
		// support still runs with the config resolved once at startup.
		serverConfigLog.Printf("fsnotify unavailable, hot-reload disabled: %v", err)
		return w, nil
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		serverConfigLog.Printf("cannot watch %s, hot-reload disabled: %v", dir, err)
		_ = fsw.Close()
		return w, nil
	}
	w.fsw = fsw
	go w.watch(base)
	return w, nil
}

func (w *Watcher) watch(base Params) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(base); err != nil {
				serverConfigLog.Printf("reload of %s failed, keeping previous config: %v", w.path, err)
			} else {
				serverConfigLog.Printf("reloaded config from %s", w.path)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			serverConfigLog.Printf("watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload(base Params) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	scf, err := ReadServerConfigFile(w.path)
	if err != nil {
		return err
	}
	merged := base
	p := scf.toParams()
	if p.WorkspaceRoot != "" {
		merged.WorkspaceRoot = p.WorkspaceRoot
	}
	if p.Interpreter != "" {
		merged.Interpreter = p.Interpreter
	}
	if p.ScannerCmd != "" {
		merged.ScannerCmd = p.ScannerCmd
	}
	if p.PatcherCmd != "" {
		merged.PatcherCmd = p.PatcherCmd
	}
	if p.ScanTimeoutS != 0 {
		merged.ScanTimeoutS = p.ScanTimeoutS
	}
	if p.FixTimeoutS != 0 {
		merged.FixTimeoutS = p.FixTimeoutS
	}
	if p.CommitCommand != "" {
		merged.CommitCommand = p.CommitCommand
	}
	if p.CommitTimeoutS != 0 {
		merged.CommitTimeoutS = p.CommitTimeoutS
	}
	if p.TriggerCmd != "" {
		merged.TriggerCmd = p.TriggerCmd
	}
	if p.TriggerTimeoutS != 0 {
		merged.TriggerTimeoutS = p.TriggerTimeoutS
	}
	if p.MaxConcurrentSubprocesses != 0 {
		merged.MaxConcurrentSubprocesses = p.MaxConcurrentSubprocesses
	}
	if p.ProfilesFile != "" {
		merged.ProfilesFile = p.ProfilesFile
	}

	cfg, err := Resolve(merged)
	if err != nil {
		return err
	}
	w.current.Store(cfg)
	return nil
}

// Current returns the most recently resolved config.
func (w *Watcher) Current() *ResolvedConfig {
	return w.current.Load()
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	close(w.done)
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
