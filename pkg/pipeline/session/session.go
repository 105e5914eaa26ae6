// Package session implements the Session Store: a process-wide, in-memory
// map of active sessions. Each session owns metrics, a monotonically
// increasing cycle counter, stage history, and paths to its JSON artifacts.
// Stage adapters and the orchestrator mutate sessions only through the
// operations here, never directly.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/logger"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

var sessionLog = logger.New("pipeline:session")

// StageKind enumerates the stage/last_stage values from the data model.
type StageKind string

const (
	StageNone       StageKind = "none"
	StageScanning   StageKind = "scanning"
	StageFixing     StageKind = "fixing"
	StageValidating StageKind = "validating"
	StageCommitting StageKind = "committing"
	StageDone       StageKind = "done"
	StageFailed     StageKind = "failed"
)

// Metrics is the derived snapshot described in spec §3.
type Metrics struct {
	TotalIssues     int
	FixesApplied    int
	FixesFailed     int
	RemainingIssues int
	CyclesExecuted  int
	WallTimeMillis  int64
}

// StageRecord is an immutable record of one stage execution, appended once
// and never mutated afterward.
type StageRecord struct {
	Kind            StageKind
	StartedAt       time.Time
	EndedAt         time.Time
	ExitCode        int
	ReportPath      string
	IssuesFound     int
	FixesApplied    int
	FixesFailed     int
	RemainingIssues int
	TimedOut        bool
	Error           string
	CommitCommand   string
	CommitExitCode  int
}

// Session is the full mutable state the store owns for one session id.
type Session struct {
	ID               string
	CreatedAt        time.Time
	WorkspaceRoot    string
	SessionDir       string
	CurrentCycle     int
	LastStage        StageKind
	Metrics          Metrics
	StageRecords     []StageRecord
	LastScanReport   string
	LastFixReport    string

	running bool
}

// Snapshot is a read-only copy of a Session suitable for serialization
// (MCP responses, session.json on disk). It never aliases the Session's
// internal slices/maps.
type Snapshot struct {
	ID             string
	CreatedAt      time.Time
	WorkspaceRoot  string
	SessionDir     string
	CurrentCycle   int
	LastStage      StageKind
	Metrics        Metrics
	StageRecords   []StageRecord
	LastScanReport string
	LastFixReport  string
}

// Handle is returned by BeginStage and consumed by EndStage; it identifies
// which session and which in-flight stage an EndStage call closes out.
type Handle struct {
	sessionID string
	kind      StageKind
	startedAt time.Time
}

// Store is the process-wide singleton session map. A single mutex guards the
// map and every session's fields; it is held only for the bookkeeping of each
// operation, never while a stage runs, so different sessions' stages proceed
// independently while the per-session running flag still serializes stage
// transitions within a session.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the existing session for sessionID, or creates one
// with cycle=0, last_stage=none if it doesn't already exist. An empty
// sessionID generates one as "pipeline_<unix_nanos>".
func (s *Store) GetOrCreate(sessionID, workspaceRoot, sessionDir string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = fmt.Sprintf("pipeline_%d", time.Now().UnixNano())
	}
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	sess := &Session{
		ID:            sessionID,
		CreatedAt:     time.Now().UTC(),
		WorkspaceRoot: workspaceRoot,
		SessionDir:    sessionDir,
		LastStage:     StageNone,
	}
	s.sessions[sessionID] = sess
	sessionLog.Printf("Created session %s in %s", sessionID, sessionDir)
	return sess
}

// Get returns the session for sessionID, or NotFound.
func (s *Store) Get(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pipelineerr.Newf(pipelineerr.NotFound, "unknown session: %s", sessionID)
	}
	return sess, nil
}

// BeginStage marks kind as running for sessionID, returning Conflict if a
// stage is already running for that session.
func (s *Store) BeginStage(sessionID string, kind StageKind) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Handle{}, pipelineerr.Newf(pipelineerr.NotFound, "unknown session: %s", sessionID)
	}
	if sess.running {
		return Handle{}, pipelineerr.Newf(pipelineerr.Conflict, "a stage is already running for session %s", sessionID)
	}
	sess.running = true
	sessionLog.Printf("Session %s began stage %s", sessionID, kind)
	return Handle{sessionID: sessionID, kind: kind, startedAt: time.Now().UTC()}, nil
}

// Outcome is the caller-supplied result of a completed stage, passed to
// EndStage to append a StageRecord and update cumulative metrics.
type Outcome struct {
	ExitCode        int
	ReportPath      string
	IssuesFound     int
	FixesApplied    int
	FixesFailed     int
	RemainingIssues int
	TimedOut        bool
	Err             error
	CommitCommand   string
	CommitExitCode  int
	// AdvanceCycle, when true, increments CurrentCycle (a cycle-terminal
	// stage per spec §4.3: a validate that loops back to scan, a fix with
	// nothing left, or a scan with zero issues).
	AdvanceCycle bool
	// Failed marks the session's LastStage as failed instead of deriving
	// it from kind.
	Failed bool
	// ReportKind selects which "current" report path this outcome updates.
	ReportKind ReportKind
}

// ReportKind distinguishes which of a session's "current" artifact paths an
// outcome updates.
type ReportKind int

const (
	ReportNone ReportKind = iota
	ReportScan
	ReportFix
)

// EndStage closes out handle, appending an immutable StageRecord and
// updating the session's cumulative metrics and last_stage, then rewrites
// the session's session.json (a write failure there is ignored).
func (s *Store) EndStage(h Handle, o Outcome) error {
	// Registered before the lock so it runs after the deferred unlock.
	defer func() { _ = s.PersistSnapshot(h.sessionID) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[h.sessionID]
	if !ok {
		return pipelineerr.Newf(pipelineerr.NotFound, "unknown session: %s", h.sessionID)
	}

	rec := StageRecord{
		Kind:            h.kind,
		StartedAt:       h.startedAt,
		EndedAt:         time.Now().UTC(),
		ExitCode:        o.ExitCode,
		ReportPath:      o.ReportPath,
		IssuesFound:     o.IssuesFound,
		FixesApplied:    o.FixesApplied,
		FixesFailed:     o.FixesFailed,
		RemainingIssues: o.RemainingIssues,
		TimedOut:        o.TimedOut,
		CommitCommand:   o.CommitCommand,
		CommitExitCode:  o.CommitExitCode,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	sess.StageRecords = append(sess.StageRecords, rec)

	sess.Metrics.FixesApplied += o.FixesApplied
	sess.Metrics.FixesFailed += o.FixesFailed
	if o.IssuesFound > 0 || h.kind == StageScanning {
		sess.Metrics.TotalIssues = o.IssuesFound
	}
	sess.Metrics.RemainingIssues = o.RemainingIssues
	sess.Metrics.WallTimeMillis += rec.EndedAt.Sub(rec.StartedAt).Milliseconds()

	switch o.ReportKind {
	case ReportScan:
		sess.LastScanReport = o.ReportPath
	case ReportFix:
		sess.LastFixReport = o.ReportPath
	}

	if o.Failed {
		sess.LastStage = StageFailed
	} else {
		sess.LastStage = h.kind
	}

	if o.AdvanceCycle {
		sess.CurrentCycle++
		sess.Metrics.CyclesExecuted = sess.CurrentCycle
	}

	sess.running = false
	sessionLog.Printf("Session %s ended stage %s exit=%d failed=%v", h.sessionID, h.kind, o.ExitCode, o.Failed)
	return nil
}

// Snapshot returns a read-only copy of the session, safe for serialization.
func (s *Store) Snapshot(sessionID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Snapshot{}, pipelineerr.Newf(pipelineerr.NotFound, "unknown session: %s", sessionID)
	}
	records := make([]StageRecord, len(sess.StageRecords))
	copy(records, sess.StageRecords)

	return Snapshot{
		ID:             sess.ID,
		CreatedAt:      sess.CreatedAt,
		WorkspaceRoot:  sess.WorkspaceRoot,
		SessionDir:     sess.SessionDir,
		CurrentCycle:   sess.CurrentCycle,
		LastStage:      sess.LastStage,
		Metrics:        sess.Metrics,
		StageRecords:   records,
		LastScanReport: sess.LastScanReport,
		LastFixReport:  sess.LastFixReport,
	}, nil
}
