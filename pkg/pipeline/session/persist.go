package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/qualitykeeper/qualitykeeper/pkg/constants"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
)

// snapshotJSON is the on-disk shape of session.json; a plain struct (not
// Snapshot itself) so the JSON field names are stable independent of Go
// field renames.
type snapshotJSON struct {
	SessionID      string        `json:"session_id"`
	CreatedAt      string        `json:"created_at"`
	WorkspaceRoot  string        `json:"workspace_root"`
	SessionDir     string        `json:"session_dir"`
	CurrentCycle   int           `json:"current_cycle"`
	LastStage      StageKind     `json:"last_stage"`
	Metrics        Metrics       `json:"metrics"`
	StageRecords   []StageRecord `json:"stage_records"`
	LastScanReport string        `json:"last_scan_report,omitempty"`
	LastFixReport  string        `json:"last_fix_report,omitempty"`
}

// PersistSnapshot atomically rewrites <sessionDir>/session.json from the
// current state of sessionID. Called after every EndStage so a reader never
// observes a partial file.
func (s *Store) PersistSnapshot(sessionID string) error {
	snap, err := s.Snapshot(sessionID)
	if err != nil {
		return err
	}

	doc := snapshotJSON{
		SessionID:      snap.ID,
		CreatedAt:      snap.CreatedAt.Format(rfc3339),
		WorkspaceRoot:  snap.WorkspaceRoot,
		SessionDir:     snap.SessionDir,
		CurrentCycle:   snap.CurrentCycle,
		LastStage:      snap.LastStage,
		Metrics:        snap.Metrics,
		StageRecords:   snap.StageRecords,
		LastScanReport: snap.LastScanReport,
		LastFixReport:  snap.LastFixReport,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to marshal session snapshot: %v", err)
	}

	path := filepath.Join(snap.SessionDir, constants.SessionSnapshotFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to write session snapshot: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return pipelineerr.Newf(pipelineerr.Internal, "failed to rename session snapshot into place: %v", err)
	}
	return nil
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"
