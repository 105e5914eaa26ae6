package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/config"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/procexec"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/session"
	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeScanner writes a shell double implementing the scanner CLI
// contract from spec §6.1: it writes totalIssues worth of a fixed lint
// report shape to the --output-file argument and exits 0.
func writeFakeScanner(t *testing.T, dir string, totalIssues int) string {
	t.Helper()
	path := filepath.Join(dir, "fake_scanner.sh")
	details := "{}"
	byCat := "{}"
	if totalIssues > 0 {
		details = `{"style":{"issues":[{"file":"a.go","line":1,"type":"lint","message":"x","severity":"warning"}]}}`
		byCat = `{"style":1}`
	}
	script := `#!/bin/sh
out=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    --output-file) out="$2"; shift 2;;
    *) shift;;
  esac
done
cat > "$out" <<EOF
{"session_id":"s","timestamp":"2026-01-01T00:00:00Z","workspace":"/ws","summary":{"total_issues":` + itoa(totalIssues) + `,"by_category":` + byCat + `},"details":` + details + `}
EOF
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	if neg {
		digits = "-" + digits
	}
	return digits
}

func newTestConfig(t *testing.T, scannerScript string) *config.ResolvedConfig {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pipeline-sessions"), 0o755))
	return &config.ResolvedConfig{
		WorkspaceRoot: dir,
		SessionsRoot:  filepath.Join(dir, "pipeline-sessions"),
		ScannerCmd:    scannerScript,
		PatcherCmd:    scannerScript,
		ScanTimeoutS:  5,
		FixTimeoutS:   5,
	}
}

func TestScanAdapterZeroIssuesAdvancesCycle(t *testing.T) {
	dir := t.TempDir()
	scannerPath := writeFakeScanner(t, dir, 0)
	cfg := newTestConfig(t, scannerPath)

	store := session.NewStore()
	sess := store.GetOrCreate("sess1", cfg.WorkspaceRoot, cfg.SessionDir("sess1"))
	require.NoError(t, os.MkdirAll(sess.SessionDir, 0o755))

	adapter := &ScanAdapter{Runner: procexec.NewRunner(2), Store: store, Cfg: cfg}
	lint, err := adapter.Scan(context.Background(), sess, ScanOptions{Cycle: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, lint.Summary.TotalIssues)

	snap, err := store.Snapshot("sess1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CurrentCycle)
	assert.Equal(t, session.StageScanning, snap.LastStage)
}

func TestScanAdapterWithIssuesDoesNotAdvance(t *testing.T) {
	dir := t.TempDir()
	scannerPath := writeFakeScanner(t, dir, 3)
	cfg := newTestConfig(t, scannerPath)

	store := session.NewStore()
	sess := store.GetOrCreate("sess1", cfg.WorkspaceRoot, cfg.SessionDir("sess1"))
	require.NoError(t, os.MkdirAll(sess.SessionDir, 0o755))

	adapter := &ScanAdapter{Runner: procexec.NewRunner(2), Store: store, Cfg: cfg}
	_, err := adapter.Scan(context.Background(), sess, ScanOptions{Cycle: 0})
	require.NoError(t, err)

	snap, err := store.Snapshot("sess1")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CurrentCycle)
}

func TestScanAdapterMalformedOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad_scanner.sh")
	script := `#!/bin/sh
out=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    --output-file) out="$2"; shift 2;;
    *) shift;;
  esac
done
echo "not json" > "$out"
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	cfg := newTestConfig(t, path)

	store := session.NewStore()
	sess := store.GetOrCreate("sess1", cfg.WorkspaceRoot, cfg.SessionDir("sess1"))
	require.NoError(t, os.MkdirAll(sess.SessionDir, 0o755))

	adapter := &ScanAdapter{Runner: procexec.NewRunner(2), Store: store, Cfg: cfg}
	_, err := adapter.Scan(context.Background(), sess, ScanOptions{Cycle: 0})
	require.Error(t, err)
	pe, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.MalformedOutput, pe.Code)

	snap, err := store.Snapshot("sess1")
	require.NoError(t, err)
	assert.Equal(t, session.StageFailed, snap.LastStage)
}
