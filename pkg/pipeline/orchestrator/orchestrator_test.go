package orchestrator

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

// writeCountingScanner writes a scanner double whose reported issue count
// decreases by one on every invocation (tracked via a counter file in dir),
// floored at zero — enough to drive a multi-cycle convergence.
func writeCountingScanner(t *testing.T, dir string, start int) string {
	t.Helper()
	path := filepath.Join(dir, "counting_scanner.sh")
	counter := filepath.Join(dir, "scan_count")
	script := `#!/bin/sh
out=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    --output-file) out="$2"; shift 2;;
    *) shift;;
  esac
done
n=0
if [ -f "` + counter + `" ]; then n=$(cat "` + counter + `"); fi
n=$((n+1))
echo "$n" > "` + counter + `"
remaining=$((` + itoa(start) + ` - n + 1))
if [ "$remaining" -lt 0 ]; then remaining=0; fi
if [ "$remaining" -gt 0 ]; then
  details="{\"style\":{\"issues\":[{\"file\":\"a.go\",\"line\":1,\"type\":\"lint\",\"message\":\"x\",\"severity\":\"warning\"}]}}"
else
  details="{}"
fi
cat > "$out" <<EOF
{"session_id":"s","timestamp":"2026-01-01T00:00:00Z","workspace":"/ws","summary":{"total_issues":$remaining,"by_category":{}},"details":$details}
EOF
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// writeNoopPatcher writes a patcher double that always reports zero fixes
// attempted — used to exercise the stalled/budget-exhausted path.
func writeNoopPatcher(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "noop_patcher.sh")
	script := `#!/bin/sh
out=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    --output-file) out="$2"; shift 2;;
    *) shift;;
  esac
done
cat > "$out" <<EOF
{"session_id":"s","timestamp":"2026-01-01T00:00:00Z","input_lint_report_path":"x","fixes_attempted":0,"fixes_applied":0,"fixes_failed":0,"remaining_issues":0}
EOF
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// writeApplyingPatcher writes a patcher double that reports one fix applied
// every call, enough to keep a convergence scenario progressing.
func writeApplyingPatcher(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "applying_patcher.sh")
	script := `#!/bin/sh
out=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    --output-file) out="$2"; shift 2;;
    *) shift;;
  esac
done
cat > "$out" <<EOF
{"session_id":"s","timestamp":"2026-01-01T00:00:00Z","input_lint_report_path":"x","fixes_attempted":1,"fixes_applied":1,"fixes_failed":0,"remaining_issues":0}
EOF
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// writeConstantScanner writes a scanner double that reports the same issue
// count on every invocation — used to exercise the stalled/no-progress path,
// where the validation scan must keep finding the same remaining count.
func writeConstantScanner(t *testing.T, dir string, count int) string {
	t.Helper()
	path := filepath.Join(dir, "constant_scanner.sh")
	details := "{}"
	if count > 0 {
		details = `{"style":{"issues":[{"file":"a.go","line":1,"type":"lint","message":"x","severity":"warning"}]}}`
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
{"session_id":"s","timestamp":"2026-01-01T00:00:00Z","workspace":"/ws","summary":{"total_issues":` + itoa(count) + `,"by_category":{}},"details":` + details + `}
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
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func newTestOrchestrator(t *testing.T, scannerCmd, patcherCmd string) (*Orchestrator, *session.Store, *session.Session) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pipeline-sessions"), 0o755))
	cfg := &config.ResolvedConfig{
		WorkspaceRoot: dir,
		SessionsRoot:  filepath.Join(dir, "pipeline-sessions"),
		ScannerCmd:    scannerCmd,
		PatcherCmd:    patcherCmd,
		ScanTimeoutS:  5,
		FixTimeoutS:   5,
	}
	store := session.NewStore()
	sess := store.GetOrCreate("sess1", cfg.WorkspaceRoot, cfg.SessionDir("sess1"))
	require.NoError(t, os.MkdirAll(sess.SessionDir, 0o755))
	runner := procexec.NewRunner(2)
	return NewWithRunner(cfg, store, runner), store, sess
}

func TestRunFullConvergesAcrossTwoCycles(t *testing.T) {
	dir := t.TempDir()
	scanner := writeCountingScanner(t, dir, 2)
	patcher := writeApplyingPatcher(t, dir)
	orch, _, sess := newTestOrchestrator(t, scanner, patcher)

	result, err := orch.RunFull(context.Background(), sess, Options{
		MaxCycles:        5,
		MaxFixesPerCycle: 10,
		BreakOnNoIssues:  true,
		AutoApply:        true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ZeroIssues, result.TerminationReason)
	assert.Len(t, result.Cycles, 2)
}

func TestRunFullStallsToBudgetExhausted(t *testing.T) {
	dir := t.TempDir()
	scanner := writeConstantScanner(t, dir, 5) // never changes, triggering no-progress detection
	patcher := writeNoopPatcher(t, dir)
	orch, _, sess := newTestOrchestrator(t, scanner, patcher)

	result, err := orch.RunFull(context.Background(), sess, Options{
		MaxCycles:        10,
		MaxFixesPerCycle: 10,
		BreakOnNoIssues:  true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, BudgetExhausted, result.TerminationReason)
	assert.True(t, result.Cycles[len(result.Cycles)-1].Stalled)
}

func TestRunFullZeroMaxCyclesIsInvalidRequest(t *testing.T) {
	dir := t.TempDir()
	scanner := writeCountingScanner(t, dir, 0)
	patcher := writeNoopPatcher(t, dir)
	orch, _, sess := newTestOrchestrator(t, scanner, patcher)

	_, err := orch.RunFull(context.Background(), sess, Options{MaxCycles: 0})
	require.Error(t, err)
	pe, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.InvalidRequest, pe.Code)
}

func TestRunFullBreaksImmediatelyOnZeroIssues(t *testing.T) {
	dir := t.TempDir()
	scanner := writeCountingScanner(t, dir, 0)
	patcher := writeNoopPatcher(t, dir)
	orch, _, sess := newTestOrchestrator(t, scanner, patcher)

	result, err := orch.RunFull(context.Background(), sess, Options{
		MaxCycles:       3,
		BreakOnNoIssues: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ZeroIssues, result.TerminationReason)
	assert.Len(t, result.Cycles, 1)
}
