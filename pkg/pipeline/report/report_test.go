package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipelineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeLintEmpty(t *testing.T) {
	s := SummarizeLint(LintReport{Details: map[string]CategoryDetail{}})
	assert.Equal(t, 0, s.Total)
}

func TestSummarizeLintCounts(t *testing.T) {
	r := LintReport{Details: map[string]CategoryDetail{
		"style":    {Issues: []Issue{{File: "a.go", Line: 1}, {File: "b.go", Line: 2}}},
		"security": {Issues: []Issue{{File: "c.go", Line: 3}}},
	}}
	s := SummarizeLint(r)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByCategory["style"])
	assert.Equal(t, 1, s.ByCategory["security"])
}

func TestLintReportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lint.json")

	want := LintReport{
		SessionID: "sess1",
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Workspace: "/tmp/ws",
		Summary:   Summary{TotalIssues: 1, ByCategory: map[string]int{"style": 1}},
		Details: map[string]CategoryDetail{
			"style": {Issues: []Issue{{File: "a.go", Line: 10, Type: "lint", Message: "oops", Severity: "warning"}}},
		},
	}
	require.NoError(t, WriteLint(path, want))

	got, err := ReadLint(path)
	require.NoError(t, err)
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.Summary.TotalIssues, got.Summary.TotalIssues)
	assert.Equal(t, want.Details["style"].Issues[0].File, got.Details["style"].Issues[0].File)
}

func TestReadLintMissingFile(t *testing.T) {
	_, err := ReadLint(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	pe, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.MalformedOutput, pe.Code)
}

func TestFixReportInvariantViolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fix.json")
	bad := FixReport{
		SessionID:      "sess1",
		FixesAttempted: 5,
		FixesApplied:   2,
		FixesFailed:    2, // 2+2 != 5
	}
	require.NoError(t, WriteFix(path, bad))

	_, err := ReadFix(path)
	require.Error(t, err)
	pe, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.SchemaError, pe.Code)
}

func TestFixReportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fix.json")
	want := FixReport{
		SessionID:           "sess1",
		Timestamp:           time.Now().UTC().Truncate(time.Second),
		InputLintReportPath: "lint-1.json",
		FixesAttempted:      3,
		FixesApplied:        3,
		FixesFailed:         0,
		RemainingIssues:     0,
	}
	require.NoError(t, WriteFix(path, want))

	got, err := ReadFix(path)
	require.NoError(t, err)
	assert.Equal(t, want.FixesApplied, got.FixesApplied)
	assert.Equal(t, want.RemainingIssues, got.RemainingIssues)
}
