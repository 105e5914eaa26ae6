package ghtrigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qualitykeeper/qualitykeeper/pkg/pipeline/procexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgvAppendsWorkflowRefAndInputs(t *testing.T) {
	argv, err := buildArgv("gh workflow run", Request{
		Workflow: "ci.yml",
		Ref:      "main",
		Inputs:   map[string]string{"env": "staging"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"gh", "workflow", "run", "ci.yml", "--ref", "main", "-f", "env=staging"}, argv)
}

func TestBuildArgvRejectsEmptyTriggerCmd(t *testing.T) {
	_, err := buildArgv("", Request{Workflow: "ci.yml"})
	require.Error(t, err)
}

func TestTriggerRunsConfiguredCommand(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake_gh.sh")
	out := filepath.Join(dir, "argv.txt")
	body := `#!/bin/sh
echo "$@" > "` + out + `"
echo "triggered"
exit 0
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	runner := procexec.NewRunner(2)
	res, err := Trigger(context.Background(), runner, script, dir, 5*time.Second, Request{
		Workflow: "ci.yml",
		Ref:      "main",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "triggered")

	recorded, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "ci.yml --ref main")
}

func TestTriggerSurfacesNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "failing_gh.sh")
	body := "#!/bin/sh\necho boom 1>&2\nexit 1\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	runner := procexec.NewRunner(2)
	res, err := Trigger(context.Background(), runner, script, dir, 5*time.Second, Request{Workflow: "ci.yml"})
	require.NoError(t, err) // a nonzero exit is reported in Result, not as an error
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "boom")
}
