package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureRunner reports a full pass once calc.txt says "fixed". Padded past
// the default integrity size floor.
const fixtureRunner = `#!/bin/sh
# Integration fixture for the episode runner. Reports on the TB_SUMMARY
# protocol: two tests, one of which fails until calc.txt contains "fixed".
if [ "$(cat calc.txt)" = "fixed" ]; then
  echo "TB_SUMMARY total=2 passed=2 failed=0 errors=0"
  exit 0
fi
echo "TB_SUMMARY total=2 passed=1 failed=1 errors=0"
exit 1
`

const fixtureManifest = `version: 1
runner:
  full: ["sh", "tests/run_tests.sh"]
allowlist: [ls]
protected:
  dirs: [tests]
integrity:
  files: [tests/run_tests.sh]
rewards:
  thresholds:
    - {pass_rate: 0.5, reward: 0.3}
    - {pass_rate: 1.0, reward: 1.0}
  regression_penalty_rate: 0.5
run:
  max_steps: 5
  full_every: 1
`

// setupEpisodeEnvironment builds a disposable workspace plus manifest and
// points the global config at them for the duration of the test.
func setupEpisodeEnvironment(t *testing.T) string {
	t.Helper()

	workspace := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "tests"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "tests", "run_tests.sh"), []byte(fixtureRunner), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "calc.txt"), []byte("broken"), 0o600))

	manifestPath := filepath.Join(workspace, "tbench.env.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(fixtureManifest), 0o600))

	viper.Set(manifestFlagName, manifestPath)
	viper.Set(workspaceFlagName, workspace)
	viper.Set(journalFlagName, filepath.Join(t.TempDir(), "steps.jsonl"))
	viper.Set(storeFlagName, "")
	viper.Set(maxStepsConfigKey, 0)
	viper.Set(logFilenameKey, filepath.Join(t.TempDir(), "test.log"))

	t.Cleanup(func() {
		viper.Set(manifestFlagName, defaultManifestPath)
		viper.Set(workspaceFlagName, defaultWorkspace)
		viper.Set(journalFlagName, defaultJournalPath)
		viper.Set(storeFlagName, defaultStorePath)
		viper.Set(maxStepsConfigKey, 0)
		viper.Set(logFilenameKey, defaultLogFilename)
	})

	return workspace
}

func TestRunCmd_SolvedEpisode(t *testing.T) {
	setupEpisodeEnvironment(t)

	cmd := newRunCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(
		`{"type":"edit","file":"calc.txt","content":"fixed"}` + "\n",
	))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, `"done":true`)
	assert.Contains(t, output, `"pass_rate":1`)
}

func TestRunCmd_UnsolvedEpisodeExitsNonZero(t *testing.T) {
	setupEpisodeEnvironment(t)

	cmd := newRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(
		`{"type":"edit","file":"calc.txt","content":"still broken"}` + "\n",
	))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.ErrorIs(t, err, errEpisodeNotSolved)
}

func TestRunCmd_ScriptFile(t *testing.T) {
	setupEpisodeEnvironment(t)

	scriptPath := filepath.Join(t.TempDir(), "actions.jsonl")
	require.NoError(t, os.WriteFile(scriptPath,
		[]byte(`{"type":"edit","file":"calc.txt","content":"fixed"}`+"\n"), 0o600))

	cmd := newRunCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--script", scriptPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"done":true`)
}

func TestRunCmd_ProtectedEditDoesNotSolve(t *testing.T) {
	workspace := setupEpisodeEnvironment(t)

	cmd := newRunCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(
		`{"type":"edit","file":"tests/run_tests.sh","content":"echo TB_SUMMARY total=1 passed=1 failed=0 errors=0"}` + "\n",
	))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.ErrorIs(t, err, errEpisodeNotSolved)

	// The protected runner script was not overwritten.
	content, readErr := os.ReadFile(filepath.Join(workspace, "tests", "run_tests.sh"))
	require.NoError(t, readErr)
	assert.Equal(t, fixtureRunner, string(content))
}

func TestRunCmd_RecordsAuditStore(t *testing.T) {
	setupEpisodeEnvironment(t)

	storePath := filepath.Join(t.TempDir(), "audit.db")
	viper.Set(storeFlagName, storePath)

	cmd := newRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(
		`{"type":"edit","file":"calc.txt","content":"fixed"}` + "\n",
	))
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	viewOut := &bytes.Buffer{}
	view := newViewCmd()
	view.SetOut(viewOut)
	view.SetErr(&bytes.Buffer{})
	view.SetArgs([]string{})

	require.NoError(t, view.Execute())
	assert.Contains(t, viewOut.String(), "full_pass")
}
