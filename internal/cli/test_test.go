package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dreamtheater/internal/harness"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_Fixtures(t *testing.T) {
	out, _, err := execute(t, "", "test", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ dreamflow_full_run")
	assert.Contains(t, out, "✓ lantern_script")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, _, err := execute(t, "", "--format", "json", "test", scenariosDir, "--filter", "dreamflow_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, _, err := execute(t, "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

// scenarioDir creates a scenarios directory whose scenario points at the
// tutorial world fixture.
func scenarioDir(t *testing.T, body string) (dir, file string) {
	t.Helper()
	dir = t.TempDir()
	world, err := filepath.Abs(filepath.Join(worldsDir, "tutorial.dsl"))
	require.NoError(t, err)
	file = filepath.Join(dir, "skip.yaml")
	text := "name: skip\nworld: " + world + "\n" + body
	require.NoError(t, os.WriteFile(file, []byte(text), 0o644))
	return dir, file
}

func TestTestCommand_FailingAssertion(t *testing.T) {
	dir, _ := scenarioDir(t, `steps:
  - event: user.skipTutorial
assertions:
  - type: final_scene
    scene: lobby
`)
	out, _, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ skip")
	assert.Contains(t, out, "1 failed")
}

func TestTestCommand_UpdateThenCompareGolden(t *testing.T) {
	dir, file := scenarioDir(t, `steps:
  - event: user.skipTutorial
    expect: { scene: playground }
`)

	out, _, err := execute(t, "", "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ skip (golden updated)")

	golden := harness.GoldenPath(file)
	require.FileExists(t, golden)

	out, _, err = execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ skip (1 step(s))")

	// A stale golden fails the run.
	require.NoError(t, os.WriteFile(golden, []byte(`{"history":[]}`), 0o644))
	out, _, err = execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "history does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_walk.yaml", "a_look.yml", "notes.txt", "golden/a_look.yaml", "nested/c_exit.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_look.yml"),
		filepath.Join(dir, "b_walk.yaml"),
		filepath.Join(dir, "nested", "c_exit.yaml"),
	}, files)

	files, err = findScenarioFiles(dir, "?_walk")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b_walk.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}
