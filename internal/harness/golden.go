package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dreamtheater/internal/ir"
)

// HistorySnapshot captures a scenario run for golden comparison.
type HistorySnapshot struct {
	ScenarioName string             `json:"scenario_name"`
	History      []ir.TriggerRecord `json:"history"`
	Final        ir.StateSnapshot   `json:"final"`
}

// Snapshot renders a run as canonical JSON.
func Snapshot(name string, result *Result) ([]byte, error) {
	data, err := ir.MarshalCanonical(HistorySnapshot{
		ScenarioName: name,
		History:      result.History,
		Final:        result.Final,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return data, nil
}

// GoldenDir is the directory beside a scenario file that holds its golden
// history.
const GoldenDir = "golden"

// GoldenPath returns where the CLI keeps the golden file for a scenario
// file: a golden/ directory beside it, named after the file.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, GoldenDir, name+".golden")
}

// WriteGolden writes the snapshot to path, creating its directory.
func WriteGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the golden file at path matches snapshot.
// A missing file is reported via the error, which wraps fs.ErrNotExist.
func CompareGolden(path string, snapshot []byte) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return string(golden) == string(snapshot), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// <fixtureDir>/<scenario.Name>.golden using goldie.
//
// To regenerate golden files, run the test with -update.
func RunWithGolden(t *testing.T, scenario *Scenario, fixtureDir string, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	data, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
