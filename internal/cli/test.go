package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario tests",
		Long: `Run YAML scenario files against their worlds.

Each scenario names a world script, feeds it a list of events with
optional per-step expectations, then checks assertions on the final state
and history. When golden/<scenario>.golden exists beside a scenario file,
the canonical history must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dreamtheater test ./scenarios
  dreamtheater test ./scenarios --filter "dreamflow_*"
  dreamtheater test ./scenarios --update
  dreamtheater test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	if len(files) == 0 && opts.Format != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range files {
		sr := runScenario(file, opts, cmd)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	return reportTests(opts, cmd, result)
}

// findScenarioFiles returns the .yaml and .yml files under dir whose base
// name matches filter, in lexical order. Golden directories are skipped.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			if path != dir && d.Name() == harness.GoldenDir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// runScenario runs one scenario file, checks it against its golden
// history, and prints a status line in text format.
func runScenario(file string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	name, errs, steps := checkScenario(file, opts, cmd)
	pass := len(errs) == 0

	if opts.Format != "json" {
		w := cmd.OutOrStdout()
		switch {
		case !pass:
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		case opts.Update:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", name)
		default:
			fmt.Fprintf(w, "✓ %s (%d step(s))\n", name, steps)
		}
	}
	return ScenarioResult{Name: name, Pass: pass, Errors: errs}
}

func checkScenario(file string, opts *TestOptions, cmd *cobra.Command) (name string, errs []string, steps int) {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return filepath.Base(file), []string{fmt.Sprintf("failed to load scenario: %v", err)}, 0
	}
	name = scenario.Name

	result, err := harness.Run(scenario, harness.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err != nil {
		return name, []string{fmt.Sprintf("execution failed: %v", err)}, 0
	}
	steps = len(result.History)

	snapshot, err := harness.Snapshot(name, result)
	if err != nil {
		return name, []string{err.Error()}, steps
	}
	golden := harness.GoldenPath(file)

	if opts.Update {
		if err := harness.WriteGolden(golden, snapshot); err != nil {
			return name, []string{fmt.Sprintf("failed to update golden file: %v", err)}, steps
		}
		return name, result.Errors, steps
	}

	// A scenario without a golden file is checked on its assertions alone.
	if _, statErr := os.Stat(golden); statErr == nil {
		match, err := harness.CompareGolden(golden, snapshot)
		if err != nil {
			return name, []string{fmt.Sprintf("golden comparison failed: %v", err)}, steps
		}
		if !match {
			errs = append(errs, "history does not match golden file (run with --update to regenerate)")
		}
	}
	return name, append(errs, result.Errors...), steps
}

// reportTests prints the summary and turns failures into exit code 1.
func reportTests(opts *TestOptions, cmd *cobra.Command, result TestResult) error {
	var failure *ExitError
	if result.Failed > 0 {
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	w := cmd.OutOrStdout()

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if failure != nil {
			response.Status = "error"
			response.Error = &CLIError{Code: "E_TEST_FAILED", Message: failure.Message}
		}
		if err := encodeResponse(w, response); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if failure == nil {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}

	if failure != nil {
		return failure
	}
	return nil
}
