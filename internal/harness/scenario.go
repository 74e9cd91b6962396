package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one scripted play-through of a world.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// World is the path to the DSL script.
	World string `yaml:"world"`

	// Scripts are Lua files that define host effects.
	Scripts []string `yaml:"scripts,omitempty"`

	// Setup seeds the state before the first step.
	Setup *Setup `yaml:"setup,omitempty"`

	// Steps are the events to trigger, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and history.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the initial state of a scenario.
type Setup struct {
	Scene    string           `yaml:"scene,omitempty"`
	Counters map[string]int64 `yaml:"counters,omitempty"`
}

// Step triggers one event.
type Step struct {
	Event string `yaml:"event"`

	// Expect checks the trigger's record. If nil, nothing is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a single trigger. Empty fields
// are not checked.
type Expect struct {
	Scene      string `yaml:"scene,omitempty"`
	RuleAction string `yaml:"rule_action,omitempty"`

	// NoMatch requires that no rule fired.
	NoMatch bool `yaml:"no_match,omitempty"`
}

// Assertion validates the final state or the history.
type Assertion struct {
	// Type selects the assertion; see the package documentation.
	Type string `yaml:"type"`

	Scene    string   `yaml:"scene,omitempty"`
	Name     string   `yaml:"name,omitempty"`
	Value    *int64   `yaml:"value,omitempty"`
	Messages []string `yaml:"messages,omitempty"`
	Contains string   `yaml:"contains,omitempty"`
	Label    string   `yaml:"label,omitempty"`
	Blocked  *bool    `yaml:"blocked,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
	Event    string   `yaml:"event,omitempty"`
	Action   string   `yaml:"action,omitempty"`
	Scenes   []string `yaml:"scenes,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalScene    = "final_scene"
	AssertCounter       = "counter"
	AssertMessages      = "messages"
	AssertFinished      = "finished"
	AssertBlocked       = "blocked"
	AssertHistoryLength = "history_length"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertNoDiagnostics = "no_diagnostics"
	AssertSaveRoundTrip = "save_roundtrip"
)

// LoadScenario reads and parses a scenario YAML file. Relative world and
// script paths are resolved against the file's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.World = resolve(base, scenario.World)
	for i, s := range scenario.Scripts {
		scenario.Scripts[i] = resolve(base, s)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.World == "" {
		return fmt.Errorf("world is required")
	}
	if _, err := os.Stat(s.World); os.IsNotExist(err) {
		return fmt.Errorf("world file not found: %s", s.World)
	}
	for _, script := range s.Scripts {
		if _, err := os.Stat(script); os.IsNotExist(err) {
			return fmt.Errorf("script file not found: %s", script)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Setup != nil {
		for name, v := range s.Setup.Counters {
			if v < 0 {
				return fmt.Errorf("setup: counter %q must be non-negative", name)
			}
		}
	}
	for i, step := range s.Steps {
		if step.Event == "" {
			return fmt.Errorf("steps[%d]: event is required", i)
		}
		if e := step.Expect; e != nil && e.NoMatch && e.RuleAction != "" {
			return fmt.Errorf("steps[%d].expect: no_match and rule_action are exclusive", i)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalScene:
		if a.Scene == "" {
			return fmt.Errorf("assertions[%d]: scene is required for final_scene", index)
		}
	case AssertCounter:
		if a.Name == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: name and value are required for counter", index)
		}
	case AssertMessages:
		if a.Messages == nil && a.Contains == "" {
			return fmt.Errorf("assertions[%d]: messages or contains is required for messages", index)
		}
	case AssertFinished:
	case AssertBlocked:
		if a.Blocked == nil {
			return fmt.Errorf("assertions[%d]: blocked is required for blocked", index)
		}
	case AssertHistoryLength, AssertTraceCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
		if a.Type == AssertTraceCount && a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Scenes) == 0 {
			return fmt.Errorf("assertions[%d]: scenes list is required for trace_order", index)
		}
	case AssertNoDiagnostics, AssertSaveRoundTrip:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
