package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/dreamtheater/internal/dsl"
	"github.com/roach88/dreamtheater/internal/effect"
	"github.com/roach88/dreamtheater/internal/engine"
	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/scripting"
	"github.com/roach88/dreamtheater/internal/store"
	"github.com/roach88/dreamtheater/internal/testutil"
)

// Option configures a harness run.
type Option func(*runConfig)

type runConfig struct {
	logger    *slog.Logger
	observers []engine.Observer
}

// WithLogger sets the logger passed to the engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithObserver attaches an engine observer to the run.
func WithObserver(o engine.Observer) Option {
	return func(c *runConfig) {
		c.observers = append(c.observers, o)
	}
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh engine with a StepClock time source, so identical
// scenarios produce identical histories. Failed expectations and assertions
// are reported in Result.Errors; the returned error is reserved for
// problems that prevent the run, such as an unreadable world or a world
// with error diagnostics.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	src, err := os.ReadFile(scenario.World)
	if err != nil {
		return nil, fmt.Errorf("failed to read world: %w", err)
	}
	prog := dsl.Parse(string(src))
	if prog.HasErrors() {
		return nil, fmt.Errorf("world %s has errors: %v", scenario.World, prog.Errors()[0])
	}

	dispatcher := effect.NewDispatcher()
	if len(scenario.Scripts) > 0 {
		rt, err := scripting.NewRuntime(scripting.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		defer rt.Close()
		for _, path := range scenario.Scripts {
			if err := rt.LoadFile(path); err != nil {
				return nil, err
			}
		}
		if err := rt.Register(dispatcher); err != nil {
			return nil, err
		}
	}

	engineOpts := []engine.Option{
		engine.WithLogger(cfg.logger),
		engine.WithDispatcher(dispatcher),
		engine.WithTimeSource(testutil.NewStepClock(testutil.Epoch, testutil.DefaultStep)),
	}
	if s := scenario.Setup; s != nil {
		engineOpts = append(engineOpts, engine.WithState(ir.StateSnapshot{
			Scene:    s.Scene,
			Counters: s.Counters,
		}))
	}
	for _, o := range cfg.observers {
		engineOpts = append(engineOpts, engine.WithObserver(o))
	}
	eng := engine.New(prog.Rules, engineOpts...)

	result := NewResult()
	for i, step := range scenario.Steps {
		eng.Trigger(step.Event)
		hist := eng.History()
		checkExpect(i, step, hist[len(hist)-1], result)
	}
	result.History = eng.History()
	result.Final = eng.State()

	actx := &AssertionContext{
		Ctx:      context.Background(),
		WorldID:  scenario.Name,
		Scenario: scenario,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	cfg.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", result.Pass)
	return result, nil
}

// checkExpect compares one trigger record with its step's expectation.
func checkExpect(i int, step Step, rec ir.TriggerRecord, result *Result) {
	e := step.Expect
	if e == nil {
		return
	}
	if e.Scene != "" && rec.SceneAfter != e.Scene {
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected scene %q, got %q",
			i, step.Event, e.Scene, rec.SceneAfter))
	}
	if e.NoMatch && rec.Matched() {
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected no rule to fire, got %s",
			i, step.Event, rec.RuleAction))
	}
	if e.RuleAction != "" && rec.RuleAction != e.RuleAction {
		got := rec.RuleAction
		if got == "" {
			got = "no match"
		}
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected rule %s, got %s",
			i, step.Event, e.RuleAction, got))
	}
}

// saveRoundTrip saves the run's game to a fresh in-memory store and loads
// it back.
func saveRoundTrip(ctx context.Context, worldID string, result *Result) (ir.SavedGame, ir.SavedGame, error) {
	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewFixedIDGenerator("")))
	if err != nil {
		return ir.SavedGame{}, ir.SavedGame{}, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	var ts int64
	if n := len(result.History); n > 0 {
		ts = result.History[n-1].Timestamp
	}
	saved, err := st.Save(ctx, ir.SavedGame{
		WorldID:   worldID,
		State:     result.Final,
		History:   result.History,
		Timestamp: ts,
	})
	if err != nil {
		return ir.SavedGame{}, ir.SavedGame{}, err
	}
	loaded, err := st.Load(ctx, worldID)
	if err != nil {
		return ir.SavedGame{}, ir.SavedGame{}, err
	}
	return saved, loaded, nil
}
