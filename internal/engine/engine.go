package engine

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/dreamtheater/internal/condition"
	"github.com/roach88/dreamtheater/internal/effect"
	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/state"
)

// Observer is notified once per Trigger, after the record is appended.
// matched is nil when no rule fired.
type Observer interface {
	ObserveTrigger(rec ir.TriggerRecord, matched *ir.Rule, elapsed time.Duration)
}

// compiledRule pairs a rule with its parsed condition and invocation.
type compiledRule struct {
	rule ir.Rule
	cond condition.Conjunction
	inv  effect.Invocation

	// parseErr is set when the action is not a valid invocation. The rule
	// can still match; dispatching it is a no-op with a diagnostic.
	parseErr error
}

// Engine evaluates events against an ordered rule list.
//
// INVARIANTS:
//   - rules order NEVER changes after construction
//   - len(history) equals the number of Trigger calls since construction,
//     plus any history supplied through WithHistory
//   - the DreamState is never handed out; readers get snapshots
//
// Trigger calls are serialized by an internal mutex, so an Engine may be
// shared between goroutines. Independent engines share nothing.
type Engine struct {
	mu sync.Mutex

	rules      []compiledRule
	state      *state.DreamState
	history    []ir.TriggerRecord
	clock      *Clock
	now        TimeSource
	dispatcher *effect.Dispatcher
	observers  []Observer
	logger     *slog.Logger

	// dropped holds a diagnostic for each rule New refused.
	dropped []ir.Diagnostic
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the logical clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithTimeSource sets the source of record timestamps.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		if ts != nil {
			e.now = ts
		}
	}
}

// WithDispatcher sets the effect dispatcher, typically one with host
// effects registered. The default knows only the built-ins.
func WithDispatcher(d *effect.Dispatcher) Option {
	return func(e *Engine) {
		if d != nil {
			e.dispatcher = d
		}
	}
}

// WithState starts the engine from a snapshot instead of the initial scene.
func WithState(snap ir.StateSnapshot) Option {
	return func(e *Engine) {
		e.state = state.FromSnapshot(snap)
	}
}

// WithHistory seeds the history, e.g. from a saved game. Unless WithClock
// is also given, the clock resumes after the last recorded seq.
func WithHistory(history []ir.TriggerRecord) Option {
	return func(e *Engine) {
		e.history = append([]ir.TriggerRecord(nil), history...)
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// New creates an engine over rules.
//
// The rules slice must be in declaration order; it is copied so that
// external mutation cannot reorder it. Conditions and actions are parsed
// once here, not on every Trigger.
//
// A rule with a blank action is dropped with a D105 diagnostic, as the
// parser does, since a record's empty RuleAction means no rule matched.
func New(rules []ir.Rule, opts ...Option) *Engine {
	compiled := make([]compiledRule, 0, len(rules))
	var dropped []ir.Diagnostic
	for _, r := range rules {
		if strings.TrimSpace(r.Action) == "" {
			dropped = append(dropped, ir.Errorf(ir.CodeEmptyRule, r.Condition, r.Line, "rule has an empty action"))
			continue
		}
		inv, err := effect.Parse(r.Action)
		compiled = append(compiled, compiledRule{
			rule:     r,
			cond:     condition.Parse(r.Condition),
			inv:      inv,
			parseErr: err,
		})
	}

	e := &Engine{
		rules:      compiled,
		state:      state.New(),
		history:    []ir.TriggerRecord{},
		now:        systemTime{},
		dispatcher: effect.NewDispatcher(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.dropped = dropped
	for _, d := range dropped {
		e.logger.Warn("rule dropped", "code", d.Code, "condition", d.Context, "line", d.Line)
	}

	if e.clock == nil {
		var last int64
		if n := len(e.history); n > 0 {
			last = e.history[n-1].Seq
		}
		e.clock = NewClockAt(last)
	}

	return e
}

// Trigger feeds one event to the engine and returns the resulting scene.
//
// The first rule (in declaration order) whose condition holds is applied;
// later matching rules are ignored. Every call appends exactly one
// TriggerRecord, whether or not a rule matched.
func (e *Engine) Trigger(event string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	rec := ir.TriggerRecord{
		Seq:         e.clock.Next(),
		Event:       event,
		SceneBefore: e.state.Scene(),
	}

	matched := e.match(event)
	if matched != nil {
		rec.RuleAction = matched.rule.Action
		rec.Diagnostics = e.dispatch(matched)
	}

	rec.SceneAfter = e.state.Scene()
	rec.Counters = e.state.Counters()
	rec.Timestamp = e.now.Now().UnixMilli()
	e.history = append(e.history, rec)

	e.logger.Debug("trigger",
		"seq", rec.Seq,
		"event", event,
		"rule", rec.RuleAction,
		"scene_before", rec.SceneBefore,
		"scene_after", rec.SceneAfter)

	var rule *ir.Rule
	if matched != nil {
		r := matched.rule
		rule = &r
	}
	elapsed := time.Since(start)
	for _, o := range e.observers {
		o.ObserveTrigger(rec, rule, elapsed)
	}

	return rec.SceneAfter
}

// match returns the first rule whose condition holds, or nil.
func (e *Engine) match(event string) *compiledRule {
	for i := range e.rules {
		if e.rules[i].cond.Holds(event, e.state) {
			return &e.rules[i]
		}
	}
	return nil
}

// dispatch applies a matched rule's action and returns the diagnostics it
// raised, each tagged with the rule's source line and logged at Warn.
func (e *Engine) dispatch(r *compiledRule) []ir.Diagnostic {
	var diags []ir.Diagnostic
	if r.parseErr != nil {
		diags = []ir.Diagnostic{ir.Warnf(ir.CodeMalformedAction, r.rule.Action, 0, "%v", r.parseErr)}
	} else {
		diags = e.dispatcher.Invoke(e.state, r.inv, r.rule.Action).Diagnostics
	}

	for i := range diags {
		diags[i].Line = r.rule.Line
		e.logger.Warn("effect dispatch",
			"code", diags[i].Code,
			"action", r.rule.Action,
			"message", diags[i].Message)
	}
	return diags
}

// State returns a snapshot of the current state.
func (e *Engine) State() ir.StateSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// History returns a copy of the trigger history, oldest first.
func (e *Engine) History() []ir.TriggerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ir.TriggerRecord, len(e.history))
	for i, rec := range e.history {
		rec.Counters = ir.CloneCounters(rec.Counters)
		rec.Diagnostics = append([]ir.Diagnostic(nil), rec.Diagnostics...)
		out[i] = rec
	}
	return out
}

// Diagnostics returns the diagnostics for rules dropped by New followed by
// every dispatch diagnostic raised so far, in order.
func (e *Engine) Diagnostics() []ir.Diagnostic {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]ir.Diagnostic(nil), e.dropped...)
	for _, rec := range e.history {
		out = append(out, rec.Diagnostics...)
	}
	return out
}

// Rules returns a copy of the rule list in evaluation order.
func (e *Engine) Rules() []ir.Rule {
	out := make([]ir.Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.rule
	}
	return out
}
