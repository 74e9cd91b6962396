package engine

import (
	"fmt"
	"maps"

	"github.com/roach88/dreamtheater/internal/ir"
)

// Divergence is one difference between a recorded trigger and its replay.
type Divergence struct {
	Seq      int64  `json:"seq"`
	Event    string `json:"event"`
	Field    string `json:"field"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

func (d Divergence) String() string {
	return fmt.Sprintf("seq %d (%s): %s recorded %q, replayed %q", d.Seq, d.Event, d.Field, d.Recorded, d.Replayed)
}

// ReplayResult reports whether a history is reproducible.
type ReplayResult struct {
	Events      int                `json:"events"`
	Divergences []Divergence       `json:"divergences"`
	Final       ir.StateSnapshot   `json:"final"`
	History     []ir.TriggerRecord `json:"-"`
}

// Deterministic reports whether the replay matched the recording exactly.
func (r ReplayResult) Deterministic() bool {
	return len(r.Divergences) == 0
}

// Replay re-runs the events of a recorded history against a fresh engine
// built from rules and compares each step.
//
// The same code path handles live play and replay: Replay just calls
// Trigger. Scene, matched rule and counters are compared; timestamps are
// not, since they are informational only. opts configure the fresh engine
// (e.g. WithDispatcher for host effects, WithState for a non-default start).
func Replay(rules []ir.Rule, recorded []ir.TriggerRecord, opts ...Option) ReplayResult {
	e := New(rules, opts...)
	res := ReplayResult{Divergences: []Divergence{}}

	for _, want := range recorded {
		e.Trigger(want.Event)
		res.Events++
	}

	res.History = e.History()
	for i, want := range recorded {
		got := res.History[len(res.History)-len(recorded)+i]
		res.Divergences = append(res.Divergences, compareRecords(want, got)...)
	}
	res.Final = e.State()
	return res
}

func compareRecords(want, got ir.TriggerRecord) []Divergence {
	var out []Divergence
	add := func(field, recorded, replayed string) {
		out = append(out, Divergence{
			Seq:      want.Seq,
			Event:    want.Event,
			Field:    field,
			Recorded: recorded,
			Replayed: replayed,
		})
	}

	if want.SceneBefore != got.SceneBefore {
		add("scene_before", want.SceneBefore, got.SceneBefore)
	}
	if want.RuleAction != got.RuleAction {
		add("rule_action", want.RuleAction, got.RuleAction)
	}
	if want.SceneAfter != got.SceneAfter {
		add("scene_after", want.SceneAfter, got.SceneAfter)
	}
	if !maps.Equal(ir.CloneCounters(want.Counters), ir.CloneCounters(got.Counters)) {
		add("counters", fmt.Sprint(want.Counters), fmt.Sprint(got.Counters))
	}
	return out
}
