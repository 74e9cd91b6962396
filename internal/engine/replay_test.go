package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/testutil"
)

func TestReplay_Deterministic(t *testing.T) {
	rules := loadWorld(t, "dreamflow").Rules
	e := New(rules)
	for _, ev := range []string{
		"user.enterLayerOne", "user.grabGreenBox", "user.slideToLayerTwo",
		"user.openLayerThreeDoor", "nonsense", "user.knockWeirdPanel",
	} {
		e.Trigger(ev)
	}

	// Different wall clock, same outcome.
	res := Replay(rules, e.History(), WithTimeSource(testutil.NewStepClock(time.Time{}, time.Hour)))
	assert.True(t, res.Deterministic(), "divergences: %v", res.Divergences)
	assert.Equal(t, 6, res.Events)
	assert.Equal(t, e.State(), res.Final)
	require.Len(t, res.History, 6)
	for i, rec := range res.History {
		assert.Equal(t, e.History()[i].Seq, rec.Seq)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	recorded := New([]ir.Rule{
		{Condition: "go", Action: `goto("a")`},
		{Condition: "tick", Action: `reveal("n")`},
	})
	recorded.Trigger("go")
	recorded.Trigger("tick")

	// The rules changed since the recording.
	changed := []ir.Rule{
		{Condition: "go", Action: `goto("b")`},
		{Condition: "tick", Action: `reveal("n")`},
	}
	res := Replay(changed, recorded.History())
	assert.False(t, res.Deterministic())

	fields := map[string]bool{}
	for _, d := range res.Divergences {
		if d.Seq == 1 {
			fields[d.Field] = true
		}
	}
	assert.True(t, fields["rule_action"])
	assert.True(t, fields["scene_after"])
	assert.Contains(t, res.Divergences[0].String(), "seq 1 (go)")

	// The second step inherits the wrong scene.
	last := res.Divergences[len(res.Divergences)-1]
	assert.Equal(t, int64(2), last.Seq)
	assert.Equal(t, "b", last.Replayed)
}

func TestReplay_CounterDivergence(t *testing.T) {
	recorded := []ir.TriggerRecord{
		{Seq: 1, Event: "tick", RuleAction: `reveal("n")`, SceneBefore: "lobby", SceneAfter: "lobby",
			Counters: map[string]int64{"n": 2}},
	}
	res := Replay([]ir.Rule{{Condition: "tick", Action: `reveal("n")`}}, recorded)
	require.Len(t, res.Divergences, 1)
	assert.Equal(t, "counters", res.Divergences[0].Field)
}

func TestReplay_EmptyHistory(t *testing.T) {
	res := Replay(nil, nil)
	assert.True(t, res.Deterministic())
	assert.Equal(t, 0, res.Events)
	assert.Equal(t, "lobby", res.Final.Scene)
}
