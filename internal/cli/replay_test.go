package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/store"
)

func TestReplay_Deterministic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	seedSave(t, db, "dreamflow", "user.enterLayerOne\nuser.grabGreenBox\nuser.slideToLayerTwo\nuser.knockWeirdPanel\nuser.touchMirror\n")

	out, _, err := execute(t, "", "replay", worldsDir, "dreamflow", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: dreamflow, 5 event(s)")
	assert.Contains(t, out, "✓ Replay deterministic (final scene panelRoom)")
}

func TestReplay_LuaWorld(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	seedSave(t, db, "lantern", "user.lightLantern\nuser.lightLantern\nuser.lightLantern\nuser.snuff\n")

	out, _, err := execute(t, "", "--format", "json", "replay", worldsDir, "lantern", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	assert.True(t, resp.Data.FinalMatches)
	assert.Equal(t, "bright", resp.Data.Final.Scene)
	assert.Len(t, resp.Data.ProgramHash, 64)
}

func TestReplay_DetectsChangedRules(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.Save(context.Background(), ir.SavedGame{
		WorldID: "dreamflow",
		State:   ir.StateSnapshot{Scene: "layer2", Counters: map[string]int64{}},
		History: []ir.TriggerRecord{{
			Seq: 1, Event: "user.enterLayerOne", RuleAction: `goto("layer2")`,
			SceneBefore: "lobby", SceneAfter: "layer2", Counters: map[string]int64{},
		}},
		Timestamp: 1735689600000,
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(t, "", "replay", worldsDir, "dreamflow", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "seq 1 (user.enterLayerOne): scene_after")
	assert.Contains(t, out, "final state differs")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplay_MissingSave(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	_, _, err := execute(t, "", "replay", worldsDir, "dreamflow", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSameState(t *testing.T) {
	a := ir.StateSnapshot{Scene: "lobby"}
	b := ir.StateSnapshot{Scene: "lobby", Counters: map[string]int64{}, Messages: []string{}}
	assert.True(t, sameState(a, b))

	b.Counters["star"] = 1
	assert.False(t, sameState(a, b))
}
