package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedSave plays events into a fresh SQLite save database.
func seedSave(t *testing.T, db, id, events string) {
	t.Helper()
	_, _, err := execute(t, events, "play", worldsDir, id, "--db", db)
	require.NoError(t, err)
}

func TestTrace_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	seedSave(t, db, "dreamflow", "user.enterLayerOne\nuser.openLayerThreeDoor\nuser.hum\n")

	out, _, err := execute(t, "", "trace", "dreamflow", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for World: dreamflow")
	assert.Contains(t, out, "Status: in progress")
	assert.Contains(t, out, `[1] user.enterLayerOne → goto("layer1")  lobby → layer1`)
	assert.Contains(t, out, `[2] user.openLayerThreeDoor → announce("The door is locked. You need the key.")`)
	assert.Contains(t, out, "[3] user.hum (no match) layer1")
	assert.Contains(t, out, "Matched:       2")
	assert.Contains(t, out, "Scene Changes: 1")
}

func TestTrace_JSONWithEventFilter(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	seedSave(t, db, "dreamflow", "user.enterLayerOne\nuser.grabGreenBox\nuser.grabGreenBox\n")

	out, _, err := execute(t, "", "--format", "json", "trace", "dreamflow", "--db", db, "--event", "user.grabGreenBox")
	require.NoError(t, err)

	var resp struct {
		Status  string      `json:"status"`
		Data    TraceResult `json:"data"`
		TraceID string      `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "dreamflow", resp.TraceID)
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, int64(2), resp.Data.Timeline[0].Seq)
	assert.Equal(t, int64(2), resp.Data.Timeline[1].Counters["greenBox"])
	assert.Equal(t, 3, resp.Data.Stats.TotalEvents)
	assert.Equal(t, "1.0", resp.Data.Version)
}

func TestTrace_ListSaves(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	seedSave(t, db, "dreamflow", "user.enterLayerOne\n")
	seedSave(t, db, "tutorial", "user.skipTutorial\n")

	out, _, err := execute(t, "", "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "dreamflow  1 event(s), in layer1")
	assert.Contains(t, out, "tutorial  1 event(s), in playground")
}

func TestTrace_ListEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	out, _, err := execute(t, "", "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No saves found.")
}

func TestTrace_MissingSave(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	_, _, err := execute(t, "", "trace", "atlantis", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no save for world atlantis")
}

func TestTrace_NoStore(t *testing.T) {
	_, _, err := execute(t, "", "trace", "dreamflow")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no save store configured")
}
