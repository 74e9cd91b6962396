package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dreamtheater/internal/store"
	"github.com/roach88/dreamtheater/internal/store/redisstore"
)

type playResponse struct {
	Status  string     `json:"status"`
	Data    PlayResult `json:"data"`
	TraceID string     `json:"trace_id"`
}

func playJSON(t *testing.T, stdin string, args ...string) PlayResult {
	t.Helper()
	out, _, err := execute(t, stdin, append([]string{"--format", "json", "play"}, args...)...)
	require.NoError(t, err)
	var resp playResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestPlay_Text(t *testing.T) {
	events := "user.enterLayerOne\n\n# comment\nuser.grabGreenBox\nuser.wakeUp\n"
	out, _, err := execute(t, events, "play", worldsDir, "dreamflow")
	require.NoError(t, err)

	assert.Contains(t, out, "Dreamflow 2025")
	assert.Contains(t, out, "[lobby] A dim waiting room.")
	assert.Contains(t, out, "> user.enterLayerOne → layer1")
	assert.Contains(t, out, "[layer1] Layer one.")
	assert.Contains(t, out, "> user.grabGreenBox → layer1")
	assert.Contains(t, out, "> user.wakeUp (nothing happens)")
	assert.NotContains(t, out, "comment")
	assert.NotContains(t, out, "Saved")
}

func TestPlay_StopsWhenFinished(t *testing.T) {
	events := strings.Join([]string{
		"user.start", "user.continue",
		"user.collectStar", "user.collectStar", "user.collectStar",
		"user.checkProgress", "user.tryEnter", "user.celebrate",
		"user.restart",
	}, "\n")
	res := playJSON(t, events, worldsDir, "tutorial")

	assert.Len(t, res.Steps, 8)
	assert.Equal(t, "graduated", res.Final.Finished)
	assert.Equal(t, "success", res.Final.Scene)
	assert.Equal(t, int64(3), res.Final.Counters["star"])
	assert.False(t, res.Saved)
}

func TestPlay_NewMessagesPerStep(t *testing.T) {
	res := playJSON(t, "user.openLayerThreeDoor\nuser.openLayerThreeDoor\nuser.dismiss\n", worldsDir, "dreamflow")
	require.Len(t, res.Steps, 3)
	assert.Equal(t, []string{"The door is locked. You need the key."}, res.Steps[0].Messages)
	assert.Equal(t, []string{"The door is locked. You need the key."}, res.Steps[1].Messages)
	assert.Empty(t, res.Steps[2].Messages)
	assert.Empty(t, res.Final.Messages)
}

func TestPlay_LuaScriptsFromManifest(t *testing.T) {
	res := playJSON(t, "user.lightLantern\nuser.lightLantern\nuser.lightLantern\n", worldsDir, "lantern")
	require.Len(t, res.Steps, 3)
	assert.Equal(t, "lobby", res.Steps[1].Scene)
	assert.Equal(t, "bright", res.Final.Scene)
	assert.Equal(t, []string{"amber lantern 3 is lit."}, res.Steps[2].Messages)
}

func TestPlay_ExtraScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.dsl"), []byte(`world Echo {
  scene lobby { description: "An empty room." }
  when user.ping leadsTo ping("pong")
}
`), 0o644))
	script := filepath.Join(dir, "ping.lua")
	require.NoError(t, os.WriteFile(script, []byte(`return {
  effects = {
    ping = function(dream, reply) dream.announce(reply) end,
  },
}
`), 0o644))

	res := playJSON(t, "user.ping\n", dir, "echo", "--scripts", script)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, []string{"pong"}, res.Steps[0].Messages)
}

func TestPlay_MessagesAfterClearAndRefill(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.dsl"), []byte(`world Echo {
  scene lobby { description: "An empty room." }
  when user.one leadsTo announce("first")
  when user.reset leadsTo refill()
}
`), 0o644))
	script := filepath.Join(dir, "refill.lua")
	require.NoError(t, os.WriteFile(script, []byte(`return {
  effects = {
    refill = function(dream)
      dream.clear_announcements()
      dream.announce("a")
      dream.announce("b")
      dream.announce("c")
    end,
  },
}
`), 0o644))

	res := playJSON(t, "user.one\nuser.reset\n", dir, "echo", "--scripts", script)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, []string{"first"}, res.Steps[0].Messages)
	assert.Equal(t, []string{"a", "b", "c"}, res.Steps[1].Messages)
}

func TestNewMessages(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur []string
		want      []string
	}{
		{"appended", []string{"a"}, []string{"a", "b"}, []string{"b"}},
		{"unchanged", []string{"a"}, []string{"a"}, []string{}},
		{"cleared", []string{"a", "b"}, nil, nil},
		{"cleared and refilled longer", []string{"a"}, []string{"x", "y", "z"}, []string{"x", "y", "z"}},
		{"cleared and refilled shorter", []string{"a", "b"}, []string{"x"}, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newMessages(tt.prev, tt.cur))
		})
	}
}

func TestPlay_SaveAndResume(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")

	first := playJSON(t, "user.enterLayerOne\nuser.grabGreenBox\n", worldsDir, "dreamflow", "--db", db)
	assert.True(t, first.Saved)
	assert.False(t, first.Resumed)

	second := playJSON(t, "user.slideToLayerTwo\n", worldsDir, "dreamflow", "--db", db)
	assert.True(t, second.Resumed)
	require.Len(t, second.Steps, 1)
	assert.Equal(t, int64(3), second.Steps[0].Seq)
	assert.Equal(t, "layer2", second.Final.Scene)
	assert.Equal(t, int64(1), second.Final.Counters["greenBox"])

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	game, err := st.Load(context.Background(), "dreamflow")
	require.NoError(t, err)
	assert.Len(t, game.History, 3)
	assert.Equal(t, "layer2", game.State.Scene)
}

func TestPlay_Fresh(t *testing.T) {
	db := filepath.Join(t.TempDir(), "saves.db")
	playJSON(t, "user.enterLayerOne\n", worldsDir, "dreamflow", "--db", db)

	res := playJSON(t, "user.resetToLobby\n", worldsDir, "dreamflow", "--db", db, "--fresh")
	assert.False(t, res.Resumed)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, int64(1), res.Steps[0].Seq)
}

func TestPlay_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	res := playJSON(t, "user.enterLayerOne\n", worldsDir, "dreamflow", "--redis", mr.Addr(), "--ttl", "1h")
	assert.True(t, res.Saved)

	key := redisstore.DefaultPrefix + "world:dreamflow"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	again := playJSON(t, "user.grabGreenBox\n", worldsDir, "dreamflow", "--redis", mr.Addr())
	assert.True(t, again.Resumed)
	assert.Equal(t, int64(1), again.Final.Counters["greenBox"])
}

func TestPlay_MetricsOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "play.prom")
	_, _, err := execute(t, "user.enterLayerOne\nuser.nothing\n", "play", worldsDir, "dreamflow", "--metrics-out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `dreamtheater_triggers_total{matched="true",world="dreamflow"} 1`)
	assert.Contains(t, text, `dreamtheater_triggers_total{matched="false",world="dreamflow"} 1`)
}

func TestPlay_InvalidWorld(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.dsl"), []byte(brokenWorld), 0o644))

	out, _, err := execute(t, "", "play", dir, "broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "World broken is invalid")
}

func TestPlay_UnknownWorld(t *testing.T) {
	out, _, err := execute(t, "", "play", worldsDir, "atlantis")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "world not found: atlantis")
}
