package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorlds_Text(t *testing.T) {
	out, _, err := execute(t, "", "worlds", worldsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ dreamflow: Dreamflow 2025")
	assert.Contains(t, out, "difficulty: medium")
	assert.Contains(t, out, "✓ lantern: The Lantern Hall")
	assert.Contains(t, out, "✓ tutorial: Tutorial")
	assert.Contains(t, out, "A DreamTheater world")
}

func TestWorlds_JSON(t *testing.T) {
	out, _, err := execute(t, "", "--format", "json", "worlds", worldsDir)
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   []WorldSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "dreamflow", resp.Data[0].ID)
	assert.Equal(t, "lantern", resp.Data[1].ID)
	assert.Len(t, resp.Data[1].Scripts, 1)
	assert.True(t, resp.Data[2].Valid)
	assert.Equal(t, 7, resp.Data[2].Scenes)
}

func TestWorlds_MissingDir(t *testing.T) {
	_, _, err := execute(t, "", "worlds", "/nonexistent/worlds")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
