package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/dreamtheater/internal/ir"
)

func TestNew_Defaults(t *testing.T) {
	s := New()

	assert.Equal(t, "lobby", s.Scene())
	assert.Empty(t, s.Counters())
	assert.Empty(t, s.Messages())
	_, finished := s.Finished()
	assert.False(t, finished)
	assert.False(t, s.Blocked())
}

func TestIncrement_Monotonic(t *testing.T) {
	s := New()

	assert.Equal(t, int64(0), s.Counter("x"))
	for i := int64(1); i <= 5; i++ {
		assert.Equal(t, i, s.Increment("x"))
		assert.Equal(t, i, s.Counter("x"))
	}
}

func TestSetScene_IgnoresEmpty(t *testing.T) {
	s := New()
	s.SetScene("next")
	s.SetScene("")
	assert.Equal(t, "next", s.Scene())
}

func TestMessages_Lifecycle(t *testing.T) {
	s := New()
	s.PushMessage("Hello")
	s.PushMessage("World")
	assert.Equal(t, []string{"Hello", "World"}, s.Messages())

	s.ClearMessages()
	assert.Empty(t, s.Messages())
}

func TestFinish_DefaultLabel(t *testing.T) {
	s := New()
	s.Finish("")
	label, ok := s.Finished()
	assert.True(t, ok)
	assert.Equal(t, "complete", label)

	s.Finish("victory")
	label, _ = s.Finished()
	assert.Equal(t, "victory", label)
}

func TestBlock_Toggle(t *testing.T) {
	s := New()
	s.Block()
	assert.True(t, s.Blocked())
	s.Unblock()
	assert.False(t, s.Blocked())
}

func TestSnapshot_IsDetached(t *testing.T) {
	s := New()
	s.Increment("coin")
	s.PushMessage("hi")

	snap := s.Snapshot()
	snap.Counters["coin"] = 99
	snap.Messages[0] = "changed"

	assert.Equal(t, int64(1), s.Counter("coin"))
	assert.Equal(t, []string{"hi"}, s.Messages())
}

func TestRestore(t *testing.T) {
	s := FromSnapshot(ir.StateSnapshot{
		Scene:    "layer2",
		Counters: map[string]int64{"key": 2, "bad": -1},
		Messages: []string{"restored"},
		Finished: "victory",
		Blocked:  true,
	})

	assert.Equal(t, "layer2", s.Scene())
	assert.Equal(t, map[string]int64{"key": 2}, s.Counters())
	assert.Equal(t, []string{"restored"}, s.Messages())
	label, ok := s.Finished()
	assert.True(t, ok)
	assert.Equal(t, "victory", label)
	assert.True(t, s.Blocked())
}

func TestRestore_EmptySceneFallsBack(t *testing.T) {
	s := FromSnapshot(ir.StateSnapshot{})
	assert.Equal(t, InitialScene, s.Scene())
	assert.NotNil(t, s.Counters())
}
