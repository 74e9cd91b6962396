// Package storetest holds the behavioural contract every save backend must
// satisfy. Backend tests call RunGameStoreContract with a fresh store.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/store"
)

// Game builds a small save for worldID stamped at ts.
func Game(worldID string, ts int64) ir.SavedGame {
	return ir.SavedGame{
		WorldID: worldID,
		State: ir.StateSnapshot{
			Scene:    "layer1",
			Counters: map[string]int64{"greenBox": 1},
			Messages: []string{"You slip into the first layer."},
		},
		History: []ir.TriggerRecord{
			{
				Seq: 1, Event: "user.enterLayerOne", RuleAction: `goto("layer1")`,
				SceneBefore: "lobby", SceneAfter: "layer1",
				Counters: map[string]int64{}, Timestamp: ts,
			},
		},
		Timestamp: ts,
	}
}

// RunGameStoreContract exercises s against the shared save semantics.
// s must be empty.
func RunGameStoreContract(t *testing.T, s store.GameStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)

		ok, err := s.Has(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("save and load", func(t *testing.T) {
		saved, err := s.Save(ctx, Game("contract-a", 100))
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, ir.SaveVersion, saved.Version)

		loaded, err := s.Load(ctx, "contract-a")
		require.NoError(t, err)
		assert.Equal(t, saved, loaded)
	})

	t.Run("upsert keeps id", func(t *testing.T) {
		first, err := s.Load(ctx, "contract-a")
		require.NoError(t, err)

		next := Game("contract-a", 200)
		next.State.Scene = "layer2"
		second, err := s.Save(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		loaded, err := s.Load(ctx, "contract-a")
		require.NoError(t, err)
		assert.Equal(t, "layer2", loaded.State.Scene)
	})

	t.Run("list most recent first", func(t *testing.T) {
		_, err := s.Save(ctx, Game("contract-b", 300))
		require.NoError(t, err)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "contract-b", all[0].WorldID)
		assert.Equal(t, "contract-a", all[1].WorldID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "contract-a"))
		ok, err := s.Has(ctx, "contract-a")
		require.NoError(t, err)
		assert.False(t, ok)

		// Deleting twice is silent.
		assert.NoError(t, s.Delete(ctx, "contract-a"))

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "contract-b", all[0].WorldID)
	})

	t.Run("world ids are not reserved", func(t *testing.T) {
		for _, id := range []string{"world:index", "index", "saves"} {
			_, err := s.Save(ctx, Game(id, 400))
			require.NoError(t, err, id)

			loaded, err := s.Load(ctx, id)
			require.NoError(t, err, id)
			assert.Equal(t, id, loaded.WorldID)
		}
	})

	t.Run("list ties ordered by world id", func(t *testing.T) {
		all, err := s.List(ctx)
		require.NoError(t, err)

		var ids []string
		for _, g := range all {
			ids = append(ids, g.WorldID)
		}
		assert.Equal(t, []string{"index", "saves", "world:index", "contract-b"}, ids)
	})
}
