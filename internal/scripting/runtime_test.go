package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dreamtheater/internal/dsl"
	"github.com/roach88/dreamtheater/internal/effect"
	"github.com/roach88/dreamtheater/internal/engine"
	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/state"
)

func newRuntime(t *testing.T, src string, opts ...Option) *Runtime {
	t.Helper()
	r, err := NewRuntime(opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	require.NoError(t, r.LoadString("test.lua", src))
	return r
}

func register(t *testing.T, r *Runtime) *effect.Dispatcher {
	t.Helper()
	d := effect.NewDispatcher()
	require.NoError(t, r.Register(d))
	return d
}

func TestLoadString_CollectsEffects(t *testing.T) {
	r := newRuntime(t, `
		return { effects = {
			b = function(dream) end,
			a = function(dream) end,
		} }
	`)
	assert.Equal(t, []string{"a", "b"}, r.Effects())
}

func TestLoadString_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `return {`, "load lua"},
		{"runtime", `error("nope")`, "run lua"},
		{"not a table", `return 42`, "did not return a table"},
		{"no effects", `return { other = {} }`, "'effects'"},
		{"not a function", `return { effects = { x = 1 } }`, "is not a function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRuntime()
			require.NoError(t, err)
			defer r.Close()
			err = r.LoadString("test.lua", tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, r.Effects())
		})
	}
}

func TestSandbox(t *testing.T) {
	r := newRuntime(t, `
		return { effects = {
			probe = function(dream)
				dream.announce(tostring(io == nil))
				dream.announce(tostring(os == nil))
				dream.announce(tostring(dofile == nil))
				dream.announce(string.upper("ok"))
			end,
		} }
	`)
	st := state.New()
	res := register(t, r).Apply(st, "probe()")
	require.Empty(t, res.Diagnostics)
	assert.Equal(t, []string{"true", "true", "true", "OK"}, st.Messages())
}

func TestHandler_DreamAPI(t *testing.T) {
	r := newRuntime(t, `
		return { effects = {
			tour = function(dream, who, where)
				dream.announce(who .. " in " .. dream.scene())
				dream.increment("steps")
				dream.increment("steps")
				dream.announce("steps=" .. dream.counter("steps"))
				dream.block()
				if dream.blocked() then dream.announce("blocked") end
				dream.go_to(where)
				if not dream.blocked() then dream.announce("unblocked") end
				if dream.finished() == nil then dream.announce("running") end
			end,
			wipe = function(dream)
				dream.clear_announcements()
				dream.finish()
			end,
		} }
	`)
	d := register(t, r)
	st := state.New()

	res := d.Apply(st, `tour("Ana", "attic")`)
	require.Empty(t, res.Diagnostics)
	assert.True(t, res.Applied)
	assert.Equal(t, "attic", res.Scene)
	assert.Equal(t, "attic", st.Scene())
	assert.Equal(t, int64(2), st.Counter("steps"))
	assert.Equal(t, []string{"Ana in lobby", "steps=2", "blocked", "unblocked", "running"}, st.Messages())

	res = d.Apply(st, "wipe()")
	require.Empty(t, res.Diagnostics)
	assert.Empty(t, res.Scene)
	assert.Empty(t, st.Messages())
	label, ok := st.Finished()
	assert.True(t, ok)
	assert.Equal(t, state.DefaultFinishLabel, label)
}

func TestHandler_ErrorsBecomeDiagnostics(t *testing.T) {
	r := newRuntime(t, `
		return { effects = {
			boom = function(dream) error("kaboom") end,
			nowhere = function(dream) dream.go_to("") end,
		} }
	`)
	d := register(t, r)
	st := state.New()

	for _, action := range []string{"boom()", "nowhere()"} {
		res := d.Apply(st, action)
		require.Len(t, res.Diagnostics, 1, action)
		assert.Equal(t, ir.CodeHostEffectFailed, res.Diagnostics[0].Code)
		assert.False(t, res.Applied)
	}
	assert.Equal(t, state.InitialScene, st.Scene())
}

func TestHandler_Timeout(t *testing.T) {
	r := newRuntime(t, `
		return { effects = {
			spin = function(dream) while true do end end,
		} }
	`, WithTimeout(20*time.Millisecond))
	res := register(t, r).Apply(state.New(), "spin()")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, ir.CodeHostEffectFailed, res.Diagnostics[0].Code)
}

func TestHandler_FailureRollsBackState(t *testing.T) {
	r := newRuntime(t, `
		return { effects = {
			boom = function(dream)
				dream.increment("x")
				dream.go_to("elsewhere")
				dream.announce("half")
				dream.block()
				error("kaboom")
			end,
			spin = function(dream)
				while true do dream.increment("y") end
			end,
		} }
	`, WithTimeout(20*time.Millisecond))

	rules := []ir.Rule{
		{Condition: "a", Action: `boom()`, Category: ir.CategoryFlow},
		{Condition: "b", Action: `spin()`, Category: ir.CategoryFlow},
	}
	e := engine.New(rules,
		engine.WithDispatcher(register(t, r)),
		engine.WithState(ir.StateSnapshot{Scene: "hall", Counters: map[string]int64{"x": 2}, Messages: []string{"hello"}}),
	)

	for _, event := range []string{"a", "b"} {
		assert.Equal(t, "hall", e.Trigger(event), event)

		snap := e.State()
		assert.Equal(t, map[string]int64{"x": 2}, snap.Counters, event)
		assert.Equal(t, []string{"hello"}, snap.Messages, event)
		assert.False(t, snap.Blocked, event)

		hist := e.History()
		rec := hist[len(hist)-1]
		require.Len(t, rec.Diagnostics, 1, event)
		assert.Equal(t, ir.CodeHostEffectFailed, rec.Diagnostics[0].Code)
		assert.Equal(t, "hall", rec.SceneAfter)
		assert.Equal(t, map[string]int64{"x": 2}, rec.Counters)
	}
}

func TestRegister_RejectsBuiltin(t *testing.T) {
	r := newRuntime(t, `return { effects = { ["goto"] = function(dream) end } }`)
	err := r.Register(effect.NewDispatcher())
	assert.ErrorIs(t, err, effect.ErrReservedName)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fx.lua")
	require.NoError(t, os.WriteFile(path, []byte(`return { effects = { hi = function(dream) dream.announce("hi") end } }`), 0o644))

	r, err := NewRuntime()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.LoadFile(path))
	assert.Equal(t, []string{"hi"}, r.Effects())

	assert.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "missing.lua")))
}

func TestLanternWorld(t *testing.T) {
	src, err := os.ReadFile("../../testdata/worlds/lantern.dsl")
	require.NoError(t, err)
	prog := dsl.Parse(string(src))
	require.Empty(t, prog.Diagnostics)

	r, err := NewRuntime()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.LoadFile("../../testdata/worlds/lantern.lua"))

	e := engine.New(prog.Rules, engine.WithDispatcher(register(t, r)))

	assert.Equal(t, "lobby", e.Trigger("user.lightLantern"))
	assert.Equal(t, "lobby", e.Trigger("user.lightLantern"))
	assert.Equal(t, "bright", e.Trigger("user.lightLantern"))
	assert.Equal(t, int64(3), e.State().Counters["lanterns"])
	assert.Equal(t, "amber lantern 3 is lit.", e.State().Messages[2])

	e.Trigger("user.look")
	assert.Equal(t, "Light everywhere.", e.State().Messages[3])

	e.Trigger("user.snuff")
	hist := e.History()
	last := hist[len(hist)-1]
	require.Len(t, last.Diagnostics, 1)
	assert.Equal(t, ir.CodeHostEffectFailed, last.Diagnostics[0].Code)
	assert.Equal(t, "bright", last.SceneAfter)
}
