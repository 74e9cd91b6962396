package scripting

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/roach88/dreamtheater/internal/effect"
	"github.com/roach88/dreamtheater/internal/state"
)

// handler adapts the named Lua function to an effect.Handler.
func (r *Runtime) handler(name string) effect.Handler {
	return func(st *state.DreamState, args []string) (string, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		fn, ok := r.effects[name]
		if !ok {
			return "", fmt.Errorf("lua effect %q is not loaded", name)
		}

		call := &apiCall{st: st}
		params := []lua.LValue{r.dreamTable(call)}
		for _, a := range args {
			params = append(params, lua.LString(a))
		}
		if err := r.call(fn, params...); err != nil {
			return "", err
		}
		return call.scene, nil
	}
}

// apiCall is the per-invocation binding between Lua and the state.
type apiCall struct {
	st *state.DreamState

	// scene is set when the script transitions.
	scene string
}

// dreamTable builds the `dream` API table passed to every effect.
func (r *Runtime) dreamTable(c *apiCall) *lua.LTable {
	L := r.L
	dream := L.NewTable()

	L.SetField(dream, "scene", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(c.st.Scene()))
		return 1
	}))
	L.SetField(dream, "go_to", L.NewFunction(func(L *lua.LState) int {
		id := strings.TrimSpace(L.CheckString(1))
		if id == "" {
			L.ArgError(1, "dream.go_to: scene id must not be empty")
			return 0
		}
		c.st.SetScene(id)
		c.st.Unblock()
		c.scene = c.st.Scene()
		return 0
	}))
	L.SetField(dream, "counter", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(c.st.Counter(L.CheckString(1))))
		return 1
	}))
	L.SetField(dream, "increment", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(c.st.Increment(L.CheckString(1))))
		return 1
	}))
	L.SetField(dream, "announce", L.NewFunction(func(L *lua.LState) int {
		c.st.PushMessage(L.CheckString(1))
		return 0
	}))
	L.SetField(dream, "clear_announcements", L.NewFunction(func(L *lua.LState) int {
		c.st.ClearMessages()
		return 0
	}))
	L.SetField(dream, "finish", L.NewFunction(func(L *lua.LState) int {
		c.st.Finish(L.OptString(1, ""))
		return 0
	}))
	L.SetField(dream, "finished", L.NewFunction(func(L *lua.LState) int {
		label, ok := c.st.Finished()
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(label))
		return 1
	}))
	L.SetField(dream, "block", L.NewFunction(func(L *lua.LState) int {
		c.st.Block()
		return 0
	}))
	L.SetField(dream, "unblock", L.NewFunction(func(L *lua.LState) int {
		c.st.Unblock()
		return 0
	}))
	L.SetField(dream, "blocked", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(c.st.Blocked()))
		return 1
	}))
	return dream
}
