// Package scripting lets worlds define host effects in Lua.
//
// A script returns a table with an `effects` field mapping effect names to
// functions:
//
//	return {
//	  effects = {
//	    lightLantern = function(dream, colour)
//	      local n = dream.increment("lanterns")
//	      dream.announce(colour .. " lantern " .. n)
//	      if n >= 3 then dream.go_to("bright") end
//	    end,
//	  },
//	}
//
// Each function is called with a `dream` table bound to the live state
// followed by the invocation's string arguments. A Lua error, or running
// past the configured timeout, fails the effect; the engine reports it as a
// D304 diagnostic and the trigger still completes.
//
// The dream table offers scene, go_to, counter, increment, announce,
// clear_announcements, finish, finished, block, unblock and blocked.
// go_to behaves like the goto built-in: it moves the scene and clears the
// blocked flag.
//
// The interpreter is sandboxed: only the base, table, string and math
// libraries are opened, and file loading is removed.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/roach88/dreamtheater/internal/effect"
)

// DefaultTimeout bounds a single effect call.
const DefaultTimeout = 250 * time.Millisecond

// Runtime owns one Lua interpreter and the effects loaded into it.
//
// Thread-safety: calls into the interpreter are serialised by a mutex.
type Runtime struct {
	mu      sync.Mutex
	L       *lua.LState
	effects map[string]*lua.LFunction
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithTimeout bounds each effect call. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.timeout = d
	}
}

// WithLogger sets the logger used for script loading.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// NewRuntime creates a sandboxed interpreter with no effects loaded.
func NewRuntime(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		L:       lua.NewState(lua.Options{SkipOpenLibs: true}),
		effects: make(map[string]*lua.LFunction),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := r.L.CallByParam(lua.P{
			Fn:      r.L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			r.L.Close()
			return nil, fmt.Errorf("open lua library %q: %w", lib.name, err)
		}
	}
	for _, name := range []string{"dofile", "loadfile", "require"} {
		r.L.SetGlobal(name, lua.LNil)
	}
	return r, nil
}

// Close releases the interpreter.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}

// LoadFile runs a script file and collects its effects.
func (r *Runtime) LoadFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn, err := r.L.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load lua file: %w", err)
	}
	return r.collect(path, fn)
}

// LoadString runs script source and collects its effects. name is used in
// error messages.
func (r *Runtime) LoadString(name, src string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn, err := r.L.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("load lua %s: %w", name, err)
	}
	return r.collect(name, fn)
}

func (r *Runtime) collect(name string, fn *lua.LFunction) error {
	r.L.Push(fn)
	if err := r.L.PCall(0, 1, nil); err != nil {
		return fmt.Errorf("run lua %s: %w", name, err)
	}
	val := r.L.Get(-1)
	r.L.Pop(1)

	root, ok := val.(*lua.LTable)
	if !ok {
		return fmt.Errorf("lua %s did not return a table", name)
	}
	effectsTable := tryGetTable(root, "effects")
	if effectsTable == nil {
		return fmt.Errorf("lua %s: expected a table field 'effects' at top level", name)
	}

	var errs []error
	found := map[string]*lua.LFunction{}
	effectsTable.ForEach(func(k, v lua.LValue) {
		effectName := lua.LVAsString(k)
		f, ok := v.(*lua.LFunction)
		if !ok {
			errs = append(errs, fmt.Errorf("effect '%s' is not a function", effectName))
			return
		}
		found[effectName] = f
	})
	if len(errs) > 0 {
		return fmt.Errorf("lua %s: %w", name, errors.Join(errs...))
	}

	for effectName, f := range found {
		r.effects[effectName] = f
	}
	r.logger.Debug("lua effects loaded", "script", name, "count", len(found))
	return nil
}

// Effects returns the loaded effect names, sorted.
func (r *Runtime) Effects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.effects))
	for name := range r.effects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds every loaded effect to d. It fails on the first name the
// dispatcher rejects, such as a built-in.
func (r *Runtime) Register(d *effect.Dispatcher) error {
	for _, name := range r.Effects() {
		if err := d.Register(name, r.handler(name)); err != nil {
			return fmt.Errorf("register lua effect: %w", err)
		}
	}
	return nil
}

func (r *Runtime) call(fn *lua.LFunction, args ...lua.LValue) error {
	if r.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.L.SetContext(ctx)
		defer r.L.RemoveContext()
	}
	return r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
}

func tryGetTable(t *lua.LTable, key string) *lua.LTable {
	if tbl, ok := t.RawGetString(key).(*lua.LTable); ok {
		return tbl
	}
	return nil
}
