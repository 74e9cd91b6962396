package effect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/state"
)

// Handler implements a host-defined effect. It receives the live state and
// the parsed arguments and may return a scene id to report as the result.
// Handlers mutate the state only through its primitives.
type Handler func(st *state.DreamState, args []string) (scene string, err error)

var (
	// ErrReservedName is returned when registering over a built-in effect.
	ErrReservedName = errors.New("effect name is reserved by a built-in")

	// ErrInvalidName is returned for names that cannot appear in action text.
	ErrInvalidName = errors.New("invalid effect name")
)

// Dispatcher resolves invocations to built-ins or registered handlers.
//
// Registration happens at startup; Apply is called from the engine's
// single writer, so the handler table needs no locking.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates a dispatcher with only the built-in effects.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register adds a host-defined effect. Re-registering a host name replaces
// the previous handler.
func (d *Dispatcher) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("register %q: %w", name, ErrInvalidName)
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return fmt.Errorf("register %q: %w", name, ErrInvalidName)
		}
	}
	if _, ok := LookupBuiltin(name); ok {
		return fmt.Errorf("register %q: %w", name, ErrReservedName)
	}
	d.handlers[name] = h
	return nil
}

// Names returns the sorted names of all known effects.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(builtinNames)+len(d.handlers))
	for name := range builtinNames {
		names = append(names, name)
	}
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result describes one dispatch.
type Result struct {
	// Effect is the invoked effect name; empty when the text did not parse.
	Effect string

	// Scene is the scene id reported by a transition effect.
	Scene string

	// Applied is false when the dispatch was a no-op.
	Applied bool

	Diagnostics []ir.Diagnostic
}

// Apply parses action text and runs its first invocation against st.
// It never fails: malformed text, unknown names and missing arguments leave
// the state untouched and are reported as warning diagnostics.
func (d *Dispatcher) Apply(st *state.DreamState, action string) Result {
	inv, err := Parse(action)
	if err != nil {
		return Result{Diagnostics: []ir.Diagnostic{
			ir.Warnf(ir.CodeMalformedAction, action, 0, "%v", err),
		}}
	}
	return d.Invoke(st, inv, action)
}

// Invoke runs an already parsed invocation. context is attached to any
// diagnostics (usually the rule's action text).
func (d *Dispatcher) Invoke(st *state.DreamState, inv Invocation, context string) Result {
	res := Result{Effect: inv.Name}

	if b, ok := LookupBuiltin(inv.Name); ok {
		if req := b.requiredArg(); req != "" && inv.Arg(0) == "" {
			res.Diagnostics = append(res.Diagnostics,
				ir.Warnf(ir.CodeMissingArgument, context, 0, "%s requires a %s", inv.Name, req))
			return res
		}
		res.Scene = b.apply(st, inv)
		res.Applied = true
		return res
	}

	h, ok := d.handlers[inv.Name]
	if !ok {
		res.Diagnostics = append(res.Diagnostics,
			ir.Warnf(ir.CodeUnknownEffect, context, 0, "unknown effect %q", inv.Name))
		return res
	}

	// A failing host effect must not leave a partial change behind.
	before := st.Snapshot()
	scene, err := h(st, inv.Args)
	if err != nil {
		st.Restore(before)
		res.Diagnostics = append(res.Diagnostics,
			ir.Warnf(ir.CodeHostEffectFailed, context, 0, "effect %q failed: %v", inv.Name, err))
		return res
	}
	res.Scene = scene
	res.Applied = true
	return res
}
