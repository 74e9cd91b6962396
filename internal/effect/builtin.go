package effect

import (
	"github.com/roach88/dreamtheater/internal/state"
)

// Builtin enumerates the effects every dispatcher knows.
type Builtin int

const (
	BuiltinGoto Builtin = iota + 1
	BuiltinReveal
	BuiltinAnnounce
	BuiltinClearAnnouncements
	BuiltinFinish
	BuiltinBlock
)

var builtinNames = map[string]Builtin{
	"goto":               BuiltinGoto,
	"reveal":             BuiltinReveal,
	"announce":           BuiltinAnnounce,
	"clearAnnouncements": BuiltinClearAnnouncements,
	"finish":             BuiltinFinish,
	"block":              BuiltinBlock,
}

// LookupBuiltin resolves an effect name to a built-in.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinNames[name]
	return b, ok
}

func (b Builtin) String() string {
	for name, v := range builtinNames {
		if v == b {
			return name
		}
	}
	return "unknown"
}

// requiredArg names the argument a built-in cannot run without, if any.
func (b Builtin) requiredArg() string {
	switch b {
	case BuiltinGoto:
		return "scene id"
	case BuiltinReveal:
		return "counter name"
	case BuiltinAnnounce:
		return "message"
	default:
		return ""
	}
}

// apply runs a built-in against the state. Required arguments have already
// been checked. The returned scene is non-empty only for goto.
func (b Builtin) apply(st *state.DreamState, inv Invocation) string {
	switch b {
	case BuiltinGoto:
		st.SetScene(inv.Arg(0))
		st.Unblock()
		return st.Scene()
	case BuiltinReveal:
		st.Increment(inv.Arg(0))
	case BuiltinAnnounce:
		st.PushMessage(inv.Arg(0))
	case BuiltinClearAnnouncements:
		st.ClearMessages()
	case BuiltinFinish:
		st.Finish(inv.Arg(0))
	case BuiltinBlock:
		st.Block()
	}
	return ""
}
