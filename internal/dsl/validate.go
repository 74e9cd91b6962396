package dsl

import (
	"github.com/roach88/dreamtheater/internal/effect"
	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/state"
)

// validate runs the whole-program checks and appends their diagnostics.
//
// CHECKS:
//   - action text that is not a NAME(ARGS) chain (D302, warning)
//   - goto targets that are not declared scenes, once per target per rule (D201)
//   - declared scenes that no goto targets, except the initial scene (D202)
//
// Reachability is syntactic: every goto in an action chain counts, whether
// or not its condition can ever hold and whether or not it is executed.
func validate(prog *ir.Program) {
	targets := make(map[string]bool)

	for _, rule := range prog.Rules {
		invs, err := effect.ParseChain(rule.Action)
		if err != nil {
			prog.Diagnostics = append(prog.Diagnostics,
				ir.Warnf(ir.CodeMalformedAction, rule.Action, rule.Line, "%v", err))
		}

		seen := make(map[string]bool)
		for _, target := range GotoTargets(invs) {
			targets[target] = true
			if seen[target] {
				continue
			}
			seen[target] = true
			if _, ok := prog.Scenes[target]; !ok {
				prog.Diagnostics = append(prog.Diagnostics,
					ir.Warnf(ir.CodeUndefinedScene, rule.Action, rule.Line,
						"rule action references undefined scene %q", target))
			}
		}
	}

	for _, id := range prog.SceneOrder {
		if id == state.InitialScene || targets[id] {
			continue
		}
		prog.Diagnostics = append(prog.Diagnostics,
			ir.Warnf(ir.CodeUnreachableScene, id, prog.Scenes[id].Line,
				"scene %q is not reachable from any rule", id))
	}
}

// GotoTargets returns the scene ids named by goto invocations, in order.
func GotoTargets(invs []effect.Invocation) []string {
	var out []string
	for _, inv := range invs {
		if b, ok := effect.LookupBuiltin(inv.Name); ok && b == effect.BuiltinGoto && inv.Arg(0) != "" {
			out = append(out, inv.Arg(0))
		}
	}
	return out
}
