package ir

import "strings"

// Category classifies a rule by its optional @annotation.
// It is descriptive metadata and does not change evaluation order.
type Category string

const (
	CategoryFlow   Category = "flow"
	CategoryGuard  Category = "guard"
	CategoryEffect Category = "effect"
	CategorySystem Category = "system"
)

// CategoryFromAnnotation maps an annotation token (without the leading @)
// to a rule category. Matching is case-insensitive; unknown or empty
// annotations map to CategoryFlow.
func CategoryFromAnnotation(annotation string) Category {
	switch strings.ToLower(annotation) {
	case "guard", "physics":
		return CategoryGuard
	case "effect":
		return CategoryEffect
	case "system":
		return CategorySystem
	default:
		return CategoryFlow
	}
}

// Rule maps a guard condition to an effect invocation.
//
// Condition and Action hold the source text verbatim. They are compiled
// into ASTs by the engine at construction time.
type Rule struct {
	Condition string   `json:"condition"`
	Action    string   `json:"action"`
	Category  Category `json:"category"`

	// Label is the annotation as written, without '@'. It is not consulted
	// during evaluation.
	Label string `json:"label,omitempty"`

	// Line is the 1-based source line of the `when` keyword (0 if unknown).
	Line int `json:"line,omitempty"`
}

// Scene is a named narrative state declared in the DSL.
type Scene struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
	Hint        string   `json:"hint,omitempty"`
	Line        int      `json:"line,omitempty"`
}

// Program is the result of parsing DSL text.
//
// INVARIANTS:
//   - Rules are in source order
//   - SceneOrder lists each key of Scenes exactly once, in declaration order
//   - Diagnostics is never nil after Parse
type Program struct {
	// World is the name from a top-level `world NAME { ... }` wrapper.
	// Empty means no wrapper was present.
	World       string           `json:"world,omitempty"`
	Rules       []Rule           `json:"rules"`
	Scenes      map[string]Scene `json:"scenes"`
	SceneOrder  []string         `json:"scene_order"`
	Diagnostics []Diagnostic     `json:"diagnostics"`
}

// HasErrors reports whether any diagnostic has error severity.
func (p *Program) HasErrors() bool {
	for _, d := range p.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity diagnostics.
func (p *Program) Errors() []Diagnostic {
	return p.filter(SeverityError)
}

// Warnings returns the warning-severity diagnostics.
func (p *Program) Warnings() []Diagnostic {
	return p.filter(SeverityWarning)
}

func (p *Program) filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range p.Diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Metadata describes a loaded world.
type Metadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty,omitempty"`
}
