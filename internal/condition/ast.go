// Package condition parses and evaluates rule guard expressions.
//
// A condition is a flat conjunction of terms joined by the keyword "and".
// Each term is either a comparison (LEFT OP RIGHT) or a bare event name that
// must equal the triggering event. Evaluation is pure: it reads state and
// never mutates it.
package condition

import (
	"fmt"
	"strings"
)

// State is the read-only view a condition is evaluated against.
type State interface {
	Scene() string
	Counter(name string) int64
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGe Op = ">="
	OpLe Op = "<="
	OpGt Op = ">"
	OpLt Op = "<"
)

// ops is ordered so two-character operators are tried before their
// one-character prefixes.
var ops = []Op{OpEq, OpNe, OpGe, OpLe, OpGt, OpLt}

// OperandKind tells how an operand token resolves against state.
type OperandKind int

const (
	// OperandString is a double-quoted literal.
	OperandString OperandKind = iota
	// OperandNumber is an integer or decimal numeral.
	OperandNumber
	// OperandScene is the reserved identifier `scene`.
	OperandScene
	// OperandCounter is any other identifier, read as a counter.
	OperandCounter
)

// Operand is one side of a comparison.
type Operand struct {
	Kind OperandKind
	// Text is the literal contents, numeral text or counter name.
	Text   string
	Number float64
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandString:
		return fmt.Sprintf("%q", o.Text)
	case OperandScene:
		return "scene"
	default:
		return o.Text
	}
}

// Term is one conjunct of a condition.
type Term interface {
	Holds(event string, st State) bool
	String() string
}

// EventMatch holds when the triggering event equals Name exactly.
type EventMatch struct {
	Name string
}

// Holds implements Term.
func (m EventMatch) Holds(event string, _ State) bool {
	return m.Name == event
}

func (m EventMatch) String() string {
	return m.Name
}

// Comparison compares two resolved operands.
type Comparison struct {
	Left  Operand
	Op    Op
	Right Operand
}

// Holds implements Term.
func (c Comparison) Holds(_ string, st State) bool {
	return compare(resolve(c.Left, st), resolve(c.Right, st), c.Op)
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// Conjunction holds iff every term holds. An empty conjunction never holds.
type Conjunction struct {
	Terms []Term
}

// Holds reports whether the conjunction is satisfied for the event and state.
func (c Conjunction) Holds(event string, st State) bool {
	if len(c.Terms) == 0 {
		return false
	}
	for _, t := range c.Terms {
		if !t.Holds(event, st) {
			return false
		}
	}
	return true
}

func (c Conjunction) String() string {
	parts := make([]string, len(c.Terms))
	for i, t := range c.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " and ")
}
