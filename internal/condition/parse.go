package condition

import (
	"strconv"
	"strings"
)

// Parse compiles condition text into a Conjunction. It never fails: text
// that is not a comparison becomes an event match.
//
// Terms are split on the raw substring "and". This also splits inside
// identifiers or literals that contain it (a counter named "sandbox"
// becomes the terms "s" and "box"); scripts must avoid such names.
func Parse(text string) Conjunction {
	var c Conjunction
	for _, part := range strings.Split(text, "and") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c.Terms = append(c.Terms, parseTerm(part))
	}
	return c
}

// Evaluate parses and evaluates a condition in one step.
func Evaluate(text, event string, st State) bool {
	return Parse(text).Holds(event, st)
}

func parseTerm(part string) Term {
	if cmp, ok := parseComparison(part); ok {
		return cmp
	}
	return EventMatch{Name: part}
}

// parseComparison recognises `TOKEN OP RIGHT` where RIGHT is a non-empty
// double-quoted literal or a bare token, and the whole part is consumed.
func parseComparison(part string) (Comparison, bool) {
	n := tokenLen(part)
	if n == 0 {
		return Comparison{}, false
	}
	left := part[:n]
	rest := strings.TrimLeft(part[n:], " \t")

	var op Op
	for _, candidate := range ops {
		if strings.HasPrefix(rest, string(candidate)) {
			op = candidate
			break
		}
	}
	if op == "" {
		return Comparison{}, false
	}
	rest = strings.TrimLeft(rest[len(op):], " \t")

	right, ok := parseRight(rest)
	if !ok {
		return Comparison{}, false
	}
	return Comparison{Left: operandFor(left), Op: op, Right: right}, true
}

func parseRight(s string) (Operand, bool) {
	if strings.HasPrefix(s, `"`) {
		inner := s[1:]
		end := strings.IndexByte(inner, '"')
		if end <= 0 || end != len(inner)-1 {
			return Operand{}, false
		}
		return Operand{Kind: OperandString, Text: inner[:end]}, true
	}
	if n := tokenLen(s); n > 0 && n == len(s) {
		return operandFor(s), true
	}
	return Operand{}, false
}

func operandFor(tok string) Operand {
	if isNumeral(tok) {
		f, _ := strconv.ParseFloat(tok, 64)
		return Operand{Kind: OperandNumber, Text: tok, Number: f}
	}
	if tok == "scene" {
		return Operand{Kind: OperandScene, Text: tok}
	}
	return Operand{Kind: OperandCounter, Text: tok}
}

// tokenLen returns the length of the leading run of [a-zA-Z0-9_.-].
func tokenLen(s string) int {
	i := 0
	for i < len(s) && isTokenByte(s[i]) {
		i++
	}
	return i
}

func isTokenByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' ||
		b == '_' || b == '.' || b == '-'
}

// isNumeral matches -?\d+(\.\d+)?
func isNumeral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if !allDigits(intPart) {
		return false
	}
	return !hasFrac || allDigits(frac)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
