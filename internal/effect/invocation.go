// Package effect parses effect invocations and dispatches them against the
// narrative state.
//
// Action text has the form NAME(ARG, ARG, ...). Several invocations may be
// chained with ">>"; the chain is kept verbatim on the rule, but only the
// first invocation is executed.
package effect

import (
	"errors"
	"fmt"
	"strings"
)

// ChainSeparator joins invocations in one action text.
const ChainSeparator = ">>"

// ErrMalformed is returned when action text is not a NAME(ARGS) invocation.
var ErrMalformed = errors.New("malformed invocation")

// Invocation is a parsed effect call.
type Invocation struct {
	Name string
	Args []string
}

// Arg returns the i-th argument, or "" if absent.
func (inv Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

func (inv Invocation) String() string {
	quoted := make([]string, len(inv.Args))
	for i, a := range inv.Args {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf("%s(%s)", inv.Name, strings.Join(quoted, ", "))
}

// Parse parses the first invocation of an action text.
func Parse(text string) (Invocation, error) {
	segments := splitChain(text)
	return parseOne(segments[0])
}

// ParseChain parses every invocation of an action text, in order.
// Parsing stops at the first malformed segment; the invocations parsed
// before it are returned alongside the error.
func ParseChain(text string) ([]Invocation, error) {
	var out []Invocation
	for _, seg := range splitChain(text) {
		inv, err := parseOne(seg)
		if err != nil {
			return out, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// splitChain splits on ">>" outside quotes and parentheses.
// It always returns at least one segment.
func splitChain(text string) []string {
	var segments []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && strings.HasPrefix(text[i:], ChainSeparator):
			segments = append(segments, text[start:i])
			i += len(ChainSeparator) - 1
			start = i + 1
		}
	}
	return append(segments, text[start:])
}

func parseOne(seg string) (Invocation, error) {
	seg = strings.TrimSpace(seg)
	n := 0
	for n < len(seg) && isNameByte(seg[n]) {
		n++
	}
	if n == 0 {
		return Invocation{}, fmt.Errorf("%w: %q: expected effect name", ErrMalformed, seg)
	}
	name := seg[:n]
	rest := strings.TrimLeft(seg[n:], " \t")
	if !strings.HasPrefix(rest, "(") {
		return Invocation{}, fmt.Errorf("%w: %q: expected '(' after %s", ErrMalformed, seg, name)
	}

	args, tail, err := parseArgs(rest[1:])
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: %q: %v", ErrMalformed, seg, err)
	}
	if strings.TrimSpace(tail) != "" {
		return Invocation{}, fmt.Errorf("%w: %q: unexpected text after ')'", ErrMalformed, seg)
	}
	return Invocation{Name: name, Args: args}, nil
}

// parseArgs reads a comma-separated argument list up to the closing paren
// and returns the arguments plus the text after it. Quoted arguments have
// their quotes removed; unquoted arguments are trimmed. A trailing comma
// does not add an empty argument.
func parseArgs(s string) ([]string, string, error) {
	var args []string
	var cur strings.Builder
	quoted := false

	flush := func() {
		arg := cur.String()
		if !quoted {
			arg = strings.TrimSpace(arg)
		}
		args = append(args, arg)
		cur.Reset()
		quoted = false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ',':
			flush()
		case c == ')':
			if quoted || strings.TrimSpace(cur.String()) != "" {
				flush()
			}
			return args, s[i+1:], nil
		case quoted:
			if c != ' ' && c != '\t' {
				return nil, "", errors.New("text after quoted argument")
			}
		case c == '"':
			if strings.TrimSpace(cur.String()) != "" {
				return nil, "", errors.New("quote inside unquoted argument")
			}
			end, lit, err := readQuoted(s, i)
			if err != nil {
				return nil, "", err
			}
			cur.Reset()
			cur.WriteString(lit)
			quoted = true
			i = end
		default:
			cur.WriteByte(c)
		}
	}
	return nil, "", errors.New("missing ')'")
}

// readQuoted reads a double-quoted literal starting at s[start] and returns
// the index of the closing quote and the unescaped contents.
func readQuoted(s string, start int) (int, string, error) {
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			b.WriteByte(s[i])
			continue
		}
		if c == '"' {
			return i, b.String(), nil
		}
		b.WriteByte(c)
	}
	return 0, "", errors.New("unterminated string")
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
