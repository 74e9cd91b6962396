package dsl

import (
	"strings"
	"unicode/utf8"
)

// Kind identifies a lexical token.
type Kind int

const (
	EOF Kind = iota
	Illegal
	World
	Scene
	Ident
	String
	When
	LeadsTo
	Annotation
	LBrace
	RBrace
	LBracket
	RBracket
	Colon
	Comma
)

var kindNames = [...]string{
	EOF:        "end of input",
	Illegal:    "illegal",
	World:      "world",
	Scene:      "scene",
	Ident:      "identifier",
	String:     "string",
	When:       "when",
	LeadsTo:    "leadsTo",
	Annotation: "annotation",
	LBrace:     "'{'",
	RBrace:     "'}'",
	LBracket:   "'['",
	RBracket:   "']'",
	Colon:      "':'",
	Comma:      "','",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var keywords = map[string]Kind{
	"world":   World,
	"scene":   Scene,
	"when":    When,
	"leadsTo": LeadsTo,
}

// Token is one lexical unit. For String tokens Text holds the unescaped
// contents; for Annotation tokens it holds the name without '@'.
type Token struct {
	Kind Kind
	Text string
	Line int
}

func (t Token) describe() string {
	switch t.Kind {
	case EOF:
		return t.Kind.String()
	case String:
		return "string \"" + t.Text + "\""
	case Annotation:
		return "@" + t.Text
	default:
		return "'" + t.Text + "'"
	}
}

// Normalize converts CRLF and lone CR line endings to LF.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Lexer splits DSL text into tokens.
//
// Conditions and actions are not tokenized: after a `when` token the parser
// asks for the raw condition text with RawCondition, and after that for the
// raw action text with RawAction. Both are kept verbatim.
type Lexer struct {
	src  string
	pos  int
	line int
}

// NewLexer creates a lexer over text. Line endings are normalized first.
func NewLexer(text string) *Lexer {
	return &Lexer{src: Normalize(text), line: 1}
}

// Line returns the current 1-based line.
func (l *Lexer) Line() int {
	return l.line
}

// Next returns the next token. It never fails: unknown input comes back as
// Illegal tokens, one rune at a time.
func (l *Lexer) Next() Token {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Line: l.line}
	}

	line := l.line
	c := l.src[l.pos]
	if k, ok := punct(c); ok {
		l.pos++
		return Token{Kind: k, Text: string(c), Line: line}
	}

	switch {
	case c == '"':
		return l.scanString()
	case c == '@':
		n := identLen(l.src[l.pos+1:])
		if n == 0 {
			l.pos++
			return Token{Kind: Illegal, Text: "@", Line: line}
		}
		text := l.src[l.pos+1 : l.pos+1+n]
		l.pos += 1 + n
		return Token{Kind: Annotation, Text: text, Line: line}
	}

	if n := identLen(l.src[l.pos:]); n > 0 {
		text := l.src[l.pos : l.pos+n]
		l.pos += n
		if k, ok := keywords[text]; ok {
			return Token{Kind: k, Text: text, Line: line}
		}
		return Token{Kind: Ident, Text: text, Line: line}
	}

	_, size := utf8.DecodeRuneInString(l.src[l.pos:])
	text := l.src[l.pos : l.pos+size]
	l.pos += size
	return Token{Kind: Illegal, Text: text, Line: line}
}

// RawCondition captures the text after `when` up to a `leadsTo` keyword on
// the same line. ok is false when the line ends, or an unquoted '}'
// appears, before `leadsTo`; the lexer is then left at that point.
func (l *Lexer) RawCondition() (text string, ok bool) {
	start := l.pos
	inQuote := false
	for i := start; i < len(l.src); i++ {
		c := l.src[i]
		if inQuote {
			switch c {
			case '\\':
				if i+1 < len(l.src) && l.src[i+1] != '\n' {
					i++
				}
			case '"':
				inQuote = false
			case '\n':
				l.advanceTo(i)
				return strings.TrimSpace(l.src[start:i]), false
			}
			continue
		}
		switch {
		case c == '"':
			inQuote = true
		case c == '\n' || c == '}':
			l.advanceTo(i)
			return strings.TrimSpace(l.src[start:i]), false
		case isWordAt(l.src, i, "leadsTo"):
			l.advanceTo(i + len("leadsTo"))
			return strings.TrimSpace(l.src[start:i]), true
		}
	}
	l.advanceTo(len(l.src))
	return strings.TrimSpace(l.src[start:]), false
}

// RawAction captures the action text after `leadsTo`. It ends at the end
// of the line, at a comment, or, outside parentheses and quotes, at a '}'
// or at the start of the next rule or scene.
func (l *Lexer) RawAction() string {
	start := l.pos
	end := len(l.src)
	depth := 0
	inQuote := false

scan:
	for i := start; i < len(l.src); i++ {
		c := l.src[i]
		if inQuote {
			switch c {
			case '\\':
				if i+1 < len(l.src) && l.src[i+1] != '\n' {
					i++
				}
			case '"':
				inQuote = false
			case '\n':
				end = i
				break scan
			}
			continue
		}

		switch {
		case c == '"':
			inQuote = true
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == '\n':
			end = i
			break scan
		case depth > 0:
		case c == '}':
			end = i
			break scan
		case strings.HasPrefix(l.src[i:], "//"):
			end = i
			break scan
		case (c == '#' || c == '@') && (i == start || isSpace(l.src[i-1])):
			end = i
			break scan
		case isWordAt(l.src, i, "when") || isWordAt(l.src, i, "scene"):
			end = i
			break scan
		}
	}

	l.advanceTo(end)
	return strings.TrimSpace(l.src[start:end])
}

func (l *Lexer) scanString() Token {
	line := l.line
	var b strings.Builder
	for i := l.pos + 1; i < len(l.src); i++ {
		c := l.src[i]
		switch c {
		case '"':
			l.pos = i + 1
			return Token{Kind: String, Text: b.String(), Line: line}
		case '\n':
			text := l.src[l.pos:i]
			l.pos = i
			return Token{Kind: Illegal, Text: text, Line: line}
		case '\\':
			if i+1 < len(l.src) && l.src[i+1] != '\n' {
				i++
				switch l.src[i] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				default:
					b.WriteByte(l.src[i])
				}
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	text := l.src[l.pos:]
	l.pos = len(l.src)
	return Token{Kind: Illegal, Text: text, Line: line}
}

// skipSpace skips whitespace and `//` or `#` comments.
func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case isSpace(c):
			l.pos++
		case c == '#' || strings.HasPrefix(l.src[l.pos:], "//"):
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) advanceTo(i int) {
	l.line += strings.Count(l.src[l.pos:i], "\n")
	l.pos = i
}

func punct(c byte) (Kind, bool) {
	switch c {
	case '{':
		return LBrace, true
	case '}':
		return RBrace, true
	case '[':
		return LBracket, true
	case ']':
		return RBracket, true
	case ':':
		return Colon, true
	case ',':
		return Comma, true
	}
	return 0, false
}

func identLen(s string) int {
	n := 0
	for n < len(s) && isIdentByte(s[n]) {
		n++
	}
	return n
}

func isIdentByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' ||
		b == '_' || b == '.' || b == '-'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\f' || b == '\v'
}

// isWordAt reports whether word occurs at s[i] as a whole identifier.
func isWordAt(s string, i int, word string) bool {
	if !strings.HasPrefix(s[i:], word) {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	j := i + len(word)
	return j == len(s) || !isIdentByte(s[j])
}
