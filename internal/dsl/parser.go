package dsl

import (
	"github.com/roach88/dreamtheater/internal/ir"
)

// Parse parses DSL text into a program.
//
// Parse is total: it never panics and never returns an error. Malformed
// input yields whatever scenes and rules could be recovered plus
// diagnostics describing the rest. Validation (undefined goto targets,
// reachability) runs on the result before it is returned.
func Parse(text string) *ir.Program {
	p := &parser{
		lx: NewLexer(text),
		prog: &ir.Program{
			Rules:       []ir.Rule{},
			Scenes:      make(map[string]ir.Scene),
			SceneOrder:  []string{},
			Diagnostics: []ir.Diagnostic{},
		},
	}
	p.parseBody(false)
	validate(p.prog)
	return p.prog
}

type parser struct {
	lx   *Lexer
	prog *ir.Program

	// pushed holds one token returned by unread.
	pushed *Token

	// junk is set while skipping a run of unexpected tokens so that the
	// run is reported once.
	junk bool
}

func (p *parser) next() Token {
	if p.pushed != nil {
		tok := *p.pushed
		p.pushed = nil
		return tok
	}
	return p.lx.Next()
}

// unread pushes tok back. Only the most recently read token may be pushed
// back, and only if nothing was lexed after it.
func (p *parser) unread(tok Token) {
	p.pushed = &tok
}

func (p *parser) errorf(code, context string, line int, format string, args ...any) {
	p.prog.Diagnostics = append(p.prog.Diagnostics, ir.Errorf(code, context, line, format, args...))
}

func (p *parser) warnf(code, context string, line int, format string, args ...any) {
	p.prog.Diagnostics = append(p.prog.Diagnostics, ir.Warnf(code, context, line, format, args...))
}

// parseBody parses scenes and rules until EOF, or until the closing brace
// when inside a world block.
func (p *parser) parseBody(inWorld bool) {
	for {
		tok := p.next()
		switch tok.Kind {
		case EOF:
			if inWorld {
				p.errorf(ir.CodeSyntax, p.prog.World, tok.Line, "unterminated world block %q", p.prog.World)
			}
			return
		case RBrace:
			if inWorld {
				p.junk = false
				return
			}
			p.unexpected(tok)
		case World:
			p.junk = false
			p.parseWorld(tok)
		case Scene:
			p.junk = false
			p.parseScene(tok)
		case When:
			p.junk = false
			p.parseRule(ir.CategoryFlow, "", tok.Line)
		case Annotation:
			p.junk = false
			p.parseAnnotated(tok)
		default:
			p.unexpected(tok)
		}
	}
}

// unexpected reports a stray token, once per run of stray tokens.
func (p *parser) unexpected(tok Token) {
	if p.junk {
		return
	}
	p.junk = true
	p.warnf(ir.CodeSyntax, tok.Text, tok.Line, "unexpected %s", tok.describe())
}

func (p *parser) parseWorld(kw Token) {
	name := p.next()
	if name.Kind != Ident {
		p.warnf(ir.CodeSyntax, "", kw.Line, "expected world name after 'world', found %s", name.describe())
		p.unread(name)
		return
	}
	brace := p.next()
	if brace.Kind != LBrace {
		p.warnf(ir.CodeSyntax, name.Text, name.Line, "expected '{' after world %q, found %s", name.Text, brace.describe())
		p.unread(brace)
		return
	}

	if p.prog.World == "" {
		p.prog.World = name.Text
	} else {
		p.warnf(ir.CodeSyntax, name.Text, kw.Line, "additional world block %q merged into %q", name.Text, p.prog.World)
	}
	p.parseBody(true)
}

func (p *parser) parseAnnotated(ann Token) {
	tok := p.next()
	if tok.Kind != When {
		p.warnf(ir.CodeDanglingAnnotation, "@"+ann.Text, ann.Line, "annotation @%s is not followed by a rule", ann.Text)
		p.unread(tok)
		return
	}
	p.parseRule(ir.CategoryFromAnnotation(ann.Text), ann.Text, tok.Line)
}

func (p *parser) parseRule(cat ir.Category, annotation string, line int) {
	cond, ok := p.lx.RawCondition()
	if !ok {
		p.errorf(ir.CodeMissingLeadsTo, cond, line, "rule is missing 'leadsTo'")
		return
	}
	action := p.lx.RawAction()

	switch {
	case cond == "":
		p.errorf(ir.CodeEmptyRule, action, line, "rule has an empty condition")
		return
	case action == "":
		p.errorf(ir.CodeEmptyRule, cond, line, "rule has an empty action")
		return
	}

	p.prog.Rules = append(p.prog.Rules, ir.Rule{
		Condition: cond,
		Action:    action,
		Category:  cat,
		Label:     annotation,
		Line:      line,
	})
}
