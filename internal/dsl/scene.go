package dsl

import (
	"github.com/roach88/dreamtheater/internal/ir"
)

// parseScene parses `scene ID { field* }`. The `scene` keyword has been
// consumed. Once the opening brace is seen, a scene with a valid id is
// registered even when its body is malformed.
func (p *parser) parseScene(kw Token) {
	id := p.next()
	if id.Kind != Ident {
		p.warnf(ir.CodeSyntax, "", kw.Line, "expected scene identifier, found %s", id.describe())
		if id.Kind == LBrace {
			p.skipBlock()
		} else {
			p.unread(id)
		}
		return
	}

	valid := ValidSceneID(id.Text)
	if !valid {
		p.errorf(ir.CodeInvalidSceneID, id.Text, id.Line, "scene id %q must match [a-zA-Z0-9_-]+", id.Text)
	}

	brace := p.next()
	if brace.Kind != LBrace {
		p.warnf(ir.CodeSyntax, id.Text, id.Line, "expected '{' after scene %q, found %s", id.Text, brace.describe())
		p.unread(brace)
		return
	}

	scene := ir.Scene{ID: id.Text, Actions: []string{}, Line: kw.Line}
	hasDescription := p.parseSceneFields(&scene)
	if !valid {
		return
	}

	if !hasDescription || scene.Description == "" {
		p.errorf(ir.CodeMissingDescription, scene.ID, scene.Line, "scene %q is missing a description", scene.ID)
	}
	p.register(scene)
}

// parseSceneFields reads fields up to the closing brace and reports
// whether a description field was present.
func (p *parser) parseSceneFields(scene *ir.Scene) bool {
	hasDescription := false
	junk := false
	for {
		tok := p.next()
		switch tok.Kind {
		case RBrace:
			return hasDescription
		case EOF, Scene, When, Annotation, World:
			p.errorf(ir.CodeSyntax, scene.ID, scene.Line, "unterminated scene block %q", scene.ID)
			p.unread(tok)
			return hasDescription
		case Comma:
			continue
		case Ident:
			colon := p.next()
			if colon.Kind != Colon {
				p.warnf(ir.CodeSyntax, scene.ID, tok.Line, "expected ':' after field %q, found %s", tok.Text, colon.describe())
				p.unread(colon)
				continue
			}
			junk = false
			switch tok.Text {
			case "description":
				if s, ok := p.expectString(scene.ID, tok); ok {
					scene.Description = s
					hasDescription = true
				}
			case "hint":
				if s, ok := p.expectString(scene.ID, tok); ok {
					scene.Hint = s
				}
			case "actions":
				scene.Actions = p.parseActionList(scene.ID, tok)
			default:
				p.warnf(ir.CodeUnknownField, scene.ID, tok.Line, "unknown field %q in scene %q", tok.Text, scene.ID)
				p.skipValue()
			}
		default:
			if !junk {
				junk = true
				p.warnf(ir.CodeSyntax, scene.ID, tok.Line, "unexpected %s in scene %q", tok.describe(), scene.ID)
			}
		}
	}
}

func (p *parser) expectString(sceneID string, field Token) (string, bool) {
	tok := p.next()
	if tok.Kind != String {
		p.warnf(ir.CodeSyntax, sceneID, field.Line, "field %q expects a string, found %s", field.Text, tok.describe())
		if tok.Kind != Ident && tok.Kind != Illegal {
			p.unread(tok)
		}
		return "", false
	}
	return tok.Text, true
}

// parseActionList reads `[ entry, entry, ... ]`. Entries may be quoted
// strings or bare identifiers; a trailing comma is allowed.
func (p *parser) parseActionList(sceneID string, field Token) []string {
	actions := []string{}
	open := p.next()
	if open.Kind != LBracket {
		p.warnf(ir.CodeSyntax, sceneID, field.Line, "field %q expects a list, found %s", field.Text, open.describe())
		p.unread(open)
		return actions
	}
	for {
		tok := p.next()
		switch tok.Kind {
		case RBracket:
			return actions
		case Comma:
		case String, Ident:
			actions = append(actions, tok.Text)
		case RBrace, EOF, Scene, When, Annotation, World:
			p.warnf(ir.CodeSyntax, sceneID, open.Line, "unterminated actions list in scene %q", sceneID)
			p.unread(tok)
			return actions
		default:
			p.warnf(ir.CodeSyntax, sceneID, tok.Line, "unexpected %s in actions list", tok.describe())
		}
	}
}

// skipValue skips an unknown field's value: a single token, a bracketed
// list or a braced block.
func (p *parser) skipValue() {
	tok := p.next()
	switch tok.Kind {
	case LBracket:
		for {
			t := p.next()
			if t.Kind == RBracket {
				return
			}
			if t.Kind == EOF || t.Kind == RBrace {
				p.unread(t)
				return
			}
		}
	case LBrace:
		p.skipBlock()
	case String, Ident:
	default:
		p.unread(tok)
	}
}

// skipBlock skips tokens up to the brace matching one already consumed.
func (p *parser) skipBlock() {
	depth := 1
	for depth > 0 {
		switch p.next().Kind {
		case LBrace:
			depth++
		case RBrace:
			depth--
		case EOF:
			return
		}
	}
}

func (p *parser) register(scene ir.Scene) {
	if prev, dup := p.prog.Scenes[scene.ID]; dup {
		p.warnf(ir.CodeDuplicateScene, scene.ID, scene.Line,
			"scene %q redeclared (first declared on line %d); the later definition wins", scene.ID, prev.Line)
	} else {
		p.prog.SceneOrder = append(p.prog.SceneOrder, scene.ID)
	}
	p.prog.Scenes[scene.ID] = scene
}

// ValidSceneID reports whether id matches [a-zA-Z0-9_-]+.
func ValidSceneID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !isIdentByte(id[i]) || id[i] == '.' {
			return false
		}
	}
	return true
}
