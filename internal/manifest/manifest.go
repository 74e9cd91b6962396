// Package manifest compiles CUE world manifests.
//
// A manifest sits next to a world script as <id>.cue and carries metadata
// the DSL itself cannot express:
//
//	name:        "Dreamflow 2025"
//	description: "Descend three dream layers."
//	difficulty:  "medium"
//	scripts:     ["effects.lua"]
//
// Every field is optional. The manifest is unified with a closed schema, so
// unknown fields and out-of-range difficulties are compile errors.
package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dreamtheater/internal/ir"
)

const schemaSrc = `
#Manifest: {
	name?:        string & !=""
	description?: string
	difficulty?:  "easy" | "medium" | "hard"
	scripts?: [...string]
}
`

// Manifest is the compiled form of a world manifest.
type Manifest struct {
	Name        string
	Description string
	Difficulty  string

	// Scripts are Lua files, relative to the manifest, that define host
	// effects for the world.
	Scripts []string
}

// Apply overlays the manifest onto meta. Empty manifest fields leave meta
// unchanged.
func (m Manifest) Apply(meta ir.Metadata) ir.Metadata {
	if m.Name != "" {
		meta.Name = m.Name
	}
	if m.Description != "" {
		meta.Description = m.Description
	}
	if m.Difficulty != "" {
		meta.Difficulty = m.Difficulty
	}
	return meta
}

// CompileBytes compiles manifest source. filename is used for error
// positions only.
func CompileBytes(filename string, src []byte) (Manifest, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("manifest-schema.cue"))
	if err := schema.Err(); err != nil {
		return Manifest{}, fmt.Errorf("manifest schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Manifest{}, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Manifest{}, formatCUEError(err)
	}
	return Compile(unified)
}

// Compile reads a manifest from an already-validated CUE value.
func Compile(v cue.Value) (Manifest, error) {
	if err := v.Err(); err != nil {
		return Manifest{}, formatCUEError(err)
	}

	var m Manifest
	var err error
	if m.Name, err = optionalString(v, "name"); err != nil {
		return Manifest{}, err
	}
	if m.Description, err = optionalString(v, "description"); err != nil {
		return Manifest{}, err
	}
	if m.Difficulty, err = optionalString(v, "difficulty"); err != nil {
		return Manifest{}, err
	}

	scriptsVal := v.LookupPath(cue.ParsePath("scripts"))
	if scriptsVal.Exists() {
		iter, err := scriptsVal.List()
		if err != nil {
			return Manifest{}, formatCUEError(err)
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return Manifest{}, &CompileError{
					Field:   "scripts",
					Message: "script entries must be strings",
					Pos:     iter.Value().Pos(),
				}
			}
			m.Scripts = append(m.Scripts, s)
		}
	}
	return m, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a string", field),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a manifest error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
