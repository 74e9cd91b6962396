// Package world loads DreamTheater worlds from a Source.
//
// A world is a parsed DSL script plus metadata. The name comes from the
// script's `world NAME { ... }` wrapper, falling back to the id; sources
// that implement ManifestSource may override name, description and
// difficulty and list Lua scripts for host effects.
package world

import (
	"context"

	"github.com/roach88/dreamtheater/internal/dsl"
	"github.com/roach88/dreamtheater/internal/ir"
)

// World is a loaded, parsed world.
type World struct {
	Metadata ir.Metadata
	Program  *ir.Program
	Source   string

	// Scripts are Lua files defining host effects, from the manifest.
	Scripts []string
}

// Load fetches id from src, parses it and builds its metadata. Parse
// problems are reported as diagnostics on Program, not as an error.
func Load(ctx context.Context, src Source, id string) (*World, error) {
	text, err := src.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	prog := dsl.Parse(text)
	meta := ir.Metadata{
		ID:          id,
		Name:        prog.World,
		Description: ir.DefaultWorldDescription,
	}
	if meta.Name == "" {
		meta.Name = id
	}

	w := &World{Metadata: meta, Program: prog, Source: text}
	if ms, ok := src.(ManifestSource); ok {
		m, found, err := ms.Manifest(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			w.Metadata = m.Apply(w.Metadata)
			w.Scripts = m.Scripts
		}
	}
	return w, nil
}

// Validate reports whether the world has no error diagnostics.
// Warnings do not make a world invalid.
func Validate(w *World) bool {
	return !w.Program.HasErrors()
}

// LoadAll loads every id in src, in IDs order. It stops at the first error.
func LoadAll(ctx context.Context, src Source) ([]*World, error) {
	var worlds []*World
	for _, id := range src.IDs() {
		w, err := Load(ctx, src, id)
		if err != nil {
			return nil, err
		}
		worlds = append(worlds, w)
	}
	return worlds, nil
}
