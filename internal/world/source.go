package world

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/dreamtheater/internal/manifest"
)

// ErrNotFound is returned when a source has no world with the requested id.
var ErrNotFound = errors.New("world not found")

// Source supplies world scripts by id.
type Source interface {
	Load(ctx context.Context, id string) (string, error)
	IDs() []string
}

// ManifestSource is implemented by sources that can also supply a CUE
// manifest for a world. found is false when the world has none.
type ManifestSource interface {
	Manifest(ctx context.Context, id string) (m manifest.Manifest, found bool, err error)
}

// LoaderFunc produces a world script on demand.
type LoaderFunc func(ctx context.Context) (string, error)

// Registry is an in-memory Source of registered loaders.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]LoaderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]LoaderFunc)}
}

// Register adds or replaces the loader for id.
func (r *Registry) Register(id string, loader LoaderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[id] = loader
}

// RegisterText registers a fixed script for id.
func (r *Registry) RegisterText(id, text string) {
	r.Register(id, func(context.Context) (string, error) { return text, nil })
}

// IDs returns the registered world ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.loaders))
	for id := range r.loaders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load runs the loader registered for id.
func (r *Registry) Load(ctx context.Context, id string) (string, error) {
	r.mu.RLock()
	loader, ok := r.loaders[id]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("load world %q: %w", id, ErrNotFound)
	}
	text, err := loader(ctx)
	if err != nil {
		return "", fmt.Errorf("load world %q: %w", id, err)
	}
	return text, nil
}

// DirSource reads worlds from a directory: <id>.dsl holds the script and
// an optional <id>.cue holds its manifest.
type DirSource struct {
	dir string
}

var (
	_ Source         = (*DirSource)(nil)
	_ ManifestSource = (*DirSource)(nil)
)

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Dir returns the root directory.
func (d *DirSource) Dir() string {
	return d.dir
}

// IDs lists every <id>.dsl in the directory, sorted. An unreadable
// directory yields no ids.
func (d *DirSource) IDs() []string {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".dsl" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".dsl"))
	}
	sort.Strings(ids)
	return ids
}

// Load reads <id>.dsl.
func (d *DirSource) Load(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := d.path(id, ".dsl")
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("load world %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load world %q: %w", id, err)
	}
	return string(data), nil
}

// Manifest compiles <id>.cue if present. Script paths are resolved against
// the directory.
func (d *DirSource) Manifest(ctx context.Context, id string) (manifest.Manifest, bool, error) {
	if err := ctx.Err(); err != nil {
		return manifest.Manifest{}, false, err
	}
	path, err := d.path(id, ".cue")
	if err != nil {
		return manifest.Manifest{}, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return manifest.Manifest{}, false, nil
	}
	if err != nil {
		return manifest.Manifest{}, false, fmt.Errorf("read manifest %q: %w", id, err)
	}
	m, err := manifest.CompileBytes(path, data)
	if err != nil {
		return manifest.Manifest{}, false, fmt.Errorf("compile manifest %q: %w", id, err)
	}
	for i, s := range m.Scripts {
		if !filepath.IsAbs(s) {
			m.Scripts[i] = filepath.Join(d.dir, s)
		}
	}
	return m, true, nil
}

// path rejects ids that would escape the directory.
func (d *DirSource) path(id, ext string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("load world %q: %w", id, ErrNotFound)
	}
	return filepath.Join(d.dir, id+ext), nil
}
