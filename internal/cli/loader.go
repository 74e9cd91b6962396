package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/dsl"
	"github.com/roach88/dreamtheater/internal/effect"
	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/manifest"
	"github.com/roach88/dreamtheater/internal/scripting"
	"github.com/roach88/dreamtheater/internal/store"
	"github.com/roach88/dreamtheater/internal/store/redisstore"
	"github.com/roach88/dreamtheater/internal/world"
)

// LoadError represents an error that occurred while loading a world,
// its manifest or its scripts.
type LoadError struct {
	Code    string
	Message string
	Line    int // manifest line if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// readProgram reads and parses a single DSL file.
func readProgram(path string) (*ir.Program, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("world file not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}
	return dsl.Parse(string(data)), nil
}

// loadWorld loads id from the world directory dir, including its manifest.
func loadWorld(ctx context.Context, dir, id string) (*world.World, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("world directory not found: %s", dir), Err: err}
	}

	w, err := world.Load(ctx, world.NewDirSource(dir), id)
	if err != nil {
		return nil, convertLoadError(err, id)
	}
	return w, nil
}

// convertLoadError maps world and manifest errors to LoadErrors.
func convertLoadError(err error, id string) *LoadError {
	if errors.Is(err, world.ErrNotFound) {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("world not found: %s", id), Err: err}
	}
	var compileErr *manifest.CompileError
	if errors.As(err, &compileErr) {
		line := 0
		if compileErr.Pos.IsValid() {
			line = compileErr.Pos.Line()
		}
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("manifest %s: %s: %s", id, compileErr.Field, compileErr.Message),
			Line:    line,
			Err:     err,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
}

// buildDispatcher loads Lua effect scripts into a dispatcher. The returned
// cleanup closes the Lua runtime and must be called once the dispatcher is
// no longer used.
func buildDispatcher(scripts []string, logger *slog.Logger) (*effect.Dispatcher, func(), error) {
	d := effect.NewDispatcher()
	if len(scripts) == 0 {
		return d, func() {}, nil
	}

	rt, err := scripting.NewRuntime(scripting.WithLogger(logger))
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
	}
	for _, path := range scripts {
		logger.Debug("loading script", "path", path)
		if err := rt.LoadFile(path); err != nil {
			rt.Close()
			return nil, nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
		}
	}
	if err := rt.Register(d); err != nil {
		rt.Close()
		return nil, nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
	}
	return d, rt.Close, nil
}

// StoreOptions selects the save backend shared by play, trace and replay.
type StoreOptions struct {
	Database string
	Redis    string
	TTL      time.Duration
}

func (o *StoreOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite save database")
	cmd.Flags().StringVar(&o.Redis, "redis", "", "Redis address for saves (host:port)")
	cmd.Flags().DurationVar(&o.TTL, "ttl", 0, "expire Redis saves after this long (0 keeps them)")
	cmd.MarkFlagsMutuallyExclusive("db", "redis")
}

// configured reports whether a backend was selected.
func (o *StoreOptions) configured() bool {
	return o.Database != "" || o.Redis != ""
}

// open returns the selected store. Callers check configured first.
func (o *StoreOptions) open(logger *slog.Logger) (store.GameStore, error) {
	switch {
	case o.Redis != "":
		return redisstore.New(o.Redis, "", 0,
			redisstore.WithTTL(o.TTL),
			redisstore.WithLogger(logger),
		), nil
	case o.Database != "":
		st, err := store.Open(o.Database, store.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	default:
		return nil, NewExitError(ExitCommandError, "no save store configured: use --db or --redis")
	}
}

// loadSave fetches the save for worldID, mapping a missing save to a
// command error.
func loadSave(ctx context.Context, st store.GameStore, worldID string) (ir.SavedGame, error) {
	game, err := st.Load(ctx, worldID)
	if errors.Is(err, store.ErrNotFound) {
		return ir.SavedGame{}, WrapExitError(ExitCommandError, fmt.Sprintf("no save for world %s", worldID), err)
	}
	if err != nil {
		return ir.SavedGame{}, WrapExitError(ExitCommandError, "failed to load save", err)
	}
	return game, nil
}
