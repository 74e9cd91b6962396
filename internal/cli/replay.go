package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/engine"
	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/world"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	StoreOptions
	Scripts []string
}

// ReplayResult holds the replay result for one save.
type ReplayResult struct {
	WorldID       string              `json:"world_id"`
	ProgramHash   string              `json:"program_hash"`
	Events        int                 `json:"events"`
	Deterministic bool                `json:"deterministic"`
	FinalMatches  bool                `json:"final_matches"`
	Divergences   []engine.Divergence `json:"divergences"`
	Final         ir.StateSnapshot    `json:"final"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <world-dir> <world-id>",
		Short: "Re-run a saved history and verify determinism",
		Long: `Re-run the events of a saved game against the current world and verify
that every step fires the same rule, reaches the same scene and leaves
the same counters as recorded.

A divergence usually means the world's rules changed since the game was
saved. Timestamps are not compared.

Exit codes:
  0 - Replay matches the recording
  1 - Determinism verification failed (differences detected)
  2 - Command error (world or save not found, etc.)

Examples:
  dreamtheater replay ./worlds dreamflow --db ./saves.db
  dreamtheater replay ./worlds lantern --redis localhost:6379 --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], args[1], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringSliceVar(&opts.Scripts, "scripts", nil, "additional Lua effect scripts")

	return cmd
}

func runReplay(opts *ReplayOptions, dir, id string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	w, err := loadWorld(ctx, dir, id)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if !world.Validate(w) {
		return outputInvalidWorld(formatter, w)
	}

	scripts := append(append([]string(nil), w.Scripts...), opts.Scripts...)
	dispatcher, cleanup, err := buildDispatcher(scripts, logger)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	defer cleanup()

	st, err := opts.open(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	game, err := loadSave(ctx, st, id)
	if err != nil {
		return err
	}

	hash, err := ir.ProgramHash(w.Program.Rules)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash program", err)
	}

	formatter.VerboseLog("Replaying %d event(s) for %s", len(game.History), id)
	replayed := engine.Replay(w.Program.Rules, game.History,
		engine.WithDispatcher(dispatcher),
		engine.WithLogger(logger),
	)

	result := ReplayResult{
		WorldID:       id,
		ProgramHash:   hash,
		Events:        replayed.Events,
		Deterministic: replayed.Deterministic(),
		FinalMatches:  sameState(replayed.Final, game.State),
		Divergences:   replayed.Divergences,
		Final:         replayed.Final,
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd.OutOrStdout(), result)
	}
	return outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
}

// sameState compares the observable parts of two snapshots. Nil and empty
// collections are equal.
func sameState(a, b ir.StateSnapshot) bool {
	return a.Scene == b.Scene &&
		a.Finished == b.Finished &&
		a.Blocked == b.Blocked &&
		maps.Equal(a.Counters, b.Counters) &&
		slices.Equal(a.Messages, b.Messages)
}

func (r ReplayResult) ok() bool {
	return r.Deterministic && r.FinalMatches
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(w io.Writer, result ReplayResult) error {
	response := CLIResponse{
		Status:  "ok",
		Data:    result,
		TraceID: result.WorldID,
	}

	if !result.ok() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := encodeResponse(w, response); err != nil {
		return err
	}

	if !result.ok() {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	fmt.Fprintf(w, "Replay Summary: %s, %d event(s)\n", result.WorldID, result.Events)
	if verbose {
		fmt.Fprintf(w, "  Program: %s\n", result.ProgramHash)
	}
	fmt.Fprintln(w)

	for _, d := range result.Divergences {
		fmt.Fprintf(w, "  ✗ %s\n", d)
	}
	if !result.FinalMatches {
		fmt.Fprintln(w, "  ✗ final state differs from the saved state")
	}

	if result.ok() {
		fmt.Fprintf(w, "✓ Replay deterministic (final scene %s)\n", result.Final.Scene)
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
