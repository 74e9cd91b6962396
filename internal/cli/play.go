package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/engine"
	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/metrics"
	"github.com/roach88/dreamtheater/internal/store"
	"github.com/roach88/dreamtheater/internal/world"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	StoreOptions

	Scripts    []string // extra Lua effect scripts
	Fresh      bool     // ignore an existing save
	MetricsOut string   // Prometheus textfile path

	// TimeSource overrides record timestamps (for testing).
	// If nil, the engine uses wall time.
	TimeSource engine.TimeSource
}

// PlayStep is one event fed to the engine during play.
type PlayStep struct {
	Seq        int64    `json:"seq"`
	Event      string   `json:"event"`
	RuleAction string   `json:"rule_action,omitempty"`
	Scene      string   `json:"scene"`
	Messages   []string `json:"messages,omitempty"`
}

// PlayResult summarises a play session.
type PlayResult struct {
	World    string           `json:"world"`
	Resumed  bool             `json:"resumed"`
	Steps    []PlayStep       `json:"steps"`
	Final    ir.StateSnapshot `json:"final"`
	Saved    bool             `json:"saved"`
	Warnings []ir.Diagnostic  `json:"warnings,omitempty"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <world-dir> <world-id>",
		Short: "Play a world, reading events from stdin",
		Long: `Load a world and feed it events, one per line, from standard input.

After each event the resulting scene and any new announcements are
printed. Blank lines and lines starting with '#' are skipped. Play stops
at end of input or when the story finishes.

With --db or --redis an existing save for the world is restored first
(unless --fresh) and the game is saved when play stops.

Lua effect scripts listed in the world's manifest are loaded
automatically; --scripts adds more.

Examples:
  echo user.enterLayerOne | dreamtheater play ./worlds dreamflow
  dreamtheater play ./worlds lantern --db ./saves.db < events.txt
  dreamtheater play ./worlds lantern --redis localhost:6379 --ttl 24h`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], args[1], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringSliceVar(&opts.Scripts, "scripts", nil, "additional Lua effect scripts")
	cmd.Flags().BoolVar(&opts.Fresh, "fresh", false, "start from the beginning even if a save exists")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus metrics to this file when play stops")

	return cmd
}

func runPlay(opts *PlayOptions, dir, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := loadWorld(ctx, dir, id)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if !world.Validate(w) {
		return outputInvalidWorld(formatter, w)
	}
	logger.Info("world loaded", "world", w.Metadata.ID, "name", w.Metadata.Name, "rules", len(w.Program.Rules))

	scripts := append(append([]string(nil), w.Scripts...), opts.Scripts...)
	dispatcher, cleanup, err := buildDispatcher(scripts, logger)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDispatcher(dispatcher),
		engine.WithObserver(m.ForWorld(id)),
	}
	if opts.TimeSource != nil {
		engineOpts = append(engineOpts, engine.WithTimeSource(opts.TimeSource))
	}

	var st store.GameStore
	var saved ir.SavedGame
	result := PlayResult{World: id, Steps: []PlayStep{}, Warnings: w.Program.Warnings()}

	if opts.configured() {
		st, err = opts.open(logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing store", "error", closeErr)
			}
		}()

		saved, err = st.Load(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			saved = ir.SavedGame{}
		case err != nil:
			return WrapExitError(ExitCommandError, "failed to load save", err)
		case opts.Fresh:
			logger.Info("ignoring existing save", "world", id, "events", len(saved.History))
		default:
			logger.Info("resuming save", "world", id, "events", len(saved.History), "scene", saved.State.Scene)
			engineOpts = append(engineOpts, engine.WithState(saved.State), engine.WithHistory(saved.History))
			result.Resumed = true
		}
	}

	e := engine.New(w.Program.Rules, engineOpts...)

	if formatter.Format != "json" {
		fmt.Fprintf(formatter.Writer, "%s\n", w.Metadata.Name)
		printScene(formatter.Writer, w.Program, e.State().Scene)
	}

	if err := playEvents(ctx, e, w.Program, cmd.InOrStdin(), formatter, &result); err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	result.Final = e.State()

	if st != nil {
		game := ir.SavedGame{
			ID:        saved.ID,
			WorldID:   id,
			State:     result.Final,
			History:   e.History(),
			Timestamp: time.Now().UnixMilli(),
		}
		// Saving must survive an interrupt that ended play.
		if _, err := st.Save(context.WithoutCancel(ctx), game); err != nil {
			return WrapExitError(ExitCommandError, "failed to save game", err)
		}
		result.Saved = true
		logger.Info("game saved", "world", id, "events", len(game.History))
	}

	if opts.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsOut, reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result, TraceID: id}
		return encodeResponse(formatter.Writer, response)
	}

	if result.Final.Finished != "" {
		fmt.Fprintf(formatter.Writer, "Finished: %s\n", result.Final.Finished)
	}
	if result.Saved {
		fmt.Fprintf(formatter.Writer, "Saved %d event(s)\n", len(e.History()))
	}
	return nil
}

// playEvents feeds r line by line to e until input ends, the context is
// cancelled, or the story finishes.
func playEvents(ctx context.Context, e *engine.Engine, prog *ir.Program, r io.Reader, formatter *OutputFormatter, result *PlayResult) error {
	prev := e.State().Messages
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if e.State().Finished != "" {
			return nil
		}

		event := strings.TrimSpace(scanner.Text())
		if event == "" || strings.HasPrefix(event, "#") {
			continue
		}

		scene := e.Trigger(event)
		history := e.History()
		rec := history[len(history)-1]

		msgs := e.State().Messages
		step := PlayStep{
			Seq:        rec.Seq,
			Event:      event,
			RuleAction: rec.RuleAction,
			Scene:      scene,
			Messages:   newMessages(prev, msgs),
		}
		prev = msgs
		result.Steps = append(result.Steps, step)

		if formatter.Format != "json" {
			printStep(formatter.Writer, step, rec)
			if rec.SceneAfter != rec.SceneBefore {
				printScene(formatter.Writer, prog, scene)
			}
		}
	}
	return scanner.Err()
}

// newMessages returns the messages in cur that were not shown yet. When
// prev is no longer a prefix of cur the list was cleared in between, so
// every current message is new.
func newMessages(prev, cur []string) []string {
	if len(prev) <= len(cur) && slices.Equal(prev, cur[:len(prev)]) {
		return cur[len(prev):]
	}
	return cur
}

func printStep(w io.Writer, step PlayStep, rec ir.TriggerRecord) {
	if rec.Matched() {
		fmt.Fprintf(w, "> %s → %s\n", step.Event, step.Scene)
	} else {
		fmt.Fprintf(w, "> %s (nothing happens)\n", step.Event)
	}
	for _, msg := range step.Messages {
		fmt.Fprintf(w, "  %s\n", msg)
	}
	for _, d := range rec.Diagnostics {
		fmt.Fprintf(w, "  ! %s\n", d)
	}
}

// printScene shows the scene's description and advertised actions.
func printScene(w io.Writer, prog *ir.Program, id string) {
	scene, ok := prog.Scenes[id]
	if !ok {
		fmt.Fprintf(w, "[%s]\n", id)
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", id, scene.Description)
	if len(scene.Actions) > 0 {
		fmt.Fprintf(w, "  actions: %s\n", strings.Join(scene.Actions, ", "))
	}
	if scene.Hint != "" {
		fmt.Fprintf(w, "  hint: %s\n", scene.Hint)
	}
}

// outputInvalidWorld reports a world with error diagnostics (exit code 1).
func outputInvalidWorld(formatter *OutputFormatter, w *world.World) error {
	errs := w.Program.Errors()
	if formatter.Format == "json" {
		_ = formatter.Error(errs[0].Code, errs[0].Message, errs)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ World %s is invalid\n", w.Metadata.ID)
		for _, d := range errs {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
	}
	return validationFailure(w.Program.Diagnostics)
}
