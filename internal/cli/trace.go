package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	StoreOptions
	Event string // optional - filter to specific event
}

// TraceEvent represents a single trigger in the trace timeline.
type TraceEvent struct {
	Seq         int64            `json:"seq"`
	Event       string           `json:"event"`
	RuleAction  string           `json:"rule_action,omitempty"`
	SceneBefore string           `json:"scene_before"`
	SceneAfter  string           `json:"scene_after"`
	Counters    map[string]int64 `json:"counters,omitempty"`
	Timestamp   int64            `json:"timestamp"`
	Diagnostics []ir.Diagnostic  `json:"diagnostics,omitempty"`
}

// TraceResult holds the complete trace output for one save.
type TraceResult struct {
	WorldID  string           `json:"world_id"`
	SaveID   string           `json:"save_id"`
	Version  string           `json:"version"`
	SavedAt  int64            `json:"saved_at"`
	Timeline []TraceEvent     `json:"timeline"`
	Final    ir.StateSnapshot `json:"final"`
	Stats    TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents  int `json:"total_events"`
	Matched      int `json:"matched"`
	Unmatched    int `json:"unmatched"`
	SceneChanges int `json:"scene_changes"`
	Diagnostics  int `json:"diagnostics"`
}

// SaveSummary is one row of the save listing.
type SaveSummary struct {
	WorldID  string `json:"world_id"`
	SaveID   string `json:"save_id"`
	Scene    string `json:"scene"`
	Events   int    `json:"events"`
	Finished string `json:"finished,omitempty"`
	SavedAt  int64  `json:"saved_at"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [world-id]",
		Short: "Show the saved history of a world",
		Long: `Show the trigger history recorded in a saved game.

The output includes:
- Timeline: every event in seq order with the rule it fired and the
  scene transition it caused
- Final: the saved narrative state
- Stats: summary statistics for the history

Without a world id, lists every save, most recent first.

Examples:
  dreamtheater trace --db ./saves.db
  dreamtheater trace dreamflow --db ./saves.db
  dreamtheater trace dreamflow --db ./saves.db --event user.look
  dreamtheater trace lantern --redis localhost:6379 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListSaves(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to a specific event name")

	return cmd
}

func runTrace(opts *TraceOptions, worldID string, cmd *cobra.Command) error {
	ctx := context.Background()
	logger := opts.Logger(cmd.ErrOrStderr())

	st, err := opts.open(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	game, err := loadSave(ctx, st, worldID)
	if err != nil {
		return err
	}

	result := TraceResult{
		WorldID:  game.WorldID,
		SaveID:   game.ID,
		Version:  game.Version,
		SavedAt:  game.Timestamp,
		Timeline: buildTimeline(game.History, opts.Event),
		Final:    game.State,
		Stats:    traceStats(game.History),
	}

	// Output results
	if opts.Format == "json" {
		return encodeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, TraceID: worldID})
	}

	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func runListSaves(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	logger := opts.Logger(cmd.ErrOrStderr())

	st, err := opts.open(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	games, err := st.List(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list saves", err)
	}

	saves := make([]SaveSummary, 0, len(games))
	for _, g := range games {
		saves = append(saves, SaveSummary{
			WorldID:  g.WorldID,
			SaveID:   g.ID,
			Scene:    g.State.Scene,
			Events:   len(g.History),
			Finished: g.State.Finished,
			SavedAt:  g.Timestamp,
		})
	}

	if opts.Format == "json" {
		return encodeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: saves})
	}

	w := cmd.OutOrStdout()
	if len(saves) == 0 {
		fmt.Fprintln(w, "No saves found.")
		return nil
	}
	for _, s := range saves {
		status := "in " + s.Scene
		if s.Finished != "" {
			status = "finished: " + s.Finished
		}
		fmt.Fprintf(w, "%s  %d event(s), %s, saved %s\n",
			s.WorldID, s.Events, status, time.UnixMilli(s.SavedAt).UTC().Format(time.RFC3339))
	}
	return nil
}

// buildTimeline converts history records to timeline events. When
// eventFilter is set, only records for that event are included.
func buildTimeline(history []ir.TriggerRecord, eventFilter string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, rec := range history {
		if eventFilter != "" && rec.Event != eventFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:         rec.Seq,
			Event:       rec.Event,
			RuleAction:  rec.RuleAction,
			SceneBefore: rec.SceneBefore,
			SceneAfter:  rec.SceneAfter,
			Counters:    rec.Counters,
			Timestamp:   rec.Timestamp,
			Diagnostics: rec.Diagnostics,
		})
	}
	return timeline
}

func traceStats(history []ir.TriggerRecord) TraceStats {
	stats := TraceStats{TotalEvents: len(history)}
	for _, rec := range history {
		if rec.Matched() {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
		if rec.SceneBefore != rec.SceneAfter {
			stats.SceneChanges++
		}
		stats.Diagnostics += len(rec.Diagnostics)
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for World: %s\n", result.WorldID)
	fmt.Fprintf(w, "Status: %s\n", finishedStatus(result.Final))
	if verbose {
		fmt.Fprintf(w, "Save: %s (version %s)\n", result.SaveID, result.Version)
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	// Final state section
	fmt.Fprintln(w, "=== Final State ===")
	fmt.Fprintf(w, "  Scene:    %s\n", result.Final.Scene)
	fmt.Fprintf(w, "  Counters: %s\n", formatCounters(result.Final.Counters))
	fmt.Fprintf(w, "  Blocked:  %v\n", result.Final.Blocked)
	for _, msg := range result.Final.Messages {
		fmt.Fprintf(w, "  Message:  %s\n", msg)
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events:  %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Matched:       %d\n", result.Stats.Matched)
	fmt.Fprintf(w, "  Unmatched:     %d\n", result.Stats.Unmatched)
	fmt.Fprintf(w, "  Scene Changes: %d\n", result.Stats.SceneChanges)
	fmt.Fprintf(w, "  Diagnostics:   %d\n", result.Stats.Diagnostics)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	if event.RuleAction == "" {
		fmt.Fprintf(w, "  [%d] %s (no match) %s\n", event.Seq, event.Event, event.SceneAfter)
	} else {
		fmt.Fprintf(w, "  [%d] %s → %s  %s → %s\n",
			event.Seq, event.Event, event.RuleAction, event.SceneBefore, event.SceneAfter)
	}
	if verbose {
		fmt.Fprintf(w, "       Counters: %s\n", formatCounters(event.Counters))
		fmt.Fprintf(w, "       At: %s\n", time.UnixMilli(event.Timestamp).UTC().Format(time.RFC3339))
	}
	for _, d := range event.Diagnostics {
		fmt.Fprintf(w, "       ! %s\n", d)
	}
}

// formatCounters formats counters for display.
// Uses sorted keys to ensure deterministic output.
func formatCounters(counters map[string]int64) string {
	if len(counters) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counters[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func finishedStatus(s ir.StateSnapshot) string {
	if s.Finished != "" {
		return "finished (" + s.Finished + ")"
	}
	return "in progress"
}
