package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/world"
)

// WorldSummary describes one world in a directory listing.
type WorldSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Valid       bool     `json:"valid"`
	Scenes      int      `json:"scenes"`
	Rules       int      `json:"rules"`
	Errors      int      `json:"errors"`
	Warnings    int      `json:"warnings"`
	Scripts     []string `json:"scripts,omitempty"`
}

// NewWorldsCommand creates the worlds command.
func NewWorldsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worlds <world-dir>",
		Short: "List the worlds in a directory",
		Long: `List every <id>.dsl world in a directory with its metadata and whether
it is valid. Name, description and difficulty come from an optional
<id>.cue manifest beside the script.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorlds(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runWorlds(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("world directory not found: %s", dir), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("world directory not found: %s", dir), err)
	}

	worlds, err := world.LoadAll(context.Background(), world.NewDirSource(dir))
	if err != nil {
		return outputLoadError(formatter, convertLoadError(err, ""))
	}

	summaries := make([]WorldSummary, 0, len(worlds))
	for _, w := range worlds {
		formatter.VerboseLog("Loaded world %s (%d diagnostic(s))", w.Metadata.ID, len(w.Program.Diagnostics))
		summaries = append(summaries, WorldSummary{
			ID:          w.Metadata.ID,
			Name:        w.Metadata.Name,
			Description: w.Metadata.Description,
			Difficulty:  w.Metadata.Difficulty,
			Valid:       world.Validate(w),
			Scenes:      len(w.Program.Scenes),
			Rules:       len(w.Program.Rules),
			Errors:      len(w.Program.Errors()),
			Warnings:    len(w.Program.Warnings()),
			Scripts:     w.Scripts,
		})
	}

	if formatter.Format == "json" {
		return encodeResponse(formatter.Writer, CLIResponse{Status: "ok", Data: summaries})
	}

	out := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintf(out, "No worlds found in %s.\n", dir)
		return nil
	}
	for _, s := range summaries {
		status := "✓"
		if !s.Valid {
			status = "✗"
		}
		fmt.Fprintf(out, "%s %s: %s\n", status, s.ID, s.Name)
		fmt.Fprintf(out, "  %s\n", s.Description)
		if s.Difficulty != "" {
			fmt.Fprintf(out, "  difficulty: %s\n", s.Difficulty)
		}
		fmt.Fprintf(out, "  %d scene(s), %d rule(s), %d error(s), %d warning(s)\n",
			s.Scenes, s.Rules, s.Errors, s.Warnings)
	}
	return nil
}
