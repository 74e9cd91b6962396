package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool            `json:"valid"`
	World       string          `json:"world,omitempty"`
	Rules       int             `json:"rules"`
	Scenes      int             `json:"scenes"`
	Diagnostics []ir.Diagnostic `json:"diagnostics"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.dsl>",
		Short: "Check a world script for problems",
		Long: `Parse a DreamTheater world script and report its diagnostics.

Errors (missing scene descriptions, rules without leadsTo, unterminated
blocks) make the world invalid. Warnings (undefined goto targets,
unreachable scenes, unknown fields) are reported but do not fail.

Exit codes:
  0 - No error diagnostics
  1 - One or more error diagnostics
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	prog, err := readProgram(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	formatter.VerboseLog("Parsed %d rule(s) and %d scene(s) from %s", len(prog.Rules), len(prog.Scenes), path)

	result := ValidationResult{
		Valid:       !prog.HasErrors(),
		World:       prog.World,
		Rules:       len(prog.Rules),
		Scenes:      len(prog.Scenes),
		Diagnostics: prog.Diagnostics,
	}

	if formatter.Format == "json" {
		return outputValidateJSON(formatter, result)
	}
	return outputValidateText(formatter, result)
}

// outputLoadError reports a load failure as a command error (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return WrapExitError(ExitCommandError, loadErr.Message, loadErr.Err)
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}

func outputValidateJSON(formatter *OutputFormatter, result ValidationResult) error {
	response := CLIResponse{Status: "ok", Data: result}

	var failure error
	if !result.Valid {
		first := firstError(result.Diagnostics)
		response.Status = "error"
		response.Error = &CLIError{Code: first.Code, Message: first.Message}
		failure = validationFailure(result.Diagnostics)
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	return failure
}

func outputValidateText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "✓ World valid (%d rules, %d scenes)\n", result.Rules, result.Scenes)
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
	}

	if len(result.Diagnostics) > 0 {
		fmt.Fprintln(w)
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintf(w, "  %s\n", d)
	}

	if !result.Valid {
		return validationFailure(result.Diagnostics)
	}
	return nil
}

// validationFailure is the exit error for a world with error diagnostics.
func validationFailure(diags []ir.Diagnostic) error {
	n := 0
	for _, d := range diags {
		if d.Severity == ir.SeverityError {
			n++
		}
	}
	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", n))
}

func firstError(diags []ir.Diagnostic) ir.Diagnostic {
	for _, d := range diags {
		if d.Severity == ir.SeverityError {
			return d
		}
	}
	return ir.Diagnostic{Code: ErrCodeInvalid, Message: "world has errors"}
}
