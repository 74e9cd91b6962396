package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dreamtheater/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the parsed program plus its rule hash.
type CompilationResult struct {
	Program *ir.Program `json:"program"`
	Hash    string      `json:"hash"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file.dsl>",
		Short: "Parse a world script into its program form",
		Long: `Parse a DreamTheater world script and print the resulting program:
scenes in declaration order, rules in source order with their categories,
and all diagnostics.

With --output the program is written as canonical JSON, suitable for
diffing two versions of a world. The hash identifies the rule list and
changes whenever a rule's condition, action or category changes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	prog, err := readProgram(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	for _, r := range prog.Rules {
		formatter.VerboseLog("Compiled rule (line %d, %s): %s", r.Line, r.Category, r.Action)
	}

	if prog.HasErrors() {
		if formatter.Format == "json" {
			return outputValidateJSON(formatter, ValidationResult{
				World:       prog.World,
				Rules:       len(prog.Rules),
				Scenes:      len(prog.Scenes),
				Diagnostics: prog.Diagnostics,
			})
		}
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		for _, d := range prog.Diagnostics {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
		return validationFailure(prog.Diagnostics)
	}

	hash, err := ir.ProgramHash(prog.Rules)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to hash program", err)
	}
	result := &CompilationResult{Program: prog, Hash: hash}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeProgramToFile(prog, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	prog := result.Program
	w := formatter.Writer

	name := prog.World
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "✓ Compiled world %s: %d scene(s), %d rule(s)\n", name, len(prog.Scenes), len(prog.Rules))
	fmt.Fprintf(w, "Hash: %s\n\n", result.Hash)

	if len(prog.SceneOrder) > 0 {
		fmt.Fprintln(w, "Scenes:")
		for _, id := range prog.SceneOrder {
			scene := prog.Scenes[id]
			fmt.Fprintf(w, "  %s: %d action(s)\n", id, len(scene.Actions))
		}
		fmt.Fprintln(w)
	}

	if len(prog.Rules) > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, r := range prog.Rules {
			fmt.Fprintf(w, "  [%s] %s → %s\n", r.Category, r.Condition, r.Action)
		}
		fmt.Fprintln(w)
	}

	if warnings := prog.Warnings(); len(warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, d := range warnings {
			fmt.Fprintf(w, "  %s\n", d)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical program to %s\n", outputFile)
	}

	return nil
}

// writeProgramToFile writes the program in canonical JSON.
func writeProgramToFile(prog *ir.Program, filename string) error {
	data, err := ir.MarshalCanonical(prog)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, append(data, '\n'), 0o644)
}
