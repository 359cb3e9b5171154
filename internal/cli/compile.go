package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/animgraph/internal/compiler"
	"github.com/roach88/animgraph/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled definition and its identity.
type CompilationResult struct {
	Hash       string    `json:"hash"`
	Version    string    `json:"version"`
	Definition ir.Bundle `json:"definition"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	NodeCount  int
	EdgeCount  int
	ViewCount  int
	EventCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph-dir>",
		Short: "Compile a CUE graph definition to canonical form",
		Long: `Compile a CUE graph definition to its canonical JSON form.

The compiler reads every CUE file in the directory as one package,
validates the resulting graph, and prints its definition hash. The hash
is recorded with every session run from this definition.`,
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

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := compiler.Load(dir, compiler.LoadModeCollectAll)
	if loadResult == nil || loadResult.Def == nil {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}
	if verrs := compiler.Validate(loadResult.Def); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return outputCompileErrors(formatter, errs)
	}

	def := loadResult.Def
	for _, n := range def.Nodes {
		formatter.VerboseLog("Compiled node %d (%s)", n.ID, n.Spec.Kind())
	}

	result := &CompilationResult{
		Hash:       loadResult.Hash,
		Version:    ir.DefinitionVersion,
		Definition: def.ToBundle(),
	}

	if opts.Output != "" {
		if err := writeDefinitionToFile(result.Definition, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, def, result, calculateStats(def), opts.Output)
}

// calculateStats computes summary statistics from a compiled definition.
func calculateStats(def *ir.GraphDef) CompilationStats {
	return CompilationStats{
		NodeCount:  len(def.Nodes),
		EdgeCount:  len(def.Edges),
		ViewCount:  len(def.Views),
		EventCount: len(def.Events),
	}
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, def *ir.GraphDef, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d node(s), %d edge(s), %d view(s), %d event(s)\n\n",
		stats.NodeCount, stats.EdgeCount, stats.ViewCount, stats.EventCount)
	fmt.Fprintf(w, "Hash: %s\n\n", result.Hash)

	fmt.Fprintln(w, "Nodes:")
	for _, n := range def.Nodes {
		label := n.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "  %d %s: %s", n.ID, label, n.Spec.Kind())
		if refs := n.Spec.Refs(); len(refs) > 0 {
			fmt.Fprintf(w, " ← %v", refs)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	if len(def.Views) > 0 {
		fmt.Fprintln(w, "Views:")
		for _, v := range def.Views {
			fmt.Fprintf(w, "  node %d → view %d\n", v.Node, v.View)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical definition to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(),
				compileErr.Pos.Line(),
				compileErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Code, compileErr.Message
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, validationErr.Field + ": " + validationErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeDefinitionToFile writes a definition bundle in canonical JSON.
func writeDefinitionToFile(def ir.Bundle, filename string) error {
	data, err := ir.MarshalCanonical(def)
	if err != nil {
		return fmt.Errorf("marshaling definition: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
