package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/selectapi/internal/compiler"
	"github.com/roach88/selectapi/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled models.
type CompilationResult struct {
	Models []compiler.ModelSpec `json:"models"`
}

// ModelSummary describes one built schema.
type ModelSummary struct {
	Name     string   `json:"name"`
	URLName  string   `json:"url_name"`
	Hidden   bool     `json:"hidden,omitempty"`
	Fields   []string `json:"fields"`
	Defaults []string `json:"defaults"`
	Filters  []string `json:"filters,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE model specs into schemas",
		Long: `Compile CUE model specs into schemas and server bindings.

The compiler parses CUE files, validates every model, builds the schemas
with their inherited fields and prints a summary. With --output the
compiled model specs are written as JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	// Directory not found, no files, etc.
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	for _, m := range loadResult.Models {
		formatter.VerboseLog("Compiling model: %s", m.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}
	if verrs := compiler.Validate(loadResult.Models); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return outputCompileErrors(formatter, errs)
	}

	catalog, err := compiler.Build(loadResult.Models)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}

	result := &CompilationResult{Models: loadResult.Models}

	if opts.Output != "" {
		if err := writeModelsToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, summarize(catalog.Models()), opts.Output)
}

// summarize lists each schema's fields in declaration order.
func summarize(models []*schema.Schema) []ModelSummary {
	out := make([]ModelSummary, len(models))
	for i, m := range models {
		out[i] = ModelSummary{
			Name:     m.Name,
			URLName:  m.URLName,
			Hidden:   m.Hidden,
			Fields:   schema.Names(m.Fields()),
			Defaults: schema.Names(m.Defaults()),
			Filters:  schema.Names(m.FilterFields()),
		}
	}
	return out
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, models []ModelSummary, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(models)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d model(s)\n\n", len(models))

	fmt.Fprintln(formatter.Writer, "Models:")
	for _, m := range models {
		suffix := ""
		if m.Hidden {
			suffix = " [hidden]"
		}
		fmt.Fprintf(formatter.Writer, "  %s (/%s): %d field(s), defaults: %s%s\n",
			m.Name, m.URLName, len(m.Fields), strings.Join(m.Defaults, ","), suffix)
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote model specs to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
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
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		var verr compiler.ValidationError
		if errors.As(err, &verr) && verr.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", verr.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeModelsToFile writes the compiled model specs as indented JSON.
func writeModelsToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling models: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
