package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrel-orm/kestrel/internal/model"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	EntityCount     int `json:"entity_count"`
	PropertyCount   int `json:"property_count"`
	NavigationCount int `json:"navigation_count"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <model-dir>",
		Short: "Compile a CUE entity model to canonical JSON",
		Long: `Compile a CUE entity model to its canonical JSON form.

The compiler parses CUE files, resolves defaults (table and column
names), and outputs the model metadata consumed by the expansion and
SQL stages.`,
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

func runCompile(opts *CompileOptions, modelDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result, err := loadModelOrReport(formatter, modelDir)
	if err != nil {
		return err
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, modelDir)
	for _, e := range result.Model.Entities {
		formatter.VerboseLog("Compiled entity: %s (table %s)", e.Name, e.Table)
	}

	stats := calculateStats(result.Model)

	if opts.Output != "" {
		if err := writeModelToFile(result.Model, opts.Output); err != nil {
			msg := fmt.Sprintf("writing output file: %v", err)
			formatter.Error(ErrCodeWriteFailed, msg, nil)
			return NewExitError(ExitCommandError, ErrCodeWriteFailed+": "+msg)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"model": result.Model,
			"stats": stats,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d entities (%d properties, %d navigations)\n",
		stats.EntityCount, stats.PropertyCount, stats.NavigationCount)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote %s\n", opts.Output)
	}
	return nil
}

// loadModelOrReport loads a model, reporting failures through the
// formatter and converting them to exit-coded errors.
func loadModelOrReport(formatter *OutputFormatter, dir string) (*LoadResult, error) {
	result, err := LoadModel(dir)
	if err == nil {
		return result, nil
	}
	if loadErr, ok := err.(*LoadError); ok {
		formatter.Error(loadErr.Code, loadErr.Message, nil)
		return nil, NewExitError(exitCodeFor(loadErr.Code), loadErr.Error())
	}
	formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return nil, NewExitError(ExitCommandError, err.Error())
}

// exitCodeFor distinguishes environment problems (bad paths, unreadable
// directories) from content problems (invalid model or plan).
func exitCodeFor(code string) int {
	switch code {
	case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles, ErrCodeWriteFailed:
		return ExitCommandError
	}
	return ExitFailure
}

func calculateStats(m *model.Model) CompilationStats {
	stats := CompilationStats{EntityCount: len(m.Entities)}
	for _, e := range m.Entities {
		stats.PropertyCount += len(e.Properties)
		stats.NavigationCount += len(e.Navigations)
	}
	return stats
}

func writeModelToFile(m *model.Model, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
