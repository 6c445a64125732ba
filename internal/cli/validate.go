package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-orm/kestrel/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model-dir>",
		Short: "Validate an entity model",
		Long: `Validate a CUE entity model.

Compiles the model and runs the full consistency checks: key
declarations, navigation targets, foreign-key alignment, and
nullability rules. All problems are collected and reported together.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, modelDir string, cmd *cobra.Command) error {
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

	validationErrors := compiler.Validate(result.Model)
	if len(validationErrors) > 0 {
		if opts.Format == "json" {
			formatter.Success(ValidationResult{Valid: false, Errors: validationErrors})
		} else {
			for _, ve := range validationErrors {
				fmt.Fprintf(formatter.Writer, "  %s\n", ve.Error())
			}
			fmt.Fprintf(formatter.Writer, "✗ %d validation error(s)\n", len(validationErrors))
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(validationErrors)))
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ Model valid (%d entities)\n", len(result.Model.Entities))
	return nil
}
