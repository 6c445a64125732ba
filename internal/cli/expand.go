package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-orm/kestrel/internal/expand"
	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/planfile"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// ExpandResult is the JSON payload of the expand command.
type ExpandResult struct {
	Render      string `json:"render"`
	Fingerprint string `json:"fingerprint"`
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <model-dir> <plan.yaml>",
		Short: "Expand a query plan's navigations into explicit joins",
		Long: `Expand a query plan against an entity model.

Navigation-property accesses in the plan are rewritten into explicit
join operators. The output is the canonical rendering of the expanded
tree together with its fingerprint; expanding the same plan twice
always yields the same fingerprint.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runExpand(opts *RootOptions, modelDir, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	_, expanded, err := expandPlan(formatter, modelDir, planPath)
	if err != nil {
		return err
	}

	result := ExpandResult{
		Render:      queryir.Render(expanded),
		Fingerprint: queryir.Fingerprint(expanded),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, result.Render)
	fmt.Fprintf(formatter.Writer, "fingerprint: %s\n", result.Fingerprint)
	return nil
}

// expandPlan runs the shared front half of expand and sql: load the
// model, load and resolve the plan, expand it.
func expandPlan(formatter *OutputFormatter, modelDir, planPath string) (*model.Model, queryir.Node, error) {
	loaded, err := loadModelOrReport(formatter, modelDir)
	if err != nil {
		return nil, nil, err
	}

	plan, err := LoadPlan(planPath)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			formatter.Error(loadErr.Code, loadErr.Message, nil)
			return nil, nil, NewExitError(exitCodeFor(loadErr.Code), loadErr.Error())
		}
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, nil, NewExitError(ExitCommandError, err.Error())
	}

	formatter.VerboseLog("Plan source: %s (%d operations)", plan.Source, len(plan.Pipeline))

	node, err := planfile.Build(loaded.Model, plan)
	if err != nil {
		formatter.Error(ErrCodePlanBuild, err.Error(), nil)
		return nil, nil, NewExitError(ExitFailure, err.Error())
	}

	expanded, err := expand.New(loaded.Model).Expand(node)
	if err != nil {
		details := map[string]any{}
		var expErr *expand.ExpansionError
		if errors.As(err, &expErr) {
			details["code"] = expErr.Code
			details["op"] = expErr.Op
		}
		formatter.Error(ErrCodeExpand, err.Error(), details)
		return nil, nil, NewExitError(ExitFailure, err.Error())
	}
	return loaded.Model, expanded, nil
}
