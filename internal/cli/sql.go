package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-orm/kestrel/internal/querysql"
)

// SQLResult is the JSON payload of the sql command.
type SQLResult struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <model-dir> <plan.yaml>",
		Short: "Compile a query plan to parameterized SQL",
		Long: `Compile a query plan to parameterized SQLite SQL.

The plan is expanded first (navigations become joins), then lowered to
a single SELECT statement. Constants in the plan become positional
parameters; they are never interpolated into the SQL text.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runSQL(opts *RootOptions, modelDir, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	m, expanded, err := expandPlan(formatter, modelDir, planPath)
	if err != nil {
		return err
	}

	sqlText, params, err := querysql.NewSQLCompiler(m).Compile(expanded)
	if err != nil {
		formatter.Error(ErrCodeSQL, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	if params == nil {
		params = []any{}
	}
	result := SQLResult{SQL: sqlText, Params: params}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, result.SQL)
	for i, p := range result.Params {
		fmt.Fprintf(formatter.Writer, "param %d: %v\n", i+1, p)
	}
	return nil
}
