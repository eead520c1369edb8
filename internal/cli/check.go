package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/sqlcheck"
)

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Balanced bool     `json:"balanced"`
	CTEs     []string `json:"ctes"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file.sql>",
		Short: "Check a SQL file is balanced",
		Long: `Check that parentheses, quotes and comments in a SQL file are balanced and
that a leading WITH clause is a complete list of definitions. Lists the
names the WITH clause defines.

Exit codes:
  0 - Balanced
  1 - Unbalanced
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("reading SQL file: %v", err), nil)
	}
	sql := string(data)

	if err := sqlcheck.Check(sql); err != nil {
		var balanceErr *sqlcheck.BalanceError
		if errors.As(err, &balanceErr) {
			details := map[string]int{"line": balanceErr.Line, "column": balanceErr.Column, "offset": balanceErr.Offset}
			return outputError(formatter, ExitFailure, ErrCodeUnbalanced, fmt.Sprintf("%s:%v", path, err), details)
		}
		return outputError(formatter, ExitFailure, ErrCodeUnbalanced, err.Error(), nil)
	}

	result := CheckResult{Balanced: true, CTEs: sqlcheck.CTENames(sql)}
	if result.CTEs == nil {
		result.CTEs = []string{}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is balanced\n", path)
	if len(result.CTEs) > 0 {
		fmt.Fprintln(formatter.Writer, "CTEs:")
		for _, name := range result.CTEs {
			fmt.Fprintf(formatter.Writer, "  %s\n", name)
		}
	}
	return nil
}
