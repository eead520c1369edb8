package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// RunEntry is one row of the runs listing.
type RunEntry struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
	Statement   string `json:"statement"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the statements executed against a database",
		Long: `List the run log of a database, oldest first.

Examples:
  expsql runs --db ./exp.db
  expsql runs --db ./exp.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to list runs: %v", err), nil)
	}

	entries := make([]RunEntry, len(runs))
	for i, r := range runs {
		entries[i] = RunEntry{
			ID:          r.ID,
			Seq:         r.Seq,
			RowCount:    r.RowCount,
			ColumnCount: r.ColumnCount,
			Statement:   r.Statement,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%d\t%s\t%d row(s)\t%s\n", e.Seq, e.ID, e.RowCount, lastLine(e.Statement))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
