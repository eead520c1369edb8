package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Seeds    []string
	Strict   bool
	Stage    string // terminal stage override; empty means the final stage

	// IDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	RunID   string   `json:"run_id"`
	Seq     int64    `json:"seq"`
	Stage   string   `json:"stage"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <definition>",
		Short: "Compose a definition and execute it against SQLite",
		Long: `Compose a definition and execute the statement against a SQLite database
(created if it doesn't exist). Seed scripts run first, in order.

Every run is recorded in the database's run log under a UUIDv7 run id,
reported as trace_id in JSON output.

Examples:
  expsql run experiment.yaml --db ./exp.db
  expsql run experiment.yaml --db :memory: --seed tables.sql
  expsql run experiment.yaml --db ./exp.db --stage exposures__customers`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatement(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringArrayVar(&opts.Seeds, "seed", nil, "SQL script to execute before the statement (repeatable)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "reject fragments without a terminal select")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "select from this stage instead of "+compose.FinalStage)

	return cmd
}

func runStatement(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	p, sql, err := composeDefinition(formatter, path, opts.Strict)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	stage := compose.FinalStage
	if opts.Stage != "" {
		stage = opts.Stage
		p.Terminal = stage
		if sql, err = compose.NewRenderer().Render(p); err != nil {
			return outputCommandError(formatter, err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	if st.InMemory() {
		logger.Debug("database is in memory, runs are not kept after exit")
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	for _, seed := range opts.Seeds {
		script, err := os.ReadFile(seed)
		if err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("reading seed: %v", err), nil)
		}
		if err := st.ExecScript(ctx, string(script)); err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeExecFailed, fmt.Sprintf("seed %s: %v", seed, err), nil)
		}
		logger.Debug("seeded", "file", seed)
	}

	rs, err := st.Query(ctx, sql)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeExecFailed, fmt.Sprintf("execution failed: %v", err), nil)
	}

	gen := opts.IDGenerator
	if gen == nil {
		gen = store.UUIDv7Generator{}
	}
	run, err := st.RecordRun(ctx, gen.Generate(), sql, rs)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("recording run: %v", err), nil)
	}
	logger.Info("statement executed", "run_id", run.ID, "seq", run.Seq, "stage", stage, "rows", run.RowCount)

	if formatter.Format == "json" {
		return formatter.SuccessWithTrace(RunResult{
			RunID:   run.ID,
			Seq:     run.Seq,
			Stage:   stage,
			Columns: rs.Columns,
			Rows:    rs.Rows,
		}, run.ID)
	}

	writeRows(formatter, rs)
	fmt.Fprintf(formatter.Writer, "(%d row(s), run %s)\n", len(rs.Rows), run.ID)
	return nil
}

// writeRows prints a result set as tab-separated text with a header line.
// NULL values print as NULL.
func writeRows(formatter *OutputFormatter, rs *store.ResultSet) {
	fmt.Fprintln(formatter.Writer, strings.Join(rs.Columns, "\t"))
	fields := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, v := range row {
			if v == nil {
				fields[i] = "NULL"
				continue
			}
			fields[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(formatter.Writer, strings.Join(fields, "\t"))
	}
}
