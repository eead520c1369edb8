package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/config"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/sqlcheck"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/store"
)

// ComposeOptions holds flags for the compose command.
type ComposeOptions struct {
	*RootOptions
	Output string // output file path
	Strict bool   // reject fragments without a terminal select
	Check  bool   // run the balance check on the result

	// IDGenerator allows overriding the trace id generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator
}

// ComposeResult is the JSON payload of the compose command.
type ComposeResult struct {
	SQL    string   `json:"sql"`
	Stages []string `json:"stages"`
	Output string   `json:"output,omitempty"`
}

// NewComposeCommand creates the compose command.
func NewComposeCommand(rootOpts *RootOptions) *cobra.Command {
	return newComposeCommand(&ComposeOptions{RootOptions: rootOpts})
}

func newComposeCommand(opts *ComposeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose <definition>",
		Short: "Compose a definition into one SQL statement",
		Long: `Compose the queries and mappings of a definition file (.yaml, .yml or .cue)
into one SQL statement and print it.

Examples:
  expsql compose experiment.yaml
  expsql compose experiment.cue -o dataset.sql --check
  expsql compose experiment.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the composed SQL to a file")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "reject fragments without a terminal select")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "check the composed SQL is balanced")

	return cmd
}

func runCompose(opts *ComposeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	_, sql, err := composeDefinition(formatter, path, opts.Strict)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	if opts.Check {
		if err := sqlcheck.Check(sql); err != nil {
			return outputError(formatter, ExitFailure, ErrCodeUnbalanced, fmt.Sprintf("composed SQL failed the balance check: %v", err), nil)
		}
		formatter.VerboseLog("Balance check passed")
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(sql+"\n"), 0644); err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		formatter.VerboseLog("Wrote %d bytes to %s", len(sql)+1, opts.Output)
	}

	gen := opts.IDGenerator
	if gen == nil {
		gen = store.UUIDv7Generator{}
	}

	result := ComposeResult{
		SQL:    sql,
		Stages: sqlcheck.CTENames(sql),
		Output: opts.Output,
	}

	if formatter.Format == "json" {
		return formatter.SuccessWithTrace(result, gen.Generate())
	}

	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Composed %d stage(s)\n", len(result.Stages))
		fmt.Fprintf(formatter.Writer, "Wrote composed SQL to %s\n", opts.Output)
		return nil
	}
	fmt.Fprintln(formatter.Writer, sql)
	return nil
}

// composeDefinition loads a definition file and composes it. The plan is
// returned validated, together with its rendering.
func composeDefinition(formatter *OutputFormatter, path string, strict bool) (plan.Plan, string, error) {
	in, err := config.LoadInput(path)
	if err != nil {
		return plan.Plan{}, "", err
	}
	formatter.VerboseLog("Loaded %s: %d fact(s)", path, len(in.Facts))

	var composeOpts []compose.Option
	if strict {
		composeOpts = append(composeOpts, compose.WithStrictFragments())
	}

	p, err := compose.Plan(in, composeOpts...)
	if err != nil {
		return plan.Plan{}, "", err
	}

	sql, err := compose.NewRenderer().Render(p)
	if err != nil {
		return plan.Plan{}, "", err
	}
	return p, sql, nil
}
