package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/config"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/store"
)

// Harness executes the stages of one composed plan against a seeded store.
type Harness struct {
	store  *store.Store
	plan   plan.Plan
	logger *slog.Logger
}

// Run executes a scenario with logging discarded.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, nil)
}

// RunContext executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Execution flow:
//  1. Load the definition and compose it
//  2. Check expect_error, if set, and stop
//  3. Seed the database
//  4. Check expect_exec_error, if set, and stop
//  5. Query every stage named by an assertion and evaluate it
//
// Failed expectations are recorded in the Result. The returned error is
// reserved for problems with the scenario itself: unreadable definition or
// seed files, failing seed scripts.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("scenario", scenario.Name)

	in, err := config.LoadInput(scenario.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	var opts []compose.Option
	if scenario.Strict {
		opts = append(opts, compose.WithStrictFragments())
	}

	result := NewResult()

	p, err := compose.Plan(in, opts...)
	if scenario.ExpectError != "" {
		checkExpectedError(result, "composition", scenario.ExpectError, err)
		logger.Debug("composition rejected", "error", err)
		return result, nil
	}
	if err != nil {
		result.AddError(fmt.Sprintf("composition failed: %v", err))
		return result, nil
	}

	sql, err := compose.NewRenderer().Render(p)
	if err != nil {
		return nil, fmt.Errorf("failed to render plan: %w", err)
	}
	result.SQL = sql
	logger.Debug("composed", "stages", len(p.Stages), "bytes", len(sql))

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for _, seed := range scenario.Seed {
		script, err := os.ReadFile(seed)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed: %w", err)
		}
		if err := st.ExecScript(ctx, string(script)); err != nil {
			return nil, fmt.Errorf("seed %s: %w", seed, err)
		}
		logger.Debug("seeded", "file", seed)
	}

	if scenario.ExpectExecError != "" {
		_, err := st.Query(ctx, sql)
		checkExpectedError(result, "execution", scenario.ExpectExecError, err)
		return result, nil
	}

	h := &Harness{store: st, plan: p, logger: logger}
	for i, a := range scenario.Assertions {
		stage := a.Stage
		if stage == "" {
			stage = compose.FinalStage
		}

		rs, err := h.queryStage(ctx, result, stage)
		if err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
			continue
		}
		if err := EvaluateAssertion(stage, rs, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	logger.Info("scenario finished", "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

func checkExpectedError(result *Result, phase, want string, err error) {
	switch {
	case err == nil:
		result.AddError(fmt.Sprintf("expected %s error containing %q, %s succeeded", phase, want, phase))
	case !strings.Contains(err.Error(), want):
		result.AddError(fmt.Sprintf("expected %s error containing %q, got %q", phase, want, err.Error()))
	}
}

// queryStage runs the composed statement with the given stage as the
// terminal select. Results are cached in result.Stages.
func (h *Harness) queryStage(ctx context.Context, result *Result, stage string) (*store.ResultSet, error) {
	if rs, ok := result.Stages[stage]; ok {
		return rs, nil
	}

	if !h.hasStage(stage) {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	p := h.plan
	p.Terminal = stage
	sql, err := compose.NewRenderer().Render(p)
	if err != nil {
		return nil, fmt.Errorf("render stage %s: %w", stage, err)
	}

	rs, err := h.store.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("execute stage %s: %w", stage, err)
	}
	h.logger.Debug("queried stage", "stage", stage, "rows", len(rs.Rows))

	result.Stages[stage] = rs
	return rs, nil
}

// hasStage reports whether a generated stage or a fragment's exposed table
// carries the name.
func (h *Harness) hasStage(name string) bool {
	for _, s := range h.plan.Stages {
		if b, ok := s.(plan.Block); ok && b.Exposes == name {
			return true
		}
		if plan.StageName(s) == name {
			return true
		}
	}
	return false
}
