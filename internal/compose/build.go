package compose

import (
	"fmt"
	"strings"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/fragment"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
)

// Stage names emitted by the composer.
const (
	ExposuresStage  = "exposures__customers"
	FinalStage      = "merge__all"
	FactStagePrefix = "merge__fact_"
)

// Plan normalizes every fragment in the input, arranges the resulting
// blocks and generated stages in dependency order:
//
//	assignments, entry point, exposures, fact blocks, fact merges, final merge
//
// and validates the result. Callers may move Terminal to an earlier stage
// before rendering.
func Plan(in Input, opts ...Option) (plan.Plan, error) {
	p, err := buildPlan(in, newOptions(opts))
	if err != nil {
		return plan.Plan{}, err
	}
	if err := plan.Validate(p); err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

func buildPlan(in Input, o options) (plan.Plan, error) {
	if err := checkMappings(in); err != nil {
		return plan.Plan{}, err
	}

	assignments, err := normalize("assignments", in.Assignments, o)
	if err != nil {
		return plan.Plan{}, err
	}
	entryPoint, err := normalize("entry_point", in.EntryPoint, o)
	if err != nil {
		return plan.Plan{}, err
	}

	exposures := plan.Exposures{
		Name:             ExposuresStage,
		AssignmentsTable: assignments.Exposes,
		AssignmentsID:    in.AssignmentsMapping.RandomisationUnitID,
		VariantColumn:    in.AssignmentsMapping.VariantColumn,
		AssignmentsDate:  in.AssignmentsMapping.DateColumn,
		EntryPointTable:  entryPoint.Exposes,
		EntryPointID:     in.EntryPointMapping.RandomisationUnitID,
		EntryPointDate:   in.EntryPointMapping.DateColumn,
	}

	factBlocks := make([]plan.Stage, 0, len(in.Facts))
	merges := make([]plan.FactMerge, 0, len(in.Facts))
	for i, fact := range in.Facts {
		block, err := normalize(factSource(i), fact.Fragment, o)
		if err != nil {
			return plan.Plan{}, err
		}
		factBlocks = append(factBlocks, block)
		merges = append(merges, plan.FactMerge{
			Name:       FactStageName(block.Exposes),
			Exposures:  ExposuresStage,
			FactTable:  block.Exposes,
			UnitID:     fact.Mapping.RandomisationUnitID,
			DateColumn: fact.Mapping.DateColumn,
			Columns:    fact.Mapping.FactColumns,
		})
	}

	stages := make([]plan.Stage, 0, 4+2*len(in.Facts))
	stages = append(stages, assignments, entryPoint, exposures)
	stages = append(stages, factBlocks...)
	for _, m := range merges {
		stages = append(stages, m)
	}
	stages = append(stages, plan.FinalMerge{
		Name:      FinalStage,
		Exposures: ExposuresStage,
		Facts:     merges,
	})

	return plan.Plan{Stages: stages, Terminal: FinalStage}, nil
}

// FactStageName returns the per-fact merge stage name for a fact's exposed
// table. Characters that cannot appear in a bare identifier become "_", so
// "analytics.orders" maps to "merge__fact_analytics_orders".
func FactStageName(exposed string) string {
	return FactStagePrefix + strings.Map(func(r rune) rune {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, exposed)
}

func normalize(source, text string, o options) (plan.Block, error) {
	n := fragment.Normalize(text)
	if o.strict && !n.HasExposedName() {
		return plan.Block{}, fmt.Errorf("%s: %w", source, fragment.ErrNoTerminalSelect)
	}
	return plan.Block{Source: source, Body: n.Body, Exposes: n.ExposedName}, nil
}
