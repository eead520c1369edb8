package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
)

// Role names as they appear in definition files and error messages.
const (
	RoleRandomisationUnitID = "randomisation_unit_id"
	RoleVariantColumn       = "variant_column"
	RoleDateColumn          = "date_column"
	RoleFactColumns         = "fact_columns"
)

var (
	// ErrMissingRole reports a mapping without a required role.
	ErrMissingRole = errors.New("missing mapping role")

	// ErrDuplicateColumn reports a fact column that would collide in the
	// final projection.
	ErrDuplicateColumn = errors.New("duplicate output column")
)

// AssignmentsMapping maps canonical roles to columns of the assignments
// fragment's exposed table.
type AssignmentsMapping struct {
	RandomisationUnitID string `json:"randomisation_unit_id" yaml:"randomisation_unit_id"`
	VariantColumn       string `json:"variant_column" yaml:"variant_column"`
	DateColumn          string `json:"date_column" yaml:"date_column"`
}

// EntryPointMapping maps canonical roles to columns of the entry point
// fragment's exposed table.
type EntryPointMapping struct {
	RandomisationUnitID string `json:"randomisation_unit_id" yaml:"randomisation_unit_id"`
	DateColumn          string `json:"date_column" yaml:"date_column"`
}

// FactMapping maps canonical roles to columns of a fact fragment's exposed
// table. FactColumns are aggregated and projected in order.
type FactMapping struct {
	RandomisationUnitID string   `json:"randomisation_unit_id" yaml:"randomisation_unit_id"`
	DateColumn          string   `json:"date_column" yaml:"date_column"`
	FactColumns         []string `json:"fact_columns" yaml:"fact_columns"`
}

// FactEntry pairs a fact fragment with its mapping.
type FactEntry struct {
	Fragment string
	Mapping  FactMapping
}

// MappingError describes one unusable role in a mapping.
type MappingError struct {
	Source string // "assignments", "entry_point", "fact[0]", ...
	Role   string
	Reason string
	Err    error // ErrMissingRole or ErrDuplicateColumn
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s mapping: %s %s", e.Source, e.Role, e.Reason)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

func missingRole(source, role string) *MappingError {
	return &MappingError{Source: source, Role: role, Reason: "is required", Err: ErrMissingRole}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// checkMappings reports every missing role and every fact column that would
// collide with a canonical column or with another fact's column.
func checkMappings(in Input) error {
	var errs []error

	if blank(in.AssignmentsMapping.RandomisationUnitID) {
		errs = append(errs, missingRole("assignments", RoleRandomisationUnitID))
	}
	if blank(in.AssignmentsMapping.VariantColumn) {
		errs = append(errs, missingRole("assignments", RoleVariantColumn))
	}
	if blank(in.AssignmentsMapping.DateColumn) {
		errs = append(errs, missingRole("assignments", RoleDateColumn))
	}
	if blank(in.EntryPointMapping.RandomisationUnitID) {
		errs = append(errs, missingRole("entry_point", RoleRandomisationUnitID))
	}
	if blank(in.EntryPointMapping.DateColumn) {
		errs = append(errs, missingRole("entry_point", RoleDateColumn))
	}

	seen := make(map[string]string, len(plan.CanonicalColumns))
	for _, c := range plan.CanonicalColumns {
		seen[c] = "the canonical schema"
	}

	for i, fact := range in.Facts {
		source := factSource(i)
		m := fact.Mapping
		if blank(m.RandomisationUnitID) {
			errs = append(errs, missingRole(source, RoleRandomisationUnitID))
		}
		if blank(m.DateColumn) {
			errs = append(errs, missingRole(source, RoleDateColumn))
		}
		if len(m.FactColumns) == 0 {
			errs = append(errs, missingRole(source, RoleFactColumns))
		}
		for j, col := range m.FactColumns {
			if blank(col) {
				errs = append(errs, missingRole(source, fmt.Sprintf("%s[%d]", RoleFactColumns, j)))
				continue
			}
			key := strings.ToLower(col)
			if owner, ok := seen[key]; ok {
				errs = append(errs, &MappingError{
					Source: source,
					Role:   fmt.Sprintf("%s[%d]", RoleFactColumns, j),
					Reason: fmt.Sprintf("%q is already produced by %s", col, owner),
					Err:    ErrDuplicateColumn,
				})
				continue
			}
			seen[key] = source
		}
	}

	return errors.Join(errs...)
}

func factSource(i int) string {
	return fmt.Sprintf("fact[%d]", i)
}
