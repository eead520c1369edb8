package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Stage    string // Stage the assertion queried
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s on %s\n", e.Type, e.Stage)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertion checks one assertion against the rows of its stage.
func EvaluateAssertion(stage string, rs *store.ResultSet, a Assertion) error {
	switch a.Type {
	case AssertRowCount:
		return assertRowCount(stage, rs, a)
	case AssertColumns:
		return assertColumns(stage, rs, a)
	case AssertUnits:
		return assertUnits(stage, rs, a)
	case AssertRow:
		return assertRow(stage, rs, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertRowCount(stage string, rs *store.ResultSet, a Assertion) error {
	if len(rs.Rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Stage:    stage,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", len(rs.Rows)),
	}
}

func assertColumns(stage string, rs *store.ResultSet, a Assertion) error {
	if slices.Equal(rs.Columns, a.Columns) {
		return nil
	}
	return &AssertionError{
		Type:     AssertColumns,
		Stage:    stage,
		Expected: fmt.Sprintf("%v", a.Columns),
		Actual:   fmt.Sprintf("%v", rs.Columns),
	}
}

// assertUnits compares the multiset of rand_unit_id values, so a unit
// appearing twice fails even when the set matches.
func assertUnits(stage string, rs *store.ResultSet, a Assertion) error {
	idx := rs.ColumnIndex(plan.ColRandUnitID)
	if idx < 0 {
		return &AssertionError{
			Type:     AssertUnits,
			Stage:    stage,
			Expected: fmt.Sprintf("column %s", plan.ColRandUnitID),
			Actual:   fmt.Sprintf("columns %v", rs.Columns),
		}
	}

	actual := make([]string, len(rs.Rows))
	for i, row := range rs.Rows {
		actual[i] = formatValue(row[idx])
	}
	expected := append([]string(nil), a.Units...)
	sort.Strings(actual)
	sort.Strings(expected)

	if slices.Equal(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     AssertUnits,
		Stage:    stage,
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", actual),
	}
}

// assertRow finds the single row matching every where clause and checks the
// expected values. Values compare by their printed form so YAML integers
// match SQLite int64 and dates written as strings match TEXT columns.
func assertRow(stage string, rs *store.ResultSet, a Assertion) error {
	for col := range a.Where {
		if rs.ColumnIndex(col) < 0 {
			return &AssertionError{
				Type:     AssertRow,
				Stage:    stage,
				Expected: fmt.Sprintf("column %s", col),
				Actual:   fmt.Sprintf("columns %v", rs.Columns),
			}
		}
	}

	var matches []map[string]any
	for _, row := range rs.Maps() {
		if rowMatches(row, a.Where) {
			matches = append(matches, row)
		}
	}

	if len(matches) != 1 {
		return &AssertionError{
			Type:     AssertRow,
			Stage:    stage,
			Expected: fmt.Sprintf("exactly one row where %s", formatMap(a.Where)),
			Actual:   fmt.Sprintf("%d rows", len(matches)),
		}
	}

	row := matches[0]
	var mismatches []string
	for _, col := range sortedKeys(a.Expect) {
		actual, ok := row[col]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s=<missing>", col))
			continue
		}
		if !valuesEqual(actual, a.Expect[col]) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%s", col, formatValue(actual)))
		}
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertRow,
		Stage:    stage,
		Expected: formatMap(a.Expect),
		Actual:   strings.Join(mismatches, ", "),
	}
}

func rowMatches(row map[string]any, where map[string]interface{}) bool {
	for col, want := range where {
		if !valuesEqual(row[col], want) {
			return false
		}
	}
	return true
}

// valuesEqual compares a database value with a scenario value.
func valuesEqual(actual, expected interface{}) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return formatValue(actual) == formatValue(expected)
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func formatMap(m map[string]interface{}) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(m[k])))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
