package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/store"
)

func sampleRows() *store.ResultSet {
	return &store.ResultSet{
		Columns: []string{"rand_unit_id", "variant", "entry_point_date", "orders"},
		Rows: [][]any{
			{"c1", "A", "2024-01-05", int64(3)},
			{"c2", "B", "2024-01-03", int64(0)},
			{"c3", "A", nil, int64(4)},
		},
	}
}

func TestEvaluateAssertion_Pass(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
	}{
		{"row count", Assertion{Type: AssertRowCount, Count: 3}},
		{"columns", Assertion{Type: AssertColumns, Columns: []string{"rand_unit_id", "variant", "entry_point_date", "orders"}}},
		{"units any order", Assertion{Type: AssertUnits, Units: []string{"c3", "c1", "c2"}}},
		{"row int matches int64", Assertion{
			Type:   AssertRow,
			Where:  map[string]interface{}{"rand_unit_id": "c1"},
			Expect: map[string]interface{}{"orders": 3, "variant": "A"},
		}},
		{"row null", Assertion{
			Type:   AssertRow,
			Where:  map[string]interface{}{"rand_unit_id": "c3"},
			Expect: map[string]interface{}{"entry_point_date": nil},
		}},
		{"row where on two columns", Assertion{
			Type:   AssertRow,
			Where:  map[string]interface{}{"variant": "A", "orders": 4},
			Expect: map[string]interface{}{"rand_unit_id": "c3"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, EvaluateAssertion("merge__all", sampleRows(), tt.assertion))
		})
	}
}

func TestEvaluateAssertion_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		expected  string
		actual    string
	}{
		{
			name:      "row count",
			assertion: Assertion{Type: AssertRowCount, Count: 2},
			expected:  "2 rows",
			actual:    "3 rows",
		},
		{
			name:      "columns order",
			assertion: Assertion{Type: AssertColumns, Columns: []string{"variant", "rand_unit_id", "entry_point_date", "orders"}},
			expected:  "[variant rand_unit_id entry_point_date orders]",
			actual:    "[rand_unit_id variant entry_point_date orders]",
		},
		{
			name:      "units missing one",
			assertion: Assertion{Type: AssertUnits, Units: []string{"c1", "c2"}},
			expected:  "[c1 c2]",
			actual:    "[c1 c2 c3]",
		},
		{
			name: "row value mismatch",
			assertion: Assertion{
				Type:   AssertRow,
				Where:  map[string]interface{}{"rand_unit_id": "c2"},
				Expect: map[string]interface{}{"orders": 1, "variant": "B"},
			},
			expected: "orders=1, variant=B",
			actual:   "orders=0",
		},
		{
			name: "row not found",
			assertion: Assertion{
				Type:   AssertRow,
				Where:  map[string]interface{}{"rand_unit_id": "c9"},
				Expect: map[string]interface{}{"orders": 0},
			},
			expected: "exactly one row where rand_unit_id=c9",
			actual:   "0 rows",
		},
		{
			name: "row ambiguous",
			assertion: Assertion{
				Type:   AssertRow,
				Where:  map[string]interface{}{"variant": "A"},
				Expect: map[string]interface{}{"orders": 3},
			},
			expected: "exactly one row where variant=A",
			actual:   "2 rows",
		},
		{
			name: "row unknown where column",
			assertion: Assertion{
				Type:   AssertRow,
				Where:  map[string]interface{}{"customer_id": "c1"},
				Expect: map[string]interface{}{"orders": 3},
			},
			expected: "column customer_id",
			actual:   "columns [rand_unit_id variant entry_point_date orders]",
		},
		{
			name: "row missing expected column",
			assertion: Assertion{
				Type:   AssertRow,
				Where:  map[string]interface{}{"rand_unit_id": "c1"},
				Expect: map[string]interface{}{"sessions": 0},
			},
			expected: "sessions=0",
			actual:   "sessions=<missing>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EvaluateAssertion("merge__all", sampleRows(), tt.assertion)
			require.Error(t, err)

			var aerr *AssertionError
			require.True(t, errors.As(err, &aerr))
			assert.Equal(t, tt.assertion.Type, aerr.Type)
			assert.Equal(t, "merge__all", aerr.Stage)
			assert.Equal(t, tt.expected, aerr.Expected)
			assert.Equal(t, tt.actual, aerr.Actual)
		})
	}
}

func TestEvaluateAssertion_UnitsDuplicated(t *testing.T) {
	rs := sampleRows()
	rs.Rows = append(rs.Rows, []any{"c1", "A", "2024-01-05", int64(3)})

	err := EvaluateAssertion("merge__fact_orders", rs, Assertion{Type: AssertUnits, Units: []string{"c1", "c2", "c3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[c1 c1 c2 c3]")
}

func TestEvaluateAssertion_UnitsWithoutUnitColumn(t *testing.T) {
	rs := &store.ResultSet{Columns: []string{"customer_id"}, Rows: [][]any{{"c1"}}}

	err := EvaluateAssertion("ass", rs, Assertion{Type: AssertUnits, Units: []string{"c1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column rand_unit_id")
}

func TestEvaluateAssertion_UnknownType(t *testing.T) {
	err := EvaluateAssertion("merge__all", sampleRows(), Assertion{Type: "final_state"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown assertion type "final_state"`)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertRowCount, Stage: "merge__all", Expected: "3 rows", Actual: "2 rows"}
	assert.Equal(t, "Assertion failed: row_count on merge__all\n  Expected: 3 rows\n  Actual: 2 rows", err.Error())
}
