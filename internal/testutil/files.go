package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ExampleDefinition is the customers example with both facts, as a YAML
// definition reading its queries from the files written by WriteExample.
const ExampleDefinition = `assignments:
  query_file: assignments.sql
  mapping:
    randomisation_unit_id: customer_id
    variant_column: variant
    date_column: date_ass
entry_point:
  query_file: entry_point.sql
  mapping:
    randomisation_unit_id: customer_id
    date_column: date_ep
facts:
  - query_file: orders.sql
    mapping:
      randomisation_unit_id: customer_id
      date_column: obs_date
      fact_columns: [orders_created, orders_cancelled]
  - query_file: sessions.sql
    mapping:
      randomisation_unit_id: customer_id
      date_column: obs_date
      fact_columns: sessions
`

// WriteExample writes ExampleDefinition as experiment.yaml, its query
// files and SeedSQL as seed.sql into dir. It returns the definition path;
// composing it yields the same SQL as ExampleInput(OrdersFact(), SessionsFact()).
func WriteExample(t testing.TB, dir string) string {
	t.Helper()

	files := map[string]string{
		"experiment.yaml": ExampleDefinition,
		"assignments.sql": AssignmentsFragment,
		"entry_point.sql": EntryPointFragment,
		"orders.sql":      OrdersFragment,
		"sessions.sql":    SessionsFragment,
		"seed.sql":        SeedSQL,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	return filepath.Join(dir, "experiment.yaml")
}
