package compose_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/fragment"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/sqlcheck"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/testutil"
)

func goldenSQL(t *testing.T, name, sql string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(sql))
}

func TestCompose_Golden(t *testing.T) {
	sql, err := compose.Compose(testutil.ExampleInput(testutil.OrdersFact(), testutil.SessionsFact()))
	require.NoError(t, err)

	goldenSQL(t, "customers_orders_sessions", sql)
}

func TestCompose_GoldenNoFacts(t *testing.T) {
	sql, err := compose.Compose(testutil.ExampleInput())
	require.NoError(t, err)

	goldenSQL(t, "customers_no_facts", sql)
}

func TestCompose_CustomersOrdersExample(t *testing.T) {
	sql, err := compose.Compose(testutil.ExampleInput(testutil.OrdersFact()))
	require.NoError(t, err)

	require.NotEmpty(t, sql)
	assert.Equal(t, 1, strings.Count(sql, "exposures__customers as ("))
	assert.Equal(t, 1, strings.Count(sql, compose.FactStagePrefix+"fact_orders as ("))
	assert.Equal(t, 1, strings.Count(sql, "merge__all as ("))
	assert.True(t, strings.HasSuffix(sql, "select * from merge__all"))

	// Canonical renames in the exposures stage.
	assert.Contains(t, sql, "a.customer_id as rand_unit_id")
	assert.Contains(t, sql, "a.variant as variant")
	assert.Contains(t, sql, "a.date_ass as first_assignment_date")
	assert.Contains(t, sql, "e.date_ep as entry_point_date")
	assert.Contains(t, sql, "on a.customer_id = e.customer_id")

	// Per-fact aggregation and the permissive date predicate.
	assert.Contains(t, sql, "coalesce(sum(f.orders_created), 0) as orders_created")
	assert.Contains(t, sql, "coalesce(sum(f.orders_cancelled), 0) as orders_cancelled")
	assert.Contains(t, sql, "(f.obs_date >= e.entry_point_date or f.obs_date is null)")
	assert.Contains(t, sql, "group by 1, 2, 3, 4")
}

func TestCompose_RoundTripBalance(t *testing.T) {
	inputs := map[string]compose.Input{
		"no facts":  testutil.ExampleInput(),
		"one fact":  testutil.ExampleInput(testutil.OrdersFact()),
		"two facts": testutil.ExampleInput(testutil.OrdersFact(), testutil.SessionsFact()),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			sql, err := compose.Compose(in)
			require.NoError(t, err)
			assert.NoError(t, sqlcheck.Check(sql))
		})
	}
}

func TestCompose_StageOrder(t *testing.T) {
	sql, err := compose.Compose(testutil.ExampleInput(testutil.OrdersFact(), testutil.SessionsFact()))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ass",
		"ep",
		"exposures__customers",
		"fact_orders",
		"fact_sessions",
		"merge__fact_fact_orders",
		"merge__fact_fact_sessions",
		"merge__all",
	}, sqlcheck.CTENames(sql))
}

// The final merge joins every per-fact stage by that fact's own stage name,
// and qualifies each projected fact column with the stage that produced it.
// Reusing one fact's name for every join would silently repeat that fact.
func TestCompose_EachFactJoinedByItsOwnStage(t *testing.T) {
	sql, err := compose.Compose(testutil.ExampleInput(testutil.OrdersFact(), testutil.SessionsFact()))
	require.NoError(t, err)

	using := "using(rand_unit_id, variant, first_assignment_date, entry_point_date)"
	assert.Equal(t, 1, strings.Count(sql, "join merge__fact_fact_orders "+using))
	assert.Equal(t, 1, strings.Count(sql, "join merge__fact_fact_sessions "+using))
	assert.Contains(t, sql, "merge__fact_fact_orders.orders_created as orders_created")
	assert.Contains(t, sql, "merge__fact_fact_orders.orders_cancelled as orders_cancelled")
	assert.Contains(t, sql, "merge__fact_fact_sessions.sessions as sessions")
	assert.Contains(t, sql, "left join fact_orders f")
	assert.Contains(t, sql, "left join fact_sessions f")
}

func TestCompose_NoFacts(t *testing.T) {
	sql, err := compose.Compose(testutil.ExampleInput())
	require.NoError(t, err)

	assert.NotContains(t, sql, compose.FactStagePrefix)
	assert.NotContains(t, sql, " join merge__")
	assert.NotContains(t, sql, ",\n,")
	assert.True(t, strings.HasSuffix(sql, "select * from merge__all"))
}

func TestCompose_MissingRoles(t *testing.T) {
	in := testutil.ExampleInput(testutil.OrdersFact())
	in.AssignmentsMapping.VariantColumn = ""
	in.EntryPointMapping.DateColumn = "  "
	in.Facts[0].Mapping.FactColumns = nil

	_, err := compose.Compose(in)

	require.Error(t, err)
	assert.True(t, errors.Is(err, compose.ErrMissingRole))
	assert.Contains(t, err.Error(), "assignments mapping: variant_column is required")
	assert.Contains(t, err.Error(), "entry_point mapping: date_column is required")
	assert.Contains(t, err.Error(), "fact[0] mapping: fact_columns is required")

	var merr *compose.MappingError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "assignments", merr.Source)
	assert.Equal(t, compose.RoleVariantColumn, merr.Role)
}

func TestCompose_BlankFactColumn(t *testing.T) {
	fact := testutil.OrdersFact()
	fact.Mapping.FactColumns = []string{"orders_created", ""}

	_, err := compose.Compose(testutil.ExampleInput(fact))

	require.Error(t, err)
	assert.True(t, errors.Is(err, compose.ErrMissingRole))
	assert.Contains(t, err.Error(), "fact[0] mapping: fact_columns[1] is required")
}

func TestCompose_DuplicateFactColumns(t *testing.T) {
	testCases := []struct {
		name    string
		columns []string
		owner   string
	}{
		{name: "collides with canonical column", columns: []string{"variant"}, owner: "the canonical schema"},
		{name: "collides with earlier fact", columns: []string{"orders_created"}, owner: "fact[0]"},
		{name: "case-insensitive collision", columns: []string{"Orders_Created"}, owner: "fact[0]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := testutil.SessionsFact()
			sessions.Mapping.FactColumns = tc.columns

			_, err := compose.Compose(testutil.ExampleInput(testutil.OrdersFact(), sessions))

			require.Error(t, err)
			assert.True(t, errors.Is(err, compose.ErrDuplicateColumn))
			assert.Contains(t, err.Error(), "is already produced by "+tc.owner)
		})
	}
}

func TestCompose_DuplicateFactTables(t *testing.T) {
	_, err := compose.Compose(testutil.ExampleInput(testutil.OrdersFact(), compose.FactEntry{
		Fragment: testutil.OrdersFragment,
		Mapping: compose.FactMapping{
			RandomisationUnitID: "customer_id",
			DateColumn:          "obs_date",
			FactColumns:         []string{"orders_total"},
		},
	}))

	require.Error(t, err)
	assert.True(t, errors.Is(err, plan.ErrDuplicateStage))
}

func TestCompose_FragmentsReadingTheSameTable(t *testing.T) {
	in := testutil.ExampleInput()
	in.Assignments = "select * from events"
	in.EntryPoint = "SELECT * FROM events;"

	sql, err := compose.Compose(in)

	require.NoError(t, err)
	assert.Contains(t, sql, "from events a\n")
	assert.Contains(t, sql, "inner join events e\n")
}

func TestCompose_MissingTerminalSelect(t *testing.T) {
	fact := testutil.OrdersFact()
	fact.Fragment = "with fact_orders as (\n  values (1)\n)"

	t.Run("permissive", func(t *testing.T) {
		sql, err := compose.Compose(testutil.ExampleInput(fact))
		require.NoError(t, err)
		assert.Contains(t, sql, `left join "<no terminal select>" f`)
	})

	t.Run("strict", func(t *testing.T) {
		_, err := compose.Compose(testutil.ExampleInput(fact), compose.WithStrictFragments())
		require.Error(t, err)
		assert.True(t, errors.Is(err, fragment.ErrNoTerminalSelect))
		assert.Contains(t, err.Error(), "fact[0]")
	})
}

func TestCompose_Deterministic(t *testing.T) {
	in := testutil.ExampleInput(testutil.OrdersFact(), testutil.SessionsFact())
	want, err := compose.Compose(in)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = compose.Compose(in)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestFactStageName(t *testing.T) {
	assert.Equal(t, "merge__fact_orders", compose.FactStageName("orders"))
	assert.Equal(t, "merge__fact_analytics_orders", compose.FactStageName("analytics.orders"))
	assert.Equal(t, "merge__fact_", compose.FactStageName(""))
}

func TestPlan_RejectsInvalidPlans(t *testing.T) {
	in := testutil.ExampleInput(testutil.OrdersFact(), compose.FactEntry{
		Fragment: testutil.OrdersFragment,
		Mapping: compose.FactMapping{
			RandomisationUnitID: "customer_id",
			DateColumn:          "obs_date",
			FactColumns:         []string{"orders_total"},
		},
	})

	p, err := compose.Plan(in)

	require.Error(t, err)
	assert.True(t, errors.Is(err, plan.ErrDuplicateStage))
	assert.Empty(t, p.Stages)
}

func TestPlan_Stages(t *testing.T) {
	p, err := compose.Plan(testutil.ExampleInput(testutil.OrdersFact()))
	require.NoError(t, err)

	require.Len(t, p.Stages, 6)
	assert.Equal(t, compose.FinalStage, p.Terminal)

	exposures, ok := p.Stages[2].(plan.Exposures)
	require.True(t, ok)
	assert.Equal(t, "ass", exposures.AssignmentsTable)
	assert.Equal(t, "ep", exposures.EntryPointTable)

	merge, ok := p.Stages[4].(plan.FactMerge)
	require.True(t, ok)
	assert.Equal(t, "fact_orders", merge.FactTable)
	assert.Equal(t, []string{"orders_created", "orders_cancelled"}, merge.Columns)

	final, ok := p.Stages[5].(plan.FinalMerge)
	require.True(t, ok)
	require.Len(t, final.Facts, 1)
	assert.Equal(t, "merge__fact_fact_orders", final.Facts[0].Name)
}
