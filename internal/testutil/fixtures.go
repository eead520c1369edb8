// Package testutil provides shared fixtures for composition tests.
package testutil

import (
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
)

// AssignmentsFragment selects one row per customer with its variant.
const AssignmentsFragment = `
    with ass as (
        SELECT
            customer_id,
            variant,
            date_ass
        FROM assignments_sql
    )
    select * from ass
    `

// EntryPointFragment selects the first entry date per customer.
const EntryPointFragment = `
    with ep as (
        SELECT
            customer_id,
            date_ep
        FROM entrypoint_sql
    )
    select * from ep
    `

// OrdersFragment aggregates orders per customer and day.
const OrdersFragment = `
            with fact_orders as (
                SELECT
                    customer_id,
                    obs_date,
                    sum(orders) as orders_created,
                    sum(canceled_orders) as orders_cancelled
                FROM obs_sql_orders
                GROUP BY 1,2
            )
            select * from fact_orders
            `

// SessionsFragment aggregates sessions per customer and day.
const SessionsFragment = `
            with fact_sessions as (
                SELECT
                    customer_id,
                    obs_date,
                    sum(sessions) as sessions
                FROM obs_sql_sessions
                GROUP BY 1,2
            )
            select * from fact_sessions
            `

// AssignmentsMapping maps the assignments fixture.
func AssignmentsMapping() compose.AssignmentsMapping {
	return compose.AssignmentsMapping{
		RandomisationUnitID: "customer_id",
		VariantColumn:       "variant",
		DateColumn:          "date_ass",
	}
}

// EntryPointMapping maps the entry point fixture.
func EntryPointMapping() compose.EntryPointMapping {
	return compose.EntryPointMapping{
		RandomisationUnitID: "customer_id",
		DateColumn:          "date_ep",
	}
}

// OrdersFact is the orders fact entry.
func OrdersFact() compose.FactEntry {
	return compose.FactEntry{
		Fragment: OrdersFragment,
		Mapping: compose.FactMapping{
			RandomisationUnitID: "customer_id",
			DateColumn:          "obs_date",
			FactColumns:         []string{"orders_created", "orders_cancelled"},
		},
	}
}

// SessionsFact is the sessions fact entry.
func SessionsFact() compose.FactEntry {
	return compose.FactEntry{
		Fragment: SessionsFragment,
		Mapping: compose.FactMapping{
			RandomisationUnitID: "customer_id",
			DateColumn:          "obs_date",
			FactColumns:         []string{"sessions"},
		},
	}
}

// ExampleInput returns the customers example with the given facts.
// With no facts it returns the degenerate exposures-only composition.
func ExampleInput(facts ...compose.FactEntry) compose.Input {
	return compose.Input{
		Assignments:        AssignmentsFragment,
		AssignmentsMapping: AssignmentsMapping(),
		EntryPoint:         EntryPointFragment,
		EntryPointMapping:  EntryPointMapping(),
		Facts:              facts,
	}
}
