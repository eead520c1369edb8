// Package harness runs conformance scenarios against composed statements.
//
// A scenario names a composition definition, a list of SQL seed scripts and
// a list of assertions. Run composes the definition, seeds a fresh in-memory
// SQLite database, executes the statement (or any intermediate stage of it)
// and checks the returned rows:
//
//	name: customers_orders_sessions
//	description: Two facts, zero-filled
//	definition: experiment.yaml
//	seed: [seed.sql]
//	assertions:
//	  - type: units
//	    stage: exposures__customers
//	    units: [c1, c2, c3]
//	  - type: row
//	    where: {rand_unit_id: c1}
//	    expect: {orders_created: 3}
//
// Scenarios that exercise rejected definitions set expect_error instead of
// seeding and asserting: the scenario passes when composition fails with a
// message containing that text.
//
// RunWithGolden additionally snapshots the composed SQL under
// testdata/golden/<name>.golden.
package harness
