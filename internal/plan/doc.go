// Package plan provides the stage intermediate representation (IR) for a
// composed experiment query.
//
// A Plan is an ordered list of stages that becomes one WITH clause:
//
//	[fragment blocks] → exposures → [fact blocks] → fact merges → final merge
//	                                                               ↓
//	                                                   select * from <terminal>
//
// STAGE TYPES:
//
// Stage is a sealed interface using the marker method pattern. Only types
// in this package implement it:
//   - Block: a verbatim CTE list taken from a normalized user fragment
//   - Exposures: assignments inner-joined to entry points, canonical schema
//   - FactMerge: one fact left-joined and aggregated onto exposures
//   - FinalMerge: exposures inner-joined to every fact merge
//
// CANONICAL SCHEMA:
//
// Exposures fixes the four columns every later stage joins on:
//
//	rand_unit_id, variant, first_assignment_date, entry_point_date
//
// ORDERING:
//
// A stage may only reference stages defined before it. Validate enforces
// this for named stages. Tables defined inside Blocks are user-owned and
// are not checked: a fragment that does not define the table it claims to
// expose fails when the statement is executed, not here.
package plan
