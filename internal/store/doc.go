// Package store executes composed statements against SQLite.
//
// The store is used in two places:
//   - the run command, which composes a definition and executes it against
//     a user database (optionally seeded from SQL scripts)
//   - tests and conformance scenarios, which execute composed statements
//     against in-memory fixtures to check the row-level guarantees of the
//     composition (one row per exposed unit, zero-filled facts)
//
// # Run Log
//
// RecordRun appends to an expsql_runs table created on first use. Runs are
// ordered by a logical sequence number (seq), never by wall-clock time, so
// ListRuns is deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// In-memory stores (MemoryPath) keep SQLite's memory journal.
package store
