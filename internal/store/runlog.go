package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
)

//go:embed schema.sql
var schemaSQL string

// IDGenerator produces run ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Run is one recorded execution of a composed statement.
type Run struct {
	ID          string
	Seq         int64
	Statement   string
	RowCount    int
	ColumnCount int
}

// RecordRun appends a run to the run log and returns it with its assigned
// sequence number. The run log table is created on first use.
func (s *Store) RecordRun(ctx context.Context, id, statement string, rs *ResultSet) (Run, error) {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return Run{}, fmt.Errorf("apply run log schema: %w", err)
	}

	run := Run{
		ID:          id,
		Statement:   statement,
		RowCount:    len(rs.Rows),
		ColumnCount: len(rs.Columns),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expsql_runs (id, seq, statement, row_count, column_count)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM expsql_runs
	`, run.ID, run.Statement, run.RowCount, run.ColumnCount)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM expsql_runs WHERE id = ?`, run.ID,
	).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("read run seq: %w", err)
	}

	return run, nil
}

// ListRuns returns every recorded run ordered by seq.
// Returns an empty slice (not nil) when the run log is empty or missing.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("apply run log schema: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, statement, row_count, column_count
		FROM expsql_runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Seq, &r.Statement, &r.RowCount, &r.ColumnCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
