package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNoColumn reports a lookup of a column the result set does not have.
var ErrNoColumn = errors.New("no such column")

// ResultSet is a fully materialized query result.
// TEXT values are returned as string, INTEGER as int64, REAL as float64,
// NULL as nil.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// ExecScript executes one or more semicolon-separated statements, such as a
// seed script creating and filling fixture tables.
func (s *Store) ExecScript(ctx context.Context, script string) error {
	if _, err := s.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("exec script: %w", err)
	}
	return nil
}

// Query executes a statement and materializes every row.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	rs := &ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(rs.Rows), err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return rs, nil
}

// ColumnIndex returns the position of a column, or -1.
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Maps returns every row keyed by column name.
func (rs *ResultSet) Maps() []map[string]any {
	out := make([]map[string]any, len(rs.Rows))
	for i, row := range rs.Rows {
		m := make(map[string]any, len(rs.Columns))
		for j, c := range rs.Columns {
			m[c] = row[j]
		}
		out[i] = m
	}
	return out
}

// SortBy orders rows by the string form of a column, ties keeping their
// original order.
func (rs *ResultSet) SortBy(column string) error {
	idx := rs.ColumnIndex(column)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNoColumn, column)
	}
	sort.SliceStable(rs.Rows, func(i, j int) bool {
		return fmt.Sprint(rs.Rows[i][idx]) < fmt.Sprint(rs.Rows[j][idx])
	})
	return nil
}
