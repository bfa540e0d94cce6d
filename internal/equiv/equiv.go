// Package equiv supports the test suite: structural equivalence over
// IR trees and an in-memory SQLite harness for checking that a
// rewritten query returns the same rows as the original. Nothing at
// runtime imports this package; the engine never executes SQL.
package equiv

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/queryshift/queryshift/internal/sqlir"
)

// Structural reports whether two IR trees are semantically the same
// shape, ignoring presentation-only differences: relation aliases,
// projection aliases, and conjunct order.
func Structural(a, b *sqlir.Query) bool {
	return sqlir.Equal(a, b)
}

// DB is a throwaway in-memory SQLite database for executing query
// pairs against a fixture dataset.
type DB struct {
	db *sql.DB
}

// Open creates an in-memory database. A single connection keeps the
// in-memory database alive and avoids SQLITE_BUSY.
func Open() (*DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Exec runs DDL and fixture statements in order.
func (d *DB) Exec(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Rows executes a query and returns its rows in a canonical, sorted
// text form, so two result sets compare as sets.
func (d *DB) Rows(ctx context.Context, query string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		cells := make([]string, len(cols))
		for i, v := range vals {
			cells[i] = canonicalCell(v)
		}
		out = append(out, strings.Join(cells, "|"))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// SameRows reports whether two query texts produce set-equal rows
// against the fixture data.
func (d *DB) SameRows(ctx context.Context, a, b string) (bool, error) {
	ra, err := d.Rows(ctx, a)
	if err != nil {
		return false, err
	}
	rb, err := d.Rows(ctx, b)
	if err != nil {
		return false, err
	}
	if len(ra) != len(rb) {
		return false, nil
	}
	for i := range ra {
		if ra[i] != rb[i] {
			return false, nil
		}
	}
	return true, nil
}

func canonicalCell(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
