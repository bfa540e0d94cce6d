// Package catalog holds the schema facts rules consult before firing:
// declared column types and unique keys. The catalog is a pure fact
// base; a rule that needs a fact the catalog does not hold must treat
// the fact as unknown and decline.
package catalog

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// Catalog is the set of known tables, keyed by normalized name.
type Catalog struct {
	tables map[string]*Table
}

// Table describes one base table.
type Table struct {
	Name    string
	Columns []Column

	// UniqueKeys lists declared unique column sets, primary key
	// included. Column order within a key is not significant.
	UniqueKeys [][]string
}

// Column describes one column's declared type.
type Column struct {
	Name string
	Type sqlir.LogicalType
}

// New builds a catalog from table descriptions.
func New(tables ...*Table) *Catalog {
	c := &Catalog{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		c.tables[sqlir.NormalizeIdent(t.Name)] = t
	}
	return c
}

// Empty returns a catalog with no facts. Every lookup misses, so
// catalog-gated rules never fire.
func Empty() *Catalog {
	return New()
}

// Table looks up a table by name, case-insensitively.
func (c *Catalog) Table(name string) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.tables[sqlir.NormalizeIdent(name)]
	return t, ok
}

// ColumnType returns the declared type of table.column.
func (c *Catalog) ColumnType(table, column string) (sqlir.LogicalType, bool) {
	t, ok := c.Table(table)
	if !ok {
		return sqlir.LogicalType{}, false
	}
	want := sqlir.NormalizeIdent(column)
	for _, col := range t.Columns {
		if sqlir.NormalizeIdent(col.Name) == want {
			return col.Type, true
		}
	}
	return sqlir.LogicalType{}, false
}

// HasUniqueKeyWithin reports whether table declares a unique key whose
// columns all appear in cols. Names are normalized before comparison.
func (c *Catalog) HasUniqueKeyWithin(table string, cols []string) bool {
	t, ok := c.Table(table)
	if !ok {
		return false
	}
	have := make(map[string]bool, len(cols))
	for _, col := range cols {
		have[sqlir.NormalizeIdent(col)] = true
	}
	for _, key := range t.UniqueKeys {
		if len(key) == 0 {
			continue
		}
		covered := true
		for _, kc := range key {
			if !have[sqlir.NormalizeIdent(kc)] {
				covered = false
				break
			}
		}
		if covered {
			return true
		}
	}
	return false
}

// Names lists the table names known to the catalog.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	return names
}
