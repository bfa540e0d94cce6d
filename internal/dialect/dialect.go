// Package dialect describes the concrete SQL dialects the engine can
// parse from and emit to. A Dialect is pure capability data: the
// emitter and the rules consult it, nothing in it executes SQL.
package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/queryshift/queryshift/internal/sqlir"
)

// Dialect captures the differences that matter to the rewriting
// engine: identifier quoting and casing, window-function and CTE
// availability, cast type-name mapping, and whether the engine behind
// the dialect is known to perform the scalar-subquery and cast
// rewrites internally.
type Dialect struct {
	// Name is the identifier used on the CLI and in reports.
	Name string

	// FoldIdentifiers is the case convention applied to unquoted
	// identifiers when emitting.
	FoldIdentifiers IdentifierFold

	// SupportsWindowFunctions gates the decorrelation rewrite: without
	// window functions the rule fails closed and never fires.
	SupportsWindowFunctions bool

	// SupportsCTE gates emission of WITH clauses.
	SupportsCTE bool

	// InternalRewrites marks engines whose planners already perform
	// the quantified-subquery and cast-shift rewrites internally, so
	// emitting them explicitly buys nothing. Rules H2/H3/H4 decline
	// when the target dialect sets this.
	InternalRewrites bool

	// castNames maps logical base types to this dialect's type names.
	castNames map[sqlir.BaseType]string
}

// IdentifierFold enumerates unquoted-identifier case conventions.
type IdentifierFold int

const (
	FoldNone IdentifierFold = iota
	FoldLower
	FoldUpper
)

// registry of known dialects, keyed by lowercase name.
var registry = map[string]*Dialect{
	"postgres": {
		Name:                    "postgres",
		FoldIdentifiers:         FoldLower,
		SupportsWindowFunctions: true,
		SupportsCTE:             true,
		castNames: map[sqlir.BaseType]string{
			sqlir.TypeSmallInt: "SMALLINT",
			sqlir.TypeInteger:  "INTEGER",
			sqlir.TypeBigInt:   "BIGINT",
			sqlir.TypeFloat:    "DOUBLE PRECISION",
			sqlir.TypeDecimal:  "NUMERIC",
			sqlir.TypeChar:     "CHAR",
			sqlir.TypeVarChar:  "VARCHAR",
			sqlir.TypeText:     "TEXT",
			sqlir.TypeDate:     "DATE",
			sqlir.TypeBool:     "BOOLEAN",
		},
	},
	"commercial": {
		Name:                    "commercial",
		FoldIdentifiers:         FoldUpper,
		SupportsWindowFunctions: true,
		SupportsCTE:             true,
		InternalRewrites:        true,
		castNames: map[sqlir.BaseType]string{
			sqlir.TypeSmallInt: "SMALLINT",
			sqlir.TypeInteger:  "INT",
			sqlir.TypeBigInt:   "BIGINT",
			sqlir.TypeFloat:    "FLOAT(53)",
			sqlir.TypeDecimal:  "DECIMAL",
			sqlir.TypeChar:     "CHAR",
			sqlir.TypeVarChar:  "VARCHAR",
			sqlir.TypeText:     "VARCHAR(8000)",
			sqlir.TypeDate:     "DATE",
			sqlir.TypeBool:     "BIT",
		},
	},
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (*Dialect, error) {
	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists the registered dialect names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the dialect used when none is declared.
func Default() *Dialect {
	return registry["postgres"]
}

// CastTypeName renders a logical type in this dialect's type-name
// vocabulary.
func (d *Dialect) CastTypeName(t sqlir.LogicalType) string {
	name, ok := d.castNames[t.Base]
	if !ok {
		name = string(t.Base)
	}
	switch {
	case t.Width > 0 && t.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", name, t.Width, t.Scale)
	case t.Width > 0:
		return fmt.Sprintf("%s(%d)", name, t.Width)
	default:
		return name
	}
}

// QuoteIdentifier renders an identifier for this dialect: folded to
// the dialect's case when it is a plain identifier, double-quoted
// when it needs quoting.
func (d *Dialect) QuoteIdentifier(name string) string {
	if isPlainIdent(name) {
		switch d.FoldIdentifiers {
		case FoldLower:
			return strings.ToLower(name)
		case FoldUpper:
			return strings.ToUpper(name)
		}
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
