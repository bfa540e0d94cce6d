package rules

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// FuncShift moves an invertible cast off a filtered column and onto
// the literal it is compared with, so the column side stays in its
// stored form. Only casts are moved: arbitrary functions are not
// invertible in general. The cast must be lossless over the column's
// declared type or the comparison could change meaning, so the rule
// needs the catalog and declines without it.
type FuncShift struct{}

func (FuncShift) ID() string { return "H4" }

func (FuncShift) Description() string {
	return "move cast from column side to literal side of a comparison"
}

// castSite is one CAST(col) <op> literal comparison.
type castSite struct {
	cmp     *sqlir.Comparison
	col     *sqlir.Column
	cast    sqlir.LogicalType
	lit     *sqlir.Literal
	flipped bool
}

func (r FuncShift) Matches(q *sqlir.Query, env *Env) MatchResult {
	var res MatchResult
	sites := false
	mapPredicate(q.Where, func(p sqlir.Predicate) (sqlir.Predicate, bool) {
		site, ok := matchCastComparison(p)
		if !ok {
			return p, false
		}
		sites = true
		if env.Dialect != nil && env.Dialect.InternalRewrites {
			return p, false
		}
		if _, _, provable := r.declaredType(q, site, env); !provable {
			res.Notes = append(res.Notes, declined(r, "declared type of %s unknown or cast not invertible", sqlir.Fragment(site.col)))
			return p, false
		}
		res.Matched = true
		return p, false
	})
	if sites && env.Dialect != nil && env.Dialect.InternalRewrites {
		res.Notes = append(res.Notes, declined(r, "target dialect performs cast-shift internally"))
	}
	return res
}

func (r FuncShift) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	var firings []Firing
	where, changed := mapPredicate(q.Where, func(p sqlir.Predicate) (sqlir.Predicate, bool) {
		site, ok := matchCastComparison(p)
		if !ok {
			return p, false
		}
		declared, needsCast, provable := r.declaredType(q, site, env)
		if !provable {
			return p, false
		}
		var litSide sqlir.Expr = site.lit
		if needsCast {
			litSide = &sqlir.Cast{Expr: site.lit, Type: declared}
		}
		next := &sqlir.Comparison{Left: site.col, Op: site.cmp.Op, Right: litSide}
		if site.flipped {
			next = &sqlir.Comparison{Left: litSide, Op: site.cmp.Op, Right: site.col}
		}
		firings = append(firings, firing(r, site.cmp, next))
		return next, true
	})
	if !changed {
		return q, nil
	}
	q2 := q.Shallow()
	q2.Where = where
	return q2, firings
}

// matchCastComparison recognizes CAST(col AS t) <op> literal and its
// mirror image.
func matchCastComparison(p sqlir.Predicate) (castSite, bool) {
	c, ok := p.(*sqlir.Comparison)
	if !ok {
		return castSite{}, false
	}
	if cast, okL := c.Left.(*sqlir.Cast); okL {
		if col, okC := cast.Expr.(*sqlir.Column); okC {
			if lit, okR := c.Right.(*sqlir.Literal); okR {
				return castSite{cmp: c, col: col, cast: cast.Type, lit: lit}, true
			}
		}
	}
	if cast, okR := c.Right.(*sqlir.Cast); okR {
		if col, okC := cast.Expr.(*sqlir.Column); okC {
			if lit, okL := c.Left.(*sqlir.Literal); okL {
				return castSite{cmp: c, col: col, cast: cast.Type, lit: lit, flipped: true}, true
			}
		}
	}
	return castSite{}, false
}

// declaredType resolves the column's catalog type and checks that the
// matched cast was a widening over it. needsCast reports whether the
// literal still needs an explicit cast to the declared type; string
// literals compare fine bare.
func (r FuncShift) declaredType(q *sqlir.Query, site castSite, env *Env) (t sqlir.LogicalType, needsCast bool, ok bool) {
	table, ok := resolveColumn(q, site.col)
	if !ok {
		return sqlir.LogicalType{}, false, false
	}
	declared, ok := env.Catalog.ColumnType(table, site.col.Name)
	if !ok {
		return sqlir.LogicalType{}, false, false
	}
	if !widens(declared, site.cast) {
		return sqlir.LogicalType{}, false, false
	}
	switch declared.Base {
	case sqlir.TypeChar, sqlir.TypeVarChar, sqlir.TypeText:
		return declared, false, true
	}
	return declared, true, true
}

// numericWidening lists casts that lose nothing over the source type's
// full value range.
var numericWidening = map[sqlir.BaseType]map[sqlir.BaseType]bool{
	sqlir.TypeSmallInt: {sqlir.TypeInteger: true, sqlir.TypeBigInt: true, sqlir.TypeDecimal: true, sqlir.TypeFloat: true},
	sqlir.TypeInteger:  {sqlir.TypeBigInt: true, sqlir.TypeDecimal: true},
	sqlir.TypeBigInt:   {sqlir.TypeDecimal: true},
	sqlir.TypeVarChar:  {sqlir.TypeText: true},
}

// widens reports whether casting a value of type from to type to is
// lossless, which makes the cast invertible on the literal side.
func widens(from, to sqlir.LogicalType) bool {
	if from.Base == to.Base {
		if to.Width == 0 {
			return true
		}
		return to.Width >= from.Width && to.Scale >= from.Scale
	}
	if !numericWidening[from.Base][to.Base] {
		return false
	}
	if to.Base == sqlir.TypeDecimal && to.Width > 0 {
		// A bounded decimal target must hold the widest 64-bit source.
		return to.Width-to.Scale >= 19
	}
	return true
}
