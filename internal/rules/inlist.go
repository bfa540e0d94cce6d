package rules

import (
	"strings"
	"unicode/utf8"

	"github.com/queryshift/queryshift/internal/sqlir"
)

// InListExpand rewrites membership in a finite literal set as a chain
// of equality comparisons. Never fires for IN (subquery) or NOT IN.
//
// Literal values pass through byte for byte, with one deliberate
// adjustment: when the tested column is declared CHAR(n) in the
// catalog, string literals shorter than n are space-padded to the
// declared width. An unpadded equality against a fixed-width column
// can miss rows that the IN form matched.
type InListExpand struct{}

func (InListExpand) ID() string { return "H8" }

func (InListExpand) Description() string {
	return "expand IN over a literal set into an OR chain of equalities"
}

func (r InListExpand) Matches(q *sqlir.Query, env *Env) MatchResult {
	var res MatchResult
	mapPredicate(q.Where, func(p sqlir.Predicate) (sqlir.Predicate, bool) {
		if in, ok := p.(*sqlir.InList); ok && !in.Not && len(in.Values) > 0 {
			res.Matched = true
		}
		return p, false
	})
	return res
}

func (r InListExpand) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	var firings []Firing
	where, changed := mapPredicate(q.Where, func(p sqlir.Predicate) (sqlir.Predicate, bool) {
		in, ok := p.(*sqlir.InList)
		if !ok || in.Not || len(in.Values) == 0 {
			return p, false
		}
		width := r.charWidth(q, in.Expr, env)
		eqs := make([]sqlir.Predicate, 0, len(in.Values))
		for _, v := range in.Values {
			lit := v
			if width > 0 && lit.Kind == sqlir.LitString {
				// CHAR(n) widths count characters, not bytes.
				if n := utf8.RuneCountInString(lit.Text); n < width {
					lit.Text += strings.Repeat(" ", width-n)
				}
			}
			eqs = append(eqs, &sqlir.Comparison{Left: in.Expr, Op: sqlir.OpEq, Right: &lit})
		}
		var next sqlir.Predicate
		if len(eqs) == 1 {
			next = eqs[0]
		} else {
			next = &sqlir.Or{Preds: eqs}
		}
		firings = append(firings, firing(r, in, next))
		return next, true
	})
	if !changed {
		return q, nil
	}
	q2 := q.Shallow()
	q2.Where = where
	return q2, firings
}

// charWidth returns the declared CHAR width of the tested column, or
// zero when the expression is not a column, the catalog has no fact,
// or the type is not fixed-width.
func (r InListExpand) charWidth(q *sqlir.Query, x sqlir.Expr, env *Env) int {
	col, ok := x.(*sqlir.Column)
	if !ok {
		return 0
	}
	table, ok := resolveColumn(q, col)
	if !ok {
		return 0
	}
	t, ok := env.Catalog.ColumnType(table, col.Name)
	if !ok || t.Base != sqlir.TypeChar {
		return 0
	}
	return t.Width
}
