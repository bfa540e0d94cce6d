package rules

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// DropGroupBy removes a GROUP BY that cannot change row multiplicity:
// no aggregate appears anywhere in the query, and the grouped plus
// projected columns form a provable superkey of the join result, so
// each group holds exactly one row. The proof needs the catalog;
// without one the rule declines and records it.
type DropGroupBy struct{}

func (DropGroupBy) ID() string { return "H1" }

func (DropGroupBy) Description() string {
	return "drop a GROUP BY that groups already-unique rows"
}

func (r DropGroupBy) Matches(q *sqlir.Query, env *Env) MatchResult {
	if len(q.GroupBy) == 0 || q.Having != nil {
		return MatchResult{}
	}
	if queryUsesAggregates(q) {
		return MatchResult{}
	}
	keyCols := append(append([]sqlir.Expr(nil), q.GroupBy...), projectionExprs(q)...)
	if !provableRowUnique(q, keyCols, env) {
		return MatchResult{Notes: []Note{declined(r, "grouped columns not provably a superkey of the join result")}}
	}
	return MatchResult{Matched: true}
}

func (r DropGroupBy) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	q2 := q.Shallow()
	q2.GroupBy = nil
	return q2, []Firing{firing(r, q, q2)}
}

func projectionExprs(q *sqlir.Query) []sqlir.Expr {
	out := make([]sqlir.Expr, 0, len(q.Projection))
	for _, item := range q.Projection {
		out = append(out, item.Expr)
	}
	return out
}

// queryUsesAggregates reports whether any aggregate application occurs
// in this query's own projection, HAVING, or ORDER BY scope.
func queryUsesAggregates(q *sqlir.Query) bool {
	for _, item := range q.Projection {
		if sqlir.ContainsAggregate(item.Expr) {
			return true
		}
	}
	if sqlir.PredicateContainsAggregate(q.Having) {
		return true
	}
	for _, item := range q.OrderBy {
		if sqlir.ContainsAggregate(item.Expr) {
			return true
		}
	}
	return false
}
