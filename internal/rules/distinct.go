package rules

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// DropDistinct clears DISTINCT when the projected columns form a
// provable superkey of the join result, so no two output rows can be
// equal. Same conservative catalog proof as the
// GROUP BY elimination; grouped queries are left alone, their output
// uniqueness follows different rules.
type DropDistinct struct{}

func (DropDistinct) ID() string { return "H5" }

func (DropDistinct) Description() string {
	return "drop a DISTINCT over already-unique rows"
}

func (r DropDistinct) Matches(q *sqlir.Query, env *Env) MatchResult {
	if !q.Distinct || len(q.GroupBy) > 0 {
		return MatchResult{}
	}
	if queryUsesAggregates(q) {
		return MatchResult{}
	}
	if !provableRowUnique(q, projectionExprs(q), env) {
		return MatchResult{Notes: []Note{declined(r, "projected columns not provably a superkey of the join result")}}
	}
	return MatchResult{Matched: true}
}

func (r DropDistinct) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	q2 := q.Shallow()
	q2.Distinct = false
	return q2, []Firing{firing(r, q, q2)}
}
