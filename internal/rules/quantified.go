package rules

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// QuantAll replaces an ordered comparison against ALL rows of a
// subquery with a scalar comparison against the subquery's extreme:
// x > ALL (sub) becomes x > (SELECT MAX(...) ...), x < ALL the MIN
// form. Fires only when the inner query exposes exactly one plain
// output column and carries no LIMIT, GROUP BY, or DISTINCT, since any
// of those changes what ALL ranges over.
//
// The rewritten form diverges on an empty inner query: ALL is
// vacuously true there while MAX over no rows is NULL, which makes the
// comparison unknown. Every firing carries a note recording this.
type QuantAll struct{}

func (QuantAll) ID() string { return "H2" }

func (QuantAll) Description() string {
	return "replace comparison against ALL (subquery) with scalar extreme"
}

func (r QuantAll) Matches(q *sqlir.Query, env *Env) MatchResult {
	return matchQuantified(r, q, env, quantAllAggregate)
}

func (r QuantAll) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	return rewriteQuantified(r, q, env, quantAllAggregate)
}

// QuantAny is the ANY/SOME counterpart of QuantAll with the opposite
// extreme: x > ANY (sub) becomes x > (SELECT MIN(...) ...). Same
// preconditions and the same empty-inner-query divergence, with the
// polarity flipped: ANY is vacuously false over no rows.
type QuantAny struct{}

func (QuantAny) ID() string { return "H3" }

func (QuantAny) Description() string {
	return "replace comparison against ANY (subquery) with scalar extreme"
}

func (r QuantAny) Matches(q *sqlir.Query, env *Env) MatchResult {
	return matchQuantified(r, q, env, quantAnyAggregate)
}

func (r QuantAny) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	return rewriteQuantified(r, q, env, quantAnyAggregate)
}

// quantAllAggregate picks the aggregate for an ALL rewrite: the
// comparison must hold against every row, so compare against the
// hardest one.
func quantAllAggregate(p *sqlir.Quantified) (string, bool) {
	if p.Quantifier != sqlir.QuantAll {
		return "", false
	}
	switch p.Op {
	case sqlir.OpGt, sqlir.OpGte:
		return "MAX", true
	case sqlir.OpLt, sqlir.OpLte:
		return "MIN", true
	}
	return "", false
}

// quantAnyAggregate picks the aggregate for an ANY/SOME rewrite: the
// comparison must hold against at least one row, so compare against
// the easiest one.
func quantAnyAggregate(p *sqlir.Quantified) (string, bool) {
	if p.Quantifier != sqlir.QuantAny && p.Quantifier != sqlir.QuantSome {
		return "", false
	}
	switch p.Op {
	case sqlir.OpGt, sqlir.OpGte:
		return "MIN", true
	case sqlir.OpLt, sqlir.OpLte:
		return "MAX", true
	}
	return "", false
}

func matchQuantified(r Rule, q *sqlir.Query, env *Env, agg func(*sqlir.Quantified) (string, bool)) MatchResult {
	var res MatchResult
	sites := false
	mapPredicate(q.Where, func(p sqlir.Predicate) (sqlir.Predicate, bool) {
		quant, ok := p.(*sqlir.Quantified)
		if !ok {
			return p, false
		}
		if _, ok := agg(quant); !ok {
			return p, false
		}
		sites = true
		if env.Dialect != nil && env.Dialect.InternalRewrites {
			return p, false
		}
		if msg, ok := quantifiedInnerOK(quant.Subquery); !ok {
			res.Notes = append(res.Notes, declined(r, "%s", msg))
			return p, false
		}
		if !res.Matched {
			res.Notes = append(res.Notes, Note{
				RuleID:  r.ID(),
				Message: "rewritten form yields unknown instead of true/false when the inner query is empty",
			})
		}
		res.Matched = true
		return p, false
	})
	if sites && env.Dialect != nil && env.Dialect.InternalRewrites {
		res.Notes = append(res.Notes, declined(r, "target dialect performs quantified-subquery rewrite internally"))
	}
	return res
}

func rewriteQuantified(r Rule, q *sqlir.Query, env *Env, agg func(*sqlir.Quantified) (string, bool)) (*sqlir.Query, []Firing) {
	var firings []Firing
	where, changed := mapPredicate(q.Where, func(p sqlir.Predicate) (sqlir.Predicate, bool) {
		quant, ok := p.(*sqlir.Quantified)
		if !ok {
			return p, false
		}
		aggName, ok := agg(quant)
		if !ok {
			return p, false
		}
		if _, ok := quantifiedInnerOK(quant.Subquery); !ok {
			return p, false
		}
		inner := quant.Subquery.Shallow()
		inner.Projection = []sqlir.SelectItem{{
			Expr: &sqlir.FuncCall{Name: aggName, Args: []sqlir.Expr{quant.Subquery.Projection[0].Expr}},
		}}
		inner.OrderBy = nil
		next := &sqlir.Comparison{
			Left:  quant.Left,
			Op:    quant.Op,
			Right: &sqlir.ScalarSubquery{Query: inner},
		}
		firings = append(firings, firing(r, quant, next))
		return next, true
	})
	if !changed {
		return q, nil
	}
	q2 := q.Shallow()
	q2.Where = where
	return q2, firings
}

// quantifiedInnerOK checks the inner-query shape preconditions shared
// by the ALL and ANY rewrites.
func quantifiedInnerOK(inner *sqlir.Query) (string, bool) {
	if len(inner.Projection) != 1 {
		return "inner query must produce exactly one column", false
	}
	if _, ok := inner.Projection[0].Expr.(*sqlir.Star); ok {
		return "inner query must produce exactly one column", false
	}
	if inner.Limit != nil {
		return "inner query carries LIMIT/OFFSET", false
	}
	if len(inner.GroupBy) > 0 || inner.Having != nil {
		return "inner query is grouped", false
	}
	if inner.Distinct {
		return "inner query is DISTINCT", false
	}
	if sqlir.ContainsAggregate(inner.Projection[0].Expr) {
		return "inner query already aggregates", false
	}
	return "", true
}
