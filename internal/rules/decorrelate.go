package rules

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// Decorrelate replaces an extremal correlated scalar subquery with a
// ranking CTE joined back to the outer query. The shape it targets is
//
//	WHERE o.x = (SELECT MIN(i.y) FROM inner i WHERE i.k = o.k ...)
//
// which becomes
//
//	WITH ranked AS (SELECT i.k, i.y, RANK() OVER
//	                  (PARTITION BY i.k ORDER BY i.y) AS rnk
//	                FROM inner i ...),
//	     best AS (SELECT DISTINCT k, y FROM ranked WHERE rnk = 1)
//	... INNER JOIN best ON best.k = o.k ... WHERE o.x = best.y
//
// RANK over ROW_NUMBER because ties at the extreme must all keep
// rank 1; the DISTINCT in the second CTE collapses them back to one
// row per partition, which tied extremes make identical anyway.
//
// The most invasive rule, so the preconditions are strict: one inner
// relation, a single-column equality correlation, a MIN/MAX of one
// column, and a target dialect with window functions and CTEs. It
// fails closed on every unproven part, before rewriting, so the
// emitter never sees a window the dialect cannot express.
type Decorrelate struct{}

func (Decorrelate) ID() string { return "H6" }

func (Decorrelate) Description() string {
	return "replace extremal correlated subquery with ranking CTE join"
}

// corrSite is one matched correlated-subquery conjunct.
type corrSite struct {
	index     int // position in the WHERE conjunct list
	outerExpr sqlir.Expr
	outerCol  *sqlir.Column // correlation column in the outer scope
	innerRel  sqlir.Relation
	partCol   *sqlir.Column // inner side of the correlation equality
	orderCol  *sqlir.Column // aggregated column
	direction sqlir.OrderDirection
	residual  []sqlir.Predicate // uncorrelated inner conjuncts
}

func (r Decorrelate) Matches(q *sqlir.Query, env *Env) MatchResult {
	var res MatchResult
	site, note := r.findSite(q, env)
	if note != nil {
		res.Notes = append(res.Notes, *note)
	}
	res.Matched = site != nil
	return res
}

func (r Decorrelate) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	site, _ := r.findSite(q, env)
	if site == nil {
		return q, nil
	}

	rankedName := freshName(q, "ranked")
	bestName := freshName(q, "best")

	innerBinding := site.innerRel.Binding()
	partRef := &sqlir.Column{Table: innerBinding, Name: site.partCol.Name}
	orderRef := &sqlir.Column{Table: innerBinding, Name: site.orderCol.Name}

	ranked := sqlir.CTE{
		Name: rankedName,
		Query: &sqlir.Query{
			Projection: []sqlir.SelectItem{
				{Expr: partRef},
				{Expr: orderRef},
				{Expr: &sqlir.FuncCall{
					Name: "RANK",
					Over: &sqlir.WindowSpec{
						PartitionBy: []sqlir.Expr{partRef},
						OrderBy:     []sqlir.OrderItem{{Expr: orderRef, Direction: site.direction}},
					},
				}, Alias: "rnk"},
			},
			From:  []sqlir.Relation{site.innerRel},
			Where: sqlir.Conjoin(site.residual),
		},
	}

	best := sqlir.CTE{
		Name: bestName,
		Query: &sqlir.Query{
			Distinct: true,
			Projection: []sqlir.SelectItem{
				{Expr: &sqlir.Column{Table: rankedName, Name: site.partCol.Name}},
				{Expr: &sqlir.Column{Table: rankedName, Name: site.orderCol.Name}},
			},
			From: []sqlir.Relation{{Table: rankedName}},
			Where: &sqlir.Comparison{
				Left:  &sqlir.Column{Table: rankedName, Name: "rnk"},
				Op:    sqlir.OpEq,
				Right: &sqlir.Literal{Kind: sqlir.LitNumber, Text: "1"},
			},
		},
	}

	conjuncts := sqlir.Conjuncts(q.Where)
	before := conjuncts[site.index]
	replaced := append([]sqlir.Predicate(nil), conjuncts...)
	replaced[site.index] = &sqlir.Comparison{
		Left:  site.outerExpr,
		Op:    sqlir.OpEq,
		Right: &sqlir.Column{Table: bestName, Name: site.orderCol.Name},
	}

	q2 := q.Shallow()
	q2.CTEs = append(q2.CTEs, ranked, best)
	q2.From = append(q2.From, sqlir.Relation{
		Table: bestName,
		Join: &sqlir.JoinEdge{
			Type: sqlir.JoinInner,
			On: &sqlir.Comparison{
				Left:  &sqlir.Column{Table: bestName, Name: site.partCol.Name},
				Op:    sqlir.OpEq,
				Right: site.outerCol,
			},
		},
	})
	q2.Where = sqlir.Conjoin(replaced)

	return q2, []Firing{firing(r, before, replaced[site.index])}
}

// findSite locates the first rewritable conjunct. One site per
// invocation: the rewriter's pass loop picks up any remaining sites
// with fresh CTE names.
func (r Decorrelate) findSite(q *sqlir.Query, env *Env) (*corrSite, *Note) {
	conjuncts := sqlir.Conjuncts(q.Where)
	var note *Note
	for i, p := range conjuncts {
		cmp, ok := p.(*sqlir.Comparison)
		if !ok || cmp.Op != sqlir.OpEq {
			continue
		}
		outerExpr, sub := cmp.Left, cmp.Right
		scalar, ok := sub.(*sqlir.ScalarSubquery)
		if !ok {
			scalar, ok = outerExpr.(*sqlir.ScalarSubquery)
			if !ok {
				continue
			}
			outerExpr = cmp.Right
		}
		site, why := r.analyze(q, outerExpr, scalar.Query)
		if site == nil {
			if why != "" {
				n := declined(r, "%s", why)
				note = &n
			}
			continue
		}
		if env.Dialect == nil || !env.Dialect.SupportsWindowFunctions || !env.Dialect.SupportsCTE {
			n := declined(r, "target dialect lacks window functions or CTEs")
			note = &n
			continue
		}
		site.index = i
		site.outerExpr = outerExpr
		return site, note
	}
	return nil, note
}

// analyze checks the inner query against the rule's shape
// preconditions. An empty reason means the conjunct is simply not a
// correlated extremal subquery and deserves no note.
func (r Decorrelate) analyze(outer *sqlir.Query, outerExpr sqlir.Expr, inner *sqlir.Query) (*corrSite, string) {
	if len(inner.From) != 1 || inner.From[0].Subquery != nil {
		return nil, ""
	}
	if len(inner.CTEs) > 0 || len(inner.GroupBy) > 0 || inner.Having != nil ||
		inner.Distinct || inner.Limit != nil || len(inner.OrderBy) > 0 {
		return nil, ""
	}
	if len(inner.Projection) != 1 {
		return nil, ""
	}
	agg, ok := inner.Projection[0].Expr.(*sqlir.FuncCall)
	if !ok || agg.Over != nil || len(agg.Args) != 1 {
		return nil, ""
	}
	var direction sqlir.OrderDirection
	switch sqlir.NormalizeIdent(agg.Name) {
	case "min":
		direction = sqlir.Ascending
	case "max":
		direction = sqlir.Descending
	default:
		return nil, ""
	}
	innerRel := inner.From[0]
	innerBinding := sqlir.NormalizeIdent(innerRel.Binding())

	orderCol, ok := agg.Args[0].(*sqlir.Column)
	if !ok || !boundTo(orderCol, innerBinding) {
		return nil, "aggregate argument is not a column of the inner relation"
	}

	var site corrSite
	site.innerRel = innerRel
	site.orderCol = orderCol
	site.direction = direction

	for _, c := range sqlir.Conjuncts(inner.Where) {
		innerCol, outerCol, ok := splitCorrelation(c, innerBinding)
		if ok {
			if site.partCol != nil {
				return nil, "more than one correlation equality"
			}
			site.partCol = innerCol
			site.outerCol = outerCol
			continue
		}
		if !predicateBoundTo(c, innerBinding) {
			return nil, "inner predicate references outer scope beyond the correlation equality"
		}
		site.residual = append(site.residual, c)
	}
	if site.partCol == nil {
		return nil, ""
	}
	if !resolvesInQuery(outer, site.outerCol) {
		return nil, "correlation column does not resolve in the outer query"
	}
	part := sqlir.NormalizeIdent(site.partCol.Name)
	ord := sqlir.NormalizeIdent(site.orderCol.Name)
	if part == ord || part == "rnk" || ord == "rnk" {
		return nil, "partition and ordering columns must have distinct names"
	}
	return &site, ""
}

// splitCorrelation recognizes an equality tying an inner column to an
// outer one, in either order.
func splitCorrelation(p sqlir.Predicate, innerBinding string) (innerCol, outerCol *sqlir.Column, ok bool) {
	cmp, isCmp := p.(*sqlir.Comparison)
	if !isCmp || cmp.Op != sqlir.OpEq {
		return nil, nil, false
	}
	a, okA := cmp.Left.(*sqlir.Column)
	b, okB := cmp.Right.(*sqlir.Column)
	if !okA || !okB {
		return nil, nil, false
	}
	aInner := boundTo(a, innerBinding)
	bInner := boundTo(b, innerBinding)
	switch {
	case aInner && !bInner && b.Table != "":
		return a, b, true
	case bInner && !aInner && a.Table != "":
		return b, a, true
	}
	return nil, nil, false
}

// boundTo reports whether a column reference explicitly addresses the
// given binding. Unqualified references do not count: SQL resolves one
// to the outer scope when the inner relation lacks the column, and
// without a catalog fact the rule cannot tell which way it goes, so it
// fails closed.
func boundTo(c *sqlir.Column, binding string) bool {
	return c.Table != "" && sqlir.NormalizeIdent(c.Table) == binding
}

// predicateBoundTo reports whether every column in p addresses the
// inner binding, so the predicate can move into the CTE unchanged.
func predicateBoundTo(p sqlir.Predicate, binding string) bool {
	ok := true
	mapPredicate(p, func(sub sqlir.Predicate) (sqlir.Predicate, bool) {
		switch v := sub.(type) {
		case *sqlir.Comparison:
			ok = ok && exprBoundTo(v.Left, binding) && exprBoundTo(v.Right, binding)
		case *sqlir.InList:
			ok = ok && exprBoundTo(v.Expr, binding)
		case *sqlir.Like:
			ok = ok && exprBoundTo(v.Expr, binding) && exprBoundTo(v.Pattern, binding)
		case *sqlir.Between:
			ok = ok && exprBoundTo(v.Expr, binding) && exprBoundTo(v.Lower, binding) && exprBoundTo(v.Upper, binding)
		case *sqlir.IsNull:
			ok = ok && exprBoundTo(v.Expr, binding)
		case *sqlir.Quantified, *sqlir.InSubquery, *sqlir.Exists:
			// Nested subqueries would need their own correlation
			// analysis; treat as not movable.
			ok = false
		}
		return sub, false
	})
	return ok
}

func exprBoundTo(x sqlir.Expr, binding string) bool {
	switch v := x.(type) {
	case *sqlir.Column:
		return boundTo(v, binding)
	case *sqlir.Literal:
		return true
	case *sqlir.FuncCall:
		if v.Over != nil {
			return false
		}
		for _, arg := range v.Args {
			if !exprBoundTo(arg, binding) {
				return false
			}
		}
		return true
	case *sqlir.Arithmetic:
		return exprBoundTo(v.Left, binding) && exprBoundTo(v.Right, binding)
	case *sqlir.Cast:
		return exprBoundTo(v.Expr, binding)
	}
	return false
}

// resolvesInQuery reports whether col addresses one of q's FROM
// bindings.
func resolvesInQuery(q *sqlir.Query, col *sqlir.Column) bool {
	want := sqlir.NormalizeIdent(col.Table)
	for _, rel := range q.From {
		if sqlir.NormalizeIdent(rel.Binding()) == want {
			return true
		}
	}
	return false
}
