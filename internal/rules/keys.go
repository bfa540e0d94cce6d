package rules

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// provableRowUnique reports whether the column set in exprs is a
// superkey of the joined FROM result. A relation is accounted for in
// one of two ways: a declared unique key of its base table lies
// entirely within the set, or it is joined to already-accounted-for
// relations by equalities covering one of its own unique keys, so each
// row of the rest matches at most one of its rows and multiplicity is
// preserved. This is the conservative whitelist shared by the GROUP BY
// and DISTINCT eliminations; any gap in the proof means "not proven"
// and the caller declines.
func provableRowUnique(q *sqlir.Query, exprs []sqlir.Expr, env *Env) bool {
	if env.Catalog == nil || len(q.From) == 0 {
		return false
	}

	// Collect the plain column references per FROM binding.
	perBinding := make(map[string][]string)
	for _, x := range exprs {
		col, ok := x.(*sqlir.Column)
		if !ok {
			continue
		}
		binding, ok := bindingOf(q, col)
		if !ok {
			continue
		}
		perBinding[binding] = append(perBinding[binding], col.Name)
	}

	type relInfo struct {
		binding string
		table   string
	}
	rels := make([]relInfo, 0, len(q.From))
	for _, rel := range q.From {
		if rel.Subquery != nil {
			return false
		}
		if _, ok := env.Catalog.Table(rel.Table); !ok {
			return false
		}
		rels = append(rels, relInfo{sqlir.NormalizeIdent(rel.Binding()), rel.Table})
	}

	covered := make(map[string]bool)
	for _, ri := range rels {
		if env.Catalog.HasUniqueKeyWithin(ri.table, perBinding[ri.binding]) {
			covered[ri.binding] = true
		}
	}
	if len(covered) == 0 {
		return false
	}

	eqs := joinEqualities(q)

	// Absorb N:1/1:1-joined relations: one whose full unique key is
	// equated to columns of covered relations contributes at most one
	// row apiece. Repeat so chains (fact -> dim -> subdim) resolve.
	for changed := true; changed; {
		changed = false
		for _, ri := range rels {
			if covered[ri.binding] {
				continue
			}
			var anchored []string
			for _, e := range eqs {
				if e.aBind == ri.binding && covered[e.bBind] {
					anchored = append(anchored, e.aCol)
				}
				if e.bBind == ri.binding && covered[e.aBind] {
					anchored = append(anchored, e.bCol)
				}
			}
			if env.Catalog.HasUniqueKeyWithin(ri.table, anchored) {
				covered[ri.binding] = true
				changed = true
			}
		}
	}

	for _, ri := range rels {
		if !covered[ri.binding] {
			return false
		}
	}
	return true
}

// bindingEquality is one col = col conjunct with both sides resolved
// to distinct FROM bindings.
type bindingEquality struct {
	aBind, aCol string
	bBind, bCol string
}

// joinEqualities harvests cross-relation equalities from WHERE
// conjuncts and inner-join ON clauses. Outer-join ON equalities hold
// only for matched rows and prove nothing about multiplicity.
func joinEqualities(q *sqlir.Query) []bindingEquality {
	var out []bindingEquality
	harvest := func(p sqlir.Predicate) {
		a, b, ok := columnEquality(p)
		if !ok {
			return
		}
		aBind, okA := bindingOf(q, a)
		bBind, okB := bindingOf(q, b)
		if !okA || !okB || aBind == bBind {
			return
		}
		out = append(out, bindingEquality{
			aBind: aBind, aCol: sqlir.NormalizeIdent(a.Name),
			bBind: bBind, bCol: sqlir.NormalizeIdent(b.Name),
		})
	}
	for _, p := range sqlir.Conjuncts(q.Where) {
		harvest(p)
	}
	for _, rel := range q.From {
		if rel.Join == nil || rel.Join.On == nil {
			continue
		}
		if rel.Join.Type != sqlir.JoinInner && rel.Join.Type != sqlir.JoinCross {
			continue
		}
		for _, p := range sqlir.Conjuncts(rel.Join.On) {
			harvest(p)
		}
	}
	return out
}

// bindingOf resolves a column reference to the normalized FROM binding
// it addresses.
func bindingOf(q *sqlir.Query, col *sqlir.Column) (string, bool) {
	if col.Table != "" {
		want := sqlir.NormalizeIdent(col.Table)
		for _, rel := range q.From {
			if sqlir.NormalizeIdent(rel.Binding()) == want {
				return want, true
			}
		}
		return "", false
	}
	if len(q.From) == 1 {
		return sqlir.NormalizeIdent(q.From[0].Binding()), true
	}
	return "", false
}
