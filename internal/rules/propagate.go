package rules

import (
	"github.com/queryshift/queryshift/internal/sqlir"
)

// PropagateFilter copies a constant filter across a join equality:
// given R.a = S.b and R.a = 15, it adds S.b = 15. Purely additive, so
// it needs no catalog proof; an implied conjunct cannot shrink or grow
// the result set. Join equalities are read from WHERE conjuncts and
// inner-join ON clauses; an outer join's ON equality holds only for
// matched rows, so propagating it into WHERE would filter out the
// NULL-extended ones. New filters always land in WHERE.
type PropagateFilter struct{}

func (PropagateFilter) ID() string { return "H7" }

func (PropagateFilter) Description() string {
	return "propagate a constant filter across a join equality"
}

func (r PropagateFilter) Matches(q *sqlir.Query, env *Env) MatchResult {
	return MatchResult{Matched: len(r.missing(q)) > 0}
}

func (r PropagateFilter) Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing) {
	missing := r.missing(q)
	if len(missing) == 0 {
		return q, nil
	}
	before := q.Where
	conjuncts := append([]sqlir.Predicate(nil), sqlir.Conjuncts(q.Where)...)
	for _, m := range missing {
		conjuncts = append(conjuncts, m)
	}
	q2 := q.Shallow()
	q2.Where = sqlir.Conjoin(conjuncts)
	return q2, []Firing{firing(r, before, q2.Where)}
}

// missing computes the implied constant filters not yet present, in
// deterministic conjunct order.
func (r PropagateFilter) missing(q *sqlir.Query) []*sqlir.Comparison {
	conjuncts := sqlir.Conjuncts(q.Where)
	all := append([]sqlir.Predicate(nil), conjuncts...)
	for _, rel := range q.From {
		if rel.Join == nil || rel.Join.On == nil {
			continue
		}
		if rel.Join.Type != sqlir.JoinInner && rel.Join.Type != sqlir.JoinCross {
			continue
		}
		all = append(all, sqlir.Conjuncts(rel.Join.On)...)
	}

	// Union columns joined by equality into classes.
	classes := newColumnClasses()
	for _, p := range all {
		if a, b, ok := columnEquality(p); ok {
			classes.union(a, b)
		}
	}

	type constFilter struct {
		col *sqlir.Column
		lit *sqlir.Literal
	}
	var filters []constFilter
	present := make(map[string]bool)
	for _, p := range conjuncts {
		if col, lit, ok := constantFilter(p); ok {
			filters = append(filters, constFilter{col, lit})
			present[columnKey(col)+"="+string(lit.Kind)+":"+lit.Text] = true
		}
	}

	var out []*sqlir.Comparison
	for _, f := range filters {
		for _, peer := range classes.members(f.col) {
			key := columnKey(peer) + "=" + string(f.lit.Kind) + ":" + f.lit.Text
			if present[key] {
				continue
			}
			present[key] = true
			lit := *f.lit
			out = append(out, &sqlir.Comparison{Left: peer, Op: sqlir.OpEq, Right: &lit})
		}
	}
	return out
}

// columnEquality recognizes col = col conjuncts.
func columnEquality(p sqlir.Predicate) (*sqlir.Column, *sqlir.Column, bool) {
	cmp, ok := p.(*sqlir.Comparison)
	if !ok || cmp.Op != sqlir.OpEq {
		return nil, nil, false
	}
	a, okA := cmp.Left.(*sqlir.Column)
	b, okB := cmp.Right.(*sqlir.Column)
	if !okA || !okB {
		return nil, nil, false
	}
	return a, b, true
}

// constantFilter recognizes col = literal conjuncts, either order.
func constantFilter(p sqlir.Predicate) (*sqlir.Column, *sqlir.Literal, bool) {
	cmp, ok := p.(*sqlir.Comparison)
	if !ok || cmp.Op != sqlir.OpEq {
		return nil, nil, false
	}
	if col, okC := cmp.Left.(*sqlir.Column); okC {
		if lit, okL := cmp.Right.(*sqlir.Literal); okL {
			return col, lit, true
		}
	}
	if col, okC := cmp.Right.(*sqlir.Column); okC {
		if lit, okL := cmp.Left.(*sqlir.Literal); okL {
			return col, lit, true
		}
	}
	return nil, nil, false
}

func columnKey(c *sqlir.Column) string {
	return sqlir.NormalizeIdent(c.Table) + "." + sqlir.NormalizeIdent(c.Name)
}

// columnClasses is a tiny union-find over column keys, keeping one
// representative *Column per key in first-seen order.
type columnClasses struct {
	parent map[string]string
	cols   map[string]*sqlir.Column
	order  []string
}

func newColumnClasses() *columnClasses {
	return &columnClasses{
		parent: make(map[string]string),
		cols:   make(map[string]*sqlir.Column),
	}
}

func (cc *columnClasses) add(c *sqlir.Column) string {
	k := columnKey(c)
	if _, ok := cc.parent[k]; !ok {
		cc.parent[k] = k
		cc.cols[k] = c
		cc.order = append(cc.order, k)
	}
	return k
}

func (cc *columnClasses) find(k string) string {
	for cc.parent[k] != k {
		cc.parent[k] = cc.parent[cc.parent[k]]
		k = cc.parent[k]
	}
	return k
}

func (cc *columnClasses) union(a, b *sqlir.Column) {
	ra, rb := cc.find(cc.add(a)), cc.find(cc.add(b))
	if ra != rb {
		cc.parent[rb] = ra
	}
}

// members lists the other columns in c's class, in first-seen order.
func (cc *columnClasses) members(c *sqlir.Column) []*sqlir.Column {
	k := columnKey(c)
	if _, ok := cc.parent[k]; !ok {
		return nil
	}
	root := cc.find(k)
	var out []*sqlir.Column
	for _, other := range cc.order {
		if other != k && cc.find(other) == root {
			out = append(out, cc.cols[other])
		}
	}
	return out
}
