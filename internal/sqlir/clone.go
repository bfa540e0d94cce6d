package sqlir

// Rewrites produce new subtrees and share unchanged children. The
// helpers here cover the two common needs: a shallow copy of a Query
// for replacing top-level clauses, and conjunction surgery for rules
// that add or remove WHERE conjuncts.

// Shallow returns a copy of q whose clause slices are themselves
// copied one level deep, so a rule may append or replace elements
// without touching the original. The elements (expressions,
// predicates, subqueries) stay shared.
func (q *Query) Shallow() *Query {
	cp := *q
	cp.CTEs = append([]CTE(nil), q.CTEs...)
	cp.Projection = append([]SelectItem(nil), q.Projection...)
	cp.From = append([]Relation(nil), q.From...)
	cp.GroupBy = append([]Expr(nil), q.GroupBy...)
	cp.OrderBy = append([]OrderItem(nil), q.OrderBy...)
	return &cp
}

// Conjuncts flattens a predicate into its top-level conjunction
// members. A nil predicate yields nil; a non-AND predicate yields
// itself; nested ANDs are flattened.
func Conjuncts(p Predicate) []Predicate {
	if p == nil {
		return nil
	}
	and, ok := p.(*And)
	if !ok {
		return []Predicate{p}
	}
	var out []Predicate
	for _, sub := range and.Preds {
		out = append(out, Conjuncts(sub)...)
	}
	return out
}

// Conjoin rebuilds a predicate from conjuncts: nil for none, the
// predicate itself for one, an And for more.
func Conjoin(preds []Predicate) Predicate {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return &And{Preds: preds}
	}
}
