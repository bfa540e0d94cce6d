package sqlir

import "fmt"

// Validate checks a Query against the IR well-formedness invariants:
//
//  1. Every qualified column reference resolves to a relation visible
//     in its scope (including outer scopes, for correlated subqueries)
//     or to a CTE defined earlier in the same statement.
//  2. Unqualified column references require exactly one relation in
//     the nearest scope that has any; with two or more the reference
//     is ambiguous.
//  3. If any aggregate appears in the projection or HAVING, every
//     non-aggregated projected column must appear in GROUP BY; with an
//     empty GROUP BY no bare column may be projected alongside an
//     aggregate.
//  4. CTE names are unique within a statement and do not leak out of
//     their scope.
//
// A violation returns a *MalformedQueryError. Validate is pure: it
// never modifies the tree.
func Validate(q *Query) error {
	v := &validator{}
	return v.validateQuery(q, nil)
}

// scope holds the relation bindings and CTE names visible to one
// query level. parent links to the enclosing query's scope so
// correlated references resolve.
type scope struct {
	parent   *scope
	bindings map[string]bool
	ctes     map[string]bool
}

func (s *scope) resolves(binding string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.bindings[lowerIdent(binding)] {
			return true
		}
	}
	return false
}

func (s *scope) hasRelations() bool {
	for cur := s; cur != nil; cur = cur.parent {
		if len(cur.bindings) > 0 {
			return true
		}
	}
	return false
}

// ambiguous reports whether an unqualified reference has more than one
// candidate relation. Only the nearest level with bindings counts;
// outer scopes do not shadow-merge.
func (s *scope) ambiguous() bool {
	for cur := s; cur != nil; cur = cur.parent {
		if len(cur.bindings) > 0 {
			return len(cur.bindings) > 1
		}
	}
	return false
}

type validator struct{}

func (v *validator) validateQuery(q *Query, outer *scope) error {
	if q == nil {
		return &MalformedQueryError{Code: ErrCodeEmptyQuery, Message: "nil query"}
	}
	if len(q.Projection) == 0 {
		return &MalformedQueryError{Code: ErrCodeEmptyQuery, Message: "query has no projection"}
	}

	sc := &scope{parent: outer, bindings: map[string]bool{}, ctes: map[string]bool{}}

	// CTEs bind in order; each sees the ones before it but not the
	// enclosing relation scope.
	for _, cte := range q.CTEs {
		name := lowerIdent(cte.Name)
		if sc.ctes[name] {
			return &MalformedQueryError{
				Code:    ErrCodeDuplicateCTE,
				Message: fmt.Sprintf("CTE %q defined twice", cte.Name),
			}
		}
		cteScope := &scope{bindings: map[string]bool{}, ctes: sc.ctes}
		if err := v.validateQuery(cte.Query, cteScope); err != nil {
			return err
		}
		sc.ctes[name] = true
	}

	for _, rel := range q.From {
		if rel.Subquery != nil {
			if err := v.validateQuery(rel.Subquery, sc); err != nil {
				return err
			}
		}
		sc.bindings[lowerIdent(rel.Binding())] = true
	}

	// Join conditions see the whole FROM scope, so they are checked
	// after every binding is in place.
	for _, rel := range q.From {
		if rel.Join != nil {
			if err := v.validatePredicate(rel.Join.On, sc); err != nil {
				return err
			}
		}
	}

	for _, item := range q.Projection {
		if err := v.validateExpr(item.Expr, sc); err != nil {
			return err
		}
	}
	if err := v.validatePredicate(q.Where, sc); err != nil {
		return err
	}
	for _, e := range q.GroupBy {
		if err := v.validateExpr(e, sc); err != nil {
			return err
		}
	}
	if err := v.validatePredicate(q.Having, sc); err != nil {
		return err
	}
	for _, item := range q.OrderBy {
		if err := v.validateExpr(item.Expr, sc); err != nil {
			return err
		}
	}

	return v.validateGrouping(q)
}

// validateGrouping enforces the aggregate/grouping compatibility
// invariant.
func (v *validator) validateGrouping(q *Query) error {
	hasAgg := PredicateContainsAggregate(q.Having)
	for _, item := range q.Projection {
		if ContainsAggregate(item.Expr) {
			hasAgg = true
		}
	}
	if !hasAgg {
		return nil
	}

	grouped := map[string]bool{}
	for _, e := range q.GroupBy {
		grouped[Fragment(e)] = true
	}

	for _, item := range q.Projection {
		if ContainsAggregate(item.Expr) {
			continue
		}
		if grouped[Fragment(item.Expr)] {
			continue
		}
		for _, col := range exprColumns(item.Expr) {
			if !grouped[Fragment(col)] {
				return &MalformedQueryError{
					Code:    ErrCodeGroupingMismatch,
					Message: "non-aggregated column projected alongside an aggregate without matching GROUP BY",
					Column:  col.Name,
				}
			}
		}
	}
	return nil
}

func (v *validator) validatePredicate(p Predicate, sc *scope) error {
	if p == nil {
		return nil
	}
	switch pred := p.(type) {
	case *Comparison:
		return firstErr(v.validateExpr(pred.Left, sc), v.validateExpr(pred.Right, sc))
	case *And:
		for _, sub := range pred.Preds {
			if err := v.validatePredicate(sub, sc); err != nil {
				return err
			}
		}
	case *Or:
		for _, sub := range pred.Preds {
			if err := v.validatePredicate(sub, sc); err != nil {
				return err
			}
		}
	case *Not:
		return v.validatePredicate(pred.Pred, sc)
	case *Quantified:
		return firstErr(v.validateExpr(pred.Left, sc), v.validateQuery(pred.Subquery, sc))
	case *InList:
		return v.validateExpr(pred.Expr, sc)
	case *InSubquery:
		return firstErr(v.validateExpr(pred.Expr, sc), v.validateQuery(pred.Subquery, sc))
	case *Exists:
		return v.validateQuery(pred.Subquery, sc)
	case *Like:
		return firstErr(v.validateExpr(pred.Expr, sc), v.validateExpr(pred.Pattern, sc))
	case *Between:
		return firstErr(v.validateExpr(pred.Expr, sc),
			v.validateExpr(pred.Lower, sc), v.validateExpr(pred.Upper, sc))
	case *IsNull:
		return v.validateExpr(pred.Expr, sc)
	}
	return nil
}

func (v *validator) validateExpr(e Expr, sc *scope) error {
	if e == nil {
		return nil
	}
	switch expr := e.(type) {
	case *Column:
		if expr.Table != "" {
			if !sc.resolves(expr.Table) {
				return &MalformedQueryError{
					Code:     ErrCodeUnresolvedColumn,
					Message:  fmt.Sprintf("qualifier %q does not name a relation in scope", expr.Table),
					Column:   expr.Name,
					Relation: expr.Table,
				}
			}
			return nil
		}
		if !sc.hasRelations() {
			return &MalformedQueryError{
				Code:    ErrCodeUnresolvedColumn,
				Message: "column reference with no relation in scope",
				Column:  expr.Name,
			}
		}
		if sc.ambiguous() {
			return &MalformedQueryError{
				Code:    ErrCodeAmbiguousColumn,
				Message: fmt.Sprintf("unqualified column %q with more than one relation in scope", expr.Name),
				Column:  expr.Name,
			}
		}
	case *FuncCall:
		for _, a := range expr.Args {
			if err := v.validateExpr(a, sc); err != nil {
				return err
			}
		}
		if expr.Over != nil {
			for _, pb := range expr.Over.PartitionBy {
				if err := v.validateExpr(pb, sc); err != nil {
					return err
				}
			}
			for _, ob := range expr.Over.OrderBy {
				if err := v.validateExpr(ob.Expr, sc); err != nil {
					return err
				}
			}
		}
	case *Arithmetic:
		return firstErr(v.validateExpr(expr.Left, sc), v.validateExpr(expr.Right, sc))
	case *Cast:
		return v.validateExpr(expr.Expr, sc)
	case *ScalarSubquery:
		return v.validateQuery(expr.Query, sc)
	case *Star:
		if expr.Table != "" && !sc.resolves(expr.Table) {
			return &MalformedQueryError{
				Code:     ErrCodeUnresolvedColumn,
				Message:  fmt.Sprintf("qualifier %q does not name a relation in scope", expr.Table),
				Column:   "*",
				Relation: expr.Table,
			}
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// exprColumns collects the column references in an expression tree,
// without descending into subquery scopes.
func exprColumns(e Expr) []*Column {
	var cols []*Column
	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case *Column:
			cols = append(cols, v)
		case *FuncCall:
			for _, a := range v.Args {
				walk(a)
			}
			if v.Over != nil {
				for _, pb := range v.Over.PartitionBy {
					walk(pb)
				}
				for _, ob := range v.Over.OrderBy {
					walk(ob.Expr)
				}
			}
		case *Arithmetic:
			walk(v.Left)
			walk(v.Right)
		case *Cast:
			walk(v.Expr)
		}
	}
	walk(e)
	return cols
}
