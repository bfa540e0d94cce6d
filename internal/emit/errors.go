package emit

import (
	"errors"
	"fmt"

	"github.com/queryshift/queryshift/internal/dialect"
	"github.com/queryshift/queryshift/internal/sqlir"
)

// FeatureCode identifies the construct a dialect could not express.
type FeatureCode string

const (
	FeatureWindowFunctions FeatureCode = "WINDOW_FUNCTIONS"
	FeatureCTE             FeatureCode = "COMMON_TABLE_EXPRESSIONS"
)

// DialectUnsupportedFeatureError is returned when a query uses a
// construct the target dialect cannot express. Rewriting rules consult
// the same dialect capabilities before firing, so this surfaces only
// when the input itself already used the construct.
type DialectUnsupportedFeatureError struct {
	Dialect string
	Feature FeatureCode
}

func (e *DialectUnsupportedFeatureError) Error() string {
	return fmt.Sprintf("dialect %s does not support %s", e.Dialect, e.Feature)
}

// IsUnsupported reports whether err wraps a dialect capability
// failure, returning the typed error when it does.
func IsUnsupported(err error) (*DialectUnsupportedFeatureError, bool) {
	var ue *DialectUnsupportedFeatureError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// CheckSupport verifies that every construct in q is expressible in
// dialect d.
func CheckSupport(q *sqlir.Query, d *dialect.Dialect) error {
	if !d.SupportsCTE && usesCTE(q) {
		return &DialectUnsupportedFeatureError{Dialect: d.Name, Feature: FeatureCTE}
	}
	if !d.SupportsWindowFunctions && usesWindows(q) {
		return &DialectUnsupportedFeatureError{Dialect: d.Name, Feature: FeatureWindowFunctions}
	}
	return nil
}

func usesCTE(q *sqlir.Query) bool {
	found := false
	walkQueries(q, func(sub *sqlir.Query) {
		if len(sub.CTEs) > 0 {
			found = true
		}
	})
	return found
}

func usesWindows(q *sqlir.Query) bool {
	found := false
	walkQueries(q, func(sub *sqlir.Query) {
		for _, item := range sub.Projection {
			if exprHasWindow(item.Expr) {
				found = true
			}
		}
		for _, expr := range sub.GroupBy {
			if exprHasWindow(expr) {
				found = true
			}
		}
		for _, item := range sub.OrderBy {
			if exprHasWindow(item.Expr) {
				found = true
			}
		}
		if predHasWindow(sub.Where) || predHasWindow(sub.Having) {
			found = true
		}
		for _, rel := range sub.From {
			if rel.Join != nil && predHasWindow(rel.Join.On) {
				found = true
			}
		}
	})
	return found
}

// walkQueries visits q and every subquery nested anywhere inside it.
func walkQueries(q *sqlir.Query, visit func(*sqlir.Query)) {
	if q == nil {
		return
	}
	visit(q)
	for _, cte := range q.CTEs {
		walkQueries(cte.Query, visit)
	}
	for _, rel := range q.From {
		if rel.Subquery != nil {
			walkQueries(rel.Subquery, visit)
		}
	}
	for _, item := range q.Projection {
		walkExprQueries(item.Expr, visit)
	}
	walkPredQueries(q.Where, visit)
	walkPredQueries(q.Having, visit)
}

func walkPredQueries(p sqlir.Predicate, visit func(*sqlir.Query)) {
	switch v := p.(type) {
	case *sqlir.Comparison:
		walkExprQueries(v.Left, visit)
		walkExprQueries(v.Right, visit)
	case *sqlir.And:
		for _, sub := range v.Preds {
			walkPredQueries(sub, visit)
		}
	case *sqlir.Or:
		for _, sub := range v.Preds {
			walkPredQueries(sub, visit)
		}
	case *sqlir.Not:
		walkPredQueries(v.Pred, visit)
	case *sqlir.Quantified:
		walkExprQueries(v.Left, visit)
		walkQueries(v.Subquery, visit)
	case *sqlir.InSubquery:
		walkExprQueries(v.Expr, visit)
		walkQueries(v.Subquery, visit)
	case *sqlir.Exists:
		walkQueries(v.Subquery, visit)
	case *sqlir.InList:
		walkExprQueries(v.Expr, visit)
	case *sqlir.Like:
		walkExprQueries(v.Expr, visit)
		walkExprQueries(v.Pattern, visit)
	case *sqlir.Between:
		walkExprQueries(v.Expr, visit)
		walkExprQueries(v.Lower, visit)
		walkExprQueries(v.Upper, visit)
	case *sqlir.IsNull:
		walkExprQueries(v.Expr, visit)
	}
}

func walkExprQueries(x sqlir.Expr, visit func(*sqlir.Query)) {
	switch v := x.(type) {
	case *sqlir.FuncCall:
		for _, arg := range v.Args {
			walkExprQueries(arg, visit)
		}
	case *sqlir.Arithmetic:
		walkExprQueries(v.Left, visit)
		walkExprQueries(v.Right, visit)
	case *sqlir.Cast:
		walkExprQueries(v.Expr, visit)
	case *sqlir.ScalarSubquery:
		walkQueries(v.Query, visit)
	}
}

func exprHasWindow(x sqlir.Expr) bool {
	switch v := x.(type) {
	case *sqlir.FuncCall:
		if v.Over != nil {
			return true
		}
		for _, arg := range v.Args {
			if exprHasWindow(arg) {
				return true
			}
		}
	case *sqlir.Arithmetic:
		return exprHasWindow(v.Left) || exprHasWindow(v.Right)
	case *sqlir.Cast:
		return exprHasWindow(v.Expr)
	}
	return false
}

func predHasWindow(p sqlir.Predicate) bool {
	switch v := p.(type) {
	case *sqlir.Comparison:
		return exprHasWindow(v.Left) || exprHasWindow(v.Right)
	case *sqlir.And:
		for _, sub := range v.Preds {
			if predHasWindow(sub) {
				return true
			}
		}
	case *sqlir.Or:
		for _, sub := range v.Preds {
			if predHasWindow(sub) {
				return true
			}
		}
	case *sqlir.Not:
		return predHasWindow(v.Pred)
	case *sqlir.Like:
		return exprHasWindow(v.Expr) || exprHasWindow(v.Pattern)
	case *sqlir.Between:
		return exprHasWindow(v.Expr) || exprHasWindow(v.Lower) || exprHasWindow(v.Upper)
	case *sqlir.IsNull:
		return exprHasWindow(v.Expr)
	}
	return false
}
