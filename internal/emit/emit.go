// Package emit renders Query IR back to concrete SQL text for a
// target dialect. Emission is lossless for any IR produced by parsing
// the same dialect's output: parse(emit(ir)) is structurally
// equivalent to ir.
package emit

import (
	"strings"

	"github.com/queryshift/queryshift/internal/dialect"
	"github.com/queryshift/queryshift/internal/sqlir"
)

// Emit renders q as SQL text in the target dialect. Constructs the
// dialect cannot express fail with *DialectUnsupportedFeatureError;
// the rewriter pre-checks feasibility with CheckSupport before firing
// structural rules, so rewriting and emission never disagree.
func Emit(q *sqlir.Query, d *dialect.Dialect) (string, error) {
	if err := CheckSupport(q, d); err != nil {
		return "", err
	}
	e := &emitter{d: d}
	e.query(q)
	return e.b.String(), nil
}

// EmitPredicate renders a predicate subtree, for report fragments and
// tests.
func EmitPredicate(p sqlir.Predicate, d *dialect.Dialect) string {
	e := &emitter{d: d}
	e.pred(p)
	return e.b.String()
}

type emitter struct {
	b strings.Builder
	d *dialect.Dialect
}

func (e *emitter) write(parts ...string) {
	for _, p := range parts {
		e.b.WriteString(p)
	}
}

func (e *emitter) ident(name string) {
	e.write(e.d.QuoteIdentifier(name))
}

func (e *emitter) query(q *sqlir.Query) {
	if len(q.CTEs) > 0 {
		e.write("WITH ")
		for i, cte := range q.CTEs {
			if i > 0 {
				e.write(", ")
			}
			e.ident(cte.Name)
			if len(cte.Columns) > 0 {
				e.write(" (")
				for j, col := range cte.Columns {
					if j > 0 {
						e.write(", ")
					}
					e.ident(col)
				}
				e.write(")")
			}
			e.write(" AS (")
			e.query(cte.Query)
			e.write(")")
		}
		e.write(" ")
	}

	e.write("SELECT ")
	if q.Distinct {
		e.write("DISTINCT ")
	}
	for i, item := range q.Projection {
		if i > 0 {
			e.write(", ")
		}
		e.expr(item.Expr)
		if item.Alias != "" {
			e.write(" AS ")
			e.ident(item.Alias)
		}
	}

	if len(q.From) > 0 {
		e.write(" FROM ")
		for i, rel := range q.From {
			if rel.Join != nil {
				e.write(" ", joinKeyword(rel.Join.Type), " ")
			} else if i > 0 {
				e.write(", ")
			}
			e.relation(rel)
			if rel.Join != nil && rel.Join.On != nil {
				e.write(" ON ")
				e.pred(rel.Join.On)
			}
		}
	}

	if q.Where != nil {
		e.write(" WHERE ")
		e.pred(q.Where)
	}
	if len(q.GroupBy) > 0 {
		e.write(" GROUP BY ")
		for i, expr := range q.GroupBy {
			if i > 0 {
				e.write(", ")
			}
			e.expr(expr)
		}
	}
	if q.Having != nil {
		e.write(" HAVING ")
		e.pred(q.Having)
	}
	if len(q.OrderBy) > 0 {
		e.write(" ORDER BY ")
		for i, item := range q.OrderBy {
			if i > 0 {
				e.write(", ")
			}
			e.expr(item.Expr)
			if item.Direction == sqlir.Descending {
				e.write(" DESC")
			} else {
				e.write(" ASC")
			}
		}
	}
	if q.Limit != nil {
		if q.Limit.Count != nil {
			e.write(" LIMIT ")
			e.expr(q.Limit.Count)
		}
		if q.Limit.Offset != nil {
			e.write(" OFFSET ")
			e.expr(q.Limit.Offset)
		}
	}
}

func joinKeyword(t sqlir.JoinType) string {
	switch t {
	case sqlir.JoinInner:
		return "INNER JOIN"
	case sqlir.JoinLeft:
		return "LEFT JOIN"
	case sqlir.JoinRight:
		return "RIGHT JOIN"
	case sqlir.JoinFull:
		return "FULL JOIN"
	case sqlir.JoinCross:
		return "CROSS JOIN"
	default:
		return "JOIN"
	}
}

func (e *emitter) relation(rel sqlir.Relation) {
	if rel.Subquery != nil {
		e.write("(")
		e.query(rel.Subquery)
		e.write(")")
	} else {
		e.ident(rel.Table)
	}
	if rel.Alias != "" {
		e.write(" AS ")
		e.ident(rel.Alias)
	}
}

func (e *emitter) pred(p sqlir.Predicate) {
	switch v := p.(type) {
	case *sqlir.Comparison:
		e.expr(v.Left)
		e.write(" ", string(v.Op), " ")
		e.expr(v.Right)
	case *sqlir.And:
		e.junction("AND", v.Preds)
	case *sqlir.Or:
		e.junction("OR", v.Preds)
	case *sqlir.Not:
		e.write("NOT (")
		e.pred(v.Pred)
		e.write(")")
	case *sqlir.Quantified:
		e.expr(v.Left)
		e.write(" ", string(v.Op), " ", string(v.Quantifier), " (")
		e.query(v.Subquery)
		e.write(")")
	case *sqlir.InList:
		e.expr(v.Expr)
		if v.Not {
			e.write(" NOT")
		}
		e.write(" IN (")
		for i := range v.Values {
			if i > 0 {
				e.write(", ")
			}
			lit := v.Values[i]
			e.expr(&lit)
		}
		e.write(")")
	case *sqlir.InSubquery:
		e.expr(v.Expr)
		if v.Not {
			e.write(" NOT")
		}
		e.write(" IN (")
		e.query(v.Subquery)
		e.write(")")
	case *sqlir.Exists:
		if v.Not {
			e.write("NOT ")
		}
		e.write("EXISTS (")
		e.query(v.Subquery)
		e.write(")")
	case *sqlir.Like:
		e.expr(v.Expr)
		if v.Not {
			e.write(" NOT")
		}
		e.write(" LIKE ")
		e.expr(v.Pattern)
	case *sqlir.Between:
		e.expr(v.Expr)
		if v.Not {
			e.write(" NOT")
		}
		e.write(" BETWEEN ")
		e.expr(v.Lower)
		e.write(" AND ")
		e.expr(v.Upper)
	case *sqlir.IsNull:
		e.expr(v.Expr)
		e.write(" IS")
		if v.Not {
			e.write(" NOT")
		}
		e.write(" NULL")
	}
}

// junction parenthesizes AND/OR groups so operator precedence
// survives the round trip.
func (e *emitter) junction(op string, preds []sqlir.Predicate) {
	e.write("(")
	for i, sub := range preds {
		if i > 0 {
			e.write(" ", op, " ")
		}
		e.pred(sub)
	}
	e.write(")")
}

func (e *emitter) expr(x sqlir.Expr) {
	switch v := x.(type) {
	case *sqlir.Column:
		if v.Table != "" {
			e.ident(v.Table)
			e.write(".")
		}
		e.ident(v.Name)
	case *sqlir.Literal:
		switch v.Kind {
		case sqlir.LitString:
			e.write("'", strings.ReplaceAll(v.Text, "'", "''"), "'")
		case sqlir.LitNull:
			e.write("NULL")
		default:
			e.write(v.Text)
		}
	case *sqlir.FuncCall:
		e.write(strings.ToUpper(v.Name), "(")
		if v.Distinct {
			e.write("DISTINCT ")
		}
		for i, arg := range v.Args {
			if i > 0 {
				e.write(", ")
			}
			e.expr(arg)
		}
		e.write(")")
		if v.Over != nil {
			e.window(v.Over)
		}
	case *sqlir.Arithmetic:
		e.write("(")
		e.expr(v.Left)
		e.write(" ", v.Op, " ")
		e.expr(v.Right)
		e.write(")")
	case *sqlir.Cast:
		e.write("CAST(")
		e.expr(v.Expr)
		e.write(" AS ", e.d.CastTypeName(v.Type), ")")
	case *sqlir.ScalarSubquery:
		e.write("(")
		e.query(v.Query)
		e.write(")")
	case *sqlir.Star:
		if v.Table != "" {
			e.ident(v.Table)
			e.write(".")
		}
		e.write("*")
	case *sqlir.Opaque:
		e.write(v.Text)
	}
}

func (e *emitter) window(w *sqlir.WindowSpec) {
	e.write(" OVER (")
	if len(w.PartitionBy) > 0 {
		e.write("PARTITION BY ")
		for i, pb := range w.PartitionBy {
			if i > 0 {
				e.write(", ")
			}
			e.expr(pb)
		}
	}
	if len(w.OrderBy) > 0 {
		if len(w.PartitionBy) > 0 {
			e.write(" ")
		}
		e.write("ORDER BY ")
		for i, ob := range w.OrderBy {
			if i > 0 {
				e.write(", ")
			}
			e.expr(ob.Expr)
			if ob.Direction == sqlir.Descending {
				e.write(" DESC")
			} else {
				e.write(" ASC")
			}
		}
	}
	e.write(")")
}
