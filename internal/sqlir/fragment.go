package sqlir

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// lowerIdent folds an identifier to its canonical comparison form:
// NFC-normalized and lowercased. Identifier comparison anywhere in
// the engine goes through this function.
func lowerIdent(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// NormalizeIdent exposes the canonical identifier form to the catalog
// and rule packages so they compare names the same way equality does.
func NormalizeIdent(s string) string {
	return lowerIdent(s)
}

// Fragment renders an IR node to a compact, dialect-neutral string.
// Used for rewrite-report before/after fragments and diagnostics; the
// emitter produces the real dialect text.
func Fragment(n any) string {
	w := &fragmentWriter{}
	w.node(n)
	return w.b.String()
}

// Equal reports structural equivalence of two queries. Presentation
// attributes carry no weight: projection aliases are ignored, relation
// bindings are compared positionally, and AND/OR operands are compared
// as unordered sets. Everything with semantic effect (join direction,
// operators, literal bytes, set membership contents) must match.
func Equal(a, b *Query) bool {
	return canonicalQuery(a) == canonicalQuery(b)
}

// EqualPredicate is Equal for predicate subtrees.
func EqualPredicate(a, b Predicate) bool {
	wa := &fragmentWriter{canonical: true}
	wa.pred(a)
	wb := &fragmentWriter{canonical: true}
	wb.pred(b)
	return wa.b.String() == wb.b.String()
}

func canonicalQuery(q *Query) string {
	w := &fragmentWriter{canonical: true}
	w.query(q)
	return w.b.String()
}

// fragmentWriter renders IR nodes. In canonical mode it additionally
// anonymizes relation bindings positionally, drops projection aliases,
// and sorts conjunction/disjunction operands, so that the rendered
// string is a canonical form suitable for equality comparison.
type fragmentWriter struct {
	b         strings.Builder
	canonical bool
	scopes    []map[string]string // binding -> positional name, innermost last
}

func (w *fragmentWriter) write(parts ...string) {
	for _, p := range parts {
		w.b.WriteString(p)
	}
}

func (w *fragmentWriter) node(n any) {
	switch v := n.(type) {
	case *Query:
		w.query(v)
	case Predicate:
		w.pred(v)
	case Expr:
		w.expr(v)
	case nil:
		w.write("<nil>")
	default:
		w.write(fmt.Sprintf("<%T>", n))
	}
}

func (w *fragmentWriter) pushScope(q *Query) {
	m := map[string]string{}
	if w.canonical {
		for i, rel := range q.From {
			m[lowerIdent(rel.Binding())] = fmt.Sprintf("r%d", i+1)
		}
		for i, cte := range q.CTEs {
			m[lowerIdent(cte.Name)] = fmt.Sprintf("c%d", i+1)
		}
	}
	w.scopes = append(w.scopes, m)
}

func (w *fragmentWriter) popScope() {
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *fragmentWriter) binding(name string) string {
	folded := lowerIdent(name)
	if w.canonical {
		for i := len(w.scopes) - 1; i >= 0; i-- {
			if positional, ok := w.scopes[i][folded]; ok {
				return positional
			}
		}
	}
	return folded
}

func (w *fragmentWriter) query(q *Query) {
	if q == nil {
		w.write("<nil>")
		return
	}
	w.pushScope(q)
	defer w.popScope()

	if len(q.CTEs) > 0 {
		w.write("WITH ")
		for i, cte := range q.CTEs {
			if i > 0 {
				w.write(", ")
			}
			w.write(w.binding(cte.Name))
			if len(cte.Columns) > 0 {
				w.write(" (")
				for j, col := range cte.Columns {
					if j > 0 {
						w.write(", ")
					}
					w.write(lowerIdent(col))
				}
				w.write(")")
			}
			w.write(" AS (")
			w.query(cte.Query)
			w.write(")")
		}
		w.write(" ")
	}

	w.write("SELECT ")
	if q.Distinct {
		w.write("DISTINCT ")
	}
	for i, item := range q.Projection {
		if i > 0 {
			w.write(", ")
		}
		w.expr(item.Expr)
		if item.Alias != "" && !w.canonical {
			w.write(" AS ", item.Alias)
		}
	}
	if len(q.From) > 0 {
		w.write(" FROM ")
		for i, rel := range q.From {
			if rel.Join != nil {
				w.write(" ", string(rel.Join.Type), " JOIN ")
			} else if i > 0 {
				w.write(", ")
			}
			w.relation(rel)
			if rel.Join != nil && rel.Join.On != nil {
				w.write(" ON ")
				w.pred(rel.Join.On)
			}
		}
	}
	if q.Where != nil {
		w.write(" WHERE ")
		w.pred(q.Where)
	}
	if len(q.GroupBy) > 0 {
		w.write(" GROUP BY ")
		for i, e := range q.GroupBy {
			if i > 0 {
				w.write(", ")
			}
			w.expr(e)
		}
	}
	if q.Having != nil {
		w.write(" HAVING ")
		w.pred(q.Having)
	}
	if len(q.OrderBy) > 0 {
		w.write(" ORDER BY ")
		for i, item := range q.OrderBy {
			if i > 0 {
				w.write(", ")
			}
			w.expr(item.Expr)
			w.write(" ", string(item.Direction))
		}
	}
	if q.Limit != nil {
		if q.Limit.Count != nil {
			w.write(" LIMIT ")
			w.expr(q.Limit.Count)
		}
		if q.Limit.Offset != nil {
			w.write(" OFFSET ")
			w.expr(q.Limit.Offset)
		}
	}
}

func (w *fragmentWriter) relation(rel Relation) {
	if rel.Subquery != nil {
		w.write("(")
		w.query(rel.Subquery)
		w.write(")")
	} else {
		w.write(lowerIdent(rel.Table))
	}
	if w.canonical {
		// positional binding already names the relation
		w.write(" ", w.binding(rel.Binding()))
		return
	}
	if rel.Alias != "" {
		w.write(" ", rel.Alias)
	}
}

func (w *fragmentWriter) pred(p Predicate) {
	if p == nil {
		w.write("<nil>")
		return
	}
	switch v := p.(type) {
	case *Comparison:
		w.expr(v.Left)
		w.write(" ", string(v.Op), " ")
		w.expr(v.Right)
	case *And:
		w.junction("AND", v.Preds)
	case *Or:
		w.junction("OR", v.Preds)
	case *Not:
		w.write("NOT (")
		w.pred(v.Pred)
		w.write(")")
	case *Quantified:
		w.expr(v.Left)
		w.write(" ", string(v.Op), " ", string(v.Quantifier), " (")
		w.query(v.Subquery)
		w.write(")")
	case *InList:
		w.expr(v.Expr)
		if v.Not {
			w.write(" NOT")
		}
		w.write(" IN (")
		for i := range v.Values {
			if i > 0 {
				w.write(", ")
			}
			lit := v.Values[i]
			w.expr(&lit)
		}
		w.write(")")
	case *InSubquery:
		w.expr(v.Expr)
		if v.Not {
			w.write(" NOT")
		}
		w.write(" IN (")
		w.query(v.Subquery)
		w.write(")")
	case *Exists:
		if v.Not {
			w.write("NOT ")
		}
		w.write("EXISTS (")
		w.query(v.Subquery)
		w.write(")")
	case *Like:
		w.expr(v.Expr)
		if v.Not {
			w.write(" NOT")
		}
		w.write(" LIKE ")
		w.expr(v.Pattern)
	case *Between:
		w.expr(v.Expr)
		if v.Not {
			w.write(" NOT")
		}
		w.write(" BETWEEN ")
		w.expr(v.Lower)
		w.write(" AND ")
		w.expr(v.Upper)
	case *IsNull:
		w.expr(v.Expr)
		w.write(" IS")
		if v.Not {
			w.write(" NOT")
		}
		w.write(" NULL")
	default:
		w.write(fmt.Sprintf("<%T>", p))
	}
}

// junction renders AND/OR operands; canonical mode sorts the rendered
// operands so conjunct order carries no weight.
func (w *fragmentWriter) junction(op string, preds []Predicate) {
	rendered := make([]string, len(preds))
	for i, sub := range preds {
		inner := &fragmentWriter{canonical: w.canonical, scopes: w.scopes}
		inner.pred(sub)
		rendered[i] = inner.b.String()
	}
	if w.canonical {
		sort.Strings(rendered)
	}
	w.write("(")
	for i, r := range rendered {
		if i > 0 {
			w.write(" ", op, " ")
		}
		w.write(r)
	}
	w.write(")")
}

func (w *fragmentWriter) expr(e Expr) {
	if e == nil {
		w.write("<nil>")
		return
	}
	switch v := e.(type) {
	case *Column:
		if v.Table != "" {
			w.write(w.binding(v.Table), ".")
		}
		w.write(lowerIdent(v.Name))
	case *Literal:
		switch v.Kind {
		case LitString:
			w.write("'", strings.ReplaceAll(v.Text, "'", "''"), "'")
		case LitNull:
			w.write("NULL")
		default:
			w.write(v.Text)
		}
	case *FuncCall:
		w.write(strings.ToUpper(v.Name), "(")
		if v.Distinct {
			w.write("DISTINCT ")
		}
		for i, a := range v.Args {
			if i > 0 {
				w.write(", ")
			}
			w.expr(a)
		}
		w.write(")")
		if v.Over != nil {
			w.write(" OVER (")
			if len(v.Over.PartitionBy) > 0 {
				w.write("PARTITION BY ")
				for i, pb := range v.Over.PartitionBy {
					if i > 0 {
						w.write(", ")
					}
					w.expr(pb)
				}
			}
			if len(v.Over.OrderBy) > 0 {
				if len(v.Over.PartitionBy) > 0 {
					w.write(" ")
				}
				w.write("ORDER BY ")
				for i, ob := range v.Over.OrderBy {
					if i > 0 {
						w.write(", ")
					}
					w.expr(ob.Expr)
					w.write(" ", string(ob.Direction))
				}
			}
			w.write(")")
		}
	case *Arithmetic:
		w.write("(")
		w.expr(v.Left)
		w.write(" ", v.Op, " ")
		w.expr(v.Right)
		w.write(")")
	case *Cast:
		w.write("CAST(")
		w.expr(v.Expr)
		w.write(" AS ", typeFragment(v.Type), ")")
	case *ScalarSubquery:
		w.write("(")
		w.query(v.Query)
		w.write(")")
	case *Star:
		if v.Table != "" {
			w.write(w.binding(v.Table), ".")
		}
		w.write("*")
	case *Opaque:
		w.write(v.Text)
	default:
		w.write(fmt.Sprintf("<%T>", e))
	}
}

func typeFragment(t LogicalType) string {
	switch {
	case t.Width > 0 && t.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", t.Base, t.Width, t.Scale)
	case t.Width > 0:
		return fmt.Sprintf("%s(%d)", t.Base, t.Width)
	default:
		return string(t.Base)
	}
}
