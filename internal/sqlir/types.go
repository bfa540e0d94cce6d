package sqlir

import "strings"

// Query is the root IR node for a single SELECT statement.
//
// A Query owns its CTEs, relations, and predicate trees. Nodes are
// immutable value trees: a rewrite never mutates a node in place but
// produces a new subtree, sharing unchanged children structurally.
type Query struct {
	CTEs       []CTE
	Distinct   bool
	Projection []SelectItem
	From       []Relation
	Where      Predicate
	GroupBy    []Expr
	Having     Predicate
	OrderBy    []OrderItem
	Limit      *LimitClause
}

// CTE is a named query bound into the parent Query's scope.
// The name is visible only within the parent statement.
type CTE struct {
	Name    string
	Columns []string
	Query   *Query
}

// SelectItem is one output expression with an optional alias.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr      Expr
	Direction OrderDirection
}

// OrderDirection enumerates ORDER BY directions.
type OrderDirection string

const (
	Ascending  OrderDirection = "ASC"
	Descending OrderDirection = "DESC"
)

// LimitClause captures LIMIT/OFFSET values. Either may be nil.
type LimitClause struct {
	Count  Expr
	Offset Expr
}

// Relation is one FROM item: a base table reference or a nested Query
// with an alias. Join describes how this relation combines with the
// FROM items before it; the first relation, and comma-separated
// relations, carry a nil Join.
type Relation struct {
	Table    string // base table name; empty when Subquery is set
	Subquery *Query
	Alias    string
	Join     *JoinEdge
}

// Binding returns the name column references use to address this
// relation: the alias when present, otherwise the table name.
func (r Relation) Binding() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Table
}

// JoinEdge binds a relation to the joined prefix before it.
// Direction is metadata preserved through rewriting, never altered.
type JoinEdge struct {
	Type JoinType
	On   Predicate
}

// JoinType enumerates supported ANSI join directions.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
)

// Predicate is the sealed interface for filter conditions.
//
// Only types in this package implement it. The marker method pattern
// prevents external implementations and enables exhaustive type
// switches in the rewriter and emitter.
type Predicate interface {
	predicateNode()
}

// CompareOp enumerates comparison operators.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNeq CompareOp = "<>"
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// Comparison is a binary comparison between two expressions.
type Comparison struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

func (*Comparison) predicateNode() {}

// And is an ordered conjunction. An empty conjunction is vacuously true.
type And struct {
	Preds []Predicate
}

func (*And) predicateNode() {}

// Or is an ordered disjunction.
type Or struct {
	Preds []Predicate
}

func (*Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Pred Predicate
}

func (*Not) predicateNode() {}

// Quantifier enumerates subquery quantifiers.
type Quantifier string

const (
	QuantAll  Quantifier = "ALL"
	QuantAny  Quantifier = "ANY"
	QuantSome Quantifier = "SOME"
)

// Quantified compares an expression against ALL/ANY/SOME rows of a
// subquery's single result column.
type Quantified struct {
	Left       Expr
	Op         CompareOp
	Quantifier Quantifier
	Subquery   *Query
}

func (*Quantified) predicateNode() {}

// InList is membership in a finite literal set.
type InList struct {
	Expr   Expr
	Not    bool
	Values []Literal
}

func (*InList) predicateNode() {}

// InSubquery is membership in a subquery's result column.
type InSubquery struct {
	Expr     Expr
	Not      bool
	Subquery *Query
}

func (*InSubquery) predicateNode() {}

// Exists tests a subquery for row existence.
type Exists struct {
	Not      bool
	Subquery *Query
}

func (*Exists) predicateNode() {}

// Like is a pattern-match predicate. Carried through rewriting
// untouched; no rule inspects it.
type Like struct {
	Expr    Expr
	Not     bool
	Pattern Expr
}

func (*Like) predicateNode() {}

// Between is a range predicate.
type Between struct {
	Expr  Expr
	Not   bool
	Lower Expr
	Upper Expr
}

func (*Between) predicateNode() {}

// IsNull is an IS [NOT] NULL predicate.
type IsNull struct {
	Expr Expr
	Not  bool
}

func (*IsNull) predicateNode() {}

// Expr is the sealed interface for scalar expressions.
type Expr interface {
	exprNode()
}

// Column references a column, optionally qualified by a relation
// binding (alias or table name).
type Column struct {
	Table string
	Name  string
}

func (*Column) exprNode() {}

// LiteralKind classifies literal values.
type LiteralKind string

const (
	LitNumber LiteralKind = "NUMBER"
	LitString LiteralKind = "STRING"
	LitBool   LiteralKind = "BOOL"
	LitNull   LiteralKind = "NULL"
)

// Literal holds a constant value. Text is the exact source
// representation (for strings, the unquoted content): rewrites must
// preserve it byte for byte unless a rule deliberately adjusts it,
// as the IN-list rewrite does for fixed-width CHAR padding.
type Literal struct {
	Kind LiteralKind
	Text string
}

func (*Literal) exprNode() {}

// FuncCall is a function or aggregate application. Over marks a
// window application.
type FuncCall struct {
	Name     string
	Distinct bool
	Args     []Expr
	Over     *WindowSpec
}

func (*FuncCall) exprNode() {}

// WindowSpec describes an OVER (...) clause.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderItem
}

// Arithmetic is a binary arithmetic operation (+, -, *, /, %).
type Arithmetic struct {
	Left  Expr
	Op    string
	Right Expr
}

func (*Arithmetic) exprNode() {}

// Cast converts an expression to a declared logical type.
type Cast struct {
	Expr Expr
	Type LogicalType
}

func (*Cast) exprNode() {}

// ScalarSubquery is a subquery used as a scalar expression.
type ScalarSubquery struct {
	Query *Query
}

func (*ScalarSubquery) exprNode() {}

// Star is the wildcard selector, optionally qualified.
type Star struct {
	Table string
}

func (*Star) exprNode() {}

// Opaque carries a construct the parser recognizes lexically but has
// no structured representation for. Rules skip over it; the emitter
// reproduces the text verbatim.
type Opaque struct {
	Text string
}

func (*Opaque) exprNode() {}

// BaseType enumerates engine-agnostic scalar types.
type BaseType string

const (
	TypeSmallInt BaseType = "SMALLINT"
	TypeInteger  BaseType = "INTEGER"
	TypeBigInt   BaseType = "BIGINT"
	TypeFloat    BaseType = "FLOAT64"
	TypeDecimal  BaseType = "DECIMAL"
	TypeChar     BaseType = "CHAR"
	TypeVarChar  BaseType = "VARCHAR"
	TypeText     BaseType = "TEXT"
	TypeDate     BaseType = "DATE"
	TypeBool     BaseType = "BOOLEAN"
)

// LogicalType is a dialect-independent column type. Width carries the
// declared length for CHAR/VARCHAR and the precision for DECIMAL;
// Scale is the DECIMAL scale.
type LogicalType struct {
	Base  BaseType
	Width int
	Scale int
}

// aggregateFuncs are the grouping-sensitive aggregate function names.
var aggregateFuncs = map[string]bool{
	"MIN":   true,
	"MAX":   true,
	"SUM":   true,
	"AVG":   true,
	"COUNT": true,
}

// IsAggregate reports whether e is an aggregate application in the
// grouping sense. Window applications (OVER present) do not count:
// they do not collapse rows.
func IsAggregate(e Expr) bool {
	fc, ok := e.(*FuncCall)
	if !ok {
		return false
	}
	return fc.Over == nil && aggregateFuncs[strings.ToUpper(fc.Name)]
}

// ContainsAggregate reports whether any aggregate application occurs
// anywhere in the expression tree. Subqueries are not descended into:
// their aggregates belong to their own scope.
func ContainsAggregate(e Expr) bool {
	if e == nil {
		return false
	}
	if IsAggregate(e) {
		return true
	}
	switch v := e.(type) {
	case *FuncCall:
		for _, a := range v.Args {
			if ContainsAggregate(a) {
				return true
			}
		}
	case *Arithmetic:
		return ContainsAggregate(v.Left) || ContainsAggregate(v.Right)
	case *Cast:
		return ContainsAggregate(v.Expr)
	}
	return false
}

// PredicateContainsAggregate reports whether any aggregate occurs in
// the expressions of a predicate tree, without descending into
// subquery scopes.
func PredicateContainsAggregate(p Predicate) bool {
	if p == nil {
		return false
	}
	switch v := p.(type) {
	case *Comparison:
		return ContainsAggregate(v.Left) || ContainsAggregate(v.Right)
	case *And:
		for _, sub := range v.Preds {
			if PredicateContainsAggregate(sub) {
				return true
			}
		}
	case *Or:
		for _, sub := range v.Preds {
			if PredicateContainsAggregate(sub) {
				return true
			}
		}
	case *Not:
		return PredicateContainsAggregate(v.Pred)
	case *Quantified:
		return ContainsAggregate(v.Left)
	case *InList:
		return ContainsAggregate(v.Expr)
	case *InSubquery:
		return ContainsAggregate(v.Expr)
	case *Like:
		return ContainsAggregate(v.Expr) || ContainsAggregate(v.Pattern)
	case *Between:
		return ContainsAggregate(v.Expr) || ContainsAggregate(v.Lower) || ContainsAggregate(v.Upper)
	case *IsNull:
		return ContainsAggregate(v.Expr)
	}
	return false
}
