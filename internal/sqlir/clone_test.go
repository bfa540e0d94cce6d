package sqlir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShallow_IsolatesClauseSlices(t *testing.T) {
	orig := &Query{
		Projection: []SelectItem{{Expr: col("", "a")}},
		From:       []Relation{{Table: "t"}},
		GroupBy:    []Expr{col("", "a")},
	}
	cp := orig.Shallow()
	cp.Projection = append(cp.Projection, SelectItem{Expr: col("", "b")})
	cp.From[0].Alias = "x"
	cp.GroupBy[0] = col("", "b")

	assert.Len(t, orig.Projection, 1)
	assert.Empty(t, orig.From[0].Alias)
	assert.Equal(t, "a", orig.GroupBy[0].(*Column).Name)
}

func TestConjuncts_FlattensNested(t *testing.T) {
	a := eq(col("", "a"), num("1"))
	b := eq(col("", "b"), num("2"))
	c := eq(col("", "c"), num("3"))
	p := &And{Preds: []Predicate{a, &And{Preds: []Predicate{b, c}}}}

	got := Conjuncts(p)
	require.Len(t, got, 3)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
	assert.Same(t, c, got[2])
}

func TestConjuncts_NilAndSingle(t *testing.T) {
	assert.Nil(t, Conjuncts(nil))

	p := eq(col("", "a"), num("1"))
	got := Conjuncts(p)
	require.Len(t, got, 1)
	assert.Same(t, p, got[0])
}

func TestConjoin(t *testing.T) {
	a := eq(col("", "a"), num("1"))
	b := eq(col("", "b"), num("2"))

	assert.Nil(t, Conjoin(nil))
	assert.Same(t, a, Conjoin([]Predicate{a}))

	joined := Conjoin([]Predicate{a, b})
	and, ok := joined.(*And)
	require.True(t, ok)
	assert.Len(t, and.Preds, 2)
}

func TestIsAggregate(t *testing.T) {
	sum := &FuncCall{Name: "sum", Args: []Expr{col("", "x")}}
	assert.True(t, IsAggregate(sum))

	windowed := &FuncCall{Name: "SUM", Args: []Expr{col("", "x")}, Over: &WindowSpec{}}
	assert.False(t, IsAggregate(windowed), "window applications do not collapse rows")

	assert.False(t, IsAggregate(&FuncCall{Name: "UPPER", Args: []Expr{col("", "x")}}))
	assert.False(t, IsAggregate(col("", "x")))
}

func TestContainsAggregate_Nested(t *testing.T) {
	e := &Arithmetic{
		Left:  &FuncCall{Name: "SUM", Args: []Expr{col("", "x")}},
		Op:    "*",
		Right: num("2"),
	}
	assert.True(t, ContainsAggregate(e))
	assert.False(t, ContainsAggregate(col("", "x")))
}

func TestPredicateContainsAggregate_SkipsSubqueryScopes(t *testing.T) {
	// The aggregate inside the subquery belongs to its own scope.
	p := &InSubquery{
		Expr: col("", "x"),
		Subquery: &Query{
			Projection: []SelectItem{{Expr: &FuncCall{Name: "MAX", Args: []Expr{col("", "y")}}}},
			From:       []Relation{{Table: "t"}},
		},
	}
	assert.False(t, PredicateContainsAggregate(p))

	h := &Comparison{Left: &FuncCall{Name: "COUNT", Args: []Expr{&Star{}}}, Op: OpGt, Right: num("1")}
	assert.True(t, PredicateContainsAggregate(h))
}
