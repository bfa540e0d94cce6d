package sqlir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_WellFormed(t *testing.T) {
	q := &Query{
		Projection: []SelectItem{{Expr: col("n", "n_name")}},
		From:       []Relation{{Table: "nation", Alias: "n"}},
		Where:      eq(col("n", "n_regionkey"), num("1")),
	}
	assert.NoError(t, Validate(q))
}

func TestValidate_EmptyProjection(t *testing.T) {
	err := Validate(&Query{From: []Relation{{Table: "nation"}}})
	merr, ok := IsMalformed(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeEmptyQuery, merr.Code)
}

func TestValidate_UnresolvedQualifier(t *testing.T) {
	q := &Query{
		Projection: []SelectItem{{Expr: col("x", "n_name")}},
		From:       []Relation{{Table: "nation", Alias: "n"}},
	}
	err := Validate(q)
	merr, ok := IsMalformed(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeUnresolvedColumn, merr.Code)
	assert.Equal(t, "n_name", merr.Column)
	assert.Equal(t, "x", merr.Relation)
}

func TestValidate_ColumnWithoutRelations(t *testing.T) {
	q := &Query{Projection: []SelectItem{{Expr: col("", "n_name")}}}
	err := Validate(q)
	merr, ok := IsMalformed(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeUnresolvedColumn, merr.Code)
}

func TestValidate_AmbiguousUnqualifiedColumn(t *testing.T) {
	q := &Query{
		Projection: []SelectItem{{Expr: col("", "n_name")}},
		From: []Relation{
			{Table: "nation", Alias: "n"},
			{Table: "region", Alias: "r"},
		},
	}
	err := Validate(q)
	merr, ok := IsMalformed(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeAmbiguousColumn, merr.Code)
	assert.Equal(t, "n_name", merr.Column)
}

func TestValidate_SingleInnerRelationNotAmbiguous(t *testing.T) {
	// the subquery's own scope has one relation; the two outer
	// bindings do not make the inner reference ambiguous
	q := &Query{
		Projection: []SelectItem{{Expr: col("o", "o_orderkey")}},
		From: []Relation{
			{Table: "orders", Alias: "o"},
			{Table: "customer", Alias: "c"},
		},
		Where: &Exists{Subquery: &Query{
			Projection: []SelectItem{{Expr: col("", "l_orderkey")}},
			From:       []Relation{{Table: "lineitem"}},
		}},
	}
	assert.NoError(t, Validate(q))
}

func TestValidate_LiteralProjectionNeedsNoRelation(t *testing.T) {
	q := &Query{Projection: []SelectItem{{Expr: num("1")}}}
	assert.NoError(t, Validate(q))
}

func TestValidate_DuplicateCTE(t *testing.T) {
	inner := &Query{
		Projection: []SelectItem{{Expr: col("", "n_name")}},
		From:       []Relation{{Table: "nation"}},
	}
	q := &Query{
		CTEs: []CTE{
			{Name: "names", Query: inner},
			{Name: "NAMES", Query: inner},
		},
		Projection: []SelectItem{{Expr: col("", "n_name")}},
		From:       []Relation{{Table: "names"}},
	}
	err := Validate(q)
	merr, ok := IsMalformed(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeDuplicateCTE, merr.Code)
}

func TestValidate_GroupingMismatch(t *testing.T) {
	q := &Query{
		Projection: []SelectItem{
			{Expr: col("", "n_name")},
			{Expr: &FuncCall{Name: "MAX", Args: []Expr{col("", "n_regionkey")}}},
		},
		From: []Relation{{Table: "nation"}},
	}
	err := Validate(q)
	merr, ok := IsMalformed(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeGroupingMismatch, merr.Code)
	assert.Equal(t, "n_name", merr.Column)
}

func TestValidate_GroupedProjectionOK(t *testing.T) {
	q := &Query{
		Projection: []SelectItem{
			{Expr: col("", "n_name")},
			{Expr: &FuncCall{Name: "MAX", Args: []Expr{col("", "n_regionkey")}}},
		},
		From:    []Relation{{Table: "nation"}},
		GroupBy: []Expr{col("", "n_name")},
	}
	assert.NoError(t, Validate(q))
}

func TestValidate_WindowIsNotGrouping(t *testing.T) {
	// RANK() OVER (...) does not collapse rows, so a bare column next
	// to it needs no GROUP BY.
	q := &Query{
		Projection: []SelectItem{
			{Expr: col("", "l_orderkey")},
			{Expr: &FuncCall{
				Name: "RANK",
				Over: &WindowSpec{OrderBy: []OrderItem{{Expr: col("", "l_quantity"), Direction: Descending}}},
			}},
		},
		From: []Relation{{Table: "lineitem"}},
	}
	assert.NoError(t, Validate(q))
}

func TestValidate_CorrelatedSubqueryResolves(t *testing.T) {
	q := &Query{
		Projection: []SelectItem{{Expr: col("o", "o_orderkey")}},
		From:       []Relation{{Table: "orders", Alias: "o"}},
		Where: &Exists{Subquery: &Query{
			Projection: []SelectItem{{Expr: num("1")}},
			From:       []Relation{{Table: "lineitem", Alias: "l"}},
			Where:      eq(col("l", "l_orderkey"), col("o", "o_orderkey")),
		}},
	}
	assert.NoError(t, Validate(q))
}

func TestValidate_CTEDoesNotSeeOuterRelations(t *testing.T) {
	q := &Query{
		CTEs: []CTE{{Name: "x", Query: &Query{
			Projection: []SelectItem{{Expr: col("o", "o_orderkey")}},
			From:       []Relation{{Table: "lineitem"}},
		}}},
		Projection: []SelectItem{{Expr: col("", "o_orderkey")}},
		From: []Relation{
			{Table: "orders", Alias: "o"},
		},
	}
	err := Validate(q)
	merr, ok := IsMalformed(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeUnresolvedColumn, merr.Code)
	assert.Equal(t, "o", merr.Relation)
}
