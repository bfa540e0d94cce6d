package rules

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryshift/queryshift/internal/sqlir"
)

func TestInListExpand_PadsCharLiterals(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT n_name FROM nation WHERE n_name IN ('GERMANY', 'FRANCE', 'BRAZIL')")

	res := InListExpand{}.Matches(q, env)
	require.True(t, res.Matched)

	q2, firings := InListExpand{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	assert.Equal(t, "H8", firings[0].RuleID)

	or, ok := q2.Where.(*sqlir.Or)
	require.True(t, ok)
	require.Len(t, or.Preds, 3)

	// n_name is CHAR(25): every literal is padded to the stored width
	for i, want := range []string{"GERMANY", "FRANCE", "BRAZIL"} {
		cmp := or.Preds[i].(*sqlir.Comparison)
		lit := cmp.Right.(*sqlir.Literal)
		assert.Equal(t, want+strings.Repeat(" ", 25-len(want)), lit.Text)
		assert.Len(t, lit.Text, 25)
	}
}

func TestInListExpand_PadsByCharacterCount(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT n_name FROM nation WHERE n_name IN ('PERÚ')")

	q2, firings := InListExpand{}.Rewrite(q, env)
	require.Len(t, firings, 1)

	// the multibyte Ú counts as one character against CHAR(25)
	lit := q2.Where.(*sqlir.Comparison).Right.(*sqlir.Literal)
	assert.Equal(t, 25, utf8.RuneCountInString(lit.Text))
	assert.Equal(t, "PERÚ", strings.TrimRight(lit.Text, " "))
}

func TestInListExpand_SingleValueBecomesBareComparison(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT o_orderkey FROM orders WHERE o_orderkey IN (42)")

	q2, firings := InListExpand{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	cmp, ok := q2.Where.(*sqlir.Comparison)
	require.True(t, ok)
	assert.Equal(t, sqlir.OpEq, cmp.Op)
	assert.Equal(t, "42", cmp.Right.(*sqlir.Literal).Text)
}

func TestInListExpand_NumbersNeverPadded(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT n_name FROM nation WHERE n_nationkey IN (1, 2)")

	q2, _ := InListExpand{}.Rewrite(q, env)
	or := q2.Where.(*sqlir.Or)
	assert.Equal(t, "1", or.Preds[0].(*sqlir.Comparison).Right.(*sqlir.Literal).Text)
}

func TestInListExpand_NoCatalogNoPadding(t *testing.T) {
	env := bareEnv(t)
	q := parse(t, "SELECT n_name FROM nation WHERE n_name IN ('GERMANY', 'FRANCE')")

	q2, firings := InListExpand{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	or := q2.Where.(*sqlir.Or)
	assert.Equal(t, "GERMANY", or.Preds[0].(*sqlir.Comparison).Right.(*sqlir.Literal).Text)
}

func TestInListExpand_VarcharNotPadded(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT c_name FROM customer WHERE c_name IN ('Alice', 'Bob')")

	q2, _ := InListExpand{}.Rewrite(q, env)
	or := q2.Where.(*sqlir.Or)
	assert.Equal(t, "Alice", or.Preds[0].(*sqlir.Comparison).Right.(*sqlir.Literal).Text)
}

func TestInListExpand_NotInLeftAlone(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT n_name FROM nation WHERE n_name NOT IN ('GERMANY')")

	res := InListExpand{}.Matches(q, env)
	assert.False(t, res.Matched)
}

func TestInListExpand_InSubqueryLeftAlone(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT o_orderkey FROM orders WHERE o_custkey IN (SELECT c_custkey FROM customer)")

	res := InListExpand{}.Matches(q, env)
	assert.False(t, res.Matched)
}

func TestInListExpand_NestedInsideOr(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT n_name FROM nation WHERE n_regionkey = 1 OR n_name IN ('GERMANY', 'FRANCE')")

	q2, firings := InListExpand{}.Rewrite(q, env)
	require.Len(t, firings, 1)

	outer := q2.Where.(*sqlir.Or)
	require.Len(t, outer.Preds, 2)
	inner, ok := outer.Preds[1].(*sqlir.Or)
	require.True(t, ok, "expansion lands in place inside the disjunction")
	assert.Len(t, inner.Preds, 2)
}
