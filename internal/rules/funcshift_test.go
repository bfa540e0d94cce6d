package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryshift/queryshift/internal/sqlir"
)

func TestFuncShift_MovesWideningCastToLiteral(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT p_partkey FROM part WHERE CAST(p_size AS INTEGER) = 5")

	res := FuncShift{}.Matches(q, env)
	require.True(t, res.Matched)

	q2, firings := FuncShift{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	assert.Equal(t, "H4", firings[0].RuleID)
	assert.Equal(t, "p_size = CAST(5 AS SMALLINT)", sqlir.Fragment(q2.Where))
	assert.Equal(t, "CAST(p_size AS INTEGER) = 5", firings[0].Before)
}

func TestFuncShift_MirroredComparison(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT p_partkey FROM part WHERE 5 = CAST(p_size AS INTEGER)")

	q2, firings := FuncShift{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	assert.Equal(t, "CAST(5 AS SMALLINT) = p_size", sqlir.Fragment(q2.Where))
}

func TestFuncShift_StringColumnNeedsNoCast(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT n_nationkey FROM nation WHERE CAST(n_name AS CHAR(30)) = 'GERMANY'")

	q2, firings := FuncShift{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	assert.Equal(t, "n_name = 'GERMANY'", sqlir.Fragment(q2.Where))
}

func TestFuncShift_RewrittenFormDoesNotRematch(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, "SELECT p_partkey FROM part WHERE CAST(p_size AS INTEGER) = 5")
	q2, _ := FuncShift{}.Rewrite(q, env)

	res := FuncShift{}.Matches(q2, env)
	assert.False(t, res.Matched, "literal-side cast must not retrigger the rule")
}

func TestFuncShift_DeclinesNarrowingCast(t *testing.T) {
	env := pgEnv(t)
	// decimal(12,2) to integer loses the fraction
	q := parse(t, "SELECT p_partkey FROM part WHERE CAST(p_retailprice AS INTEGER) = 5")

	res := FuncShift{}.Matches(q, env)
	assert.False(t, res.Matched)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0].Message, "not invertible")
}

func TestFuncShift_BoundedDecimalTarget(t *testing.T) {
	env := pgEnv(t)

	// decimal(12,2) cannot hold every integer value
	narrow := parse(t, "SELECT o_orderkey FROM orders WHERE CAST(o_orderkey AS DECIMAL(12,2)) = 5")
	assert.False(t, FuncShift{}.Matches(narrow, env).Matched)

	// decimal(21,2) can
	wide := parse(t, "SELECT o_orderkey FROM orders WHERE CAST(o_orderkey AS DECIMAL(21,2)) = 5")
	assert.True(t, FuncShift{}.Matches(wide, env).Matched)
}

func TestFuncShift_DeclinesWithoutCatalog(t *testing.T) {
	env := bareEnv(t)
	q := parse(t, "SELECT p_partkey FROM part WHERE CAST(p_size AS INTEGER) = 5")

	res := FuncShift{}.Matches(q, env)
	assert.False(t, res.Matched)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0].Message, "unknown")
}

func TestFuncShift_DeclinesOnInternalRewriteDialect(t *testing.T) {
	env := commercialEnv(t)
	q := parse(t, "SELECT p_partkey FROM part WHERE CAST(p_size AS INTEGER) = 5")

	res := FuncShift{}.Matches(q, env)
	assert.False(t, res.Matched)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0].Message, "internally")
}

func TestFuncShift_DeclinesForSubqueryRelationColumn(t *testing.T) {
	env := pgEnv(t)
	// a derived relation carries no catalog facts
	q := parse(t, "SELECT s.p_partkey FROM (SELECT p_partkey, p_size FROM part) s WHERE CAST(s.p_size AS INTEGER) = 5")

	res := FuncShift{}.Matches(q, env)
	assert.False(t, res.Matched)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0].Message, "unknown")
}

func TestWidens(t *testing.T) {
	integer := sqlir.LogicalType{Base: sqlir.TypeInteger}
	bigint := sqlir.LogicalType{Base: sqlir.TypeBigInt}
	char25 := sqlir.LogicalType{Base: sqlir.TypeChar, Width: 25}
	char30 := sqlir.LogicalType{Base: sqlir.TypeChar, Width: 30}
	char20 := sqlir.LogicalType{Base: sqlir.TypeChar, Width: 20}
	varchar := sqlir.LogicalType{Base: sqlir.TypeVarChar, Width: 25}
	text := sqlir.LogicalType{Base: sqlir.TypeText}

	assert.True(t, widens(integer, bigint))
	assert.False(t, widens(bigint, integer))
	assert.True(t, widens(char25, char30))
	assert.False(t, widens(char25, char20))
	assert.True(t, widens(varchar, text))
	assert.False(t, widens(text, varchar))
	assert.True(t, widens(bigint, sqlir.LogicalType{Base: sqlir.TypeDecimal}))
	assert.False(t, widens(integer, sqlir.LogicalType{Base: sqlir.TypeFloat}))
}
