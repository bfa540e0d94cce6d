package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryshift/queryshift/internal/dialect"
	"github.com/queryshift/queryshift/internal/sqlir"
)

const minPriceQuery = `SELECT l.l_orderkey FROM lineitem l
	WHERE l.l_extendedprice = (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
		WHERE l2.l_partkey = l.l_partkey AND l2.l_quantity > 0)`

func TestDecorrelate_MinBecomesRankingCTE(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, minPriceQuery)

	res := Decorrelate{}.Matches(q, env)
	require.True(t, res.Matched)

	q2, firings := Decorrelate{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	assert.Equal(t, "H6", firings[0].RuleID)

	require.Len(t, q2.CTEs, 2)
	ranked, best := q2.CTEs[0], q2.CTEs[1]
	assert.Equal(t, "ranked", ranked.Name)
	assert.Equal(t, "best", best.Name)

	// ranked: partition by the correlation column, order by the
	// aggregated column ascending (MIN), residual filter carried along
	require.Len(t, ranked.Query.Projection, 3)
	rank := ranked.Query.Projection[2].Expr.(*sqlir.FuncCall)
	assert.Equal(t, "RANK", rank.Name)
	require.NotNil(t, rank.Over)
	assert.Equal(t, sqlir.Ascending, rank.Over.OrderBy[0].Direction)
	assert.Equal(t, "rnk", ranked.Query.Projection[2].Alias)
	assert.Equal(t, "l2.l_quantity > 0", sqlir.Fragment(ranked.Query.Where))

	// best: rank 1 rows, DISTINCT to collapse ties
	assert.True(t, best.Query.Distinct)
	assert.Equal(t, "ranked.rnk = 1", sqlir.Fragment(best.Query.Where))

	// outer: joined to best on the correlation column, conjunct
	// replaced by a plain comparison
	require.Len(t, q2.From, 2)
	join := q2.From[1]
	assert.Equal(t, "best", join.Table)
	require.NotNil(t, join.Join)
	assert.Equal(t, sqlir.JoinInner, join.Join.Type)
	assert.Equal(t, "best.l_partkey = l.l_partkey", sqlir.Fragment(join.Join.On))
	assert.Equal(t, "l.l_extendedprice = best.l_extendedprice", sqlir.Fragment(q2.Where))

	require.NoError(t, sqlir.Validate(q2))
}

func TestDecorrelate_MaxOrdersDescending(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, `SELECT l.l_orderkey FROM lineitem l
		WHERE l.l_extendedprice = (SELECT MAX(l2.l_extendedprice) FROM lineitem l2
			WHERE l2.l_partkey = l.l_partkey)`)

	q2, firings := Decorrelate{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	rank := q2.CTEs[0].Query.Projection[2].Expr.(*sqlir.FuncCall)
	assert.Equal(t, sqlir.Descending, rank.Over.OrderBy[0].Direction)
}

func TestDecorrelate_SubqueryOnLeftSide(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, `SELECT l.l_orderkey FROM lineitem l
		WHERE (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
			WHERE l2.l_partkey = l.l_partkey) = l.l_extendedprice`)

	res := Decorrelate{}.Matches(q, env)
	assert.True(t, res.Matched)
}

func TestDecorrelate_FreshCTENames(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, `WITH ranked AS (SELECT l_orderkey FROM lineitem)
		SELECT l.l_orderkey FROM lineitem l
		WHERE l.l_extendedprice = (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
			WHERE l2.l_partkey = l.l_partkey)`)

	q2, firings := Decorrelate{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	require.Len(t, q2.CTEs, 3)
	assert.Equal(t, "ranked2", q2.CTEs[1].Name)
	assert.Equal(t, "best", q2.CTEs[2].Name)
}

func TestDecorrelate_FailsClosedWithoutWindowSupport(t *testing.T) {
	limited := &dialect.Dialect{Name: "limited", SupportsCTE: true}
	env := &Env{Catalog: tpch(), Dialect: limited}
	q := parse(t, minPriceQuery)

	res := Decorrelate{}.Matches(q, env)
	assert.False(t, res.Matched)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0].Message, "window functions or CTEs")
}

func TestDecorrelate_ShapePreconditions(t *testing.T) {
	env := pgEnv(t)
	noMatch := []string{
		// uncorrelated scalar subquery
		`SELECT l.l_orderkey FROM lineitem l
			WHERE l.l_extendedprice = (SELECT MIN(l2.l_extendedprice) FROM lineitem l2)`,
		// aggregate other than MIN/MAX
		`SELECT l.l_orderkey FROM lineitem l
			WHERE l.l_extendedprice = (SELECT AVG(l2.l_extendedprice) FROM lineitem l2
				WHERE l2.l_partkey = l.l_partkey)`,
		// inequality against the subquery
		`SELECT l.l_orderkey FROM lineitem l
			WHERE l.l_extendedprice > (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
				WHERE l2.l_partkey = l.l_partkey)`,
	}
	for _, input := range noMatch {
		q := parse(t, input)
		res := Decorrelate{}.Matches(q, env)
		assert.False(t, res.Matched, input)
	}
}

func TestDecorrelate_DeclinesWithNote(t *testing.T) {
	env := pgEnv(t)
	cases := []struct {
		input string
		note  string
	}{
		{`SELECT l.l_orderkey FROM lineitem l, orders o
			WHERE l.l_extendedprice = (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
				WHERE l2.l_partkey = l.l_partkey AND l2.l_orderkey = o.o_orderkey)`,
			"more than one correlation equality"},
		{`SELECT l.l_orderkey FROM lineitem l, orders o
			WHERE l.l_extendedprice = (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
				WHERE l2.l_partkey = l.l_partkey AND l2.l_quantity > o.o_totalprice)`,
			"references outer scope"},
		{`SELECT l.l_orderkey FROM lineitem l
			WHERE l.l_extendedprice = (SELECT MIN(l2.l_partkey) FROM lineitem l2
				WHERE l2.l_partkey = l.l_partkey)`,
			"distinct names"},
		// an unqualified residual may resolve to either scope, so it
		// must not be moved into the CTE
		{`SELECT l.l_orderkey FROM lineitem l, orders o
			WHERE l.l_extendedprice = (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
				WHERE l2.l_partkey = l.l_partkey AND o_orderkey > 0)`,
			"references outer scope"},
	}
	for _, tc := range cases {
		q := parse(t, tc.input)
		res := Decorrelate{}.Matches(q, env)
		assert.False(t, res.Matched, tc.input)
		require.NotEmpty(t, res.Notes, tc.input)
		assert.Contains(t, res.Notes[len(res.Notes)-1].Message, tc.note, tc.input)
	}
}

func TestDecorrelate_OneSitePerInvocation(t *testing.T) {
	env := pgEnv(t)
	q := parse(t, `SELECT l.l_orderkey FROM lineitem l
		WHERE l.l_extendedprice = (SELECT MIN(l2.l_extendedprice) FROM lineitem l2
			WHERE l2.l_partkey = l.l_partkey)
		AND l.l_quantity = (SELECT MAX(l3.l_quantity) FROM lineitem l3
			WHERE l3.l_partkey = l.l_partkey)`)

	q2, firings := Decorrelate{}.Rewrite(q, env)
	require.Len(t, firings, 1)
	assert.Len(t, q2.CTEs, 2)

	// the second site is picked up by a later pass with fresh names
	res := Decorrelate{}.Matches(q2, env)
	assert.True(t, res.Matched)
	q3, firings2 := Decorrelate{}.Rewrite(q2, env)
	require.Len(t, firings2, 1)
	assert.Len(t, q3.CTEs, 4)
	assert.Equal(t, "ranked2", q3.CTEs[2].Name)
	assert.Equal(t, "best2", q3.CTEs[3].Name)
}
