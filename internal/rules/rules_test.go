package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queryshift/queryshift/internal/catalog"
	"github.com/queryshift/queryshift/internal/dialect"
	"github.com/queryshift/queryshift/internal/sqlir"
	"github.com/queryshift/queryshift/internal/sqltext/parser"
)

// tpch is the schema fixture shared by the rule tests: a slice of the
// TPC-H tables with their primary keys and declared types.
func tpch() *catalog.Catalog {
	typ := func(base sqlir.BaseType, dims ...int) sqlir.LogicalType {
		lt := sqlir.LogicalType{Base: base}
		if len(dims) > 0 {
			lt.Width = dims[0]
		}
		if len(dims) > 1 {
			lt.Scale = dims[1]
		}
		return lt
	}
	return catalog.New(
		&catalog.Table{
			Name: "nation",
			Columns: []catalog.Column{
				{Name: "n_nationkey", Type: typ(sqlir.TypeInteger)},
				{Name: "n_name", Type: typ(sqlir.TypeChar, 25)},
				{Name: "n_regionkey", Type: typ(sqlir.TypeInteger)},
			},
			UniqueKeys: [][]string{{"n_nationkey"}},
		},
		&catalog.Table{
			Name: "region",
			Columns: []catalog.Column{
				{Name: "r_regionkey", Type: typ(sqlir.TypeInteger)},
				{Name: "r_name", Type: typ(sqlir.TypeChar, 25)},
			},
			UniqueKeys: [][]string{{"r_regionkey"}},
		},
		&catalog.Table{
			Name: "customer",
			Columns: []catalog.Column{
				{Name: "c_custkey", Type: typ(sqlir.TypeInteger)},
				{Name: "c_name", Type: typ(sqlir.TypeVarChar, 25)},
				{Name: "c_address", Type: typ(sqlir.TypeVarChar, 40)},
				{Name: "c_phone", Type: typ(sqlir.TypeChar, 15)},
				{Name: "c_nationkey", Type: typ(sqlir.TypeInteger)},
				{Name: "c_acctbal", Type: typ(sqlir.TypeDecimal, 12, 2)},
			},
			UniqueKeys: [][]string{{"c_custkey"}},
		},
		&catalog.Table{
			Name: "orders",
			Columns: []catalog.Column{
				{Name: "o_orderkey", Type: typ(sqlir.TypeInteger)},
				{Name: "o_custkey", Type: typ(sqlir.TypeInteger)},
				{Name: "o_totalprice", Type: typ(sqlir.TypeDecimal, 12, 2)},
			},
			UniqueKeys: [][]string{{"o_orderkey"}},
		},
		&catalog.Table{
			Name: "lineitem",
			Columns: []catalog.Column{
				{Name: "l_orderkey", Type: typ(sqlir.TypeInteger)},
				{Name: "l_partkey", Type: typ(sqlir.TypeInteger)},
				{Name: "l_linenumber", Type: typ(sqlir.TypeInteger)},
				{Name: "l_quantity", Type: typ(sqlir.TypeDecimal, 12, 2)},
				{Name: "l_extendedprice", Type: typ(sqlir.TypeDecimal, 12, 2)},
			},
			UniqueKeys: [][]string{{"l_orderkey", "l_linenumber"}},
		},
		&catalog.Table{
			Name: "part",
			Columns: []catalog.Column{
				{Name: "p_partkey", Type: typ(sqlir.TypeInteger)},
				{Name: "p_size", Type: typ(sqlir.TypeSmallInt)},
				{Name: "p_retailprice", Type: typ(sqlir.TypeDecimal, 12, 2)},
			},
			UniqueKeys: [][]string{{"p_partkey"}},
		},
	)
}

func pgEnv(t *testing.T) *Env {
	t.Helper()
	d, err := dialect.Lookup("postgres")
	require.NoError(t, err)
	return &Env{Catalog: tpch(), Dialect: d}
}

func commercialEnv(t *testing.T) *Env {
	t.Helper()
	d, err := dialect.Lookup("commercial")
	require.NoError(t, err)
	return &Env{Catalog: tpch(), Dialect: d}
}

func bareEnv(t *testing.T) *Env {
	t.Helper()
	d, err := dialect.Lookup("postgres")
	require.NoError(t, err)
	return &Env{Catalog: catalog.Empty(), Dialect: d}
}

func parse(t *testing.T, input string) *sqlir.Query {
	t.Helper()
	q, err := parser.Parse(input)
	require.NoError(t, err)
	require.NoError(t, sqlir.Validate(q))
	return q
}
