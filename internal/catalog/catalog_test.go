package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryshift/queryshift/internal/sqlir"
)

func tpchNation() *Table {
	return &Table{
		Name: "nation",
		Columns: []Column{
			{Name: "n_nationkey", Type: sqlir.LogicalType{Base: sqlir.TypeInteger}},
			{Name: "n_name", Type: sqlir.LogicalType{Base: sqlir.TypeChar, Width: 25}},
			{Name: "n_regionkey", Type: sqlir.LogicalType{Base: sqlir.TypeInteger}},
		},
		UniqueKeys: [][]string{{"n_nationkey"}},
	}
}

func TestCatalog_TableLookupIsCaseInsensitive(t *testing.T) {
	c := New(tpchNation())

	tab, ok := c.Table("NATION")
	require.True(t, ok)
	assert.Equal(t, "nation", tab.Name)

	_, ok = c.Table("region")
	assert.False(t, ok)
}

func TestCatalog_ColumnType(t *testing.T) {
	c := New(tpchNation())

	lt, ok := c.ColumnType("nation", "N_NAME")
	require.True(t, ok)
	assert.Equal(t, sqlir.TypeChar, lt.Base)
	assert.Equal(t, 25, lt.Width)

	_, ok = c.ColumnType("nation", "missing")
	assert.False(t, ok)
	_, ok = c.ColumnType("missing", "n_name")
	assert.False(t, ok)
}

func TestCatalog_HasUniqueKeyWithin(t *testing.T) {
	c := New(tpchNation())

	assert.True(t, c.HasUniqueKeyWithin("nation", []string{"n_nationkey", "n_name"}))
	assert.True(t, c.HasUniqueKeyWithin("nation", []string{"N_NATIONKEY"}))
	assert.False(t, c.HasUniqueKeyWithin("nation", []string{"n_name"}))
	assert.False(t, c.HasUniqueKeyWithin("region", []string{"r_regionkey"}))
}

func TestCatalog_Empty(t *testing.T) {
	c := Empty()
	_, ok := c.Table("nation")
	assert.False(t, ok)
	assert.Empty(t, c.Names())
}

func TestParseTypeDecl(t *testing.T) {
	cases := []struct {
		decl string
		want sqlir.LogicalType
	}{
		{"integer", sqlir.LogicalType{Base: sqlir.TypeInteger}},
		{"INT", sqlir.LogicalType{Base: sqlir.TypeInteger}},
		{"char(25)", sqlir.LogicalType{Base: sqlir.TypeChar, Width: 25}},
		{"decimal(12,2)", sqlir.LogicalType{Base: sqlir.TypeDecimal, Width: 12, Scale: 2}},
		{"double precision", sqlir.LogicalType{Base: sqlir.TypeFloat}},
		{" varchar(40) ", sqlir.LogicalType{Base: sqlir.TypeVarChar, Width: 40}},
	}
	for _, tc := range cases {
		got, err := ParseTypeDecl(tc.decl)
		require.NoError(t, err, tc.decl)
		assert.Equal(t, tc.want, got, tc.decl)
	}
}

func TestParseTypeDecl_Errors(t *testing.T) {
	for _, decl := range []string{"", "jsonb", "char(25", "decimal(12,2,9)", "char(x)"} {
		_, err := ParseTypeDecl(decl)
		assert.Error(t, err, decl)
	}
}
