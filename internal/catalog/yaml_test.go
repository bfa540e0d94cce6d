package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryshift/queryshift/internal/sqlir"
)

const sampleYAML = `
tables:
  - name: orders
    columns:
      - name: o_orderkey
        type: integer
      - name: o_totalprice
        type: decimal(12,2)
    unique_keys:
      - [o_orderkey]
  - name: nation
    columns:
      - name: n_name
        type: char(25)
`

func TestParseYAML(t *testing.T) {
	c, err := ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)

	lt, ok := c.ColumnType("orders", "o_totalprice")
	require.True(t, ok)
	assert.Equal(t, sqlir.TypeDecimal, lt.Base)
	assert.Equal(t, 12, lt.Width)
	assert.Equal(t, 2, lt.Scale)

	assert.True(t, c.HasUniqueKeyWithin("orders", []string{"o_orderkey"}))
	assert.False(t, c.HasUniqueKeyWithin("nation", []string{"n_name"}))
}

func TestParseYAML_RejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte(`
tables:
  - name: orders
    colums:
      - name: o_orderkey
        type: integer
`))
	require.Error(t, err, "typo in field name must fail loudly")
}

func TestParseYAML_RejectsBadType(t *testing.T) {
	_, err := ParseYAML([]byte(`
tables:
  - name: orders
    columns:
      - name: o_payload
        type: jsonb
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "o_payload")
}

func TestParseYAML_RejectsEmptyKey(t *testing.T) {
	_, err := ParseYAML([]byte(`
tables:
  - name: orders
    columns:
      - name: o_orderkey
        type: integer
    unique_keys:
      - []
`))
	require.Error(t, err)
}

func TestParseYAML_RejectsEmptyName(t *testing.T) {
	_, err := ParseYAML([]byte(`
tables:
  - columns:
      - name: o_orderkey
        type: integer
`))
	require.Error(t, err)
}
