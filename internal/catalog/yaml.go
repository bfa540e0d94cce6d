package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/queryshift/queryshift/internal/sqlir"
)

// yamlCatalog is the on-disk shape of a catalog file.
type yamlCatalog struct {
	Tables []yamlTable `yaml:"tables"`
}

type yamlTable struct {
	Name string `yaml:"name"`

	// Columns map column names to type declarations like "integer",
	// "char(25)", or "decimal(12,2)".
	Columns []yamlColumn `yaml:"columns"`

	// UniqueKeys lists unique column sets, e.g. [[o_orderkey]].
	UniqueKeys [][]string `yaml:"unique_keys,omitempty"`
}

type yamlColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// LoadYAML reads a catalog description from a YAML file.
func LoadYAML(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML parses catalog YAML. Unknown fields are rejected so typos
// in catalog files fail loudly instead of silently dropping facts.
func ParseYAML(data []byte) (*Catalog, error) {
	var doc yamlCatalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}

	tables := make([]*Table, 0, len(doc.Tables))
	for _, yt := range doc.Tables {
		if yt.Name == "" {
			return nil, fmt.Errorf("catalog table with empty name")
		}
		t := &Table{Name: yt.Name, UniqueKeys: yt.UniqueKeys}
		for _, yc := range yt.Columns {
			lt, err := ParseTypeDecl(yc.Type)
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", yt.Name, yc.Name, err)
			}
			t.Columns = append(t.Columns, Column{Name: yc.Name, Type: lt})
		}
		for i, key := range yt.UniqueKeys {
			if len(key) == 0 {
				return nil, fmt.Errorf("table %s: unique_keys[%d] is empty", yt.Name, i)
			}
		}
		tables = append(tables, t)
	}
	return New(tables...), nil
}

// declaredBases maps type-declaration names to logical base types.
var declaredBases = map[string]sqlir.BaseType{
	"smallint":         sqlir.TypeSmallInt,
	"int":              sqlir.TypeInteger,
	"integer":          sqlir.TypeInteger,
	"bigint":           sqlir.TypeBigInt,
	"float":            sqlir.TypeFloat,
	"real":             sqlir.TypeFloat,
	"double":           sqlir.TypeFloat,
	"double precision": sqlir.TypeFloat,
	"decimal":          sqlir.TypeDecimal,
	"numeric":          sqlir.TypeDecimal,
	"char":             sqlir.TypeChar,
	"character":        sqlir.TypeChar,
	"varchar":          sqlir.TypeVarChar,
	"text":             sqlir.TypeText,
	"date":             sqlir.TypeDate,
	"boolean":          sqlir.TypeBool,
}

// ParseTypeDecl parses a catalog type declaration such as "char(25)"
// or "decimal(12,2)" into a logical type.
func ParseTypeDecl(decl string) (sqlir.LogicalType, error) {
	s := strings.TrimSpace(strings.ToLower(decl))
	if s == "" {
		return sqlir.LogicalType{}, fmt.Errorf("empty type declaration")
	}

	name := s
	var args string
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return sqlir.LogicalType{}, fmt.Errorf("malformed type declaration %q", decl)
		}
		name = strings.TrimSpace(s[:open])
		args = s[open+1 : len(s)-1]
	}

	base, ok := declaredBases[name]
	if !ok {
		return sqlir.LogicalType{}, fmt.Errorf("unknown type %q", decl)
	}
	lt := sqlir.LogicalType{Base: base}
	if args == "" {
		return lt, nil
	}

	parts := strings.Split(args, ",")
	if len(parts) > 2 {
		return sqlir.LogicalType{}, fmt.Errorf("malformed type declaration %q", decl)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return sqlir.LogicalType{}, fmt.Errorf("malformed width in %q", decl)
	}
	lt.Width = width
	if len(parts) == 2 {
		scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return sqlir.LogicalType{}, fmt.Errorf("malformed scale in %q", decl)
		}
		lt.Scale = scale
	}
	return lt, nil
}
