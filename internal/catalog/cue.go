package catalog

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileCUE parses a CUE value into a Catalog. Uses the CUE SDK's Go
// API directly (not CLI subprocess).
//
// The CUE value is a struct of tables keyed by name:
//
//	tables: orders: {
//		columns: o_orderkey: "integer"
//		columns: o_comment:  "varchar(79)"
//		unique_keys: [["o_orderkey"]]
//	}
func CompileCUE(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &CompileError{
			Field:   "tables",
			Message: "tables is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var tables []*Table
	for iter.Next() {
		t, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, &CompileError{
			Field:   "tables",
			Message: "at least one table is required",
			Pos:     tablesVal.Pos(),
		}
	}
	return New(tables...), nil
}

// LoadCUE compiles a catalog from a CUE source file.
func LoadCUE(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return CompileCUE(v)
}

func compileTable(name string, v cue.Value) (*Table, error) {
	t := &Table{Name: name}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("tables.%s.columns", name),
			Message: "columns is required",
			Pos:     v.Pos(),
		}
	}
	colIter, err := colsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for colIter.Next() {
		decl, err := colIter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		lt, err := ParseTypeDecl(decl)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("tables.%s.columns.%s", name, colIter.Label()),
				Message: err.Error(),
				Pos:     colIter.Value().Pos(),
			}
		}
		t.Columns = append(t.Columns, Column{Name: colIter.Label(), Type: lt})
	}

	keysVal := v.LookupPath(cue.ParsePath("unique_keys"))
	if keysVal.Exists() {
		keyIter, err := keysVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for keyIter.Next() {
			colIter, err := keyIter.Value().List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			var key []string
			for colIter.Next() {
				col, err := colIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				key = append(key, col)
			}
			if len(key) == 0 {
				return nil, &CompileError{
					Field:   fmt.Sprintf("tables.%s.unique_keys", name),
					Message: "unique key must name at least one column",
					Pos:     keyIter.Value().Pos(),
				}
			}
			t.UniqueKeys = append(t.UniqueKeys, key)
		}
	}

	return t, nil
}

// CompileError represents a catalog compilation error with source
// position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
