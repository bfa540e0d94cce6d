package harness

import (
	"fmt"
	"strings"

	"github.com/queryshift/queryshift/internal/catalog"
	"github.com/queryshift/queryshift/internal/dialect"
	"github.com/queryshift/queryshift/internal/emit"
	"github.com/queryshift/queryshift/internal/rewriter"
	"github.com/queryshift/queryshift/internal/rules"
	"github.com/queryshift/queryshift/internal/sqltext/parser"
)

// Result is the outcome of running a scenario: the emitted rewritten
// query plus the rewrite report.
type Result struct {
	Output string
	Report rewriter.Report
}

// Run parses the scenario's query, rewrites it to fixpoint, and emits
// it for the scenario's dialect.
func Run(s *Scenario) (*Result, error) {
	d := dialect.Default()
	if s.Dialect != "" {
		var err error
		d, err = dialect.Lookup(s.Dialect)
		if err != nil {
			return nil, err
		}
	}

	cat := catalog.Empty()
	if s.Catalog != "" {
		var err error
		cat, err = LoadCatalog(s.Catalog)
		if err != nil {
			return nil, err
		}
	}

	q, err := parser.Parse(s.Query)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	res, err := rewriter.Rewrite(q, &rules.Env{Catalog: cat, Dialect: d}, rewriter.Options{
		MaxPasses: s.MaxPasses,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	out, err := emit.Emit(res.Query, d)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return &Result{Output: out, Report: res.Report}, nil
}

// LoadCatalog loads schema facts from a YAML or CUE file, chosen by
// extension.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	switch {
	case strings.HasSuffix(path, ".cue"):
		return catalog.LoadCUE(path)
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return catalog.LoadYAML(path)
	default:
		return nil, fmt.Errorf("unrecognized catalog format: %s", path)
	}
}
