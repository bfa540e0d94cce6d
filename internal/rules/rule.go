// Package rules implements the heuristic rewrites. Each rule is a
// matches/rewrite pair over a single Query node; the rewriter walks
// the tree and offers every node to every rule. Rules are independent
// and match disjoint syntactic shapes, so they commute.
package rules

import (
	"fmt"

	"github.com/queryshift/queryshift/internal/catalog"
	"github.com/queryshift/queryshift/internal/dialect"
	"github.com/queryshift/queryshift/internal/sqlir"
)

// Env carries the facts a rule may consult: the schema catalog and the
// target dialect. Rules whose safety precondition needs a catalog fact
// the catalog cannot supply decline and record a note.
type Env struct {
	Catalog *catalog.Catalog
	Dialect *dialect.Dialect
}

// Rule is one heuristic transformation.
type Rule interface {
	// ID is the stable rule identifier used in reports.
	ID() string

	// Description is a one-line summary of the transformation.
	Description() string

	// Matches reports whether the rule applies to q. Notes record
	// declined near-matches so the report can show a rule was
	// considered but not applied.
	Matches(q *sqlir.Query, env *Env) MatchResult

	// Rewrite produces the transformed query and one Firing per
	// rewritten site. Called only when Matches reported true; must not
	// mutate q.
	Rewrite(q *sqlir.Query, env *Env) (*sqlir.Query, []Firing)
}

// MatchResult is the outcome of a match probe.
type MatchResult struct {
	Matched bool
	Notes   []Note
}

// Note records a rule that was considered but declined, and why.
type Note struct {
	RuleID  string `json:"rule" yaml:"rule"`
	Message string `json:"message" yaml:"message"`
}

// Firing records one applied rewrite for the report.
type Firing struct {
	RuleID      string `json:"rule" yaml:"rule"`
	Description string `json:"description" yaml:"description"`
	Before      string `json:"before" yaml:"before"`
	After       string `json:"after" yaml:"after"`
}

// Default returns the rule set in priority order. Predicate-shape
// rules run before the structural decorrelation rule so it sees
// already-simplified predicates.
func Default() []Rule {
	return []Rule{
		FuncShift{},
		QuantAll{},
		QuantAny{},
		InListExpand{},
		PropagateFilter{},
		DropGroupBy{},
		DropDistinct{},
		Decorrelate{},
	}
}

func firing(r Rule, before, after any) Firing {
	return Firing{
		RuleID:      r.ID(),
		Description: r.Description(),
		Before:      sqlir.Fragment(before),
		After:       sqlir.Fragment(after),
	}
}

func declined(r Rule, format string, args ...any) Note {
	return Note{RuleID: r.ID(), Message: fmt.Sprintf(format, args...)}
}

// mapPredicate applies f bottom-up to every predicate node in p,
// rebuilding enclosing nodes with structural sharing. Returns the new
// tree and whether anything changed. f receives each node after its
// children were mapped.
func mapPredicate(p sqlir.Predicate, f func(sqlir.Predicate) (sqlir.Predicate, bool)) (sqlir.Predicate, bool) {
	if p == nil {
		return nil, false
	}
	mapped := p
	changed := false
	switch v := p.(type) {
	case *sqlir.And:
		preds, sub := mapPredicateList(v.Preds, f)
		if sub {
			mapped, changed = &sqlir.And{Preds: preds}, true
		}
	case *sqlir.Or:
		preds, sub := mapPredicateList(v.Preds, f)
		if sub {
			mapped, changed = &sqlir.Or{Preds: preds}, true
		}
	case *sqlir.Not:
		inner, sub := mapPredicate(v.Pred, f)
		if sub {
			mapped, changed = &sqlir.Not{Pred: inner}, true
		}
	}
	out, hit := f(mapped)
	return out, changed || hit
}

func mapPredicateList(preds []sqlir.Predicate, f func(sqlir.Predicate) (sqlir.Predicate, bool)) ([]sqlir.Predicate, bool) {
	changed := false
	out := preds
	for i, p := range preds {
		np, hit := mapPredicate(p, f)
		if hit && !changed {
			out = append([]sqlir.Predicate(nil), preds...)
			changed = true
		}
		if changed {
			out[i] = np
		}
	}
	return out, changed
}

// resolveColumn maps a column reference to the base table it belongs
// to, using FROM bindings. Unqualified references resolve only when a
// single base relation is in scope. Subquery relations resolve to
// nothing: their output columns carry no catalog facts.
func resolveColumn(q *sqlir.Query, col *sqlir.Column) (string, bool) {
	if col.Table != "" {
		want := sqlir.NormalizeIdent(col.Table)
		for _, rel := range q.From {
			if sqlir.NormalizeIdent(rel.Binding()) == want {
				if rel.Subquery != nil {
					return "", false
				}
				return rel.Table, true
			}
		}
		return "", false
	}
	if len(q.From) == 1 && q.From[0].Subquery == nil {
		return q.From[0].Table, true
	}
	return "", false
}

// freshName returns base, or base with a numeric suffix, such that the
// result collides with no CTE name or FROM binding in q.
func freshName(q *sqlir.Query, base string) string {
	taken := make(map[string]bool)
	for _, cte := range q.CTEs {
		taken[sqlir.NormalizeIdent(cte.Name)] = true
	}
	for _, rel := range q.From {
		taken[sqlir.NormalizeIdent(rel.Binding())] = true
	}
	name := base
	for i := 2; taken[sqlir.NormalizeIdent(name)]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	return name
}
