// Package rewriter drives the rule set over a query tree to fixpoint.
// Rules see one Query node at a time; the rewriter owns the bottom-up
// traversal, the pass loop, and the rewrite report.
package rewriter

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/queryshift/queryshift/internal/rules"
	"github.com/queryshift/queryshift/internal/sqlir"
)

// DefaultMaxPasses bounds the fixpoint loop.
const DefaultMaxPasses = 10

// NonConvergenceWarning is reported when the pass cap is reached
// before a pass with zero firings. The partially rewritten tree is
// still valid and returned.
const NonConvergenceWarning = "rewriting did not converge within the pass limit"

// Options configures a rewrite run. Zero values select the defaults.
type Options struct {
	MaxPasses int
	Rules     []rules.Rule
}

// Report records what happened during a rewrite run.
type Report struct {
	ID       string         `json:"id" yaml:"id"`
	Passes   int            `json:"passes" yaml:"passes"`
	Firings  []rules.Firing `json:"firings" yaml:"firings"`
	Notes    []rules.Note   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Warnings []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Result pairs the rewritten tree with its report.
type Result struct {
	Query  *sqlir.Query
	Report Report
}

// Rewrite validates q and applies the rule set to fixpoint. The input
// tree is never mutated.
func Rewrite(q *sqlir.Query, env *rules.Env, opts Options) (*Result, error) {
	if err := sqlir.Validate(q); err != nil {
		return nil, err
	}
	maxPasses := opts.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	ruleSet := opts.Rules
	if ruleSet == nil {
		ruleSet = rules.Default()
	}

	result := &Result{
		Query:  q,
		Report: Report{ID: uuid.NewString()},
	}
	noteSeen := make(map[string]bool)

	for pass := 1; pass <= maxPasses; pass++ {
		result.Report.Passes = pass
		next, firings, notes := rewriteTree(result.Query, env, ruleSet)
		for _, n := range notes {
			key := n.RuleID + "\x00" + n.Message
			if !noteSeen[key] {
				noteSeen[key] = true
				result.Report.Notes = append(result.Report.Notes, n)
			}
		}
		if len(firings) == 0 {
			return result, nil
		}
		result.Report.Firings = append(result.Report.Firings, firings...)
		result.Query = next
	}

	result.Report.Warnings = append(result.Report.Warnings,
		fmt.Sprintf("%s (%d passes)", NonConvergenceWarning, maxPasses))
	return result, nil
}

// rewriteTree runs one bottom-up pass: children first, so a rule at a
// parent sees already-simplified subtrees.
func rewriteTree(q *sqlir.Query, env *rules.Env, ruleSet []rules.Rule) (*sqlir.Query, []rules.Firing, []rules.Note) {
	var firings []rules.Firing
	var notes []rules.Note

	cur, _ := rewriteChildren(q, func(sub *sqlir.Query) *sqlir.Query {
		next, fs, ns := rewriteTree(sub, env, ruleSet)
		firings = append(firings, fs...)
		notes = append(notes, ns...)
		return next
	})

	for _, rule := range ruleSet {
		m := rule.Matches(cur, env)
		notes = append(notes, m.Notes...)
		if !m.Matched {
			continue
		}
		next, fs := rule.Rewrite(cur, env)
		firings = append(firings, fs...)
		cur = next
	}
	return cur, firings, notes
}

// rewriteChildren applies f to every directly nested Query and
// rebuilds q with structural sharing. Returns q unchanged (and false)
// when no child changed.
func rewriteChildren(q *sqlir.Query, f func(*sqlir.Query) *sqlir.Query) (*sqlir.Query, bool) {
	q2 := q.Shallow()
	changed := false

	for i, cte := range q2.CTEs {
		if next := f(cte.Query); next != cte.Query {
			q2.CTEs[i].Query = next
			changed = true
		}
	}
	for i, rel := range q2.From {
		if rel.Subquery != nil {
			if next := f(rel.Subquery); next != rel.Subquery {
				q2.From[i].Subquery = next
				changed = true
			}
		}
		if rel.Join != nil && rel.Join.On != nil {
			if on, hit := mapPredQueries(rel.Join.On, f); hit {
				edge := *rel.Join
				edge.On = on
				q2.From[i].Join = &edge
				changed = true
			}
		}
	}
	for i, item := range q2.Projection {
		if x, hit := mapExprQueries(item.Expr, f); hit {
			q2.Projection[i].Expr = x
			changed = true
		}
	}
	if where, hit := mapPredQueries(q2.Where, f); hit {
		q2.Where = where
		changed = true
	}
	if having, hit := mapPredQueries(q2.Having, f); hit {
		q2.Having = having
		changed = true
	}
	for i, e := range q2.GroupBy {
		if x, hit := mapExprQueries(e, f); hit {
			q2.GroupBy[i] = x
			changed = true
		}
	}
	for i, item := range q2.OrderBy {
		if x, hit := mapExprQueries(item.Expr, f); hit {
			q2.OrderBy[i].Expr = x
			changed = true
		}
	}

	if !changed {
		return q, false
	}
	return q2, true
}

func mapPredQueries(p sqlir.Predicate, f func(*sqlir.Query) *sqlir.Query) (sqlir.Predicate, bool) {
	switch v := p.(type) {
	case *sqlir.And:
		preds, hit := mapPredListQueries(v.Preds, f)
		if hit {
			return &sqlir.And{Preds: preds}, true
		}
	case *sqlir.Or:
		preds, hit := mapPredListQueries(v.Preds, f)
		if hit {
			return &sqlir.Or{Preds: preds}, true
		}
	case *sqlir.Not:
		if inner, hit := mapPredQueries(v.Pred, f); hit {
			return &sqlir.Not{Pred: inner}, true
		}
	case *sqlir.Comparison:
		left, hitL := mapExprQueries(v.Left, f)
		right, hitR := mapExprQueries(v.Right, f)
		if hitL || hitR {
			return &sqlir.Comparison{Left: left, Op: v.Op, Right: right}, true
		}
	case *sqlir.Quantified:
		left, hitL := mapExprQueries(v.Left, f)
		sub := f(v.Subquery)
		if hitL || sub != v.Subquery {
			return &sqlir.Quantified{Left: left, Op: v.Op, Quantifier: v.Quantifier, Subquery: sub}, true
		}
	case *sqlir.InSubquery:
		x, hitX := mapExprQueries(v.Expr, f)
		sub := f(v.Subquery)
		if hitX || sub != v.Subquery {
			return &sqlir.InSubquery{Expr: x, Not: v.Not, Subquery: sub}, true
		}
	case *sqlir.Exists:
		if sub := f(v.Subquery); sub != v.Subquery {
			return &sqlir.Exists{Not: v.Not, Subquery: sub}, true
		}
	case *sqlir.InList:
		if x, hit := mapExprQueries(v.Expr, f); hit {
			return &sqlir.InList{Expr: x, Not: v.Not, Values: v.Values}, true
		}
	case *sqlir.Like:
		x, hitX := mapExprQueries(v.Expr, f)
		pat, hitP := mapExprQueries(v.Pattern, f)
		if hitX || hitP {
			return &sqlir.Like{Expr: x, Not: v.Not, Pattern: pat}, true
		}
	case *sqlir.Between:
		x, hitX := mapExprQueries(v.Expr, f)
		lo, hitL := mapExprQueries(v.Lower, f)
		hi, hitH := mapExprQueries(v.Upper, f)
		if hitX || hitL || hitH {
			return &sqlir.Between{Expr: x, Not: v.Not, Lower: lo, Upper: hi}, true
		}
	case *sqlir.IsNull:
		if x, hit := mapExprQueries(v.Expr, f); hit {
			return &sqlir.IsNull{Expr: x, Not: v.Not}, true
		}
	}
	return p, false
}

func mapPredListQueries(preds []sqlir.Predicate, f func(*sqlir.Query) *sqlir.Query) ([]sqlir.Predicate, bool) {
	changed := false
	out := preds
	for i, p := range preds {
		np, hit := mapPredQueries(p, f)
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

func mapExprQueries(x sqlir.Expr, f func(*sqlir.Query) *sqlir.Query) (sqlir.Expr, bool) {
	switch v := x.(type) {
	case *sqlir.ScalarSubquery:
		if sub := f(v.Query); sub != v.Query {
			return &sqlir.ScalarSubquery{Query: sub}, true
		}
	case *sqlir.FuncCall:
		changed := false
		args := v.Args
		for i, arg := range v.Args {
			na, hit := mapExprQueries(arg, f)
			if hit && !changed {
				args = append([]sqlir.Expr(nil), v.Args...)
				changed = true
			}
			if changed {
				args[i] = na
			}
		}
		if changed {
			return &sqlir.FuncCall{Name: v.Name, Distinct: v.Distinct, Args: args, Over: v.Over}, true
		}
	case *sqlir.Arithmetic:
		left, hitL := mapExprQueries(v.Left, f)
		right, hitR := mapExprQueries(v.Right, f)
		if hitL || hitR {
			return &sqlir.Arithmetic{Left: left, Op: v.Op, Right: right}, true
		}
	case *sqlir.Cast:
		if inner, hit := mapExprQueries(v.Expr, f); hit {
			return &sqlir.Cast{Expr: inner, Type: v.Type}, true
		}
	}
	return x, false
}
