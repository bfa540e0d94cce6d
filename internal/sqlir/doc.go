// Package sqlir defines the engine-agnostic intermediate
// representation of a SELECT statement used by the rewriting engine.
//
// The IR is a set of sealed tagged-variant trees: Query at the root,
// Predicate for filter conditions, Expr for scalar expressions. Only
// types in this package implement the Predicate and Expr interfaces;
// the marker method pattern keeps type switches in the rules, the
// rewriter, and the emitter exhaustive.
//
// IR nodes are immutable value trees constructed once at parse time.
// A rewrite never mutates a node in place: it builds a new subtree
// for the matched region and shares everything else structurally.
// Rules stay composable and the pre-rewrite tree remains available
// for report diffing.
//
// Well-formedness is checked by Validate; violations surface as
// *MalformedQueryError. Structural equivalence (Equal) compares
// canonical renderings that ignore presentation-only attributes such
// as projection aliases and conjunct order.
package sqlir
