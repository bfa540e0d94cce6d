package sqlir

import (
	"errors"
	"fmt"
)

// MalformedQueryError reports a query that violates IR invariants.
// Construction of a well-formed Query fails with this error; it is
// fatal for the whole rewrite request.
type MalformedQueryError struct {
	// Code identifies the violated invariant.
	Code MalformedCode

	// Message is a human-readable description.
	Message string

	// Column names the offending column reference, when relevant.
	Column string

	// Relation names the scope the reference failed to resolve in.
	Relation string
}

// MalformedCode categorizes IR invariant violations.
type MalformedCode string

const (
	// ErrCodeUnresolvedColumn indicates a column reference that does
	// not resolve to any relation in scope.
	ErrCodeUnresolvedColumn MalformedCode = "UNRESOLVED_COLUMN"

	// ErrCodeAmbiguousColumn indicates an unqualified column name
	// present in more than one relation in scope.
	ErrCodeAmbiguousColumn MalformedCode = "AMBIGUOUS_COLUMN"

	// ErrCodeGroupingMismatch indicates a non-aggregated projected
	// column missing from GROUP BY while aggregates are in use.
	ErrCodeGroupingMismatch MalformedCode = "GROUPING_MISMATCH"

	// ErrCodeEmptyQuery indicates a query with no projection.
	ErrCodeEmptyQuery MalformedCode = "EMPTY_QUERY"

	// ErrCodeDuplicateCTE indicates two CTEs sharing a name in the
	// same statement scope.
	ErrCodeDuplicateCTE MalformedCode = "DUPLICATE_CTE"
)

// Error implements the error interface.
func (e *MalformedQueryError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s (column=%s)", e.Code, e.Message, e.Column)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMalformed reports whether err wraps a MalformedQueryError,
// returning the typed error when it does.
func IsMalformed(err error) (*MalformedQueryError, bool) {
	var me *MalformedQueryError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
