package parser

import (
	"fmt"

	"github.com/queryshift/queryshift/internal/sqltext/token"
)

// SyntaxError reports a parse failure with its source location.
type SyntaxError struct {
	Pos token.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}
