package pointcut

import (
	"errors"
	"fmt"
)

var (
	ErrCircularReference = errors.New("pointcut: circular reference")
	ErrUnknownPointcut   = errors.New("pointcut: unknown pointcut")
	ErrDuplicatePointcut = errors.New("pointcut: duplicate pointcut")
	ErrUnknownFilter     = errors.New("pointcut: unknown filter")
	ErrDuplicateFilter   = errors.New("pointcut: duplicate filter")
)

// SyntaxError reports a malformed expression. Line and Column are 1-based
// positions within Source.
type SyntaxError struct {
	Source string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pointcut syntax error at %d:%d in %q: %s", e.Line, e.Column, e.Source, e.Msg)
}
