package aspect

import (
	"errors"
	"fmt"
)

var (
	ErrNotAnAspect      = errors.New("aspect: class is not annotated @Aspect")
	ErrDuplicateAspect  = errors.New("aspect: duplicate aspect")
	ErrUnknownInterface = errors.New("aspect: unknown introduced interface")
)

// DeclarationError is a fatal error in an aspect's declaration, such as a
// malformed pointcut expression.
type DeclarationError struct {
	Aspect string
	Advice string
	Err    error
}

func (e *DeclarationError) Error() string {
	if e.Advice == "" {
		return fmt.Sprintf("aspect %s: %v", e.Aspect, e.Err)
	}
	return fmt.Sprintf("aspect %s, advice %s: %v", e.Aspect, e.Advice, e.Err)
}

func (e *DeclarationError) Unwrap() error { return e.Err }
