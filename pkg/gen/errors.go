package gen

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownAspectClass = errors.New("aspect class is not indexed")
	ErrMissingAdvice      = errors.New("advice method does not exist")
	ErrAdviceSignature    = errors.New("advice method has the wrong signature")
	ErrUnknownMethod      = errors.New("intercepted method is not indexed")
	ErrNoPackageDir       = errors.New("no directory known for package")
	ErrUnexportedClass    = errors.New("unexported class cannot be decorated from another package")
)

// AdviceMethodError reports an advice that cannot be bound to its aspect
// method. It is fatal at compile time.
type AdviceMethodError struct {
	Aspect   string
	Advice   string
	Pointcut string
	Err      error
}

func (e *AdviceMethodError) Error() string {
	return fmt.Sprintf("advice %s->%s(%q): %v", e.Aspect, e.Advice, e.Pointcut, e.Err)
}

func (e *AdviceMethodError) Unwrap() error { return e.Err }
