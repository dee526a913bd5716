package object

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownObject        = errors.New("object: unknown object")
	ErrCircularDependency   = errors.New("object: circular dependency")
	ErrUnresolvableArgument = errors.New("object: unresolvable argument")
	ErrInvalidConfiguration = errors.New("object: invalid configuration")
	ErrTypeMismatch         = errors.New("object: type mismatch")
)

const pathSep = " -> "

func cycleError(path []string, last string) error {
	return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(append(append([]string{}, path...), last), pathSep))
}

// ConstructionError wraps an error returned by a constructor or an
// initialization method.
type ConstructionError struct {
	Object string
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("object %s: %v", e.Object, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }
