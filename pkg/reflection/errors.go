package reflection

import "errors"

var (
	ErrNotSupported       = errors.New("reflection: only named struct and interface types can be registered")
	ErrDuplicateClass     = errors.New("reflection: class registered with two different types")
	ErrInvalidConstructor = errors.New("reflection: invalid constructor")
	ErrUnknownMethod      = errors.New("reflection: annotated method does not exist")
)
