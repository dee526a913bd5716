package aop

import "errors"

var (
	ErrAspectUnavailable = errors.New("aspect instance unavailable")
	ErrAdviceMethod      = errors.New("advice method missing or mistyped")
	ErrNotIntercepted    = errors.New("class is not intercepted")
)
