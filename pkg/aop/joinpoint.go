// Package aop is the runtime half of the weaver: join points, advice chains,
// the method and constructor interceptors and the proxy instances generated
// decorators delegate to.
package aop

import (
	"fmt"
)

var (
	_ JoinPoint           = (*joinPoint)(nil)
	_ ProceedingJoinPoint = (*proceedingJoinPoint)(nil)
)

type (
	// JoinPoint is a method invocation seen by advice. Parameter and result
	// positions are 1-based. Results include a trailing error, if the method
	// returns one.
	JoinPoint interface {
		// Name is "Class.Method"
		Name() string
		ClassName() string
		FuncName() string
		// Proxy is the intercepted instance as callers see it, bound to this
		// invocation: calling the same method through it skips advice. It is
		// nil before a constructor has run.
		Proxy() any
		Target() any
		Params() []any
		ParamTo(i int) any
		SetParam(i int, v any)
		Results() []any
		ResultTo(i int) any
		SetResult(i int, v any)
		// Err is the error the method returned or an advice set
		Err() error
		// SetErr replaces the returned error; SetErr(nil) swallows it
		SetErr(err error)
	}

	// ProceedingJoinPoint is handed to Around advice.
	ProceedingJoinPoint interface {
		JoinPoint
		// Proceed runs the rest of the chain, optionally with new arguments,
		// and returns its results. It may be called more than once.
		Proceed(args ...any) []any
	}
)

type joinPoint struct {
	class        string
	method       string
	proxy        any
	target       any
	params       []any
	results      []any
	returnsError bool
}

func (j *joinPoint) Name() string      { return j.class + "." + j.method }
func (j *joinPoint) ClassName() string { return j.class }
func (j *joinPoint) FuncName() string  { return j.method }
func (j *joinPoint) Proxy() any        { return j.proxy }
func (j *joinPoint) Target() any       { return j.target }

func (j *joinPoint) Params() []any {
	return append([]any{}, j.params...)
}

func (j *joinPoint) ParamTo(i int) any {
	if i < 1 || i > len(j.params) {
		return nil
	}
	return j.params[i-1]
}

func (j *joinPoint) SetParam(i int, v any) {
	if i < 1 || i > len(j.params) {
		panic(fmt.Sprintf("aop: %s has no parameter %d", j.Name(), i))
	}
	j.params[i-1] = v
}

func (j *joinPoint) Results() []any {
	return append([]any{}, j.results...)
}

func (j *joinPoint) ResultTo(i int) any {
	if i < 1 || i > len(j.results) {
		return nil
	}
	return j.results[i-1]
}

func (j *joinPoint) SetResult(i int, v any) {
	if i < 1 || i > len(j.results) {
		panic(fmt.Sprintf("aop: %s has no result %d", j.Name(), i))
	}
	j.results[i-1] = v
}

func (j *joinPoint) Err() error {
	if !j.returnsError || len(j.results) == 0 {
		return nil
	}
	err, _ := j.results[len(j.results)-1].(error)
	return err
}

func (j *joinPoint) SetErr(err error) {
	if !j.returnsError || len(j.results) == 0 {
		return
	}
	j.results[len(j.results)-1] = err
}

type proceedingJoinPoint struct {
	*joinPoint
	chain    []func(ProceedingJoinPoint) []any
	index    int
	terminal func(params []any) []any
}

func (p *proceedingJoinPoint) Proceed(args ...any) []any {
	if len(args) > 0 {
		if len(args) != len(p.params) {
			panic(fmt.Sprintf("aop: %s proceeds with %d arguments, want %d", p.Name(), len(args), len(p.params)))
		}
		copy(p.params, args)
	}
	if p.index < len(p.chain) {
		next := p.chain[p.index]
		p.index++
		defer func() { p.index-- }()
		return next(p)
	}
	return p.terminal(p.Params())
}
