package aop

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/aspect"
)

// AspectResolver provides aspect instances by aspect class name. The object
// manager implements it so aspects obey their own scope.
type AspectResolver interface {
	Aspect(class string) (any, error)
}

// Aspects is an AspectResolver over fixed instances.
type Aspects map[string]any

func (a Aspects) Aspect(class string) (any, error) {
	inst, ok := a[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAspectUnavailable, class)
	}
	return inst, nil
}

type (
	adviceFunc = func(JoinPoint)
	aroundFunc = func(ProceedingJoinPoint) []any
)

var (
	adviceFuncType = reflect.TypeOf((adviceFunc)(nil))
	aroundFuncType = reflect.TypeOf((aroundFunc)(nil))
)

// AdviceSignature is the func type an advice method of kind must have once
// bound to its aspect instance.
func AdviceSignature(kind aspect.AdviceKind) reflect.Type {
	if kind == aspect.Around {
		return aroundFuncType
	}
	return adviceFuncType
}

// resolved advice functions of one invocation
type chain struct {
	before         []adviceFunc
	around         []aroundFunc
	afterReturning []adviceFunc
	afterThrowing  []adviceFunc
	after          []adviceFunc
}

func resolveChain(m *ProxyMethod, resolver AspectResolver) (*chain, error) {
	c := &chain{}
	for _, kind := range aspect.AdviceKinds {
		for _, a := range m.advices(kind) {
			fn, err := resolveAdvice(a, resolver)
			if err != nil {
				return nil, err
			}
			switch kind {
			case aspect.Before:
				c.before = append(c.before, fn.(adviceFunc))
			case aspect.Around:
				c.around = append(c.around, fn.(aroundFunc))
			case aspect.AfterReturning:
				c.afterReturning = append(c.afterReturning, fn.(adviceFunc))
			case aspect.AfterThrowing:
				c.afterThrowing = append(c.afterThrowing, fn.(adviceFunc))
			case aspect.After:
				c.after = append(c.after, fn.(adviceFunc))
			}
		}
	}
	return c, nil
}

func resolveAdvice(a aspect.BoundAdvice, resolver AspectResolver) (any, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: %s (no resolver)", ErrAspectUnavailable, a.Aspect)
	}
	inst, err := resolver.Aspect(a.Aspect)
	if err != nil {
		return nil, err
	}
	m := reflect.ValueOf(inst).MethodByName(a.Method)
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %s.%s", ErrAdviceMethod, a.Aspect, a.Method)
	}
	want := AdviceSignature(a.Kind)
	if m.Type() != want {
		return nil, fmt.Errorf("%w: %s.%s is %v, want %v", ErrAdviceMethod, a.Aspect, a.Method, m.Type(), want)
	}
	return m.Interface(), nil
}

// MethodInterceptor runs the advice chain of one method: Before, the Around
// chain ending in the target, then AfterReturning or AfterThrowing and
// finally After, which also runs when the target panics.
type MethodInterceptor struct {
	class    string
	method   *ProxyMethod
	resolver AspectResolver
	log      logrus.FieldLogger
}

func NewMethodInterceptor(class string, m *ProxyMethod, resolver AspectResolver, log logrus.FieldLogger) *MethodInterceptor {
	return &MethodInterceptor{class: class, method: m, resolver: resolver, log: log}
}

// Invoke runs the chain; terminal performs the original call.
func (mi *MethodInterceptor) Invoke(proxy, target any, params []any, terminal func([]any) []any) []any {
	jp := &joinPoint{
		class:        mi.class,
		method:       mi.method.Name,
		proxy:        proxy,
		target:       target,
		params:       append([]any{}, params...),
		returnsError: mi.method.ReturnsError,
	}
	c, err := resolveChain(mi.method, mi.resolver)
	if err != nil {
		return fail(jp, mi.method.numOut(), err)
	}
	mi.log.WithFields(logrus.Fields{"class": mi.class, "method": mi.method.Name}).Trace("intercepted")
	return run(jp, c, mi.method.numOut(), terminal)
}

// ConstructorInterceptor advises object construction. Before advice runs
// without an instance; Around advice may change the arguments or replace
// the instance; the remaining advice sees the new instance.
type ConstructorInterceptor struct {
	class    string
	method   *ProxyMethod
	resolver AspectResolver
	log      logrus.FieldLogger
}

func NewConstructorInterceptor(class string, m *ProxyMethod, resolver AspectResolver, log logrus.FieldLogger) *ConstructorInterceptor {
	return &ConstructorInterceptor{class: class, method: m, resolver: resolver, log: log}
}

// Construct calls ctor with params through the chain and returns the
// instance and the constructor error, if any.
func (ci *ConstructorInterceptor) Construct(ctor reflect.Value, params []any) (any, error) {
	ft := ctor.Type()
	jp := &joinPoint{
		class:        ci.class,
		method:       ci.method.Name,
		params:       append([]any{}, params...),
		returnsError: ft.NumOut() == 2,
	}
	c, err := resolveChain(ci.method, ci.resolver)
	if err != nil {
		return nil, err
	}
	terminal := func(params []any) []any {
		return callFunc(ctor, params)
	}
	// the instance is known once the Around chain returns
	c.afterReturning = append([]adviceFunc{jp.bindInstance}, c.afterReturning...)
	c.afterThrowing = append([]adviceFunc{jp.bindInstance}, c.afterThrowing...)
	ci.log.WithField("class", ci.class).Trace("construction intercepted")
	results := run(jp, c, ft.NumOut(), terminal)
	var ctorErr error
	if jp.returnsError {
		ctorErr, _ = results[1].(error)
	}
	return results[0], ctorErr
}

func (j *joinPoint) bindInstance(JoinPoint) {
	if len(j.results) > 0 {
		j.target = j.results[0]
		j.proxy = j.results[0]
	}
}

func run(jp *joinPoint, c *chain, numOut int, terminal func([]any) []any) []any {
	defer func() {
		for _, fn := range c.after {
			fn(jp)
		}
	}()
	for _, fn := range c.before {
		fn(jp)
	}
	pjp := &proceedingJoinPoint{joinPoint: jp, chain: c.around, terminal: terminal}
	jp.results = normalize(pjp.Proceed(), numOut)
	if jp.Err() != nil {
		for _, fn := range c.afterThrowing {
			fn(jp)
		}
	} else {
		for _, fn := range c.afterReturning {
			fn(jp)
		}
	}
	return jp.Results()
}

// normalize pads or trims results to n entries; n < 0 means unknown.
func normalize(results []any, n int) []any {
	if n < 0 || len(results) == n {
		return append([]any{}, results...)
	}
	out := make([]any, n)
	copy(out, results)
	return out
}

// fail reports err through the method's error result, or panics when the
// method cannot return one.
func fail(jp *joinPoint, numOut int, err error) []any {
	if !jp.returnsError || numOut < 1 {
		panic(fmt.Errorf("aop: %s: %w", jp.Name(), err))
	}
	results := make([]any, numOut)
	results[numOut-1] = err
	return results
}

// callFunc calls fn with params converted to its parameter types. The last
// param of a variadic fn is passed as a slice.
func callFunc(fn reflect.Value, params []any) []any {
	ft := fn.Type()
	if len(params) != ft.NumIn() {
		panic(fmt.Sprintf("aop: calling %v with %d arguments", ft, len(params)))
	}
	in := make([]reflect.Value, len(params))
	for i, p := range params {
		in[i] = valueOf(p, ft.In(i))
	}
	var out []reflect.Value
	if ft.IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results
}

func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return rv
}

func zeroResults(ft reflect.Type) []any {
	if ft == nil {
		return nil
	}
	results := make([]any, ft.NumOut())
	for i := range results {
		results[i] = reflect.Zero(ft.Out(i)).Interface()
	}
	return results
}
