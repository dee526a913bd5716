// Package gen compiles the advice registry into proxy class tables and
// renders Go decorator sources for them.
package gen

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/aop"
	"github.com/go-park/flow/pkg/aspect"
	"github.com/go-park/flow/pkg/pointcut"
	"github.com/go-park/flow/pkg/reflection"
)

// Compiler turns the matched advices of a registry into aop.ProxyClass
// tables, one per intercepted class.
type Compiler struct {
	options
	index    *reflection.Index
	registry *aspect.Registry
}

func NewCompiler(idx *reflection.Index, registry *aspect.Registry, opts ...Option) *Compiler {
	c := &Compiler{options: DefaultOptions(), index: idx, registry: registry}
	for _, opt := range opts {
		opt.apply(&c.options)
	}
	return c
}

// Compile validates every advice against its aspect method and builds the
// proxy classes. Any invalid advice fails the whole compilation.
func (c *Compiler) Compile(ctx *pointcut.Context) (map[string]*aop.ProxyClass, error) {
	if ctx.Index == nil {
		ctx.Index = c.index
	}
	for _, a := range c.registry.Aspects() {
		for _, adv := range a.Advices() {
			if err := c.validate(a.Name(), adv); err != nil {
				return nil, err
			}
		}
	}
	targets, err := c.registry.Build(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]*aop.ProxyClass, len(targets))
	for name, t := range targets {
		pc, err := c.proxyClass(t)
		if err != nil {
			return nil, err
		}
		result[name] = pc
		c.log.WithFields(logrus.Fields{
			"class":   name,
			"methods": len(pc.Methods),
		}).Debug("proxy class compiled")
	}
	return result, nil
}

func (c *Compiler) validate(aspectName string, adv aspect.Advice) error {
	fail := func(err error) error {
		return &AdviceMethodError{Aspect: aspectName, Advice: adv.Name(), Pointcut: adv.Expression(), Err: err}
	}
	class, ok := c.index.Class(aspectName)
	if !ok {
		return fail(ErrUnknownAspectClass)
	}
	m, ok := class.Method(adv.Name())
	if !ok {
		return fail(ErrMissingAdvice)
	}
	want := aop.AdviceSignature(adv.Kind())
	if ft := m.FuncType(); ft != nil {
		if ft != want {
			return fail(fmt.Errorf("%w: %v, want %v", ErrAdviceSignature, ft, want))
		}
		return nil
	}
	if !sourceSignatureMatches(m, adv.Kind()) {
		return fail(fmt.Errorf("%w: want %v", ErrAdviceSignature, want))
	}
	return nil
}

// sourceSignatureMatches checks advice methods of classes only known from
// source by their type expressions.
func sourceSignatureMatches(m *reflection.MethodInfo, kind aspect.AdviceKind) bool {
	params, results := m.Params(), m.Results()
	if len(params) != 1 {
		return false
	}
	if kind == aspect.Around {
		return params[0].Type == "aop.ProceedingJoinPoint" &&
			len(results) == 1 && (results[0].Type == "[]any" || results[0].Type == "[]interface{}")
	}
	return params[0].Type == "aop.JoinPoint" && len(results) == 0
}

func (c *Compiler) proxyClass(t *aspect.TargetClassAdvices) (*aop.ProxyClass, error) {
	class, ok := c.index.Class(t.Class)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, t.Class)
	}
	pc := &aop.ProxyClass{
		Class:      t.Class,
		Interfaces: append([]string{}, t.Introductions...),
		Methods:    map[string]*aop.ProxyMethod{},
	}
	for _, name := range t.MethodNames() {
		chain := t.Methods[name]
		info, ok := lookupMethod(c.index, class, t.Introductions, name, chain.Introduced)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, t.Class, name)
		}
		pm := &aop.ProxyMethod{
			Name:         name,
			Introduced:   chain.Introduced,
			ReturnsError: info.ReturnsError(),
			FuncType:     info.FuncType(),
			Advices:      map[aspect.AdviceKind][]aspect.BoundAdvice{},
		}
		for _, kind := range aspect.AdviceKinds {
			if advices := chain.Advices(kind); len(advices) > 0 {
				pm.Advices[kind] = advices
			}
		}
		if ctor, ok := class.ConstructorMethod(); ok && ctor == info {
			pc.Constructor = pm
			continue
		}
		pc.Methods[name] = pm
	}
	return pc, nil
}
