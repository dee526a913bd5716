// Package aspect declares aspects (advices, named pointcuts, introductions)
// and binds them to the methods of the classes in a reflection index.
package aspect

import (
	"fmt"
	"strconv"

	"github.com/go-park/flow/pkg/annotation"
	"github.com/go-park/flow/pkg/reflection"
)

var (
	_ Aspect       = (*aspect)(nil)
	_ Advice       = (*advice)(nil)
	_ Pointcut     = (*namedPointcut)(nil)
	_ Introduction = (*introduction)(nil)
)

type AdviceKind int

const (
	Before AdviceKind = iota + 1
	Around
	AfterReturning
	AfterThrowing
	After
)

var AdviceKinds = []AdviceKind{Before, Around, AfterReturning, AfterThrowing, After}

func (k AdviceKind) String() string {
	switch k {
	case Before:
		return annotation.Before
	case Around:
		return annotation.Around
	case AfterReturning:
		return annotation.AfterReturning
	case AfterThrowing:
		return annotation.AfterThrowing
	case After:
		return annotation.After
	}
	return "AdviceKind(" + strconv.Itoa(int(k)) + ")"
}

// KindOf maps an advice annotation name to its kind.
func KindOf(name string) (AdviceKind, bool) {
	for _, k := range AdviceKinds {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

type (
	Nameable interface {
		Name() string
	}

	// Aspect is a class whose methods are advices woven into other classes.
	Aspect interface {
		Nameable
		Priority() int
		Advices() []Advice
		Pointcuts() []Pointcut
		Introductions() []Introduction
	}

	// Advice binds a method of the aspect to a pointcut expression.
	Advice interface {
		Nameable
		Kind() AdviceKind
		Expression() string
		// Priority orders advices of one kind; higher runs first
		Priority() int
	}

	// Pointcut is a named expression other expressions refer to as Aspect->name.
	Pointcut interface {
		Nameable
		Expression() string
	}

	// Introduction adds an interface to every class matched by its expression.
	Introduction interface {
		Interface() string
		Expression() string
	}
)

type (
	aspect struct {
		name          string
		priority      int
		advices       []Advice
		pointcuts     []Pointcut
		introductions []Introduction
	}
	advice struct {
		name        string
		kind        AdviceKind
		expression  string
		priority    int
		hasPriority bool
	}
	namedPointcut struct {
		name       string
		expression string
	}
	introduction struct {
		iface      string
		expression string
	}
)

func NewAspect(opts ...Option[aspect]) Aspect {
	a := &aspect{}
	for _, opt := range opts {
		opt(a)
	}
	for _, adv := range a.advices {
		if adv, ok := adv.(*advice); ok && !adv.hasPriority {
			adv.priority = a.priority
		}
	}
	return a
}

func NewAdvice(opts ...Option[advice]) Advice {
	a := &advice{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func NewPointcut(opts ...Option[namedPointcut]) Pointcut {
	p := &namedPointcut{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func NewIntroduction(opts ...Option[introduction]) Introduction {
	i := &introduction{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (p *aspect) Name() string   { return p.name }
func (p *advice) Name() string   { return p.name }
func (p *namedPointcut) Name() string { return p.name }

func (p *aspect) Priority() int                 { return p.priority }
func (p *aspect) Advices() []Advice             { return append([]Advice{}, p.advices...) }
func (p *aspect) Pointcuts() []Pointcut         { return append([]Pointcut{}, p.pointcuts...) }
func (p *aspect) Introductions() []Introduction { return append([]Introduction{}, p.introductions...) }

func (p *advice) Kind() AdviceKind   { return p.kind }
func (p *advice) Expression() string { return p.expression }
func (p *advice) Priority() int      { return p.priority }

func (p *namedPointcut) Expression() string { return p.expression }

func (p *introduction) Interface() string  { return p.iface }
func (p *introduction) Expression() string { return p.expression }

// FromClass reads an aspect declared with annotations:
//
//	//@Aspect
//	//@Priority(10)
//	type LogAspect struct{}
//
//	//@Around("method(.*Service->.*())")
//	func (a *LogAspect) Trace(jp aop.ProceedingJoinPoint) []any
func FromClass(c *reflection.ClassInfo) (Aspect, error) {
	annos := c.Annotations()
	if !annos.Has(annotation.Aspect) {
		return nil, fmt.Errorf("%w: %s", ErrNotAnAspect, c.Name())
	}
	opts := []Option[aspect]{WithAspectName(c.Name())}
	if p, ok := annos.First(annotation.Priority); ok {
		n, err := strconv.Atoi(p.Value())
		if err != nil {
			return nil, &DeclarationError{Aspect: c.Name(), Err: fmt.Errorf("bad priority %q", p.Value())}
		}
		opts = append(opts, WithAspectPriority(n))
	}
	for _, in := range annos.Find(annotation.Introduce) {
		expr, ok := in.Arg("pointcut")
		if !ok || in.Value() == "" {
			return nil, &DeclarationError{Aspect: c.Name(), Err: fmt.Errorf("%s needs an interface and a pointcut", in)}
		}
		opts = append(opts, WithIntroduction(NewIntroduction(WithIntroducedInterface(in.Value()), WithIntroductionExpression(expr))))
	}
	for _, m := range c.Methods() {
		mannos := m.Annotations()
		var adviceOpts []Option[advice]
		if p, ok := mannos.First(annotation.Priority); ok {
			n, err := strconv.Atoi(p.Value())
			if err != nil {
				return nil, &DeclarationError{Aspect: c.Name(), Advice: m.Name(), Err: fmt.Errorf("bad priority %q", p.Value())}
			}
			adviceOpts = append(adviceOpts, WithAdvicePriority(n))
		}
		for _, a := range mannos {
			if a.Name == annotation.Pointcut {
				opts = append(opts, WithPointcut(NewPointcut(WithPointcutName(m.Name()), WithPointcutExpression(a.Value()))))
				continue
			}
			kind, ok := KindOf(a.Name)
			if !ok {
				continue
			}
			if a.Value() == "" {
				return nil, &DeclarationError{Aspect: c.Name(), Advice: m.Name(), Err: fmt.Errorf("%s without pointcut expression", a.Name)}
			}
			o := append([]Option[advice]{
				WithAdviceName(m.Name()),
				WithAdviceKind(kind),
				WithAdviceExpression(a.Value()),
			}, adviceOpts...)
			opts = append(opts, WithAdvice(NewAdvice(o...)))
		}
	}
	return NewAspect(opts...), nil
}
