package aspect

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/annotation"
	"github.com/go-park/flow/pkg/pointcut"
	"github.com/go-park/flow/pkg/reflection"
	"github.com/go-park/flow/pkg/tools/collections"
)

// BoundAdvice is one advice matched to a target method.
type BoundAdvice struct {
	Aspect     string
	Method     string
	Kind       AdviceKind
	Priority   int
	Expression string
}

// TargetMethodAdviceChain holds the advices of one (class, method) pair,
// grouped by kind, each group ordered by priority and then declaration.
type TargetMethodAdviceChain struct {
	Method string
	// Introduced marks methods declared by an introduced interface only
	Introduced bool
	advices    map[AdviceKind][]BoundAdvice
}

func (c *TargetMethodAdviceChain) Advices(kind AdviceKind) []BoundAdvice {
	return append([]BoundAdvice{}, c.advices[kind]...)
}

func (c *TargetMethodAdviceChain) Len() int {
	n := 0
	for _, a := range c.advices {
		n += len(a)
	}
	return n
}

func (c *TargetMethodAdviceChain) add(a BoundAdvice) {
	if c.advices == nil {
		c.advices = map[AdviceKind][]BoundAdvice{}
	}
	c.advices[a.Kind] = append(c.advices[a.Kind], a)
}

// TargetClassAdvices collects the advised methods and introductions of one class.
type TargetClassAdvices struct {
	Class         string
	Introductions []string
	Methods       map[string]*TargetMethodAdviceChain
}

func (t *TargetClassAdvices) MethodNames() []string {
	return collections.SortedKeys(t.Methods)
}

// Registry collects aspects in registration order.
type Registry struct {
	aspects []Aspect
	log     logrus.FieldLogger
}

func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{log: log}
}

func (r *Registry) Register(aspects ...Aspect) error {
	for _, a := range aspects {
		for _, known := range r.aspects {
			if known.Name() == a.Name() {
				return fmt.Errorf("%w: %s", ErrDuplicateAspect, a.Name())
			}
		}
		r.aspects = append(r.aspects, a)
	}
	return nil
}

// RegisterAnnotated registers every class of the index annotated @Aspect,
// in class name order. Among advices of equal priority, those of the aspect
// whose class name sorts first therefore come first; the order of a Go
// package's declarations is not kept in the index.
func (r *Registry) RegisterAnnotated(idx *reflection.Index) error {
	for _, c := range idx.ClassesAnnotatedWith(annotation.Aspect) {
		a, err := FromClass(c)
		if err != nil {
			return err
		}
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Aspects() []Aspect {
	return append([]Aspect{}, r.aspects...)
}

func (r *Registry) Aspect(name string) (Aspect, bool) {
	for _, a := range r.aspects {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

type compiledAdvice struct {
	BoundAdvice
	expr pointcut.Expr
}

type compiledIntroduction struct {
	aspect string
	iface  *reflection.ClassInfo
	expr   pointcut.Expr
}

func (r *Registry) compile(ctx *pointcut.Context) ([]compiledAdvice, []compiledIntroduction, error) {
	for _, a := range r.aspects {
		for _, p := range a.Pointcuts() {
			if err := ctx.Pointcuts.Declare(a.Name(), p.Name(), p.Expression()); err != nil {
				return nil, nil, &DeclarationError{Aspect: a.Name(), Advice: p.Name(), Err: err}
			}
		}
	}
	var advices []compiledAdvice
	var intros []compiledIntroduction
	for _, a := range r.aspects {
		for _, p := range a.Pointcuts() {
			if _, err := ctx.Pointcuts.Resolve(a.Name(), p.Name()); err != nil {
				return nil, nil, &DeclarationError{Aspect: a.Name(), Advice: p.Name(), Err: err}
			}
		}
		for _, adv := range a.Advices() {
			expr, err := pointcut.Compile(adv.Expression(), a.Name())
			if err == nil {
				err = pointcut.Check(ctx, expr)
			}
			if err != nil {
				return nil, nil, &DeclarationError{Aspect: a.Name(), Advice: adv.Name(), Err: err}
			}
			advices = append(advices, compiledAdvice{
				BoundAdvice: BoundAdvice{
					Aspect:     a.Name(),
					Method:     adv.Name(),
					Kind:       adv.Kind(),
					Priority:   adv.Priority(),
					Expression: adv.Expression(),
				},
				expr: expr,
			})
		}
		for _, in := range a.Introductions() {
			iface, ok := ctx.Index.Class(in.Interface())
			if !ok || !iface.IsInterface() {
				return nil, nil, &DeclarationError{Aspect: a.Name(), Err: fmt.Errorf("%w: %s", ErrUnknownInterface, in.Interface())}
			}
			expr, err := pointcut.Compile(in.Expression(), a.Name())
			if err == nil {
				err = pointcut.Check(ctx, expr)
			}
			if err != nil {
				return nil, nil, &DeclarationError{Aspect: a.Name(), Advice: "introduction of " + in.Interface(), Err: err}
			}
			intros = append(intros, compiledIntroduction{aspect: a.Name(), iface: iface, expr: expr})
		}
	}
	// stable: equal priorities keep declaration order
	sort.SliceStable(advices, func(i, j int) bool {
		return advices[i].Priority > advices[j].Priority
	})
	return advices, intros, nil
}

// Build matches every advice against every method of every advisable class
// of ctx.Index. Interfaces, aspects and classes annotated @Proxy(false) are
// never advised. Only classes with at least one advised method or
// introduction are part of the result.
func (r *Registry) Build(ctx *pointcut.Context) (map[string]*TargetClassAdvices, error) {
	if ctx.Pointcuts == nil {
		ctx.Pointcuts = pointcut.NewRegistry()
	}
	advices, intros, err := r.compile(ctx)
	if err != nil {
		return nil, err
	}
	result := map[string]*TargetClassAdvices{}
	for _, c := range ctx.Index.Classes() {
		if !r.advisable(c) {
			continue
		}
		target := &TargetClassAdvices{Class: c.Name(), Methods: map[string]*TargetMethodAdviceChain{}}
		methods := c.Methods()
		if ctor, ok := c.ConstructorMethod(); ok {
			methods = append(methods, ctor)
		}
		for _, in := range intros {
			if !in.expr.Matches(ctx, c, nil) || ctx.Index.IsSubtypeOf(c.Name(), in.iface.Name()) {
				continue
			}
			target.Introductions = append(target.Introductions, in.iface.Name())
			for _, m := range in.iface.Methods() {
				if _, exists := c.Method(m.Name()); exists {
					continue
				}
				target.Methods[m.Name()] = &TargetMethodAdviceChain{Method: m.Name(), Introduced: true}
				methods = append(methods, m)
			}
			r.log.WithFields(logrus.Fields{"class": c.Name(), "aspect": in.aspect, "interface": in.iface.Name()}).
				Debug("interface introduced")
		}
		for _, m := range methods {
			for _, adv := range advices {
				if !adv.expr.Matches(ctx, c, m) {
					continue
				}
				chain, ok := target.Methods[m.Name()]
				if !ok {
					chain = &TargetMethodAdviceChain{Method: m.Name()}
					target.Methods[m.Name()] = chain
				}
				chain.add(adv.BoundAdvice)
				r.log.WithFields(logrus.Fields{
					"class":  c.Name(),
					"method": m.Name(),
					"aspect": adv.Aspect,
					"advice": adv.Method,
				}).Debug("advice matched")
			}
		}
		if len(target.Methods) == 0 && len(target.Introductions) == 0 {
			continue
		}
		result[c.Name()] = target
	}
	return result, nil
}

func (r *Registry) advisable(c *reflection.ClassInfo) bool {
	if c.IsInterface() {
		return false
	}
	if _, ok := r.Aspect(c.Name()); ok {
		return false
	}
	if c.Annotations().Has(annotation.Aspect) {
		return false
	}
	if p, ok := c.Annotations().First(annotation.Proxy); ok && !p.Bool(annotation.DefaultKey, true) {
		return false
	}
	return true
}
