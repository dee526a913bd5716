package aop

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

// Proxy intercepts the methods of one target instance. Advice sees the
// proxy through JoinPoint.Proxy as a view bound to the running invocation:
// calling the intercepted method again through that view goes straight to
// the target, while independent calls, from other goroutines included, are
// always advised.
type Proxy struct {
	class    *ProxyClass
	target   any
	value    reflect.Value
	self     any
	resolver AspectResolver
	log      logrus.FieldLogger

	interceptors map[string]*MethodInterceptor
	decorate     DecoratorFunc
	// methods whose invocation this view belongs to
	bypass map[string]bool
}

func NewProxy(class *ProxyClass, target any, resolver AspectResolver, log logrus.FieldLogger) *Proxy {
	p := &Proxy{
		class:        class,
		target:       target,
		value:        reflect.ValueOf(target),
		self:         target,
		resolver:     resolver,
		log:          log,
		interceptors: make(map[string]*MethodInterceptor, len(class.Methods)),
	}
	for name, m := range class.Methods {
		p.interceptors[name] = NewMethodInterceptor(class.Class, m, resolver, log)
	}
	return p
}

func (p *Proxy) Class() *ProxyClass { return p.class }
func (p *Proxy) Target() any        { return p.target }

// Self is the instance callers hold: the decorator when one is registered,
// the target otherwise.
func (p *Proxy) Self() any { return p.self }

func (p *Proxy) SetSelf(self any) { p.self = self }

// view is the proxy as advice of method sees it.
func (p *Proxy) view(method string) *Proxy {
	v := *p
	v.bypass = make(map[string]bool, len(p.bypass)+1)
	for m := range p.bypass {
		v.bypass[m] = true
	}
	v.bypass[method] = true
	v.self = p.target
	if p.decorate != nil {
		v.self = p.decorate(&v)
	}
	return &v
}

// Invoke calls method with args through its advice chain and returns all
// results, the trailing error included. The last arg of a variadic method is
// its slice.
func (p *Proxy) Invoke(method string, args ...any) []any {
	mi, ok := p.interceptors[method]
	if !ok || mi.method.Empty() && !mi.method.Introduced {
		return p.callTarget(method, args)
	}
	if p.bypass[method] {
		p.log.WithFields(logrus.Fields{"class": p.class.Class, "method": method}).Trace("re-entrant call")
		return p.callTarget(method, args)
	}
	view := p.view(method)
	return mi.Invoke(view.self, p.target, args, func(params []any) []any {
		return p.callTarget(method, params)
	})
}

func (p *Proxy) callTarget(method string, params []any) []any {
	fn := p.value.MethodByName(method)
	if !fn.IsValid() {
		m, ok := p.class.Method(method)
		if !ok || !m.Introduced {
			panic(fmt.Sprintf("aop: %s has no method %s", p.class.Class, method))
		}
		return zeroResults(m.FuncType)
	}
	return callFunc(fn, params)
}
