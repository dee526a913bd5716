package aop

import (
	"sync"

	"github.com/go-park/flow/pkg/tools/collections"
)

// DecoratorFunc builds the generated decorator of a proxy. The decorator has
// the target's method set and forwards intercepted methods to Proxy.Invoke.
type DecoratorFunc func(*Proxy) any

// DecoratorRegistry maps class names to generated decorators. Generated
// packages add theirs with Register<Pkg>Proxies.
type DecoratorRegistry struct {
	mu         sync.RWMutex
	decorators map[string]DecoratorFunc
}

func NewDecoratorRegistry() *DecoratorRegistry {
	return &DecoratorRegistry{decorators: map[string]DecoratorFunc{}}
}

func (r *DecoratorRegistry) Register(class string, fn DecoratorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decorators[class] = fn
}

func (r *DecoratorRegistry) Lookup(class string) (DecoratorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.decorators[class]
	return fn, ok
}

func (r *DecoratorRegistry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collections.SortedKeys(r.decorators)
}

// Decorate wraps p in its class decorator and makes the decorator the
// proxy's Self. It reports false when no decorator is registered.
func (r *DecoratorRegistry) Decorate(p *Proxy) (any, bool) {
	fn, ok := r.Lookup(p.Class().Class)
	if !ok {
		return p.Target(), false
	}
	d := fn(p)
	p.decorate = fn
	p.SetSelf(d)
	return d, true
}

// Result converts the i-th (0-based) entry of results to T; a missing or nil
// entry yields the zero value. Generated decorators use it to unpack
// Proxy.Invoke.
func Result[T any](results []any, i int) T {
	var zero T
	if i >= len(results) || results[i] == nil {
		return zero
	}
	return results[i].(T)
}
