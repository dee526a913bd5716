package pointcut

import (
	"fmt"
	"sync"

	"github.com/go-park/flow/pkg/reflection"
)

// Filter is a custom predicate usable as filter(Name). method is nil when a
// class as a whole is tested.
type Filter interface {
	Matches(class *reflection.ClassInfo, method *reflection.MethodInfo) bool
}

type FilterFunc func(class *reflection.ClassInfo, method *reflection.MethodInfo) bool

func (f FilterFunc) Matches(class *reflection.ClassInfo, method *reflection.MethodInfo) bool {
	return f(class, method)
}

type FilterRegistry struct {
	mu      sync.RWMutex
	filters map[string]Filter
}

func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{filters: map[string]Filter{}}
}

func (r *FilterRegistry) Register(name string, f Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.filters[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFilter, name)
	}
	r.filters[name] = f
	return nil
}

func (r *FilterRegistry) Lookup(name string) (Filter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[name]
	return f, ok
}
