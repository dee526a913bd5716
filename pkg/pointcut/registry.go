package pointcut

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds the named pointcuts declared by aspects. Declarations are
// compiled on first resolution; resolving fails for references that lead
// back to themselves.
type Registry struct {
	mu       sync.Mutex
	sources  map[string]string
	compiled map[string]Expr
}

func NewRegistry() *Registry {
	return &Registry{
		sources:  map[string]string{},
		compiled: map[string]Expr{},
	}
}

func key(class, name string) string {
	return class + "->" + name
}

func (r *Registry) Declare(class, name, expression string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(class, name)
	if _, ok := r.sources[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePointcut, k)
	}
	r.sources[k] = expression
	return nil
}

// Names lists declared pointcuts as "Class->name".
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.sources))
	for k := range r.sources {
		names = append(names, k)
	}
	return names
}

func (r *Registry) Resolve(class, name string) (Expr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(key(class, name), nil)
}

func (r *Registry) resolve(k string, path []string) (Expr, error) {
	for i, p := range path {
		if p == k {
			chain := append(append([]string{}, path[i:]...), k)
			return nil, fmt.Errorf("%w: %s", ErrCircularReference, strings.Join(chain, " -> "))
		}
	}
	if e, ok := r.compiled[k]; ok {
		return e, nil
	}
	src, ok := r.sources[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPointcut, k)
	}
	class, _, _ := strings.Cut(k, "->")
	e, err := Compile(src, class)
	if err != nil {
		return nil, fmt.Errorf("pointcut %s: %w", k, err)
	}
	path = append(path, k)
	for _, ref := range References(e) {
		if _, err := r.resolve(ref, path); err != nil {
			return nil, err
		}
	}
	r.compiled[k] = e
	return e, nil
}
