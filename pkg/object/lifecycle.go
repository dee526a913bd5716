package object

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-park/flow/pkg/tools/collections"
)

// Initializer is called once all properties of an object are injected.
type Initializer interface {
	InitializeObject() error
}

// Shutdowner is called on singletons by Manager.Shutdown.
type Shutdowner interface {
	ShutdownObject() error
}

func (m *Manager) initialize(conf *Configuration, inst *instance) error {
	if conf.InitMethod != "" {
		return callLifecycle(inst.public, conf.InitMethod)
	}
	if i, ok := inst.public.(Initializer); ok {
		return i.InitializeObject()
	}
	return nil
}

func (m *Manager) shutdown(conf *Configuration, inst *instance) error {
	if conf != nil && conf.ShutdownMethod != "" {
		return callLifecycle(inst.public, conf.ShutdownMethod)
	}
	if s, ok := inst.public.(Shutdowner); ok {
		return s.ShutdownObject()
	}
	return nil
}

// callLifecycle calls a configured lifecycle method taking no arguments and
// returning nothing or an error.
func callLifecycle(obj any, name string) error {
	mv := reflect.ValueOf(obj).MethodByName(name)
	if !mv.IsValid() {
		return fmt.Errorf("%w: %T has no method %s", ErrInvalidConfiguration, obj, name)
	}
	if mv.Type().NumIn() != 0 {
		return fmt.Errorf("%w: lifecycle method %s takes arguments", ErrInvalidConfiguration, name)
	}
	out := mv.Call(nil)
	if len(out) > 0 {
		if err, ok := out[len(out)-1].Interface().(error); ok {
			return err
		}
	}
	return nil
}

// Warm builds all singletons.
func (m *Manager) Warm() error {
	for _, id := range collections.SortedKeys(m.configs) {
		conf := m.configs[id]
		if conf.AliasOf != "" || conf.Scope != Singleton {
			continue
		}
		if _, err := m.Get(id); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown shuts the singletons down in reverse creation order and forgets
// them. All errors are reported.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	created, singletons := m.created, m.singletons
	m.created, m.singletons = nil, map[string]*instance{}
	m.mu.Unlock()

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		id := created[i]
		if err := m.shutdown(m.configs[id], singletons[id]); err != nil {
			errs = append(errs, fmt.Errorf("shutting down %s: %w", id, err))
			continue
		}
		m.log.WithField("object", id).Debug("object shut down")
	}
	return errors.Join(errs...)
}

// Validate checks the object graph at boot: references to unknown objects
// and dependency cycles that eager construction cannot resolve. A cycle
// resolves only when all of its objects are singletons linked by property
// injection, since a singleton is visible to its dependencies once
// instantiated. Cycles through a constructor argument, a prototype or only
// aliases fail whichever object is requested first.
func (m *Manager) Validate() error {
	edges := map[string][]dependency{}
	var errs []error
	for _, id := range collections.SortedKeys(m.configs) {
		deps, err := m.eagerDependencies(m.configs[id])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		edges[id] = deps
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	for _, scc := range components(edges) {
		if path, ok := m.unresolvable(scc, edges); ok {
			return cycleError(path, path[0])
		}
	}
	return nil
}

type dependency struct {
	id string
	// by constructor argument, not by property
	ctor bool
}

// components returns the strongly connected components of the graph
// (Tarjan), each in discovery order.
func components(edges map[string][]dependency) [][]string {
	var (
		index   = map[string]int{}
		low     = map[string]int{}
		onStack = map[string]bool{}
		stack   []string
		result  [][]string
		next    int
	)
	var visit func(id string)
	visit = func(id string) {
		index[id], low[id] = next, next
		next++
		stack = append(stack, id)
		onStack[id] = true
		for _, dep := range edges[id] {
			if _, seen := index[dep.id]; !seen {
				visit(dep.id)
				low[id] = min(low[id], low[dep.id])
			} else if onStack[dep.id] {
				low[id] = min(low[id], index[dep.id])
			}
		}
		if low[id] != index[id] {
			return
		}
		var scc []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			scc = append(scc, top)
			if top == id {
				break
			}
		}
		result = append(result, scc)
	}
	for _, id := range collections.SortedKeys(edges) {
		if _, seen := index[id]; !seen {
			visit(id)
		}
	}
	return result
}

// unresolvable reports a cycle of scc that Get cannot build, as the path
// from an offending object back to itself.
func (m *Manager) unresolvable(scc []string, edges map[string][]dependency) ([]string, bool) {
	members := make(map[string]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}
	cyclic := len(scc) > 1
	if !cyclic {
		for _, dep := range edges[scc[0]] {
			cyclic = cyclic || dep.id == scc[0]
		}
	}
	if !cyclic {
		return nil, false
	}
	aliasesOnly := true
	for _, id := range collections.SortedKeys(members) {
		conf := m.configs[id]
		if conf.AliasOf == "" {
			aliasesOnly = false
		}
		if conf.AliasOf == "" && conf.Scope == Prototype {
			return cyclePath(id, id, members, edges), true
		}
	}
	if aliasesOnly {
		first := collections.SortedKeys(members)[0]
		return cyclePath(first, first, members, edges), true
	}
	for _, id := range collections.SortedKeys(members) {
		for _, dep := range edges[id] {
			if dep.ctor && members[dep.id] {
				return cyclePath(id, dep.id, members, edges), true
			}
		}
	}
	return nil, false
}

// cyclePath is from followed by a shortest path from next back to from
// inside the component.
func cyclePath(from, next string, members map[string]bool, edges map[string][]dependency) []string {
	if from == next {
		for _, dep := range edges[from] {
			if dep.id == from {
				return []string{from}
			}
		}
		for _, dep := range edges[from] {
			if members[dep.id] {
				next = dep.id
				break
			}
		}
	}
	prev := map[string]string{next: ""}
	queue := []string{next}
	for len(queue) > 0 && from != next {
		cur := queue[0]
		queue = queue[1:]
		if cur == from {
			break
		}
		for _, dep := range edges[cur] {
			if _, seen := prev[dep.id]; seen || !members[dep.id] {
				continue
			}
			prev[dep.id] = cur
			queue = append(queue, dep.id)
		}
	}
	var back []string
	for cur := from; cur != next && cur != ""; cur = prev[cur] {
		back = append(back, cur)
	}
	path := []string{from, next}
	for i := len(back) - 1; i > 0; i-- {
		path = append(path, back[i])
	}
	return path
}

func (m *Manager) eagerDependencies(conf *Configuration) ([]dependency, error) {
	ref := func(id string) error {
		if _, ok := m.configs[id]; !ok {
			return fmt.Errorf("%w: %s referenced by %s", ErrUnknownObject, id, conf.Name)
		}
		return nil
	}
	if conf.AliasOf != "" {
		return []dependency{{id: conf.AliasOf}}, ref(conf.AliasOf)
	}
	var deps []dependency
	if conf.Factory != nil {
		ft := reflect.TypeOf(conf.Factory)
		for i := 0; i < ft.NumIn(); i++ {
			pt := ft.In(i)
			if inj, ok := conf.Arguments[i+1]; ok {
				if inj.Kind != ObjectRef || inj.Lazy {
					continue
				}
				if inj.Ref != "" {
					if err := ref(inj.Ref); err != nil {
						return nil, err
					}
					deps = append(deps, dependency{id: inj.Ref, ctor: true})
					continue
				}
			} else if !conf.Autowiring || ft.IsVariadic() && i == ft.NumIn()-1 {
				continue
			}
			if isProvider(pt) {
				continue
			}
			// unresolvable arguments may still be passed to Get
			if id, err := m.idOfType(pt); err == nil {
				deps = append(deps, dependency{id: id, ctor: true})
			}
		}
	}
	for _, p := range conf.Properties {
		if p.Kind != ObjectRef || p.Lazy {
			continue
		}
		id := p.Ref
		if id == "" {
			t, ok := propertyType(conf.Type, p.Name)
			if !ok || isProvider(t) {
				continue
			}
			var err error
			if id, err = m.idOfType(t); err != nil {
				continue
			}
		} else if err := ref(id); err != nil {
			return nil, err
		}
		deps = append(deps, dependency{id: id})
	}
	return deps, nil
}

// propertyType is the type propertySink would inject into.
func propertyType(t reflect.Type, name string) (reflect.Type, bool) {
	if t == nil || t.Kind() == reflect.Interface {
		return nil, false
	}
	upper := upperFirst(name)
	for _, prefix := range []string{setterPrefix, "Set"} {
		if m, ok := t.MethodByName(prefix + upper); ok && m.Type.NumIn() == 2 {
			return m.Type.In(1), true
		}
	}
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, false
	}
	for _, n := range []string{name, upper} {
		if f, ok := t.Elem().FieldByName(n); ok && f.IsExported() {
			return f.Type, true
		}
	}
	return nil, false
}
