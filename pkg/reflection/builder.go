package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/go-park/flow/pkg/tools/collections"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Builder accumulates class registrations and source-scanned classes and
// produces an immutable Index. Registration errors are collected and
// reported by Build.
type Builder struct {
	classes map[string]*ClassInfo
	order   []string
	errs    []error
}

func NewBuilder() *Builder {
	return &Builder{classes: map[string]*ClassInfo{}}
}

// Class registers a struct (normalised to pointer-to-struct) or interface type.
func (b *Builder) Class(t reflect.Type, opts ...ClassOption) *Builder {
	c, err := classOf(t, opts...)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.merge(c)
	return b
}

// Add merges classes known from another source, such as a source scan.
func (b *Builder) Add(classes ...*ClassInfo) *Builder {
	for _, c := range classes {
		b.merge(c.clone())
	}
	return b
}

// Build computes implemented interfaces and freezes the index.
func (b *Builder) Build() (*Index, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	var ifaces []*ClassInfo
	for _, name := range b.order {
		if c := b.classes[name]; c.IsInterface() && c.typ != nil {
			ifaces = append(ifaces, c)
		}
	}
	idx := newIndex()
	for _, name := range b.order {
		c := b.classes[name].clone()
		if c.typ != nil && !c.IsInterface() {
			for _, i := range ifaces {
				if c.typ.Implements(i.typ) {
					c.spec.Interfaces = append(c.spec.Interfaces, i.Name())
				}
			}
		}
		c.spec.Interfaces = collections.Uniq(c.spec.Interfaces)
		sort.Strings(c.spec.Interfaces)
		idx.add(c)
	}
	return idx, nil
}

func classOf(t reflect.Type, opts ...ClassOption) (*ClassInfo, error) {
	if t == nil {
		return nil, ErrNotSupported
	}
	reg := &classRegistration{}
	for _, opt := range opts {
		opt(reg)
	}
	switch t.Kind() {
	case reflect.Struct:
		t = reflect.PointerTo(t)
	case reflect.Pointer:
		if t.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %v", ErrNotSupported, t)
		}
	case reflect.Interface:
	default:
		return nil, fmt.Errorf("%w: %v", ErrNotSupported, t)
	}
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() == "" {
		return nil, fmt.Errorf("%w: anonymous type %v", ErrNotSupported, t)
	}

	spec := ClassSpec{
		Name:        NameOf(t),
		Interface:   t.Kind() == reflect.Interface,
		Annotations: reg.annotations,
	}
	if reg.name != "" {
		spec.Name = reg.name
	}
	funcTypes := map[string]reflect.Type{}
	for i := 0; i < t.NumMethod(); i++ {
		ms, ft := methodSpecOf(t.Method(i), !spec.Interface)
		ms.Annotations = reg.methodAnnotations[ms.Name]
		spec.Methods = append(spec.Methods, ms)
		funcTypes[ms.Name] = ft
	}
	var ctor reflect.Value
	var ctorType reflect.Type
	if reg.constructor != nil {
		ctor = reflect.ValueOf(reg.constructor)
		if err := validateConstructor(t, ctor); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConstructor, spec.Name, err)
		}
		if _, ok := funcTypes[ConstructorName]; ok {
			return nil, fmt.Errorf("%w: %s has a method named %s", ErrInvalidConstructor, spec.Name, ConstructorName)
		}
		var ms MethodSpec
		ms, ctorType = methodSpecOf(reflect.Method{Name: ConstructorName, Type: ctor.Type()}, false)
		ms.Annotations = reg.methodAnnotations[ConstructorName]
		spec.Constructor = &ms
	}
	for name := range reg.methodAnnotations {
		if name == ConstructorName && ctor.IsValid() {
			continue
		}
		if _, ok := funcTypes[name]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, spec.Name, name)
		}
	}
	if !spec.Interface {
		for i := 0; i < base.NumField(); i++ {
			f := base.Field(i)
			if f.Anonymous {
				ft := f.Type
				if ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}
				if spec.Parent == "" && ft.Kind() == reflect.Struct && ft.Name() != "" {
					spec.Parent = NameOf(ft)
				}
				continue
			}
			spec.Fields = append(spec.Fields, FieldSpec{
				Name:        f.Name,
				Type:        ParameterOf(f.Name, f.Type),
				Tag:         string(f.Tag),
				Annotations: reg.fieldAnnotations[f.Name],
			})
		}
	}

	c := Describe(spec)
	c.typ = t
	c.setFuncTypes(funcTypes)
	c.constructor = ctor
	if c.ctor != nil {
		c.ctor.funcType = ctorType
	}
	return c, nil
}

func validateConstructor(t reflect.Type, fn reflect.Value) error {
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("want a func, got %v", fn.Type())
	}
	ft := fn.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return fmt.Errorf("%v must return the instance and optionally an error", ft)
	}
	out := ft.Out(0)
	if t.Kind() == reflect.Interface {
		if !out.Implements(t) {
			return fmt.Errorf("%v does not implement %v", out, t)
		}
		return nil
	}
	if out != t {
		return fmt.Errorf("returns %v, want %v", out, t)
	}
	return nil
}

func (b *Builder) merge(c *ClassInfo) {
	old, ok := b.classes[c.Name()]
	if !ok {
		b.classes[c.Name()] = c
		b.order = append(b.order, c.Name())
		return
	}
	if old.typ != nil && c.typ != nil && old.typ != c.typ {
		b.errs = append(b.errs, fmt.Errorf("%w: %s (%v, %v)", ErrDuplicateClass, c.Name(), old.typ, c.typ))
		return
	}
	typed, other := old, c
	if old.typ == nil && c.typ != nil {
		typed, other = c, old
	}
	spec := typed.Spec()
	spec.Annotations = spec.Annotations.Merge(other.spec.Annotations)
	if spec.Parent == "" {
		spec.Parent = other.spec.Parent
	}
	spec.Interfaces = collections.Uniq(append(spec.Interfaces, other.spec.Interfaces...))
	spec.Interface = spec.Interface || other.spec.Interface
	switch {
	case spec.Constructor == nil && other.spec.Constructor != nil:
		ctor := *other.spec.Constructor
		spec.Constructor = &ctor
	case spec.Constructor != nil && other.spec.Constructor != nil:
		spec.Constructor.Annotations = spec.Constructor.Annotations.Merge(other.spec.Constructor.Annotations)
	}
	for _, om := range other.spec.Methods {
		found := false
		for i := range spec.Methods {
			if spec.Methods[i].Name == om.Name {
				spec.Methods[i].Annotations = spec.Methods[i].Annotations.Merge(om.Annotations)
				found = true
			}
		}
		if !found {
			spec.Methods = append(spec.Methods, om)
		}
	}
	for _, of := range other.spec.Fields {
		found := false
		for i := range spec.Fields {
			if spec.Fields[i].Name == of.Name {
				spec.Fields[i].Annotations = spec.Fields[i].Annotations.Merge(of.Annotations)
				if spec.Fields[i].Tag == "" {
					spec.Fields[i].Tag = of.Tag
				}
				found = true
			}
		}
		if !found {
			spec.Fields = append(spec.Fields, of)
		}
	}
	merged := Describe(spec)
	merged.typ = typed.typ
	merged.constructor = typed.constructor
	if !merged.constructor.IsValid() {
		merged.constructor = other.constructor
	}
	merged.setFuncTypes(typed.funcTypes())
	if merged.ctor != nil && typed.ctor != nil {
		merged.ctor.funcType = typed.ctor.funcType
	}
	b.classes[c.Name()] = merged
}

func (c *ClassInfo) funcTypes() map[string]reflect.Type {
	m := map[string]reflect.Type{}
	for _, mi := range c.methods {
		if mi.funcType != nil {
			m[mi.Name()] = mi.funcType
		}
	}
	return m
}

func (c *ClassInfo) setFuncTypes(m map[string]reflect.Type) {
	for _, mi := range c.methods {
		mi.funcType = m[mi.Name()]
	}
}

func (c *ClassInfo) clone() *ClassInfo {
	cc := Describe(c.spec)
	cc.typ = c.typ
	cc.constructor = c.constructor
	cc.setFuncTypes(c.funcTypes())
	if cc.ctor != nil && c.ctor != nil {
		cc.ctor.funcType = c.ctor.funcType
	}
	return cc
}
