// Package object builds and manages the object graph: configurations derived
// from the class index and Objects.yaml, and a scope-aware container that
// resolves constructor and property injection through itself.
package object

import (
	"fmt"
	"reflect"
	"strings"
)

type InjectionKind int

const (
	// ObjectRef injects another object; an empty Ref autowires by type.
	ObjectRef InjectionKind = iota + 1
	// Value injects a literal, converted to the parameter type.
	Value
	// Setting injects the settings tree entry at Ref.
	Setting
)

func (k InjectionKind) String() string {
	switch k {
	case ObjectRef:
		return "object"
	case Value:
		return "value"
	case Setting:
		return "setting"
	}
	return fmt.Sprintf("InjectionKind(%d)", int(k))
}

// Injection describes the value of one constructor argument or property.
type Injection struct {
	Kind  InjectionKind
	Ref   string
	Value any
	// Lazy injects a memoising func() T provider instead of the object.
	Lazy bool
}

func (i Injection) String() string {
	switch i.Kind {
	case Value:
		return fmt.Sprintf("value(%v)", i.Value)
	case ObjectRef:
		ref := i.Ref
		if ref == "" {
			ref = "<autowired>"
		}
		if i.Lazy {
			return "lazy " + ref
		}
		return ref
	}
	return fmt.Sprintf("%s(%s)", i.Kind, i.Ref)
}

// Property is an injection point set after construction, through an
// Inject<Name> or Set<Name> setter or an exported field.
type Property struct {
	Name string
	Injection
	// derived from an Inject<Name> setter; skipped when nothing matches
	autowired bool
}

// Configuration tells the manager how to build one object.
type Configuration struct {
	// Name is the object identifier, by default the class name.
	Name  string
	Class string
	// Type is the type callers receive: a struct pointer or an interface.
	Type  reflect.Type
	Scope Scope
	// Factory builds the instance; nil means new(T) for struct pointers.
	Factory any
	// Arguments are factory arguments by 1-based position.
	Arguments  map[int]Injection
	Properties []Property
	// Autowiring resolves unconfigured factory arguments and Inject<Name>
	// setters by type.
	Autowiring bool
	// AliasOf redirects the object to another one, typically an interface
	// to its implementation.
	AliasOf        string
	InitMethod     string
	ShutdownMethod string
	// Source tells where the configuration came from, for error messages.
	Source string
}

func (c *Configuration) clone() *Configuration {
	n := *c
	n.Arguments = make(map[int]Injection, len(c.Arguments))
	for k, v := range c.Arguments {
		n.Arguments[k] = v
	}
	n.Properties = append([]Property{}, c.Properties...)
	return &n
}

// Property returns the property named name, case-insensitively on the first
// letter.
func (c *Configuration) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Property{}, false
}

func (c *Configuration) setProperty(p Property) {
	for i := range c.Properties {
		if strings.EqualFold(c.Properties[i].Name, p.Name) {
			c.Properties[i] = p
			return
		}
	}
	c.Properties = append(c.Properties, p)
}

func (c *Configuration) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: object without name (%s)", ErrInvalidConfiguration, c.Source)
	}
	if c.AliasOf != "" {
		if c.AliasOf == c.Name {
			return fmt.Errorf("%w: %s is an alias of itself", ErrInvalidConfiguration, c.Name)
		}
		return nil
	}
	if c.Type == nil {
		return fmt.Errorf("%w: %s has no runtime type (%s)", ErrInvalidConfiguration, c.Name, c.Source)
	}
	if c.Scope != Singleton && c.Scope != Prototype {
		return fmt.Errorf("%w: %s has no scope", ErrInvalidConfiguration, c.Name)
	}
	if c.Factory != nil {
		ft := reflect.TypeOf(c.Factory)
		if ft.Kind() != reflect.Func || ft.NumOut() < 1 || ft.NumOut() > 2 ||
			ft.NumOut() == 2 && ft.Out(1) != errorType {
			return fmt.Errorf("%w: %s factory %v must return the instance and optionally an error", ErrInvalidConfiguration, c.Name, ft)
		}
		for pos := range c.Arguments {
			if pos < 1 || pos > ft.NumIn() {
				return fmt.Errorf("%w: %s has no factory argument %d", ErrInvalidConfiguration, c.Name, pos)
			}
		}
		return nil
	}
	if c.Type.Kind() != reflect.Pointer || c.Type.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s needs a factory to build %v", ErrInvalidConfiguration, c.Name, c.Type)
	}
	if len(c.Arguments) > 0 {
		return fmt.Errorf("%w: %s has arguments but no factory", ErrInvalidConfiguration, c.Name)
	}
	return nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
