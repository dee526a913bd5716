// Package reflection holds the class and method metadata index every other
// component works from. A ClassInfo is immutable once built: source scanning
// and explicit registration both go through a Builder.
package reflection

import (
	"encoding/json"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-park/flow/pkg/annotation"
)

// ConstructorName is the join point name of object construction.
const ConstructorName = "New"

type Visibility int

const (
	Exported Visibility = iota
	Unexported
)

func (v Visibility) String() string {
	if v == Exported {
		return "exported"
	}
	return "unexported"
}

func visibilityOf(name string) Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return Exported
	}
	return Unexported
}

// Parameter is a parameter or result of a method. Type is a Go type
// expression qualified by package name, Imports the package paths it uses.
type Parameter struct {
	Name    string   `json:"name,omitempty"`
	Type    string   `json:"type"`
	Imports []string `json:"imports,omitempty"`
}

type (
	// MethodSpec is the mutable description a MethodInfo is built from.
	MethodSpec struct {
		Name        string          `json:"name"`
		Annotations annotation.List `json:"annotations,omitempty"`
		Params      []Parameter     `json:"params,omitempty"`
		Results     []Parameter     `json:"results,omitempty"`
		Variadic    bool            `json:"variadic,omitempty"`
	}

	// FieldSpec describes a struct field relevant to injection.
	FieldSpec struct {
		Name        string          `json:"name"`
		Type        Parameter       `json:"type"`
		Tag         string          `json:"tag,omitempty"`
		Annotations annotation.List `json:"annotations,omitempty"`
	}

	// ClassSpec is the mutable description a ClassInfo is built from.
	ClassSpec struct {
		Name        string          `json:"name"`
		Parent      string          `json:"parent,omitempty"`
		Interfaces  []string        `json:"interfaces,omitempty"`
		Annotations annotation.List `json:"annotations,omitempty"`
		Methods     []MethodSpec    `json:"methods,omitempty"`
		Fields      []FieldSpec     `json:"fields,omitempty"`
		Interface   bool            `json:"interface,omitempty"`
		// Constructor describes the factory function, named ConstructorName
		Constructor *MethodSpec `json:"constructor,omitempty"`
	}
)

// MethodInfo is the immutable metadata of one method.
type MethodInfo struct {
	spec     MethodSpec
	funcType reflect.Type
}

func (m *MethodInfo) Name() string                 { return m.spec.Name }
func (m *MethodInfo) Annotations() annotation.List { return append(annotation.List{}, m.spec.Annotations...) }
func (m *MethodInfo) Params() []Parameter          { return append([]Parameter{}, m.spec.Params...) }
func (m *MethodInfo) Results() []Parameter         { return append([]Parameter{}, m.spec.Results...) }
func (m *MethodInfo) IsVariadic() bool             { return m.spec.Variadic }
func (m *MethodInfo) Visibility() Visibility       { return visibilityOf(m.spec.Name) }

// FuncType is the method's signature without receiver; nil for classes only
// known from source.
func (m *MethodInfo) FuncType() reflect.Type { return m.funcType }

// ReturnsError reports whether the last result is the error interface.
func (m *MethodInfo) ReturnsError() bool {
	n := len(m.spec.Results)
	return n > 0 && m.spec.Results[n-1].Type == "error"
}

// FieldInfo is the immutable metadata of a struct field.
type FieldInfo struct {
	spec FieldSpec
}

func (f *FieldInfo) Name() string                 { return f.spec.Name }
func (f *FieldInfo) Type() Parameter              { return f.spec.Type }
func (f *FieldInfo) Annotations() annotation.List { return append(annotation.List{}, f.spec.Annotations...) }
func (f *FieldInfo) Exported() bool               { return visibilityOf(f.spec.Name) == Exported }

// Tag returns the value of the struct tag key.
func (f *FieldInfo) Tag(key string) (string, bool) {
	return reflect.StructTag(f.spec.Tag).Lookup(key)
}

// ClassInfo is the immutable metadata of a struct or interface type.
type ClassInfo struct {
	spec        ClassSpec
	methods     []*MethodInfo
	fields      []*FieldInfo
	ctor        *MethodInfo
	typ         reflect.Type
	constructor reflect.Value
}

// Describe builds a ClassInfo from a spec, typically produced by a source
// scanner or restored from cache.
func Describe(spec ClassSpec) *ClassInfo {
	c := &ClassInfo{spec: spec}
	c.spec.Interfaces = append([]string{}, spec.Interfaces...)
	c.spec.Annotations = append(annotation.List{}, spec.Annotations...)
	c.spec.Methods = append([]MethodSpec{}, spec.Methods...)
	c.spec.Fields = append([]FieldSpec{}, spec.Fields...)
	if spec.Constructor != nil {
		ctor := *spec.Constructor
		c.spec.Constructor = &ctor
	}
	c.index()
	return c
}

func (c *ClassInfo) index() {
	c.methods = c.methods[:0]
	for _, m := range c.spec.Methods {
		c.methods = append(c.methods, &MethodInfo{spec: m})
	}
	c.fields = c.fields[:0]
	for _, f := range c.spec.Fields {
		c.fields = append(c.fields, &FieldInfo{spec: f})
	}
	c.ctor = nil
	if c.spec.Constructor != nil {
		c.ctor = &MethodInfo{spec: *c.spec.Constructor}
	}
}

func (c *ClassInfo) Name() string                 { return c.spec.Name }
func (c *ClassInfo) Parent() string               { return c.spec.Parent }
func (c *ClassInfo) Interfaces() []string         { return append([]string{}, c.spec.Interfaces...) }
func (c *ClassInfo) Annotations() annotation.List { return append(annotation.List{}, c.spec.Annotations...) }
func (c *ClassInfo) IsInterface() bool            { return c.spec.Interface }
func (c *ClassInfo) Methods() []*MethodInfo       { return append([]*MethodInfo{}, c.methods...) }
func (c *ClassInfo) Fields() []*FieldInfo         { return append([]*FieldInfo{}, c.fields...) }

// Type is the runtime type, a pointer to struct or an interface type. It is
// nil for classes only known from source.
func (c *ClassInfo) Type() reflect.Type { return c.typ }

// Constructor is the registered factory function, if any.
func (c *ClassInfo) Constructor() (reflect.Value, bool) {
	return c.constructor, c.constructor.IsValid()
}

// ConstructorMethod describes the constructor join point.
func (c *ClassInfo) ConstructorMethod() (*MethodInfo, bool) {
	return c.ctor, c.ctor != nil
}

func (c *ClassInfo) Method(name string) (*MethodInfo, bool) {
	for _, m := range c.methods {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

func (c *ClassInfo) Field(name string) (*FieldInfo, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// PkgPath returns the import path part of the class name.
func (c *ClassInfo) PkgPath() string {
	pkg, _ := SplitName(c.spec.Name)
	return pkg
}

// ShortName returns the type name without its package.
func (c *ClassInfo) ShortName() string {
	_, name := SplitName(c.spec.Name)
	return name
}

// Spec returns a copy of the description c was built from.
func (c *ClassInfo) Spec() ClassSpec {
	return Describe(c.spec).spec
}

func (c *ClassInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.spec)
}

func (c *ClassInfo) UnmarshalJSON(data []byte) error {
	var spec ClassSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}
	*c = *Describe(spec)
	return nil
}

// SplitName splits "github.com/acme/shop.Order" into its import path and type name.
func SplitName(name string) (pkgPath, typeName string) {
	slash := strings.LastIndex(name, "/")
	dot := strings.LastIndex(name, ".")
	if dot <= slash {
		return "", name
	}
	return name[:dot], name[dot+1:]
}

// NameOf returns the class name of a named type, normalising pointers.
func NameOf(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
