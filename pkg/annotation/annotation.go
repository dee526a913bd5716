// Package annotation models the key-value annotations attached to classes,
// methods and fields, and parses them from Go doc comments of the form
//
//	//@Around("method(.*Service->Place.*())")
//	//@Scope("prototype")
//	//@Inject(name="logger", lazy=true)
package annotation

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultKey is the argument key of an unnamed annotation argument.
const DefaultKey = ""

const (
	Aspect         = "Aspect"
	Pointcut       = "Pointcut"
	Before         = "Before"
	After          = "After"
	AfterReturning = "AfterReturning"
	AfterThrowing  = "AfterThrowing"
	Around         = "Around"
	Introduce      = "Introduce"
	Priority       = "Priority"
	Proxy          = "Proxy"
	Scope          = "Scope"
	Inject         = "Inject"
	Lazy           = "Lazy"
	Autowiring     = "Autowiring"
)

var systemAnnotation = map[string]struct{}{
	Aspect: {}, Pointcut: {}, Before: {}, After: {}, AfterReturning: {}, AfterThrowing: {},
	Around: {}, Introduce: {}, Priority: {}, Proxy: {}, Scope: {}, Inject: {}, Lazy: {}, Autowiring: {},
}

// IsSystemAnnotation reports whether name is interpreted by the framework itself.
func IsSystemAnnotation(name string) bool {
	_, ok := systemAnnotation[name]
	return ok
}

// Annotation is a single, possibly repeated, annotation.
type Annotation struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

func New(name string) Annotation {
	return Annotation{Name: name}
}

// With returns a copy of a carrying the argument key=value.
func (a Annotation) With(key, value string) Annotation {
	args := make(map[string]string, len(a.Args)+1)
	for k, v := range a.Args {
		args[k] = v
	}
	args[key] = value
	return Annotation{Name: a.Name, Args: args}
}

// WithValue sets the default argument.
func (a Annotation) WithValue(value string) Annotation {
	return a.With(DefaultKey, value)
}

func (a Annotation) Value() string {
	return a.Args[DefaultKey]
}

func (a Annotation) Arg(key string) (string, bool) {
	v, ok := a.Args[key]
	return v, ok
}

// Bool interprets the argument under key as a boolean, falling back to def.
func (a Annotation) Bool(key string, def bool) bool {
	v, ok := a.Args[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (a Annotation) String() string {
	var sb strings.Builder
	sb.WriteString("@" + a.Name)
	if len(a.Args) == 0 {
		return sb.String()
	}
	var parts []string
	if v, ok := a.Args[DefaultKey]; ok {
		parts = append(parts, strconv.Quote(v))
	}
	keys := make([]string, 0, len(a.Args))
	for k := range a.Args {
		if k != DefaultKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.Quote(a.Args[k]))
	}
	sb.WriteString("(" + strings.Join(parts, ", ") + ")")
	return sb.String()
}

// List is an ordered collection of annotations; the same name may repeat.
type List []Annotation

func (l List) Has(name string) bool {
	for _, a := range l {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (l List) First(name string) (Annotation, bool) {
	for _, a := range l {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

func (l List) Find(name string) List {
	var result List
	for _, a := range l {
		if a.Name == name {
			result = append(result, a)
		}
	}
	return result
}

// Names returns the distinct annotation names in declaration order.
func (l List) Names() []string {
	var names []string
	seen := map[string]struct{}{}
	for _, a := range l {
		if _, ok := seen[a.Name]; ok {
			continue
		}
		seen[a.Name] = struct{}{}
		names = append(names, a.Name)
	}
	return names
}

// Merge appends the annotations of o that are not already present verbatim.
func (l List) Merge(o List) List {
	result := append(List{}, l...)
	for _, a := range o {
		if !result.contains(a) {
			result = append(result, a)
		}
	}
	return result
}

func (l List) contains(a Annotation) bool {
	for _, b := range l {
		if b.String() == a.String() {
			return true
		}
	}
	return false
}
