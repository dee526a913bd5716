package reflection

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Index is the immutable set of known classes.
type Index struct {
	classes map[string]*ClassInfo
	names   []string
	byType  map[reflect.Type]string
}

func newIndex() *Index {
	return &Index{
		classes: map[string]*ClassInfo{},
		byType:  map[reflect.Type]string{},
	}
}

func (i *Index) add(c *ClassInfo) {
	i.classes[c.Name()] = c
	i.names = append(i.names, c.Name())
	sort.Strings(i.names)
	if c.typ != nil {
		i.byType[c.typ] = c.Name()
	}
}

func (i *Index) Class(name string) (*ClassInfo, bool) {
	c, ok := i.classes[name]
	return c, ok
}

// Classes returns all classes sorted by name.
func (i *Index) Classes() []*ClassInfo {
	result := make([]*ClassInfo, 0, len(i.names))
	for _, n := range i.names {
		result = append(result, i.classes[n])
	}
	return result
}

func (i *Index) Len() int { return len(i.names) }

// ClassNameOf maps a runtime type to its registered class name.
func (i *Index) ClassNameOf(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	if t.Kind() == reflect.Struct {
		t = reflect.PointerTo(t)
	}
	n, ok := i.byType[t]
	return n, ok
}

// ClassesAnnotatedWith returns the classes carrying an annotation named name.
func (i *Index) ClassesAnnotatedWith(name string) []*ClassInfo {
	var result []*ClassInfo
	for _, c := range i.Classes() {
		if c.spec.Annotations.Has(name) {
			result = append(result, c)
		}
	}
	return result
}

// Implementations returns the non-interface classes that are subtypes of name.
func (i *Index) Implementations(name string) []*ClassInfo {
	var result []*ClassInfo
	for _, c := range i.Classes() {
		if !c.IsInterface() && c.Name() != name && i.IsSubtypeOf(c.Name(), name) {
			result = append(result, c)
		}
	}
	return result
}

// IsSubtypeOf reports whether class is super, embeds it transitively, or
// implements it (directly or through an embedded parent).
func (i *Index) IsSubtypeOf(class, super string) bool {
	seen := map[string]struct{}{}
	for name := class; name != ""; {
		if name == super {
			return true
		}
		if _, loop := seen[name]; loop {
			return false
		}
		seen[name] = struct{}{}
		c, ok := i.classes[name]
		if !ok {
			return false
		}
		for _, iface := range c.spec.Interfaces {
			if iface == super {
				return true
			}
		}
		name = c.spec.Parent
	}
	return false
}

// Snapshot serialises the metadata of all classes; runtime types and
// constructors are not part of it.
func (i *Index) Snapshot() ([]byte, error) {
	return json.Marshal(i.Classes())
}

// Restore decodes a Snapshot into classes ready for Builder.Add.
func Restore(data []byte) ([]*ClassInfo, error) {
	var classes []*ClassInfo
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}
