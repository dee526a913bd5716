package reflection

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ParameterOf renders t as a Go type expression qualified by package name.
func ParameterOf(name string, t reflect.Type) Parameter {
	imports := map[string]struct{}{}
	expr := typeExpr(t, imports)
	p := Parameter{Name: name, Type: expr}
	for path := range imports {
		p.Imports = append(p.Imports, path)
	}
	sort.Strings(p.Imports)
	return p
}

func typeExpr(t reflect.Type, imports map[string]struct{}) string {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		imports[t.PkgPath()] = struct{}{}
		return t.String()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeExpr(t.Elem(), imports)
	case reflect.Slice:
		return "[]" + typeExpr(t.Elem(), imports)
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), typeExpr(t.Elem(), imports))
	case reflect.Map:
		return fmt.Sprintf("map[%s]%s", typeExpr(t.Key(), imports), typeExpr(t.Elem(), imports))
	case reflect.Chan:
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + typeExpr(t.Elem(), imports)
		case reflect.SendDir:
			return "chan<- " + typeExpr(t.Elem(), imports)
		}
		return "chan " + typeExpr(t.Elem(), imports)
	case reflect.Func:
		return "func" + signatureExpr(t, 0, imports)
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any"
		}
	}
	return t.String()
}

// signatureExpr renders "(params) results" of a func type, skipping the first
// skip inputs (the receiver of a method expression).
func signatureExpr(t reflect.Type, skip int, imports map[string]struct{}) string {
	var in []string
	for i := skip; i < t.NumIn(); i++ {
		if t.IsVariadic() && i == t.NumIn()-1 {
			in = append(in, "..."+typeExpr(t.In(i).Elem(), imports))
			continue
		}
		in = append(in, typeExpr(t.In(i), imports))
	}
	var out []string
	for i := 0; i < t.NumOut(); i++ {
		out = append(out, typeExpr(t.Out(i), imports))
	}
	s := "(" + strings.Join(in, ", ") + ")"
	switch len(out) {
	case 0:
	case 1:
		s += " " + out[0]
	default:
		s += " (" + strings.Join(out, ", ") + ")"
	}
	return s
}

// methodSpecOf describes a method of a runtime type. Method values of
// interface types carry no receiver, those of concrete types do.
func methodSpecOf(m reflect.Method, hasReceiver bool) (MethodSpec, reflect.Type) {
	ft := m.Type
	skip := 0
	if hasReceiver {
		skip = 1
	}
	spec := MethodSpec{Name: m.Name, Variadic: ft.IsVariadic()}
	in := make([]reflect.Type, 0, ft.NumIn())
	for i := skip; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		in = append(in, pt)
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			p := ParameterOf(fmt.Sprintf("a%d", i-skip), pt.Elem())
			p.Type = "..." + p.Type
			spec.Params = append(spec.Params, p)
			continue
		}
		spec.Params = append(spec.Params, ParameterOf(fmt.Sprintf("a%d", i-skip), pt))
	}
	out := make([]reflect.Type, 0, ft.NumOut())
	for i := 0; i < ft.NumOut(); i++ {
		out = append(out, ft.Out(i))
		spec.Results = append(spec.Results, ParameterOf("", ft.Out(i)))
	}
	return spec, reflect.FuncOf(in, out, ft.IsVariadic())
}
