package object

import (
	"fmt"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
)

// isProvider reports whether t is func() T or func() (T, error).
func isProvider(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 0 {
		return false
	}
	return t.NumOut() == 1 || t.NumOut() == 2 && t.Out(1) == errorType
}

// provider builds a func of type t that gets the object on its first call
// and returns the same value afterwards. An empty ref autowires by the
// provided type.
func (m *Manager) provider(consumer, ref string, t reflect.Type) (any, error) {
	if !isProvider(t) {
		return nil, fmt.Errorf("%w: lazy injection into %v, want func() T", ErrInvalidConfiguration, t)
	}
	out := t.Out(0)
	if ref == "" {
		id, err := m.idOfType(out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", consumer, err)
		}
		ref = id
	}
	if _, ok := m.configs[ref]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, ref)
	}

	var (
		once sync.Once
		val  reflect.Value
		err  error
	)
	fn := reflect.MakeFunc(t, func([]reflect.Value) []reflect.Value {
		once.Do(func() {
			m.log.WithFields(logrus.Fields{"object": consumer, "dependency": ref}).Debug("resolving lazy dependency")
			var inst *instance
			if inst, err = m.get(ref, nil, newResolution()); err != nil {
				return
			}
			var v any
			if v, err = m.assign(consumer, inst, out); err == nil {
				val, err = valueFor(v, out)
			}
		})
		if !val.IsValid() {
			val = reflect.Zero(out)
		}
		if t.NumOut() == 1 {
			if err != nil {
				panic(err)
			}
			return []reflect.Value{val}
		}
		errVal := reflect.Zero(errorType)
		if err != nil {
			errVal = reflect.ValueOf(&err).Elem()
		}
		return []reflect.Value{val, errVal}
	})
	return fn.Interface(), nil
}

// propertySink finds how to set property name on target: an Inject<Name> or
// Set<Name> setter, or an exported field.
func propertySink(target reflect.Value, name string) (reflect.Type, func(any) error, error) {
	upper := upperFirst(name)
	for _, prefix := range []string{setterPrefix, "Set"} {
		mv := target.MethodByName(prefix + upper)
		if !mv.IsValid() || mv.Type().NumIn() != 1 {
			continue
		}
		t := mv.Type().In(0)
		return t, func(v any) error {
			rv, err := valueFor(v, t)
			if err != nil {
				return err
			}
			out := mv.Call([]reflect.Value{rv})
			if len(out) > 0 {
				if err, ok := out[len(out)-1].Interface().(error); ok {
					return err
				}
			}
			return nil
		}, nil
	}
	if target.Kind() == reflect.Pointer && target.Elem().Kind() == reflect.Struct {
		f := target.Elem().FieldByName(name)
		if !f.IsValid() {
			f = target.Elem().FieldByName(upper)
		}
		if f.IsValid() && f.CanSet() {
			return f.Type(), func(v any) error {
				rv, err := valueFor(v, f.Type())
				if err != nil {
					return err
				}
				f.Set(rv)
				return nil
			}, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: no setter or exported field for property %s", ErrInvalidConfiguration, name)
}

// valueFor turns v into a value of exactly type t.
func valueFor(v any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.New(t).Elem()
	if v == nil {
		return rv, nil
	}
	vt := reflect.TypeOf(v)
	switch {
	case vt.AssignableTo(t):
		rv.Set(reflect.ValueOf(v))
	case vt.ConvertibleTo(t) && vt.Kind() == t.Kind():
		rv.Set(reflect.ValueOf(v).Convert(t))
	default:
		return rv, fmt.Errorf("%w: %T is not assignable to %v", ErrTypeMismatch, v, t)
	}
	return rv, nil
}

// convertValue converts a configured literal to t, weakly: "42" becomes 42
// and a YAML list becomes a typed slice.
func convertValue(v any, t reflect.Type) (any, error) {
	if v == nil {
		return reflect.Zero(t).Interface(), nil
	}
	if reflect.TypeOf(v).AssignableTo(t) {
		return v, nil
	}
	out := reflect.New(t)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out.Interface(),
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return out.Elem().Interface(), nil
}

// invoke calls a factory and splits its results.
func invoke(fn reflect.Value, params []any) (any, error) {
	ft := fn.Type()
	in := make([]reflect.Value, len(params))
	for i, p := range params {
		rv, err := valueFor(p, ft.In(i))
		if err != nil {
			return nil, err
		}
		in[i] = rv
	}
	var out []reflect.Value
	if ft.IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}
