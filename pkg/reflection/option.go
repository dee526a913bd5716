package reflection

import (
	"github.com/go-park/flow/pkg/annotation"
)

type (
	classRegistration struct {
		name              string
		annotations       annotation.List
		methodAnnotations map[string]annotation.List
		fieldAnnotations  map[string]annotation.List
		constructor       any
	}
	ClassOption func(*classRegistration)
)

// WithName overrides the class name derived from the type.
func WithName(name string) ClassOption {
	return func(r *classRegistration) {
		r.name = name
	}
}

func WithAnnotations(annos ...annotation.Annotation) ClassOption {
	return func(r *classRegistration) {
		r.annotations = append(r.annotations, annos...)
	}
}

func WithMethodAnnotations(method string, annos ...annotation.Annotation) ClassOption {
	return func(r *classRegistration) {
		if r.methodAnnotations == nil {
			r.methodAnnotations = map[string]annotation.List{}
		}
		r.methodAnnotations[method] = append(r.methodAnnotations[method], annos...)
	}
}

func WithFieldAnnotations(field string, annos ...annotation.Annotation) ClassOption {
	return func(r *classRegistration) {
		if r.fieldAnnotations == nil {
			r.fieldAnnotations = map[string]annotation.List{}
		}
		r.fieldAnnotations[field] = append(r.fieldAnnotations[field], annos...)
	}
}

// WithConstructor registers a factory func returning the class type, or the
// class type and an error. Its parameters are constructor injection points.
func WithConstructor(fn any) ClassOption {
	return func(r *classRegistration) {
		r.constructor = fn
	}
}
