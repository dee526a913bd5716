package astutils

import (
	"go/ast"

	"github.com/go-park/flow/pkg/reflection"
)

type (
	// ClassInterceptor may rewrite the ClassSpec of a scanned type, for example to
	// add annotations derived from custom ones.
	ClassInterceptor func(spec *reflection.ClassSpec, node *ast.TypeSpec)
	FieldInterceptor func(spec *reflection.FieldSpec, node *ast.Field)
)

func (s *Scanner) interceptClass(spec *reflection.ClassSpec, node *ast.TypeSpec) {
	for _, i := range s.classInterceptors {
		i(spec, node)
	}
}

func (s *Scanner) interceptField(spec *reflection.FieldSpec, node *ast.Field) {
	if node == nil {
		return
	}
	for _, i := range s.fieldInterceptors {
		i(spec, node)
	}
}
