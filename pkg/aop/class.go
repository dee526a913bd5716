package aop

import (
	"reflect"

	"github.com/go-park/flow/pkg/aspect"
	"github.com/go-park/flow/pkg/tools/collections"
)

// ProxyMethod is the advice table of one intercepted method.
type ProxyMethod struct {
	Name         string
	Introduced   bool
	ReturnsError bool
	// FuncType is the signature without receiver; nil when only known from source
	FuncType reflect.Type
	Advices  map[aspect.AdviceKind][]aspect.BoundAdvice
}

func (m *ProxyMethod) advices(kind aspect.AdviceKind) []aspect.BoundAdvice {
	return m.Advices[kind]
}

func (m *ProxyMethod) Empty() bool {
	for _, a := range m.Advices {
		if len(a) > 0 {
			return false
		}
	}
	return true
}

func (m *ProxyMethod) numOut() int {
	if m.FuncType == nil {
		return -1
	}
	return m.FuncType.NumOut()
}

// ProxyClass describes how instances of one class are intercepted.
type ProxyClass struct {
	Class      string
	Interfaces []string
	// Constructor is nil unless construction is advised
	Constructor *ProxyMethod
	Methods     map[string]*ProxyMethod
}

func (c *ProxyClass) Method(name string) (*ProxyMethod, bool) {
	m, ok := c.Methods[name]
	return m, ok
}

func (c *ProxyClass) MethodNames() []string {
	return collections.SortedKeys(c.Methods)
}
