package pointcut

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-park/flow/pkg/reflection"
)

// Settings is read access to the settings tree consulted by setting(...).
type Settings interface {
	Get(path string) (any, bool)
}

// Context carries what expressions need besides the join point itself.
type Context struct {
	Index     *reflection.Index
	Settings  Settings
	Filters   *FilterRegistry
	Pointcuts *Registry
}

// Expr is a compiled pointcut expression. Matches is called with a nil
// method to test a class as a whole; method predicates never match then.
type Expr interface {
	Matches(ctx *Context, class *reflection.ClassInfo, method *reflection.MethodInfo) bool
	String() string
}

type (
	orExpr  struct{ left, right Expr }
	andExpr struct{ left, right Expr }
	notExpr struct{ expr Expr }

	methodExpr struct {
		visibility *reflection.Visibility
		class      *regexp.Regexp
		method     *regexp.Regexp
		src        string
	}
	classExpr struct {
		class *regexp.Regexp
		src   string
	}
	withinExpr struct {
		typeName string
	}
	annotatedExpr struct {
		onMethod    bool
		name        *regexp.Regexp
		constraints []constraint
		src         string
	}
	filterExpr struct {
		name string
	}
	settingExpr struct {
		path  string
		value *string
	}
	refExpr struct {
		class string
		name  string
	}
)

type constraint struct {
	key    string
	negate bool
	value  string
}

func (e *orExpr) Matches(ctx *Context, c *reflection.ClassInfo, m *reflection.MethodInfo) bool {
	return e.left.Matches(ctx, c, m) || e.right.Matches(ctx, c, m)
}

func (e *orExpr) String() string {
	return "(" + e.left.String() + " || " + e.right.String() + ")"
}

func (e *andExpr) Matches(ctx *Context, c *reflection.ClassInfo, m *reflection.MethodInfo) bool {
	return e.left.Matches(ctx, c, m) && e.right.Matches(ctx, c, m)
}

func (e *andExpr) String() string {
	return "(" + e.left.String() + " && " + e.right.String() + ")"
}

func (e *notExpr) Matches(ctx *Context, c *reflection.ClassInfo, m *reflection.MethodInfo) bool {
	return !e.expr.Matches(ctx, c, m)
}

func (e *notExpr) String() string { return "!" + e.expr.String() }

func (e *methodExpr) Matches(_ *Context, c *reflection.ClassInfo, m *reflection.MethodInfo) bool {
	if m == nil {
		return false
	}
	if e.visibility != nil && m.Visibility() != *e.visibility {
		return false
	}
	return e.class.MatchString(c.Name()) && e.method.MatchString(m.Name())
}

func (e *methodExpr) String() string { return "method(" + e.src + ")" }

func (e *classExpr) Matches(_ *Context, c *reflection.ClassInfo, _ *reflection.MethodInfo) bool {
	return e.class.MatchString(c.Name())
}

func (e *classExpr) String() string { return "class(" + e.src + ")" }

func (e *withinExpr) Matches(ctx *Context, c *reflection.ClassInfo, _ *reflection.MethodInfo) bool {
	if c.Name() == e.typeName || c.Parent() == e.typeName {
		return true
	}
	for _, i := range c.Interfaces() {
		if i == e.typeName {
			return true
		}
	}
	return ctx != nil && ctx.Index != nil && ctx.Index.IsSubtypeOf(c.Name(), e.typeName)
}

func (e *withinExpr) String() string { return "within(" + e.typeName + ")" }

func (e *annotatedExpr) Matches(_ *Context, c *reflection.ClassInfo, m *reflection.MethodInfo) bool {
	annos := c.Annotations()
	if e.onMethod {
		if m == nil {
			return false
		}
		annos = m.Annotations()
	}
	for _, a := range annos {
		if !e.name.MatchString(a.Name) {
			continue
		}
		ok := true
		for _, con := range e.constraints {
			v, found := a.Arg(con.key)
			if (found && v == con.value) == con.negate {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (e *annotatedExpr) String() string {
	if e.onMethod {
		return "methodAnnotatedWith(" + e.src + ")"
	}
	return "classAnnotatedWith(" + e.src + ")"
}

func (e *filterExpr) Matches(ctx *Context, c *reflection.ClassInfo, m *reflection.MethodInfo) bool {
	if ctx == nil {
		return false
	}
	f, ok := ctx.Filters.Lookup(e.name)
	return ok && f.Matches(c, m)
}

func (e *filterExpr) String() string { return "filter(" + e.name + ")" }

func (e *settingExpr) Matches(ctx *Context, _ *reflection.ClassInfo, _ *reflection.MethodInfo) bool {
	if ctx == nil || ctx.Settings == nil {
		return false
	}
	v, ok := ctx.Settings.Get(e.path)
	if !ok {
		return false
	}
	if e.value != nil {
		return fmt.Sprint(v) == *e.value
	}
	return truthy(v)
}

func (e *settingExpr) String() string {
	if e.value != nil {
		return "setting(" + e.path + " == " + strconv.Quote(*e.value) + ")"
	}
	return "setting(" + e.path + ")"
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return true
}

func (e *refExpr) Matches(ctx *Context, c *reflection.ClassInfo, m *reflection.MethodInfo) bool {
	if ctx == nil || ctx.Pointcuts == nil {
		return false
	}
	target, err := ctx.Pointcuts.Resolve(e.class, e.name)
	if err != nil {
		return false
	}
	return target.Matches(ctx, c, m)
}

func (e *refExpr) String() string { return e.class + "->" + e.name }

// walk visits e and every sub-expression depth first.
func walk(e Expr, fn func(Expr)) {
	fn(e)
	switch e := e.(type) {
	case *orExpr:
		walk(e.left, fn)
		walk(e.right, fn)
	case *andExpr:
		walk(e.left, fn)
		walk(e.right, fn)
	case *notExpr:
		walk(e.expr, fn)
	}
}

// References lists the named pointcuts e refers to, as "Class->name".
func References(e Expr) []string {
	var refs []string
	walk(e, func(x Expr) {
		if r, ok := x.(*refExpr); ok {
			refs = append(refs, r.String())
		}
	})
	return refs
}

// Check verifies at compile time that every filter and named pointcut used
// by e exists and that no reference is circular.
func Check(ctx *Context, e Expr) error {
	var err error
	walk(e, func(x Expr) {
		if err != nil {
			return
		}
		switch x := x.(type) {
		case *filterExpr:
			if ctx == nil {
				err = fmt.Errorf("%w: %s", ErrUnknownFilter, x.name)
				return
			}
			if _, ok := ctx.Filters.Lookup(x.name); !ok {
				err = fmt.Errorf("%w: %s", ErrUnknownFilter, x.name)
			}
		case *refExpr:
			if ctx == nil || ctx.Pointcuts == nil {
				err = fmt.Errorf("%w: %s", ErrUnknownPointcut, x)
				return
			}
			var target Expr
			if target, err = ctx.Pointcuts.Resolve(x.class, x.name); err == nil {
				err = Check(ctx, target)
			}
		}
	})
	return err
}

func anchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + strings.TrimSpace(pattern) + `)$`)
}
