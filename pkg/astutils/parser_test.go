package astutils

import (
	"go/ast"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-park/flow/pkg/annotation"
	"github.com/go-park/flow/pkg/cache"
	"github.com/go-park/flow/pkg/reflection"
)

const shopPkg = "github.com/go-park/flow/pkg/astutils/testdata/shop"

func specsByName(specs []reflection.ClassSpec) map[string]reflection.ClassSpec {
	m := map[string]reflection.ClassSpec{}
	for _, s := range specs {
		m[s.Name] = s
	}
	return m
}

func methodSpec(t *testing.T, spec reflection.ClassSpec, name string) reflection.MethodSpec {
	t.Helper()
	for _, m := range spec.Methods {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("%s has no method %s", spec.Name, name)
	return reflection.MethodSpec{}
}

func TestScanner_Scan(t *testing.T) {
	res, err := NewScanner(WithDir("testdata/shop"), WithPatterns(".")).Scan()
	require.NoError(t, err)

	names := make([]string, 0, len(res.Classes))
	for _, c := range res.Classes {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		shopPkg + ".Base",
		shopPkg + ".Catalog",
		shopPkg + ".Logger",
		shopPkg + ".Store",
		shopPkg + ".Tracing",
	}, names, "generated proxies are excluded")

	classes := specsByName(res.Classes)
	store := classes[shopPkg+".Store"]
	assert.Equal(t, shopPkg+".Base", store.Parent)
	assert.Equal(t, []string{shopPkg + ".Catalog"}, store.Interfaces)
	scope, ok := store.Annotations.First(annotation.Scope)
	require.True(t, ok)
	assert.Equal(t, "singleton", scope.Value())

	products := methodSpec(t, store, "Products")
	assert.Equal(t, []reflection.Parameter{{Name: "ctx", Type: "context.Context", Imports: []string{"context"}}}, products.Params)
	require.Len(t, products.Results, 2)
	assert.Equal(t, "[]string", products.Results[0].Type)
	assert.Equal(t, "error", products.Results[1].Type)
	assert.True(t, products.Annotations.Has("Cached"))

	add := methodSpec(t, store, "add")
	assert.True(t, add.Variadic)
	assert.Equal(t, "...string", add.Params[0].Type)

	require.Len(t, store.Fields, 3)
	assert.Equal(t, "Log", store.Fields[0].Name)
	assert.Equal(t, "shop.Logger", store.Fields[0].Type.Type)
	assert.Equal(t, []string{shopPkg}, store.Fields[0].Type.Imports)
	assert.True(t, store.Fields[0].Annotations.Has(annotation.Inject))
	assert.Equal(t, `inject:"setting:shop.prefix"`, store.Fields[1].Tag)

	require.NotNil(t, store.Constructor)
	assert.Equal(t, reflection.ConstructorName, store.Constructor.Name)
	assert.Equal(t, "shop.Logger", store.Constructor.Params[0].Type)
	assert.True(t, store.Constructor.Annotations.Has(annotation.Lazy))

	catalog := classes[shopPkg+".Catalog"]
	assert.True(t, catalog.Interface)
	assert.True(t, methodSpec(t, catalog, "Products").Annotations.Has("Cached"))

	tracing := classes[shopPkg+".Tracing"]
	assert.True(t, tracing.Annotations.Has(annotation.Aspect))
	trace := methodSpec(t, tracing, "Trace")
	assert.Equal(t, "aop.ProceedingJoinPoint", trace.Params[0].Type)
	assert.Contains(t, []string{"[]any", "[]interface{}"}, trace.Results[0].Type)

	pkg, ok := res.Packages[shopPkg]
	require.True(t, ok)
	assert.Equal(t, "shop", pkg.Name)
	assert.Equal(t, "shop", filepath.Base(pkg.Dir))
	assert.Len(t, pkg.Files, 1)

	idx, err := reflection.NewBuilder().Add(describeAll(res.Classes)...).Build()
	require.NoError(t, err)
	assert.Len(t, idx.ClassesAnnotatedWith(annotation.Aspect), 1)
	assert.True(t, idx.IsSubtypeOf(shopPkg+".Store", shopPkg+".Catalog"))
}

func describeAll(specs []reflection.ClassSpec) []*reflection.ClassInfo {
	var list []*reflection.ClassInfo
	for _, s := range specs {
		list = append(list, reflection.Describe(s))
	}
	return list
}

func TestScanner_Cache(t *testing.T) {
	store := cache.NewVariableFrontend(cache.ReflectionCache, cache.NewMemoryBackend(0))
	s := NewScanner(WithDir("testdata/shop"), WithPatterns("."), WithCache(store))

	first, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, first.Cached)

	second, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{shopPkg}, second.Cached)
	assert.Equal(t, first.Classes, second.Classes)
	assert.Equal(t, first.Packages, second.Packages)

	n, err := store.Backend().FlushByTag(cache.Encode(shopPkg))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	third, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, third.Cached)
}

func TestScanner_Interceptors(t *testing.T) {
	var fields []string
	s := NewScanner(WithDir("testdata/shop"), WithPatterns("."),
		WithClassInterceptors(func(spec *reflection.ClassSpec, node *ast.TypeSpec) {
			if node != nil && node.Name.Name == "Store" {
				spec.Annotations = append(spec.Annotations, annotation.New(annotation.Proxy).WithValue("false"))
			}
		}),
		WithFieldInterceptors(func(spec *reflection.FieldSpec, node *ast.Field) {
			fields = append(fields, spec.Name)
		}))
	res, err := s.Scan()
	require.NoError(t, err)
	store := specsByName(res.Classes)[shopPkg+".Store"]
	assert.True(t, store.Annotations.Has(annotation.Proxy))
	assert.Equal(t, []string{"ID", "Log", "Prefix", "items"}, fields)
}

func TestScanner_MalformedAnnotation(t *testing.T) {
	_, err := NewScanner(WithDir("testdata/badanno"), WithPatterns(".")).Scan()
	assert.ErrorIs(t, err, annotation.ErrMalformed)
}
