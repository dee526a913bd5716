package gen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-park/flow/pkg/cache"
)

func TestEmitter_Emit(t *testing.T) {
	idx := shopIndex(t)
	classes, err := compile(t, idx)
	require.NoError(t, err)

	dir := t.TempDir()
	proxies := cache.NewVariableFrontend(cache.ProxyCache, cache.NewMemoryBackend(0))
	e := NewEmitter(idx,
		WithPackages(map[string]Package{pkg: {Name: "gen", Dir: dir}}),
		WithCache(proxies),
		WithParallelism(2))
	files, err := e.Emit(context.Background(), classes)
	require.NoError(t, err)
	shopFile := filepath.Join(dir, "shop_proxy.gen.go")
	assert.Equal(t, []string{filepath.Join(dir, registryFile), shopFile}, files)

	src, err := os.ReadFile(shopFile)
	require.NoError(t, err)
	code := string(src)
	assert.Contains(t, code, "// Code generated by flow; DO NOT EDIT.")
	assert.Contains(t, code, "package gen")
	assert.Contains(t, code, "type shopProxy struct")
	assert.Contains(t, code, "return &shopProxy{Shop: p.Target().(*Shop), proxy: p}")
	assert.Contains(t, code, "func (d *shopProxy) Buy(p0 string, p1 ...int) (string, error)")
	assert.Contains(t, code, `r := d.proxy.Invoke("Buy", p0, p1)`)
	assert.Contains(t, code, "return aop.Result[string](r, 0), aop.Result[error](r, 1)")
	assert.Contains(t, code, "func (d *shopProxy) Trail() []string")
	assert.NotContains(t, code, "Browse", "methods without advice are promoted")
	assert.Contains(t, code, "// shopProxy intercepts "+pkg+".Shop.")
	assert.NotContains(t, code, "*gen.Shop", "types of the output package are not qualified")
	assert.NotContains(t, code, `"`+pkg+`"`, "the output package does not import itself")

	reg, err := os.ReadFile(filepath.Join(dir, registryFile))
	require.NoError(t, err)
	assert.Contains(t, string(reg), "func RegisterGenProxies(r *aop.DecoratorRegistry)")
	assert.Contains(t, string(reg), `r.Register("`+pkg+`.Shop", newShopProxy)`)

	ok, err := proxies.Has("proxy_" + cache.Encode(pkg+".Shop"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(shopFile, []byte("package gen\n"), 0o644))
	_, err = e.Emit(context.Background(), classes)
	require.NoError(t, err)
	restored, err := os.ReadFile(shopFile)
	require.NoError(t, err)
	assert.Equal(t, src, restored)
}

func TestEmitter_OutputDir(t *testing.T) {
	idx := shopIndex(t)
	classes, err := compile(t, idx)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "proxies")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	files, err := NewEmitter(idx, WithOutputDir(dir)).Emit(context.Background(), classes)
	require.NoError(t, err)
	require.Len(t, files, 2)

	src, err := os.ReadFile(filepath.Join(dir, "shop_proxy.gen.go"))
	require.NoError(t, err)
	code := string(src)
	assert.Contains(t, code, "package proxies")
	assert.Contains(t, code, `"`+pkg+`"`)
	assert.Contains(t, code, "*gen.Shop")
}

func TestEmitter_UnknownPackage(t *testing.T) {
	idx := shopIndex(t)
	classes, err := compile(t, idx)
	require.NoError(t, err)
	_, err = NewEmitter(idx).Emit(context.Background(), classes)
	assert.ErrorIs(t, err, ErrNoPackageDir)
}
