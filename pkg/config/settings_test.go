package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, tree, err := FromMap(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, BackendFile, s.Cache.Backend)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, 4, s.Proxy.Parallelism)
	assert.Contains(t, s.Reflection.Exclude, "**/*_test.go")
	_, ok := tree.Get("shop.enabled")
	assert.False(t, ok)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Settings.yaml")
	content := `
context: Production
cache:
  backend: memory
  default_lifetime: 90s
reflection:
  patterns: ["./..."]
shop:
  checkout:
    enabled: true
    currency: EUR
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	s, tree, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "Production", s.Context)
	assert.Equal(t, BackendMemory, s.Cache.Backend)
	assert.Equal(t, 90*time.Second, s.Cache.DefaultLifetime)
	assert.Equal(t, []string{"./..."}, s.Reflection.Patterns)

	v, ok := tree.Get("shop.checkout.currency")
	require.True(t, ok)
	assert.Equal(t, "EUR", v)
	v, ok = tree.Get("shop.checkout.enabled")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestLoad_Invalid(t *testing.T) {
	_, _, err := FromMap(map[string]any{"cache": map[string]any{"backend": "redis"}})
	assert.ErrorIs(t, err, ErrInvalidSetting)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewTree(t *testing.T) {
	tree := NewTree(map[string]any{"a": map[string]any{"b": "c"}})
	v, ok := tree.Get("a.b")
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Contains(t, tree.All(), "a")
}

func TestTree_Decode(t *testing.T) {
	tree := NewTree(map[string]any{"shop": map[string]any{"limit": "42", "tags": []any{"a", "b"}}})
	var limit int
	ok, err := tree.Decode("shop.limit", &limit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, limit)

	var tags []string
	_, err = tree.Decode("shop.tags", &tags)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)

	ok, err = tree.Decode("shop.missing", &limit)
	require.NoError(t, err)
	assert.False(t, ok)
}
