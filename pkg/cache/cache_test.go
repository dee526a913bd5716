package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/logging"
)

type backendSuite struct {
	suite.Suite
	newBackend func(t *testing.T) Backend
	backend    Backend
}

func (s *backendSuite) SetupTest() {
	s.backend = s.newBackend(s.T())
}

func (s *backendSuite) TestSetGet() {
	require.NoError(s.T(), s.backend.Set("proxy_Order", []byte("package shop"), nil, 0))

	data, ok, err := s.backend.Get("proxy_Order")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("package shop", string(data))

	ok, err = s.backend.Has("proxy_Order")
	s.NoError(err)
	s.True(ok)

	_, ok, err = s.backend.Get("missing")
	s.NoError(err)
	s.False(ok)
}

func (s *backendSuite) TestOverwrite() {
	s.Require().NoError(s.backend.Set("a", []byte("1"), []string{"x"}, 0))
	s.Require().NoError(s.backend.Set("a", []byte("2"), []string{"y"}, 0))
	data, ok, err := s.backend.Get("a")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("2", string(data))

	n, err := s.backend.FlushByTag("x")
	s.NoError(err)
	s.Equal(0, n)
}

func (s *backendSuite) TestRemove() {
	s.Require().NoError(s.backend.Set("a", []byte("1"), nil, 0))
	removed, err := s.backend.Remove("a")
	s.NoError(err)
	s.True(removed)
	removed, err = s.backend.Remove("a")
	s.NoError(err)
	s.False(removed)
}

func (s *backendSuite) TestFlushByTag() {
	pkg := Encode("github.com/acme/shop")
	s.Require().NoError(s.backend.Set("reflection_a", []byte("a"), []string{pkg}, 0))
	s.Require().NoError(s.backend.Set("reflection_b", []byte("b"), []string{pkg, "other"}, 0))
	s.Require().NoError(s.backend.Set("reflection_c", []byte("c"), []string{"other"}, 0))

	n, err := s.backend.FlushByTag(pkg)
	s.NoError(err)
	s.Equal(2, n)

	for id, want := range map[string]bool{"reflection_a": false, "reflection_b": false, "reflection_c": true} {
		ok, err := s.backend.Has(id)
		s.NoError(err)
		s.Equal(want, ok, id)
	}
}

func (s *backendSuite) TestFlush() {
	s.Require().NoError(s.backend.Set("a", []byte("1"), nil, 0))
	s.Require().NoError(s.backend.Set("b", []byte("2"), nil, 0))
	s.NoError(s.backend.Flush())
	ok, err := s.backend.Has("a")
	s.NoError(err)
	s.False(ok)
}

func (s *backendSuite) TestExpiredEntries() {
	s.Require().NoError(s.backend.Set("short", []byte("1"), nil, time.Second))
	switch b := s.backend.(type) {
	case *MemoryBackend:
		b.now = func() time.Time { return time.Now().Add(time.Hour) }
	case *FileBackend:
		b.now = func() time.Time { return time.Now().Add(time.Hour) }
	case *DatabaseBackend:
		b.now = func() time.Time { return time.Now().Add(time.Hour) }
	}
	ok, err := s.backend.Has("short")
	s.NoError(err)
	s.False(ok)
}

func (s *backendSuite) TestInvalidIdentifiers() {
	s.ErrorIs(s.backend.Set("has/slash", nil, nil, 0), ErrInvalidIdentifier)
	s.ErrorIs(s.backend.Set("ok", nil, []string{"bad tag"}, 0), ErrInvalidTag)
}

func TestMemoryBackend(t *testing.T) {
	suite.Run(t, &backendSuite{newBackend: func(*testing.T) Backend {
		return NewMemoryBackend(0)
	}})
}

func TestFileBackend(t *testing.T) {
	suite.Run(t, &backendSuite{newBackend: func(t *testing.T) Backend {
		b, err := NewFileBackend(t.TempDir(), "Flow_Test", 0)
		require.NoError(t, err)
		return b
	}})
}

func TestDatabaseBackend(t *testing.T) {
	suite.Run(t, &backendSuite{newBackend: func(t *testing.T) Backend {
		db, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		b, err := NewDatabaseBackend(db, "Flow_Test", 0)
		require.NoError(t, err)
		return b
	}})
}

func TestEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Flow_Proxy", want: "Flow_Proxy"},
		{in: "github.com/acme/shop", want: "github%2Ecom%2Facme%2Fshop"},
		{in: "100%", want: "100%25"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Encode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, ValidIdentifier(got))
			back, err := Decode(got)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back)
		})
	}
}

func TestWriteFileAtomic_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "order_proxy.gen.go")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, WriteFileAtomic(path, []byte(fmt.Sprintf("writer %d", i)), 0o644))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, `^writer \d$`, string(data))

	des, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, des, 1, "temp files must not be left behind")
}

func TestManager(t *testing.T) {
	m := NewManager(config.CacheSettings{Backend: config.BackendMemory}, logging.Discard())

	proxies, err := m.StringCache(ProxyCache)
	require.NoError(t, err)
	reflection, err := m.VariableCache(ReflectionCache)
	require.NoError(t, err)

	require.NoError(t, proxies.Set("proxy_Order", "package shop", []string{"shop"}, 0))
	require.NoError(t, reflection.Set("reflection_shop", map[string]int{"classes": 3}, []string{"shop"}, 0))

	var got map[string]int
	ok, err := reflection.Get("reflection_shop", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, got["classes"])

	assert.Equal(t, []string{ProxyCache, ReflectionCache}, m.Identifiers())

	n, err := m.FlushCachesByTag("shop")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err = proxies.Get("proxy_Order")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := m.Backend(ProxyCache)
	require.NoError(t, err)
	assert.Same(t, proxies.Backend(), again)

	_, err = NewManager(config.CacheSettings{Backend: "redis"}, logging.Discard()).Backend("x")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
