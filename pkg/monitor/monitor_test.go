package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/go-park/flow/pkg/cache"
	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/logging"
)

func newMonitor(t *testing.T, root string) *Monitor {
	t.Helper()
	store := cache.NewVariableFrontend(cache.MonitorCache, cache.NewMemoryBackend(0))
	m, err := New("Flow_ClassFiles", config.MonitorSettings{
		Paths:   []string{root},
		Exclude: []string{"**/*_proxy.gen.go"},
	}, store, logging.Discard())
	require.NoError(t, err)
	return m
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetect(t *testing.T) {
	root := t.TempDir()
	order := filepath.Join(root, "shop", "order.go")
	cart := filepath.Join(root, "shop", "cart.go")
	write(t, order, "package shop")
	write(t, cart, "package shop")
	write(t, filepath.Join(root, "shop", "order_proxy.gen.go"), "package shop")

	m := newMonitor(t, root)

	changes, err := m.Detect()
	require.NoError(t, err)
	assert.Equal(t, []Change{{Path: cart, Kind: Created}, {Path: order, Kind: Created}}, changes)

	changes, err = m.Detect()
	require.NoError(t, err)
	assert.Empty(t, changes)

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(order, later, later))
	require.NoError(t, os.Remove(cart))

	changes, err = m.Detect()
	require.NoError(t, err)
	assert.Equal(t, []Change{{Path: cart, Kind: Deleted}, {Path: order, Kind: Changed}}, changes)
}

func TestNew_BadPattern(t *testing.T) {
	store := cache.NewVariableFrontend(cache.MonitorCache, cache.NewMemoryBackend(0))
	_, err := New("Flow_ClassFiles", config.MonitorSettings{Exclude: []string{"[a-"}}, store, logging.Discard())
	assert.Error(t, err)
	_, err = New("bad id", config.MonitorSettings{}, store, logging.Discard())
	assert.ErrorIs(t, err, cache.ErrInvalidIdentifier)
}

func TestChangeKind_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "ChangeKind(9)", ChangeKind(9).String())
}

func TestWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	write(t, filepath.Join(root, "shop", "order.go"), "package shop")
	m := newMonitor(t, root)
	_, err := m.Detect()
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen []Change
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, func(changes []Change) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, changes...)
		})
	}()

	cart := filepath.Join(root, "shop", "cart.go")
	assert.Eventually(t, func() bool {
		// the watcher may not be registered yet, so keep touching the file
		write(t, cart, time.Now().String())
		mu.Lock()
		defer mu.Unlock()
		for _, c := range seen {
			if c.Path == cart {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
