package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/tools/collections"
)

// Caches used by the framework itself.
const (
	ReflectionCache = "Flow_Reflection"
	ProxyCache      = "Flow_Proxy"
	MonitorCache    = "Flow_Monitor"
)

var FrameworkCaches = []string{ReflectionCache, ProxyCache, MonitorCache}

// Manager creates backends by cache identifier from the cache settings and
// keeps them for flushing.
type Manager struct {
	settings config.CacheSettings
	log      logrus.FieldLogger

	mu       sync.Mutex
	backends map[string]Backend
	db       *gorm.DB
}

func NewManager(settings config.CacheSettings, log logrus.FieldLogger) *Manager {
	return &Manager{
		settings: settings,
		log:      log,
		backends: make(map[string]Backend),
	}
}

// Backend returns the backend for cacheID, creating it on first use.
func (m *Manager) Backend(cacheID string) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.backends[cacheID]; ok {
		return b, nil
	}
	b, err := m.create(cacheID)
	if err != nil {
		return nil, err
	}
	m.backends[cacheID] = b
	m.log.WithFields(logrus.Fields{"cache": cacheID, "backend": m.settings.Backend}).Debug("cache created")
	return b, nil
}

func (m *Manager) create(cacheID string) (Backend, error) {
	switch m.settings.Backend {
	case config.BackendFile, "":
		return NewFileBackend(m.settings.Directory, cacheID, m.settings.DefaultLifetime)
	case config.BackendDatabase:
		if m.db == nil {
			db, err := OpenSQLite(m.settings.DSN)
			if err != nil {
				return nil, err
			}
			m.db = db
		}
		return NewDatabaseBackend(m.db, cacheID, m.settings.DefaultLifetime)
	case config.BackendMemory:
		return NewMemoryBackend(m.settings.DefaultLifetime), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, m.settings.Backend)
	}
}

func (m *Manager) StringCache(cacheID string) (*StringFrontend, error) {
	b, err := m.Backend(cacheID)
	if err != nil {
		return nil, err
	}
	return NewStringFrontend(cacheID, b), nil
}

func (m *Manager) VariableCache(cacheID string) (*VariableFrontend, error) {
	b, err := m.Backend(cacheID)
	if err != nil {
		return nil, err
	}
	return NewVariableFrontend(cacheID, b), nil
}

// Identifiers lists the caches created so far.
func (m *Manager) Identifiers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return collections.SortedKeys(m.backends)
}

func (m *Manager) snapshot() map[string]Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Backend, len(m.backends))
	for k, v := range m.backends {
		out[k] = v
	}
	return out
}

// FlushCaches empties every created cache.
func (m *Manager) FlushCaches() error {
	var errs []error
	for id, b := range m.snapshot() {
		if err := b.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("cache %s: %w", id, err))
			continue
		}
		m.log.WithField("cache", id).Info("cache flushed")
	}
	return errors.Join(errs...)
}

// FlushCachesByTag removes entries tagged with tag from every created cache.
func (m *Manager) FlushCachesByTag(tag string) (int, error) {
	total := 0
	var errs []error
	for id, b := range m.snapshot() {
		n, err := b.FlushByTag(tag)
		if err != nil {
			errs = append(errs, fmt.Errorf("cache %s: %w", id, err))
		}
		total += n
		if n > 0 {
			m.log.WithFields(logrus.Fields{"cache": id, "tag": tag, "entries": n}).Debug("cache entries flushed")
		}
	}
	return total, errors.Join(errs...)
}
