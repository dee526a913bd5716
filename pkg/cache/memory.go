package cache

import (
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	tags    []string
	expires int64
}

// MemoryBackend keeps entries for the lifetime of the process.
type MemoryBackend struct {
	mu              sync.RWMutex
	entries         map[string]memoryEntry
	defaultLifetime time.Duration
	now             func() time.Time
}

func NewMemoryBackend(defaultLifetime time.Duration) *MemoryBackend {
	return &MemoryBackend{
		entries:         make(map[string]memoryEntry),
		defaultLifetime: defaultLifetime,
		now:             time.Now,
	}
}

func (b *MemoryBackend) Set(entryID string, data []byte, tags []string, lifetime time.Duration) error {
	if err := checkEntry(entryID, tags); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[entryID] = memoryEntry{
		data:    slices.Clone(data),
		tags:    slices.Clone(tags),
		expires: expiry(b.now(), lifetime, b.defaultLifetime),
	}
	return nil
}

func (b *MemoryBackend) Get(entryID string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[entryID]
	if !ok || expired(b.now(), e.expires) {
		return nil, false, nil
	}
	return slices.Clone(e.data), true, nil
}

func (b *MemoryBackend) Has(entryID string) (bool, error) {
	_, ok, err := b.Get(entryID)
	return ok, err
}

func (b *MemoryBackend) Remove(entryID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[entryID]
	delete(b.entries, entryID)
	return ok, nil
}

func (b *MemoryBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	return nil
}

func (b *MemoryBackend) FlushByTag(tag string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, e := range b.entries {
		if slices.Contains(e.tags, tag) {
			delete(b.entries, id)
			n++
		}
	}
	return n, nil
}
