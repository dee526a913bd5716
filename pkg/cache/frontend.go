package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// StringFrontend stores plain strings.
type StringFrontend struct {
	id      string
	backend Backend
}

func NewStringFrontend(id string, backend Backend) *StringFrontend {
	return &StringFrontend{id: id, backend: backend}
}

func (f *StringFrontend) Identifier() string { return f.id }
func (f *StringFrontend) Backend() Backend   { return f.backend }

func (f *StringFrontend) Set(entryID, value string, tags []string, lifetime time.Duration) error {
	return f.backend.Set(entryID, []byte(value), tags, lifetime)
}

func (f *StringFrontend) Get(entryID string) (string, bool, error) {
	data, ok, err := f.backend.Get(entryID)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(data), true, nil
}

func (f *StringFrontend) Has(entryID string) (bool, error) {
	return f.backend.Has(entryID)
}

func (f *StringFrontend) Remove(entryID string) (bool, error) {
	return f.backend.Remove(entryID)
}

// VariableFrontend stores arbitrary values encoded as JSON.
type VariableFrontend struct {
	id      string
	backend Backend
}

func NewVariableFrontend(id string, backend Backend) *VariableFrontend {
	return &VariableFrontend{id: id, backend: backend}
}

func (f *VariableFrontend) Identifier() string { return f.id }
func (f *VariableFrontend) Backend() Backend   { return f.backend }

func (f *VariableFrontend) Set(entryID string, v any, tags []string, lifetime time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache %s: encoding %s: %w", f.id, entryID, err)
	}
	return f.backend.Set(entryID, data, tags, lifetime)
}

// Get decodes the entry into v and reports whether it was present.
func (f *VariableFrontend) Get(entryID string, v any) (bool, error) {
	data, ok, err := f.backend.Get(entryID)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("cache %s: decoding %s: %w", f.id, entryID, err)
	}
	return true, nil
}

func (f *VariableFrontend) Has(entryID string) (bool, error) {
	return f.backend.Has(entryID)
}

func (f *VariableFrontend) Remove(entryID string) (bool, error) {
	return f.backend.Remove(entryID)
}
