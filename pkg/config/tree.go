package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

var ErrInvalidSetting = errors.New("config: invalid setting")

// Tree is read access to the whole merged settings tree, addressed by
// dot-separated paths such as "shop.checkout.enabled".
type Tree struct {
	v *viper.Viper
}

// NewTree wraps a plain map as a settings tree.
func NewTree(m map[string]any) *Tree {
	v := viper.New()
	_ = v.MergeConfigMap(m)
	return &Tree{v: v}
}

func (t *Tree) Get(path string) (any, bool) {
	if t == nil || t.v == nil || !t.v.IsSet(path) {
		return nil, false
	}
	return t.v.Get(path), true
}

func (t *Tree) All() map[string]any {
	if t == nil || t.v == nil {
		return map[string]any{}
	}
	return t.v.AllSettings()
}

// Decode converts the value at path into out, which must be a pointer, and
// reports whether the path is set. Scalars are converted weakly, so "42"
// decodes into an int.
func (t *Tree) Decode(path string, out any) (bool, error) {
	if t == nil || t.v == nil || !t.v.IsSet(path) {
		return false, nil
	}
	if err := t.v.UnmarshalKey(path, out); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, path, err)
	}
	return true, nil
}
