package collections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsAny(t *testing.T) {
	tests := []struct {
		name   string
		list   []string
		values []string
		want   bool
	}{
		{name: "empty", list: nil, values: []string{"a"}, want: false},
		{name: "hit", list: []string{"a", "b", "c"}, values: []string{"c"}, want: true},
		{name: "miss", list: []string{"a", "b"}, values: []string{"x", "y", "z"}, want: false},
		{name: "longer values", list: []string{"z"}, values: []string{"x", "y", "z"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsAny(tt.list, tt.values...))
		})
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(m))
}

func TestFilterUniq(t *testing.T) {
	list := []string{"Foo", "bar", "Baz", "Foo"}
	upper := Filter(list, func(s string) bool { return strings.ToUpper(s[:1]) == s[:1] })
	assert.Equal(t, []string{"Foo", "Baz", "Foo"}, upper)
	assert.Equal(t, []string{"Foo", "Baz"}, Uniq(upper))
}
