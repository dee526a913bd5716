package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_stripQualifier(t *testing.T) {
	tests := []struct {
		expr string
		pkg  string
		want string
	}{
		{"*shop.Order", "shop", "*Order"},
		{"map[string][]shop.Item", "shop", "map[string][]Item"},
		{"func(shop.Order) error", "shop", "func(Order) error"},
		{"*myshop.Order", "shop", "*myshop.Order"},
		{"context.Context", "shop", "context.Context"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, stripQualifier(tt.expr, tt.pkg))
		})
	}
}

func Test_packageName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"github.com/acme/shop", "shop"},
		{"github.com/acme/shop/v2", "shop"},
		{"github.com/acme/go-shop", "goshop"},
		{"vendor", "vendor"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, packageName(tt.path))
		})
	}
}

func Test_filterEmptyStr(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, filterEmptyStr("", "a", "", "b"))
}
