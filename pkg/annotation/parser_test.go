package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want List
	}{
		{
			name: "bare",
			text: "Service does things.\n@Aspect\n",
			want: List{{Name: "Aspect"}},
		},
		{
			name: "default value",
			text: `@Scope("prototype")`,
			want: List{{Name: "Scope", Args: map[string]string{"": "prototype"}}},
		},
		{
			name: "pointcut with commas inside quotes",
			text: `@Before("classAnnotatedWith(Entity, table == \"orders\") && method(.*->Save())", priority=10)`,
			want: List{{Name: "Before", Args: map[string]string{
				"":         `classAnnotatedWith(Entity, table == "orders") && method(.*->Save())`,
				"priority": "10",
			}}},
		},
		{
			name: "repeated",
			text: "@Introduce(\"class(.*Order)\", interface=\"shop.Auditable\")\n@Introduce(\"class(.*Cart)\", interface=\"shop.Auditable\")",
			want: List{
				{Name: "Introduce", Args: map[string]string{"": "class(.*Order)", "interface": "shop.Auditable"}},
				{Name: "Introduce", Args: map[string]string{"": "class(.*Cart)", "interface": "shop.Auditable"}},
			},
		},
		{
			name: "unquoted keys",
			text: `@Inject(name=logger, lazy=true)`,
			want: List{{Name: "Inject", Args: map[string]string{"name": "logger", "lazy": "true"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, text := range []string{`@Scope("prototype"`, `@lower`, `@Before("a", "b")`} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrMalformed, text)
	}
}

func TestList(t *testing.T) {
	l := List{New("Entity").WithValue("orders"), New("Lazy"), New("Entity")}
	assert.True(t, l.Has("Lazy"))
	assert.False(t, l.Has("Scope"))
	assert.Len(t, l.Find("Entity"), 2)
	first, ok := l.First("Entity")
	require.True(t, ok)
	assert.Equal(t, "orders", first.Value())
	assert.Equal(t, []string{"Entity", "Lazy"}, l.Names())
	assert.Len(t, l.Merge(List{New("Lazy"), New("Scope")}), 4)
	assert.Equal(t, `@Inject("x", lazy="true")`, New("Inject").WithValue("x").With("lazy", "true").String())
	assert.True(t, New("Inject").With("lazy", "true").Bool("lazy", false))
}
