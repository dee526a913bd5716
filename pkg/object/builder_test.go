package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/go-park/flow/pkg/annotation"
	"github.com/go-park/flow/pkg/logging"
	"github.com/go-park/flow/pkg/reflection"
)

func TestBuilder_Derive(t *testing.T) {
	c := configs(t, reflection.NewBuilder().
		Class(typeFor[Counter](), reflection.WithAnnotations(annotation.New(annotation.Scope).WithValue("Singleton"))).
		Class(typeFor[Loud](), reflection.WithAnnotations(annotation.New(annotation.Aspect))).
		Class(typeFor[Clock](), reflection.WithAnnotations(annotation.New(annotation.Autowiring).WithValue("false"))).
		Class(typeFor[Mailer](), reflection.WithConstructor(NewMailer),
			reflection.WithFieldAnnotations("Timeout", annotation.New(annotation.Inject).With("setting", "mail.timeout"))).
		Class(typeFor[Outer](),
			reflection.WithFieldAnnotations("Inner", annotation.New(annotation.Inject).WithValue(pkg+"Inner"))).
		Class(typeFor[Inner]()).
		Class(typeFor[Service]()))

	tests := []struct {
		name       string
		object     string
		scope      Scope
		autowiring bool
		properties []Property
	}{
		{name: "scope annotation", object: pkg + "Counter", scope: Singleton, autowiring: true},
		{name: "aspects are singletons", object: pkg + "Loud", scope: Singleton, autowiring: true},
		{name: "autowiring off", object: pkg + "Clock", scope: Prototype},
		{
			name: "field tag and annotation", object: pkg + "Mailer", scope: Prototype, autowiring: true,
			properties: []Property{
				{Name: "Retries", Injection: Injection{Kind: Setting, Ref: "mail.retries"}},
				{Name: "Timeout", Injection: Injection{Kind: Setting, Ref: "mail.timeout"}},
			},
		},
		{
			name: "annotation overrides tag", object: pkg + "Outer", scope: Prototype, autowiring: true,
			properties: []Property{{Name: "Inner", Injection: Injection{Kind: ObjectRef, Ref: pkg + "Inner", Lazy: true}}},
		},
		{
			name: "autowired setters", object: pkg + "Service", scope: Prototype, autowiring: true,
			properties: []Property{
				{Name: "Journal", Injection: Injection{Kind: ObjectRef}, autowired: true},
				{Name: "Name", Injection: Injection{Kind: ObjectRef}, autowired: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, ok := c[tt.object]
			require.True(t, ok)
			assert.Equal(t, tt.scope, conf.Scope)
			assert.Equal(t, tt.autowiring, conf.Autowiring)
			assert.Equal(t, tt.properties, conf.Properties)
		})
	}
	assert.NotNil(t, c[pkg+"Mailer"].Factory)
	assert.Nil(t, c[pkg+"Counter"].Factory)
}

func TestBuilder_InterfaceAlias(t *testing.T) {
	c := configs(t, reflection.NewBuilder().
		Class(typeFor[Speaker]()).
		Class(typeFor[Parrot]()))
	assert.Equal(t, pkg+"Parrot", c[pkg+"Speaker"].AliasOf)

	c = configs(t, reflection.NewBuilder().
		Class(typeFor[Store]()).
		Class(typeFor[MemoryStore]()).
		Class(typeFor[DiskStore]()))
	assert.NotContains(t, c, pkg+"Store")
}

func TestBuilder_YAML(t *testing.T) {
	b := reflection.NewBuilder().
		Class(typeFor[Store]()).
		Class(typeFor[MemoryStore]()).
		Class(typeFor[DiskStore]()).
		Class(typeFor[Shelf]())
	c := configs(t, b, `
github.com/go-park/flow/pkg/object.Store:
  className: github.com/go-park/flow/pkg/object.DiskStore
`, `
github.com/go-park/flow/pkg/object.Shelf:
  scope: singleton
shop.memory:
  className: github.com/go-park/flow/pkg/object.MemoryStore
  scope: singleton
`)
	assert.Equal(t, pkg+"DiskStore", c[pkg+"Store"].AliasOf)
	assert.Equal(t, Singleton, c[pkg+"Shelf"].Scope)
	assert.Equal(t, typeFor[*MemoryStore](), c["shop.memory"].Type)

	m := NewManager(c)
	obj, err := m.Get(pkg + "Shelf")
	require.NoError(t, err)
	assert.Equal(t, "disk", obj.(*Shelf).Store.Name())

	mem1, err := m.Get("shop.memory")
	require.NoError(t, err)
	mem2, err := m.Get("shop.memory")
	require.NoError(t, err)
	assert.Same(t, mem1, mem2)
	mem3, err := m.Get(pkg + "MemoryStore")
	require.NoError(t, err)
	assert.NotSame(t, mem1, mem3)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *reflection.Builder
		doc     string
	}{
		{
			name:    "unknown scope",
			builder: reflection.NewBuilder().Class(typeFor[Clock](), reflection.WithAnnotations(annotation.New(annotation.Scope).WithValue("session"))),
		},
		{
			name:    "unknown object without class name",
			builder: reflection.NewBuilder().Class(typeFor[Clock]()),
			doc:     "shop.clock:\n  scope: singleton\n",
		},
		{
			name:    "unknown class name",
			builder: reflection.NewBuilder().Class(typeFor[Clock]()),
			doc:     "shop.clock:\n  className: shop.Nope\n",
		},
		{
			name:    "ambiguous injection",
			builder: reflection.NewBuilder().Class(typeFor[Shelf]()),
			doc:     "github.com/go-park/flow/pkg/object.Shelf:\n  properties:\n    Store:\n      object: x\n      setting: y\n",
		},
		{
			name:    "arguments without factory",
			builder: reflection.NewBuilder().Class(typeFor[Clock]()),
			doc:     "github.com/go-park/flow/pkg/object.Clock:\n  arguments:\n    1:\n      value: 1\n",
		},
		{
			name:    "lazy setting",
			builder: reflection.NewBuilder().Class(typeFor[Clock]()),
			doc:     "github.com/go-park/flow/pkg/object.Clock:\n  properties:\n    Now:\n      setting: clock.now\n      lazy: true\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := tt.builder.Build()
			require.NoError(t, err)
			ob := NewBuilder(idx, logging.Discard())
			if tt.doc != "" {
				require.NoError(t, ob.MergeYAML("Objects.yaml", []byte(tt.doc)))
			}
			_, err = ob.Build()
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestScope_YAML(t *testing.T) {
	var s struct {
		Scope Scope `yaml:"scope"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("scope: prototype"), &s))
	assert.Equal(t, Prototype, s.Scope)

	err := yaml.Unmarshal([]byte("scope: request"), &s)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "scope: prototype\n", string(out))
}
