package object

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-park/flow/pkg/aop"
	"github.com/go-park/flow/pkg/logging"
	"github.com/go-park/flow/pkg/reflection"
)

const pkg = "github.com/go-park/flow/pkg/object."

type Counter struct{ n int }

type Clock struct{ ticks int }

type Outer struct {
	Inner func() *Inner `inject:",lazy"`
}

func (o *Outer) GetInner() *Inner { return o.Inner() }

type Inner struct {
	Outer *Outer `inject:""`
}

func (i *Inner) Greet(name string) string { return "Hello " + name }

type Egg struct{ chicken *Chicken }

func NewEgg(c *Chicken) *Egg { return &Egg{chicken: c} }

type Chicken struct{ egg *Egg }

func NewChicken(e *Egg) *Chicken { return &Chicken{egg: e} }

type Ping struct {
	Pong *Pong `inject:""`
}

type Pong struct {
	Ping *Ping `inject:""`
}

type Hen struct{ rooster *Rooster }

func NewHen(r *Rooster) *Hen { return &Hen{rooster: r} }

type Rooster struct {
	Hen *Hen `inject:""`
}

type Nest struct {
	Straw *Straw `inject:""`
}

type Straw struct {
	Nest *Nest `inject:""`
}

type Left struct {
	Right *Right `inject:""`
}

type Right struct {
	Left *Left `inject:""`
}

type Mailer struct {
	host    string
	port    int
	Retries int `inject:"setting:mail.retries"`
	Timeout time.Duration
}

func NewMailer(host string, port int) *Mailer { return &Mailer{host: host, port: port} }

type Store interface {
	Name() string
}

type MemoryStore struct{ items []string }

func (s *MemoryStore) Name() string { return "memory" }

type DiskStore struct{}

func (s *DiskStore) Name() string { return "disk" }

type Shelf struct {
	Store Store `inject:""`
}

type Speaker interface {
	Speak(s string) string
}

type Parrot struct{}

func (p *Parrot) Speak(s string) string { return s }

type parrotDecorator struct {
	*Parrot
	proxy *aop.Proxy
}

func (d *parrotDecorator) Speak(s string) string {
	r := d.proxy.Invoke("Speak", s)
	return aop.Result[string](r, 0)
}

type Loud struct{}

func (l *Loud) Shout(pjp aop.ProceedingJoinPoint) []any {
	return pjp.Proceed(strings.ToUpper(pjp.ParamTo(1).(string)))
}

type Zoo struct {
	Speaker Speaker `inject:""`
	Parrot  *Parrot `inject:""`
}

type Journal struct{ entries []string }

func (j *Journal) add(s string) { j.entries = append(j.entries, s) }

type Database struct {
	Journal *Journal `inject:""`
}

func (d *Database) InitializeObject() error {
	d.Journal.add("init db")
	return nil
}

func (d *Database) ShutdownObject() error {
	d.Journal.add("db down")
	return nil
}

type Cache struct {
	DB *Database `inject:""`
}

func (c *Cache) Close() {
	c.DB.Journal.add("cache down")
}

var errBroken = errors.New("broken")

type Broken struct{}

func (b *Broken) ShutdownObject() error { return errBroken }

type Point struct{ X, Y int }

func NewPoint(x, y int) *Point { return &Point{X: x, Y: y} }

type Service struct {
	journal *Journal
	name    string
}

func (s *Service) InjectJournal(j *Journal) { s.journal = j }
func (s *Service) InjectName(n string)      { s.name = n }

func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func index(t *testing.T, b *reflection.Builder) *reflection.Index {
	t.Helper()
	idx, err := b.Build()
	require.NoError(t, err)
	return idx
}

func configs(t *testing.T, b *reflection.Builder, docs ...string) map[string]*Configuration {
	t.Helper()
	ob := NewBuilder(index(t, b), logging.Discard())
	for i, doc := range docs {
		require.NoError(t, ob.MergeYAML("Objects"+string(rune('0'+i))+".yaml", []byte(doc)))
	}
	c, err := ob.Build()
	require.NoError(t, err)
	return c
}

func manager(t *testing.T, b *reflection.Builder, opts ...Option) *Manager {
	t.Helper()
	return NewManager(configs(t, b), opts...)
}
