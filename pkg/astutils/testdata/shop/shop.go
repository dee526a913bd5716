package shop

import (
	"context"

	"github.com/go-park/flow/pkg/aop"
)

// Catalog lists products.
type Catalog interface {
	//@Cached
	Products(ctx context.Context) ([]string, error)
}

type Logger interface {
	Print(v ...any)
}

type Base struct{ ID int }

// Store is the default catalog.
//
//@Scope("singleton")
type Store struct {
	Base
	//@Inject
	Log    Logger
	Prefix string `inject:"setting:shop.prefix"`
	items  []string
}

// NewStore builds a Store.
//
//@Lazy
func NewStore(log Logger) *Store { return &Store{Log: log} }

//@Cached
func (s *Store) Products(ctx context.Context) ([]string, error) { return s.items, nil }

func (s *Store) add(items ...string) { s.items = append(s.items, items...) }

//@Aspect
type Tracing struct{}

//@Around("method(.*Store->Products())")
func (t *Tracing) Trace(pjp aop.ProceedingJoinPoint) []any { return pjp.Proceed() }
