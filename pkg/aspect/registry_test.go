package aspect

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-park/flow/pkg/annotation"
	"github.com/go-park/flow/pkg/logging"
	"github.com/go-park/flow/pkg/pointcut"
	"github.com/go-park/flow/pkg/reflection"
)

type Auditable interface {
	AuditTrail() []string
}

type OrderService struct{}

func NewOrderService() *OrderService { return &OrderService{} }
func (s *OrderService) Place(id string) error { return nil }
func (s *OrderService) Cancel(id string) error { return nil }
func (s *OrderService) Render() string { return "" }

type Legacy struct{}

func (l *Legacy) Place(id string) error { return nil }

type FinalAspect struct{}

func (a *FinalAspect) Final(any) {}
func (a *FinalAspect) FinalHigher(any) {}
func (a *FinalAspect) Placing() {}
func (a *FinalAspect) Trace(any) []any { return nil }

type ZuluAspect struct{}

func (a *ZuluAspect) Check(any) {}

type AlphaAspect struct{}

func (a *AlphaAspect) Check(any) {}

const pkg = "github.com/go-park/flow/pkg/aspect"

func fixtures(t *testing.T) *reflection.Index {
	t.Helper()
	idx, err := reflection.NewBuilder().
		Class(reflect.TypeOf((*Auditable)(nil)).Elem()).
		Class(reflect.TypeOf(OrderService{}), reflection.WithConstructor(NewOrderService)).
		Class(reflect.TypeOf(Legacy{}), reflection.WithAnnotations(annotation.New(annotation.Proxy).WithValue("false"))).
		Class(reflect.TypeOf(FinalAspect{}),
			reflection.WithAnnotations(annotation.New(annotation.Aspect),
				annotation.New(annotation.Introduce).WithValue(pkg+".Auditable").With("pointcut", "class(.*OrderService)")),
			reflection.WithMethodAnnotations("Placing", annotation.New(annotation.Pointcut).WithValue("method(.*->Place())")),
			reflection.WithMethodAnnotations("Final",
				annotation.New(annotation.AfterReturning).WithValue("Placing"),
				annotation.New(annotation.Priority).WithValue("1")),
			reflection.WithMethodAnnotations("FinalHigher",
				annotation.New(annotation.AfterReturning).WithValue(pkg+".FinalAspect->Placing"),
				annotation.New(annotation.Priority).WithValue("100")),
			reflection.WithMethodAnnotations("Trace", annotation.New(annotation.Around).WithValue("method(.*->(Place|New|AuditTrail)())"))).
		Build()
	require.NoError(t, err)
	return idx
}

func build(t *testing.T, idx *reflection.Index, aspects ...Aspect) (map[string]*TargetClassAdvices, error) {
	t.Helper()
	r := NewRegistry(logging.Discard())
	require.NoError(t, r.RegisterAnnotated(idx))
	require.NoError(t, r.Register(aspects...))
	return r.Build(&pointcut.Context{Index: idx})
}

func methods(advices []BoundAdvice) []string {
	var r []string
	for _, a := range advices {
		r = append(r, a.Method)
	}
	return r
}

func TestFromClass(t *testing.T) {
	idx := fixtures(t)
	c, _ := idx.Class(pkg + ".FinalAspect")
	a, err := FromClass(c)
	require.NoError(t, err)
	assert.Equal(t, pkg+".FinalAspect", a.Name())
	require.Len(t, a.Pointcuts(), 1)
	assert.Equal(t, "Placing", a.Pointcuts()[0].Name())
	require.Len(t, a.Introductions(), 1)
	assert.Equal(t, pkg+".Auditable", a.Introductions()[0].Interface())

	kinds := map[string]AdviceKind{}
	priorities := map[string]int{}
	for _, adv := range a.Advices() {
		kinds[adv.Name()] = adv.Kind()
		priorities[adv.Name()] = adv.Priority()
	}
	assert.Equal(t, map[string]AdviceKind{"Final": AfterReturning, "FinalHigher": AfterReturning, "Trace": Around}, kinds)
	assert.Equal(t, 100, priorities["FinalHigher"])
	assert.Equal(t, 0, priorities["Trace"])

	other, _ := idx.Class(pkg + ".OrderService")
	_, err = FromClass(other)
	assert.ErrorIs(t, err, ErrNotAnAspect)
}

func TestBuild_PriorityOrder(t *testing.T) {
	result, err := build(t, fixtures(t))
	require.NoError(t, err)

	order, ok := result[pkg+".OrderService"]
	require.True(t, ok)
	place := order.Methods["Place"]
	require.NotNil(t, place)
	assert.Equal(t, []string{"FinalHigher", "Final"}, methods(place.Advices(AfterReturning)))
	assert.Equal(t, []string{"Trace"}, methods(place.Advices(Around)))
	assert.Empty(t, place.Advices(Before))
	assert.Equal(t, 3, place.Len())
}

func TestBuild_DeclarationOrderBreaksTies(t *testing.T) {
	idx := fixtures(t)
	first := NewAspect(WithAspectName("x.First"), WithAspectPriority(5),
		WithAdvice(
			NewAdvice(WithAdviceName("A"), WithAdviceKind(Before), WithAdviceExpression("method(.*->Cancel())")),
			NewAdvice(WithAdviceName("B"), WithAdviceKind(Before), WithAdviceExpression("method(.*->Cancel())")),
		))
	second := NewAspect(WithAspectName("x.Second"),
		WithAdvice(
			NewAdvice(WithAdviceName("C"), WithAdviceKind(Before), WithAdviceExpression("method(.*->Cancel())"), WithAdvicePriority(5)),
			NewAdvice(WithAdviceName("D"), WithAdviceKind(Before), WithAdviceExpression("method(.*->Cancel())"), WithAdvicePriority(9)),
		))
	result, err := build(t, idx, first, second)
	require.NoError(t, err)
	cancel := result[pkg+".OrderService"].Methods["Cancel"]
	assert.Equal(t, []string{"D", "A", "B", "C"}, methods(cancel.Advices(Before)))
}

func TestBuild_AnnotatedAspectsInClassNameOrder(t *testing.T) {
	check := reflection.WithMethodAnnotations("Check", annotation.New(annotation.Before).WithValue("method(.*->Cancel())"))
	isAspect := reflection.WithAnnotations(annotation.New(annotation.Aspect))
	idx, err := reflection.NewBuilder().
		Class(reflect.TypeOf(OrderService{})).
		Class(reflect.TypeOf(ZuluAspect{}), isAspect, check).
		Class(reflect.TypeOf(AlphaAspect{}), isAspect, check).
		Build()
	require.NoError(t, err)

	r := NewRegistry(logging.Discard())
	require.NoError(t, r.RegisterAnnotated(idx))
	var names []string
	for _, a := range r.Aspects() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{pkg + ".AlphaAspect", pkg + ".ZuluAspect"}, names)

	result, err := r.Build(&pointcut.Context{Index: idx})
	require.NoError(t, err)
	var aspects []string
	for _, a := range result[pkg+".OrderService"].Methods["Cancel"].Advices(Before) {
		aspects = append(aspects, a.Aspect)
	}
	assert.Equal(t, []string{pkg + ".AlphaAspect", pkg + ".ZuluAspect"}, aspects)
}

func TestBuild_ExcludedClasses(t *testing.T) {
	result, err := build(t, fixtures(t))
	require.NoError(t, err)
	assert.NotContains(t, result, pkg+".Legacy", "@Proxy(false)")
	assert.NotContains(t, result, pkg+".FinalAspect", "aspects are never advised")
	assert.NotContains(t, result, pkg+".Auditable", "interfaces are never advised")
}

func TestBuild_ConstructorAndIntroduction(t *testing.T) {
	result, err := build(t, fixtures(t))
	require.NoError(t, err)
	order := result[pkg+".OrderService"]

	ctor := order.Methods[reflection.ConstructorName]
	require.NotNil(t, ctor)
	assert.Equal(t, []string{"Trace"}, methods(ctor.Advices(Around)))

	assert.Equal(t, []string{pkg + ".Auditable"}, order.Introductions)
	trail := order.Methods["AuditTrail"]
	require.NotNil(t, trail)
	assert.True(t, trail.Introduced)
	assert.Equal(t, []string{"Trace"}, methods(trail.Advices(Around)))
	assert.Equal(t, []string{"AuditTrail", "New", "Place"}, order.MethodNames())
}

func TestBuild_Errors(t *testing.T) {
	idx := fixtures(t)
	bad := NewAspect(WithAspectName("x.Bad"),
		WithAdvice(NewAdvice(WithAdviceName("Broken"), WithAdviceKind(Before), WithAdviceExpression("method(.*->)"))))
	_, err := build(t, idx, bad)
	var decl *DeclarationError
	require.True(t, errors.As(err, &decl), "got %v", err)
	assert.Equal(t, "x.Bad", decl.Aspect)
	assert.Equal(t, "Broken", decl.Advice)
	var syntax *pointcut.SyntaxError
	assert.True(t, errors.As(err, &syntax))

	loop := NewAspect(WithAspectName("x.Loop"),
		WithPointcut(NewPointcut(WithPointcutName("a"), WithPointcutExpression("b")),
			NewPointcut(WithPointcutName("b"), WithPointcutExpression("a"))))
	_, err = build(t, idx, loop)
	assert.ErrorIs(t, err, pointcut.ErrCircularReference)

	intro := NewAspect(WithAspectName("x.Intro"),
		WithIntroduction(NewIntroduction(WithIntroducedInterface("x.Missing"), WithIntroductionExpression("class(.*)"))))
	_, err = build(t, idx, intro)
	assert.ErrorIs(t, err, ErrUnknownInterface)

	r := NewRegistry(logging.Discard())
	require.NoError(t, r.Register(bad))
	assert.ErrorIs(t, r.Register(bad), ErrDuplicateAspect)
}

func TestKindOf(t *testing.T) {
	for _, k := range AdviceKinds {
		got, ok := KindOf(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := KindOf("Inject")
	assert.False(t, ok)
}
