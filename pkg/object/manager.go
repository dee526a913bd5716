package object

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/aop"
	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/logging"
	"github.com/go-park/flow/pkg/reflection"
	"github.com/go-park/flow/pkg/tools/collections"
)

type Option func(*Manager)

// WithSettings is the tree setting injections read from.
func WithSettings(t *config.Tree) Option {
	return func(m *Manager) {
		m.settings = t
	}
}

// WithProxies sets the compiled proxy classes; instances of these classes
// are wrapped in an aop.Proxy.
func WithProxies(classes map[string]*aop.ProxyClass) Option {
	return func(m *Manager) {
		m.proxies = classes
	}
}

func WithDecorators(r *aop.DecoratorRegistry) Option {
	return func(m *Manager) {
		m.decorators = r
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// Manager is the object container. Singletons are built once and cached,
// prototypes are built on every request. Dependencies are resolved through
// the manager itself, so they obey their own scope.
type Manager struct {
	configs    map[string]*Configuration
	settings   *config.Tree
	proxies    map[string]*aop.ProxyClass
	decorators *aop.DecoratorRegistry
	log        logrus.FieldLogger

	mu         sync.Mutex
	singletons map[string]*instance
	created    []string
}

var _ aop.AspectResolver = (*Manager)(nil)

func NewManager(configs map[string]*Configuration, opts ...Option) *Manager {
	m := &Manager{
		configs:    configs,
		proxies:    map[string]*aop.ProxyClass{},
		log:        logging.Discard(),
		singletons: map[string]*instance{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// instance is one built object: public is what callers receive, the
// generated decorator when the class is intercepted.
type instance struct {
	public any
	target any
	proxy  *aop.Proxy
}

// resolution is the state of one Get call: the objects being built on the
// eager path and the singletons already instantiated but not ready yet.
type resolution struct {
	path  []string
	early map[string]*instance
}

func newResolution() *resolution {
	return &resolution{early: map[string]*instance{}}
}

func (r *resolution) onPath(id string) bool {
	for _, p := range r.path {
		if p == id {
			return true
		}
	}
	return false
}

func (r *resolution) push(id string) { r.path = append(r.path, id) }
func (r *resolution) pop()           { r.path = r.path[:len(r.path)-1] }

// Get returns the object id. args are passed to its factory by position and
// take precedence over configured arguments.
func (m *Manager) Get(id string, args ...any) (any, error) {
	inst, err := m.get(id, args, newResolution())
	if err != nil {
		return nil, err
	}
	return inst.public, nil
}

// GetProxy returns the proxy of the object id, for calling its intercepted
// methods through Proxy.Invoke when no decorator was generated.
func (m *Manager) GetProxy(id string, args ...any) (*aop.Proxy, error) {
	inst, err := m.get(id, args, newResolution())
	if err != nil {
		return nil, err
	}
	if inst.proxy == nil {
		return nil, fmt.Errorf("%w: %s", aop.ErrNotIntercepted, id)
	}
	return inst.proxy, nil
}

// Aspect resolves aspect instances for advice invocation.
func (m *Manager) Aspect(class string) (any, error) {
	return m.Get(class)
}

func (m *Manager) Configuration(id string) (*Configuration, bool) {
	c, ok := m.configs[id]
	return c, ok
}

func (m *Manager) Names() []string {
	return collections.SortedKeys(m.configs)
}

func (m *Manager) get(id string, args []any, res *resolution) (*instance, error) {
	conf, ok := m.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	if conf.AliasOf != "" {
		if res.onPath(id) {
			return nil, cycleError(res.path, id)
		}
		res.push(id)
		defer res.pop()
		return m.get(conf.AliasOf, args, res)
	}
	if conf.Scope == Singleton {
		if inst, ok := m.singleton(id); ok {
			if len(args) > 0 {
				m.log.WithField("object", id).Warn("arguments ignored, singleton already built")
			}
			return inst, nil
		}
		if inst, ok := res.early[id]; ok {
			return inst, nil
		}
	}
	if res.onPath(id) {
		return nil, cycleError(res.path, id)
	}
	res.push(id)
	defer res.pop()

	inst, err := m.build(conf, args, res)
	if err != nil {
		return nil, err
	}
	if conf.Scope == Singleton {
		inst = m.store(id, inst)
	}
	return inst, nil
}

func (m *Manager) singleton(id string) (*instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.singletons[id]
	return inst, ok
}

// store caches a singleton; when another goroutine stored one first, that
// one wins.
func (m *Manager) store(id string, inst *instance) *instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.singletons[id]; ok {
		return existing
	}
	m.singletons[id] = inst
	m.created = append(m.created, id)
	return inst
}

func (m *Manager) build(conf *Configuration, args []any, res *resolution) (*instance, error) {
	log := m.log.WithFields(logrus.Fields{"object": conf.Name, "scope": conf.Scope})
	transition := func(s State) {
		log.WithField("state", s.String()).Debug("object state")
	}
	transition(Requested)

	transition(ResolvingDependencies)
	target, err := m.instantiate(conf, args, res)
	if err != nil {
		return nil, err
	}
	transition(Instantiated)

	inst := m.wrap(conf, target)
	if conf.Scope == Singleton {
		res.early[conf.Name] = inst
		defer delete(res.early, conf.Name)
	}
	if err := m.inject(conf, inst, res); err != nil {
		return nil, err
	}
	transition(Injected)

	if err := m.initialize(conf, inst); err != nil {
		return nil, &ConstructionError{Object: conf.Name, Err: err}
	}
	transition(Ready)
	return inst, nil
}

func (m *Manager) instantiate(conf *Configuration, args []any, res *resolution) (any, error) {
	if conf.Factory == nil {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: %s has no factory taking arguments", ErrUnresolvableArgument, conf.Name)
		}
		return reflect.New(conf.Type.Elem()).Interface(), nil
	}
	fn := reflect.ValueOf(conf.Factory)
	ft := fn.Type()
	if len(args) > ft.NumIn() {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrUnresolvableArgument, conf.Name, ft.NumIn(), len(args))
	}
	params := make([]any, ft.NumIn())
	for i := range params {
		pt := ft.In(i)
		inj, configured := conf.Arguments[i+1]
		var (
			v   any
			err error
		)
		switch {
		case i < len(args):
			v = args[i]
		case configured:
			v, err = m.resolve(conf, inj, pt, res)
		case ft.IsVariadic() && i == ft.NumIn()-1:
		case conf.Autowiring:
			v, err = m.autowire(conf, pt, res)
		default:
			err = fmt.Errorf("%w: %s argument %d (%v)", ErrUnresolvableArgument, conf.Name, i+1, pt)
		}
		if err != nil {
			return nil, err
		}
		rv, err := valueFor(v, pt)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", conf.Name, i+1, err)
		}
		params[i] = rv.Interface()
	}

	var (
		obj any
		err error
	)
	if pc, ok := m.proxies[conf.Class]; ok && pc.Constructor != nil {
		obj, err = aop.NewConstructorInterceptor(conf.Class, pc.Constructor, m, m.log).Construct(fn, params)
	} else {
		obj, err = invoke(fn, params)
	}
	if err != nil {
		return nil, &ConstructionError{Object: conf.Name, Err: err}
	}
	if obj == nil || !reflect.TypeOf(obj).AssignableTo(conf.Type) {
		return nil, fmt.Errorf("%w: factory of %s returned %T, want %v", ErrTypeMismatch, conf.Name, obj, conf.Type)
	}
	return obj, nil
}

// wrap puts an intercepted instance behind its proxy and decorator.
func (m *Manager) wrap(conf *Configuration, target any) *instance {
	inst := &instance{public: target, target: target}
	pc, ok := m.proxies[conf.Class]
	if !ok || len(pc.Methods) == 0 {
		return inst
	}
	inst.proxy = aop.NewProxy(pc, target, m, m.log)
	if m.decorators != nil {
		if d, ok := m.decorators.Decorate(inst.proxy); ok {
			inst.public = d
			return inst
		}
	}
	m.log.WithField("object", conf.Name).Debug("no decorator registered, only GetProxy calls are advised")
	return inst
}

func (m *Manager) inject(conf *Configuration, inst *instance, res *resolution) error {
	target := reflect.ValueOf(inst.target)
	for _, p := range conf.Properties {
		t, set, err := propertySink(target, p.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", conf.Name, err)
		}
		v, err := m.resolve(conf, p.Injection, t, res)
		if err != nil {
			if p.autowired && errors.Is(err, ErrUnresolvableArgument) {
				m.log.WithFields(logrus.Fields{"object": conf.Name, "property": p.Name}).Debug("setter not autowired")
				continue
			}
			return fmt.Errorf("%s property %s: %w", conf.Name, p.Name, err)
		}
		if err := set(v); err != nil {
			return &ConstructionError{Object: conf.Name, Err: fmt.Errorf("property %s: %w", p.Name, err)}
		}
	}
	return nil
}

// resolve produces the value of an injection for a parameter of type t.
func (m *Manager) resolve(conf *Configuration, inj Injection, t reflect.Type, res *resolution) (any, error) {
	switch inj.Kind {
	case Value:
		return convertValue(inj.Value, t)
	case Setting:
		out := reflect.New(t)
		found, err := m.settings.Decode(inj.Ref, out.Interface())
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: setting %s is not set", ErrUnresolvableArgument, inj.Ref)
		}
		return out.Elem().Interface(), nil
	}
	if inj.Lazy {
		return m.provider(conf.Name, inj.Ref, t)
	}
	if inj.Ref == "" {
		return m.autowire(conf, t, res)
	}
	inst, err := m.get(inj.Ref, nil, res)
	if err != nil {
		return nil, err
	}
	return m.assign(conf.Name, inst, t)
}

func (m *Manager) autowire(conf *Configuration, t reflect.Type, res *resolution) (any, error) {
	if isProvider(t) {
		return m.provider(conf.Name, "", t)
	}
	id, err := m.idOfType(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", conf.Name, err)
	}
	inst, err := m.get(id, nil, res)
	if err != nil {
		return nil, err
	}
	return m.assign(conf.Name, inst, t)
}

// assign picks the form of inst a consumer of type t can hold. A consumer
// of the concrete pointer type of an intercepted class gets the bare target.
func (m *Manager) assign(consumer string, inst *instance, t reflect.Type) (any, error) {
	if reflect.TypeOf(inst.public).AssignableTo(t) {
		return inst.public, nil
	}
	if reflect.TypeOf(inst.target).AssignableTo(t) {
		m.log.WithFields(logrus.Fields{"object": consumer, "type": t.String()}).
			Warn("injecting concrete type, its calls are not advised")
		return inst.target, nil
	}
	return nil, fmt.Errorf("%w: %s needs %v, got %T", ErrTypeMismatch, consumer, t, inst.public)
}

// idOfType finds the object to autowire into a parameter of type t: the
// object named after t, or the only object whose type is assignable to t.
func (m *Manager) idOfType(t reflect.Type) (string, error) {
	switch {
	case t.Kind() == reflect.Interface && t.Name() != "":
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct && t.Elem().Name() != "":
	default:
		return "", fmt.Errorf("%w: %v cannot be autowired", ErrUnresolvableArgument, t)
	}
	name := reflection.NameOf(t)
	if conf, ok := m.configs[name]; ok && (conf.AliasOf != "" || conf.Type == t) {
		return name, nil
	}
	var candidates []string
	for _, id := range collections.SortedKeys(m.configs) {
		conf := m.configs[id]
		if conf.AliasOf != "" || conf.Type == nil {
			continue
		}
		if conf.Type == t || t.Kind() == reflect.Interface && conf.Type.Implements(t) {
			candidates = append(candidates, id)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", fmt.Errorf("%w: no object of type %v", ErrUnresolvableArgument, t)
	}
	return "", fmt.Errorf("%w: %v matches %v", ErrUnresolvableArgument, t, candidates)
}
