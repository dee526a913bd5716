package object

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/annotation"
	"github.com/go-park/flow/pkg/reflection"
	"github.com/go-park/flow/pkg/tools/collections"
)

const (
	injectTag     = "inject"
	settingPrefix = "setting:"
	setterPrefix  = "Inject"
)

// Builder derives object configurations from the class index and merges
// Objects.yaml documents and explicit registrations over them, in that order.
type Builder struct {
	index      *reflection.Index
	log        logrus.FieldLogger
	docs       []yamlDoc
	registered []*Configuration
	errs       []error
}

func NewBuilder(idx *reflection.Index, log logrus.FieldLogger) *Builder {
	return &Builder{index: idx, log: log}
}

// Register adds configurations that replace derived ones of the same name.
func (b *Builder) Register(cfgs ...*Configuration) *Builder {
	b.registered = append(b.registered, cfgs...)
	return b
}

// MergeFile merges the Objects.yaml at path.
func (b *Builder) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.MergeYAML(path, data)
}

// MergeYAML merges an Objects.yaml document; source names it in errors.
func (b *Builder) MergeYAML(source string, data []byte) error {
	doc, err := parseYAML(source, data)
	if err != nil {
		return err
	}
	b.docs = append(b.docs, doc)
	return nil
}

// Build returns the configurations by object name.
func (b *Builder) Build() (map[string]*Configuration, error) {
	configs := map[string]*Configuration{}
	for _, c := range b.index.Classes() {
		if c.IsInterface() {
			continue
		}
		conf, err := b.derive(c)
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		if conf != nil {
			configs[conf.Name] = conf
		}
	}
	for _, c := range b.index.Classes() {
		if c.IsInterface() {
			if conf := b.deriveInterface(c, configs); conf != nil {
				configs[conf.Name] = conf
			}
		}
	}
	for _, doc := range b.docs {
		if err := doc.apply(b.index, configs); err != nil {
			b.errs = append(b.errs, err)
		}
	}
	for _, r := range b.registered {
		conf := r.clone()
		if conf.Scope == 0 {
			conf.Scope = Prototype
		}
		if conf.Source == "" {
			conf.Source = "registration"
		}
		configs[conf.Name] = conf
	}
	for _, name := range collections.SortedKeys(configs) {
		if err := configs[name].validate(); err != nil {
			b.errs = append(b.errs, err)
		}
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return configs, nil
}

// derive builds the configuration of a struct class. Classes only known from
// source cannot be instantiated and are skipped.
func (b *Builder) derive(c *reflection.ClassInfo) (*Configuration, error) {
	if c.Type() == nil {
		b.log.WithField("class", c.Name()).Debug("class has no runtime type, no object configured")
		return nil, nil
	}
	annos := c.Annotations()
	conf := &Configuration{
		Name:       c.Name(),
		Class:      c.Name(),
		Type:       c.Type(),
		Scope:      Prototype,
		Arguments:  map[int]Injection{},
		Autowiring: true,
		Source:     "class " + c.Name(),
	}
	if annos.Has(annotation.Aspect) {
		conf.Scope = Singleton
	}
	if a, ok := annos.First(annotation.Scope); ok {
		scope, err := ParseScope(a.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		conf.Scope = scope
	}
	if a, ok := annos.First(annotation.Autowiring); ok {
		conf.Autowiring = a.Bool(annotation.DefaultKey, true)
	}
	if fn, ok := c.Constructor(); ok {
		conf.Factory = fn.Interface()
	}

	for _, f := range c.Fields() {
		p, ok, err := fieldProperty(f)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name(), f.Name(), err)
		}
		if ok {
			conf.setProperty(p)
		}
	}
	if conf.Autowiring {
		for _, m := range c.Methods() {
			name, ok := strings.CutPrefix(m.Name(), setterPrefix)
			if !ok || name == "" || len(m.Params()) != 1 {
				continue
			}
			if _, exists := conf.Property(name); exists {
				continue
			}
			conf.Properties = append(conf.Properties, Property{Name: name, Injection: Injection{Kind: ObjectRef}, autowired: true})
		}
	}
	b.log.WithFields(logrus.Fields{
		"object":     conf.Name,
		"scope":      conf.Scope,
		"properties": len(conf.Properties),
	}).Debug("object configured")
	return conf, nil
}

// deriveInterface aliases an interface to its only implementation, or
// configures it directly when it was registered with a factory.
func (b *Builder) deriveInterface(c *reflection.ClassInfo, configs map[string]*Configuration) *Configuration {
	if c.Type() == nil {
		return nil
	}
	if fn, ok := c.Constructor(); ok {
		return &Configuration{
			Name:       c.Name(),
			Class:      c.Name(),
			Type:       c.Type(),
			Scope:      Prototype,
			Factory:    fn.Interface(),
			Arguments:  map[int]Injection{},
			Autowiring: true,
			Source:     "class " + c.Name(),
		}
	}
	var impls []string
	for _, impl := range b.index.Implementations(c.Name()) {
		if _, ok := configs[impl.Name()]; ok {
			impls = append(impls, impl.Name())
		}
	}
	if len(impls) != 1 {
		if len(impls) > 1 {
			b.log.WithFields(logrus.Fields{"interface": c.Name(), "implementations": impls}).
				Debug("interface has several implementations, configure one in Objects.yaml")
		}
		return nil
	}
	return &Configuration{
		Name:    c.Name(),
		Class:   c.Name(),
		Type:    c.Type(),
		AliasOf: impls[0],
		Source:  "implementation of " + c.Name(),
	}
}

// fieldProperty reads @Inject, @Lazy and the inject tag of a field. The tag
// has the form `inject:"[name|setting:path][,lazy]"`.
func fieldProperty(f *reflection.FieldInfo) (Property, bool, error) {
	annos := f.Annotations()
	p := Property{Name: f.Name(), Injection: Injection{Kind: ObjectRef}}
	found := false
	if tag, ok := f.Tag(injectTag); ok {
		found = true
		ref, opts, _ := strings.Cut(tag, ",")
		if setting, ok := strings.CutPrefix(ref, settingPrefix); ok {
			p.Kind, p.Ref = Setting, setting
		} else {
			p.Ref = ref
		}
		for _, o := range strings.Split(opts, ",") {
			switch strings.TrimSpace(o) {
			case "":
			case "lazy":
				p.Lazy = true
			default:
				return p, false, fmt.Errorf("%w: unknown inject option %q", ErrInvalidConfiguration, o)
			}
		}
	}
	if a, ok := annos.First(annotation.Inject); ok {
		found = true
		if v, ok := a.Arg("setting"); ok {
			p.Kind, p.Ref = Setting, v
		} else if v, ok := a.Arg("name"); ok {
			p.Ref = v
		} else if v := a.Value(); v != "" {
			p.Ref = v
		}
		p.Lazy = a.Bool("lazy", p.Lazy)
	}
	if annos.Has(annotation.Lazy) {
		p.Lazy = true
	}
	if p.Lazy && p.Kind == Setting {
		return p, false, fmt.Errorf("%w: settings cannot be injected lazily", ErrInvalidConfiguration)
	}
	return p, found, nil
}

// typeOf resolves the runtime type of a class name, for Objects.yaml entries
// naming classes.
func typeOf(idx *reflection.Index, class string) (reflect.Type, bool) {
	c, ok := idx.Class(class)
	if !ok || c.Type() == nil {
		return nil, false
	}
	return c.Type(), true
}
