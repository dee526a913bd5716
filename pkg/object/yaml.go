package object

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/go-park/flow/pkg/reflection"
	"github.com/go-park/flow/pkg/tools/collections"
)

// yamlDoc is one Objects.yaml document, keyed by object name:
//
//	github.com/acme/shop.Catalog:
//	  className: github.com/acme/shop.SQLCatalog
//	  scope: singleton
//	  arguments:
//	    1:
//	      setting: shop.dsn
//	  properties:
//	    Log:
//	      object: github.com/acme/shop.Logger
//	      lazy: true
//	  lifecycleShutdownMethodName: Close
type yamlDoc struct {
	source  string
	objects map[string]yamlObject
}

type yamlObject struct {
	ClassName      string                   `yaml:"className"`
	Scope          Scope                    `yaml:"scope"`
	Autowiring     *bool                    `yaml:"autowiring"`
	Arguments      map[int]yamlInjection    `yaml:"arguments"`
	Properties     map[string]yamlInjection `yaml:"properties"`
	InitMethod     string                   `yaml:"lifecycleInitializationMethodName"`
	ShutdownMethod string                   `yaml:"lifecycleShutdownMethodName"`
}

type yamlInjection struct {
	Object  string `yaml:"object"`
	Value   any    `yaml:"value"`
	Setting string `yaml:"setting"`
	Lazy    bool   `yaml:"lazy"`
}

func (y yamlInjection) injection() (Injection, error) {
	switch {
	case y.Object != "" && y.Setting != "", y.Object != "" && y.Value != nil, y.Setting != "" && y.Value != nil:
		return Injection{}, fmt.Errorf("%w: only one of object, value and setting may be set", ErrInvalidConfiguration)
	case y.Object != "":
		return Injection{Kind: ObjectRef, Ref: y.Object, Lazy: y.Lazy}, nil
	case y.Lazy:
		return Injection{}, fmt.Errorf("%w: only objects can be injected lazily", ErrInvalidConfiguration)
	case y.Setting != "":
		return Injection{Kind: Setting, Ref: y.Setting}, nil
	}
	return Injection{Kind: Value, Value: y.Value}, nil
}

func parseYAML(source string, data []byte) (yamlDoc, error) {
	doc := yamlDoc{source: source}
	if err := yaml.Unmarshal(data, &doc.objects); err != nil {
		return doc, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, source, err)
	}
	return doc, nil
}

func (d yamlDoc) apply(idx *reflection.Index, configs map[string]*Configuration) error {
	for _, name := range collections.SortedKeys(d.objects) {
		if err := d.applyObject(idx, configs, name, d.objects[name]); err != nil {
			return fmt.Errorf("%s: %s: %w", d.source, name, err)
		}
	}
	return nil
}

func (d yamlDoc) applyObject(idx *reflection.Index, configs map[string]*Configuration, name string, o yamlObject) error {
	conf, exists := configs[name]
	if o.ClassName != "" && (!exists || o.ClassName != conf.Class || conf.AliasOf != "") {
		base, ok := configs[o.ClassName]
		if !ok {
			return fmt.Errorf("%w: unknown class %s", ErrInvalidConfiguration, o.ClassName)
		}
		if o.onlyClassName() {
			configs[name] = &Configuration{
				Name:    name,
				Class:   o.ClassName,
				Type:    base.Type,
				AliasOf: o.ClassName,
				Source:  d.source,
			}
			return nil
		}
		conf = base.clone()
		conf.Name, conf.AliasOf = name, ""
		if t, ok := typeOf(idx, name); ok && t.Kind() == reflect.Interface && base.Type.Implements(t) {
			conf.Type = t
		}
	} else if !exists {
		return fmt.Errorf("%w: unknown object, set className", ErrInvalidConfiguration)
	} else {
		conf = conf.clone()
	}
	if conf.AliasOf != "" {
		return fmt.Errorf("%w: %s is an alias of %s", ErrInvalidConfiguration, name, conf.AliasOf)
	}

	conf.Source = d.source
	if o.Scope != 0 {
		conf.Scope = o.Scope
	}
	if o.Autowiring != nil {
		conf.Autowiring = *o.Autowiring
	}
	for pos, y := range o.Arguments {
		inj, err := y.injection()
		if err != nil {
			return fmt.Errorf("argument %d: %w", pos, err)
		}
		conf.Arguments[pos] = inj
	}
	for _, prop := range collections.SortedKeys(o.Properties) {
		inj, err := o.Properties[prop].injection()
		if err != nil {
			return fmt.Errorf("property %s: %w", prop, err)
		}
		conf.setProperty(Property{Name: prop, Injection: inj})
	}
	if o.InitMethod != "" {
		conf.InitMethod = o.InitMethod
	}
	if o.ShutdownMethod != "" {
		conf.ShutdownMethod = o.ShutdownMethod
	}
	configs[name] = conf
	return nil
}

func (o yamlObject) onlyClassName() bool {
	return o.Scope == 0 && o.Autowiring == nil && len(o.Arguments) == 0 && len(o.Properties) == 0 &&
		o.InitMethod == "" && o.ShutdownMethod == ""
}
