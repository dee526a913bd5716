package core

import (
	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/aop"
	"github.com/go-park/flow/pkg/aspect"
	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/object"
	"github.com/go-park/flow/pkg/pointcut"
	"github.com/go-park/flow/pkg/reflection"
)

type (
	options struct {
		settingsFile string
		settings     *config.Settings
		tree         *config.Tree
		log          logrus.FieldLogger
		dir          string
		classes      []func(*reflection.Builder)
		aspects      []aspect.Aspect
		filters      map[string]pointcut.Filter
		decorators   *aop.DecoratorRegistry
		objects      []*object.Configuration
		generate     *bool
	}
	Option func(*options)
)

// WithSettingsFile reads the settings from file instead of ./Settings.yaml.
func WithSettingsFile(file string) Option {
	return func(o *options) {
		o.settingsFile = file
	}
}

// WithSettings uses already loaded settings.
func WithSettings(s *config.Settings, tree *config.Tree) Option {
	return func(o *options) {
		o.settings, o.tree = s, tree
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithDir is the directory source patterns are resolved in.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithClasses registers runtime types; fn is called with the index builder.
func WithClasses(fn func(*reflection.Builder)) Option {
	return func(o *options) {
		o.classes = append(o.classes, fn)
	}
}

// WithAspects adds aspects declared in code to the annotated ones.
func WithAspects(aspects ...aspect.Aspect) Option {
	return func(o *options) {
		o.aspects = append(o.aspects, aspects...)
	}
}

func WithFilter(name string, f pointcut.Filter) Option {
	return func(o *options) {
		if o.filters == nil {
			o.filters = map[string]pointcut.Filter{}
		}
		o.filters[name] = f
	}
}

// WithDecorators is the registry generated Register<Pkg>Proxies functions
// filled.
func WithDecorators(r *aop.DecoratorRegistry) Option {
	return func(o *options) {
		o.decorators = r
	}
}

func WithObjects(cfgs ...*object.Configuration) Option {
	return func(o *options) {
		o.objects = append(o.objects, cfgs...)
	}
}

// WithGenerate overrides the proxy.generate setting.
func WithGenerate(generate bool) Option {
	return func(o *options) {
		o.generate = &generate
	}
}
