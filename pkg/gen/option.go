package gen

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/cache"
	"github.com/go-park/flow/pkg/logging"
)

// Package locates the source directory of an indexed Go package.
type Package struct {
	Name string
	Dir  string
}

type (
	options struct {
		outputDir   string
		parallelism int
		packages    map[string]Package
		cache       *cache.VariableFrontend
		log         logrus.FieldLogger
	}
	Option     interface{ apply(*options) }
	optionFunc func(o *options)
)

func (f optionFunc) apply(o *options) {
	f(o)
}

func DefaultOptions() options {
	return options{
		parallelism: runtime.GOMAXPROCS(0),
		packages:    map[string]Package{},
		log:         logging.Discard(),
	}
}

// WithOutputDir writes all decorators into one separate package instead of
// next to their classes.
func WithOutputDir(dir string) Option {
	return optionFunc(
		func(o *options) {
			o.outputDir = dir
		})
}

func WithParallelism(n int) Option {
	return optionFunc(
		func(o *options) {
			if n > 0 {
				o.parallelism = n
			}
		})
}

// WithPackages maps import paths to their name and directory.
func WithPackages(pkgs map[string]Package) Option {
	return optionFunc(
		func(o *options) {
			for path, p := range pkgs {
				o.packages[path] = p
			}
		})
}

func WithCache(c *cache.VariableFrontend) Option {
	return optionFunc(
		func(o *options) {
			o.cache = c
		})
}

func WithLogger(log logrus.FieldLogger) Option {
	return optionFunc(
		func(o *options) {
			if log != nil {
				o.log = log
			}
		})
}
