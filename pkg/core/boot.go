// Package core runs the bootstrap sequence: settings, logging, caches,
// change detection, class index, advice compilation, proxy emission and the
// object manager.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/aop"
	"github.com/go-park/flow/pkg/aspect"
	"github.com/go-park/flow/pkg/astutils"
	"github.com/go-park/flow/pkg/cache"
	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/gen"
	"github.com/go-park/flow/pkg/logging"
	"github.com/go-park/flow/pkg/monitor"
	"github.com/go-park/flow/pkg/object"
	"github.com/go-park/flow/pkg/pointcut"
	"github.com/go-park/flow/pkg/reflection"
	"github.com/go-park/flow/pkg/tools/collections"
)

const (
	// SourcesMonitor is the identifier of the source file monitor.
	SourcesMonitor = "Flow_ClassFiles"

	snapshotEntry    = "index_snapshot"
	packageDirsEntry = "package_dirs"
)

// Runtime is the booted framework.
type Runtime struct {
	Settings *config.Settings
	Tree     *config.Tree
	Log      logrus.FieldLogger
	Caches   *cache.Manager
	Index    *reflection.Index
	// Packages are the scanned source packages by import path
	Packages   map[string]astutils.Package
	Aspects    *aspect.Registry
	Proxies    map[string]*aop.ProxyClass
	Generated  []string
	Decorators *aop.DecoratorRegistry
	Objects    *object.Manager

	opts    options
	monitor *monitor.Monitor
	changes []monitor.Change
}

type snapshot struct {
	Classes  json.RawMessage             `json:"classes"`
	Packages map[string]astutils.Package `json:"packages"`
}

// Boot runs the bootstrap sequence. Compile-time errors (malformed
// pointcuts, missing advice methods, constructor cycles) abort it.
func Boot(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := options{dir: "."}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Runtime{opts: o, Decorators: o.decorators}
	if r.Decorators == nil {
		r.Decorators = aop.NewDecoratorRegistry()
	}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"settings", r.loadSettings},
		{"caches", r.detectChanges},
		{"reflection", r.buildIndex},
		{"aspects", r.compileProxies},
		{"proxies", r.emitProxies},
		{"objects", r.buildObjects},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.fn(ctx); err != nil {
			return nil, fmt.Errorf("boot: %s: %w", s.name, err)
		}
	}
	r.Log.WithFields(logrus.Fields{
		"classes": r.Index.Len(),
		"proxies": len(r.Proxies),
		"objects": len(r.Objects.Names()),
	}).Info("framework booted")
	return r, nil
}

func (r *Runtime) loadSettings(context.Context) error {
	r.Settings, r.Tree = r.opts.settings, r.opts.tree
	if r.Settings == nil {
		s, tree, err := config.Load(r.opts.settingsFile)
		if err != nil {
			return err
		}
		r.Settings, r.Tree = s, tree
	}
	r.Log = r.opts.log
	if r.Log == nil {
		log, err := logging.New(r.Settings.Log)
		if err != nil {
			return err
		}
		r.Log = log
	}
	r.Caches = cache.NewManager(r.Settings.Cache, r.Log)
	return nil
}

// detectChanges flushes the cache entries of packages whose files changed
// since the previous run.
func (r *Runtime) detectChanges(context.Context) error {
	for _, id := range cache.FrameworkCaches {
		if _, err := r.Caches.Backend(id); err != nil {
			return err
		}
	}
	if len(r.Settings.Monitor.Paths) == 0 {
		return nil
	}
	store, err := r.Caches.VariableCache(cache.MonitorCache)
	if err != nil {
		return err
	}
	r.monitor, err = monitor.New(SourcesMonitor, r.Settings.Monitor, store, r.Log)
	if err != nil {
		return err
	}
	r.changes, err = r.monitor.Detect()
	if err != nil {
		return err
	}
	return r.flushChanged(r.changes)
}

func (r *Runtime) flushChanged(changes []monitor.Change) error {
	if len(changes) == 0 {
		return nil
	}
	store, err := r.Caches.VariableCache(cache.MonitorCache)
	if err != nil {
		return err
	}
	dirs := map[string]string{}
	if _, err := store.Get(packageDirsEntry, &dirs); err != nil {
		r.Log.WithError(err).Warn("package directories unreadable, flushing all caches")
		return r.Caches.FlushCaches()
	}
	tags := map[string]struct{}{}
	for _, c := range changes {
		dir, err := filepath.Abs(filepath.Dir(c.Path))
		if err != nil {
			continue
		}
		if pkg, ok := dirs[dir]; ok {
			tags[cache.Encode(pkg)] = struct{}{}
		}
	}
	for _, tag := range collections.SortedKeys(tags) {
		n, err := r.Caches.FlushCachesByTag(tag)
		if err != nil {
			return err
		}
		r.Log.WithFields(logrus.Fields{"tag": tag, "entries": n}).Info("flushed stale cache entries")
	}
	return nil
}

func (r *Runtime) buildIndex(context.Context) error {
	b := reflection.NewBuilder()
	for _, fn := range r.opts.classes {
		fn(b)
	}
	classes, err := r.sourceClasses()
	if err != nil {
		return err
	}
	b.Add(classes...)
	r.Index, err = b.Build()
	return err
}

// sourceClasses scans the configured packages. When the monitor saw no
// change the whole scan result is restored from the index snapshot.
func (r *Runtime) sourceClasses() ([]*reflection.ClassInfo, error) {
	r.Packages = map[string]astutils.Package{}
	settings := r.Settings.Reflection
	if len(settings.Patterns) == 0 {
		return nil, nil
	}
	reflectionCache, err := r.Caches.VariableCache(cache.ReflectionCache)
	if err != nil {
		return nil, err
	}
	if r.monitor != nil && len(r.changes) == 0 {
		var snap snapshot
		if ok, err := reflectionCache.Get(snapshotEntry, &snap); err == nil && ok {
			classes, err := reflection.Restore(snap.Classes)
			if err == nil {
				r.Packages = snap.Packages
				r.Log.WithField("classes", len(classes)).Debug("class index restored from snapshot")
				return classes, nil
			}
			r.Log.WithError(err).Warn("discarding unreadable index snapshot")
		}
	}

	scanner := astutils.NewScanner(
		astutils.WithDir(r.opts.dir),
		astutils.WithPatterns(settings.Patterns...),
		astutils.WithTags(settings.Tags...),
		astutils.WithExclude(settings.Exclude...),
		astutils.WithCache(reflectionCache),
		astutils.WithLogger(r.Log),
	)
	result, err := scanner.Scan()
	if err != nil {
		return nil, err
	}
	r.Packages = result.Packages
	sb := reflection.NewBuilder()
	for _, spec := range result.Classes {
		sb.Add(reflection.Describe(spec))
	}
	scanned, err := sb.Build()
	if err != nil {
		return nil, err
	}
	if err := r.storeSnapshot(reflectionCache, scanned); err != nil {
		r.Log.WithError(err).Warn("caching index snapshot")
	}
	r.Log.WithFields(logrus.Fields{
		"packages": len(result.Packages),
		"cached":   len(result.Cached),
		"classes":  scanned.Len(),
	}).Info("sources scanned")
	return scanned.Classes(), nil
}

func (r *Runtime) storeSnapshot(c *cache.VariableFrontend, idx *reflection.Index) error {
	data, err := idx.Snapshot()
	if err != nil {
		return err
	}
	var tags []string
	dirs := map[string]string{}
	for path, p := range r.Packages {
		tags = append(tags, cache.Encode(path))
		if dir, err := filepath.Abs(p.Dir); err == nil {
			dirs[dir] = path
		}
	}
	if err := c.Set(snapshotEntry, snapshot{Classes: data, Packages: r.Packages}, tags, 0); err != nil {
		return err
	}
	if r.monitor == nil {
		return nil
	}
	store, err := r.Caches.VariableCache(cache.MonitorCache)
	if err != nil {
		return err
	}
	return store.Set(packageDirsEntry, dirs, nil, 0)
}

func (r *Runtime) filters() (*pointcut.FilterRegistry, error) {
	filters := pointcut.NewFilterRegistry()
	for _, name := range collections.SortedKeys(r.opts.filters) {
		if err := filters.Register(name, r.opts.filters[name]); err != nil {
			return nil, err
		}
	}
	return filters, nil
}

func (r *Runtime) compileProxies(context.Context) error {
	r.Aspects = aspect.NewRegistry(r.Log)
	if err := r.Aspects.RegisterAnnotated(r.Index); err != nil {
		return err
	}
	if err := r.Aspects.Register(r.opts.aspects...); err != nil {
		return err
	}
	filters, err := r.filters()
	if err != nil {
		return err
	}
	compiler := gen.NewCompiler(r.Index, r.Aspects, gen.WithLogger(r.Log))
	r.Proxies, err = compiler.Compile(&pointcut.Context{
		Index:    r.Index,
		Settings: r.Tree,
		Filters:  filters,
	})
	return err
}

func (r *Runtime) emitProxies(ctx context.Context) error {
	generate := r.Settings.Proxy.Generate
	if r.opts.generate != nil {
		generate = *r.opts.generate
	}
	if !generate || len(r.Proxies) == 0 {
		return nil
	}
	var err error
	r.Generated, err = r.Emit(ctx)
	return err
}

// Emit writes the decorator sources of the compiled proxies.
func (r *Runtime) Emit(ctx context.Context) ([]string, error) {
	proxyCache, err := r.Caches.VariableCache(cache.ProxyCache)
	if err != nil {
		return nil, err
	}
	pkgs := make(map[string]gen.Package, len(r.Packages))
	for path, p := range r.Packages {
		pkgs[path] = gen.Package{Name: p.Name, Dir: p.Dir}
	}
	opts := []gen.Option{
		gen.WithPackages(pkgs),
		gen.WithCache(proxyCache),
		gen.WithParallelism(r.Settings.Proxy.Parallelism),
		gen.WithLogger(r.Log),
	}
	if dir := r.Settings.Proxy.OutputDir; dir != "" {
		opts = append(opts, gen.WithOutputDir(dir))
	}
	return gen.NewEmitter(r.Index, opts...).Emit(ctx, r.Proxies)
}

func (r *Runtime) buildObjects(context.Context) error {
	b := object.NewBuilder(r.Index, r.Log)
	for _, file := range r.Settings.Objects.Files {
		if err := b.MergeFile(file); err != nil {
			return err
		}
	}
	b.Register(r.opts.objects...)
	configs, err := b.Build()
	if err != nil {
		return err
	}
	r.Objects = object.NewManager(configs,
		object.WithSettings(r.Tree),
		object.WithProxies(r.Proxies),
		object.WithDecorators(r.Decorators),
		object.WithLogger(r.Log),
	)
	return r.Objects.Validate()
}

// Watch flushes stale cache entries whenever monitored files change and
// then calls fn. It returns when ctx is done.
func (r *Runtime) Watch(ctx context.Context, fn func([]monitor.Change)) error {
	if r.monitor == nil {
		return fmt.Errorf("%w: no monitor.paths configured", config.ErrInvalidSetting)
	}
	return r.monitor.Watch(ctx, func(changes []monitor.Change) {
		if err := r.flushChanged(changes); err != nil {
			r.Log.WithError(err).Error("flushing stale cache entries")
		}
		fn(changes)
	})
}

// Shutdown shuts down the singletons of the object manager.
func (r *Runtime) Shutdown() error {
	if r.Objects == nil {
		return nil
	}
	return r.Objects.Shutdown()
}
