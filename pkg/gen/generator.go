package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/go-park/flow/pkg/aop"
	"github.com/go-park/flow/pkg/cache"
	"github.com/go-park/flow/pkg/reflection"
	"github.com/go-park/flow/pkg/tools/collections"
)

const (
	aopImport    = "github.com/go-park/flow/pkg/aop"
	registryFile = "flow_proxies.gen.go"
)

// Emitter renders a Go decorator per proxy class. Each decorator embeds the
// target and overrides the intercepted methods to call aop.Proxy.Invoke.
// Output goes to <type>_proxy.gen.go next to the class, or into a single
// package when an output dir is set. Each output package also gets a
// Register<Pkg>Proxies function.
type Emitter struct {
	options
	index *reflection.Index
}

func NewEmitter(idx *reflection.Index, opts ...Option) *Emitter {
	e := &Emitter{options: DefaultOptions(), index: idx}
	for _, opt := range opts {
		opt.apply(&e.options)
	}
	return e
}

// job is the emission of one class into one output package.
type job struct {
	class   *reflection.ClassInfo
	proxy   *aop.ProxyClass
	dir     string
	pkgName string
	// the decorator lives in the class's own package
	local bool
}

type cachedSource struct {
	Hash   string `json:"hash"`
	Source []byte `json:"source"`
}

// Emit writes the decorators of classes and returns the written paths,
// sorted. Classes are rendered in parallel; a class whose metadata and
// advice table are unchanged since the last run is taken from the cache.
func (e *Emitter) Emit(ctx context.Context, classes map[string]*aop.ProxyClass) ([]string, error) {
	jobs := make([]job, 0, len(classes))
	for _, name := range collections.SortedKeys(classes) {
		j, err := e.plan(classes[name])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	var (
		mu      sync.Mutex
		written []string
		byDir   = map[string][]classData{}
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, file, err := e.emitClass(j)
			if err != nil {
				return fmt.Errorf("emitting %s: %w", j.proxy.Class, err)
			}
			mu.Lock()
			defer mu.Unlock()
			written = append(written, file)
			byDir[j.dir] = append(byDir[j.dir], data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, dir := range collections.SortedKeys(byDir) {
		file, err := e.emitRegistry(dir, byDir[dir])
		if err != nil {
			return nil, err
		}
		written = append(written, file)
	}
	sort.Strings(written)
	return written, nil
}

func (e *Emitter) plan(pc *aop.ProxyClass) (job, error) {
	class, ok := e.index.Class(pc.Class)
	if !ok {
		return job{}, fmt.Errorf("%w: %s", ErrUnknownMethod, pc.Class)
	}
	j := job{class: class, proxy: pc}
	if e.outputDir != "" {
		if !isExported(class.ShortName()) {
			return job{}, fmt.Errorf("%w: %s", ErrUnexportedClass, pc.Class)
		}
		j.dir = e.outputDir
		j.pkgName = packageName(filepath.Base(e.outputDir))
		return j, nil
	}
	pkg, ok := e.packages[class.PkgPath()]
	if !ok {
		return job{}, fmt.Errorf("%w: %s", ErrNoPackageDir, class.PkgPath())
	}
	j.dir, j.pkgName, j.local = pkg.Dir, pkg.Name, true
	return j, nil
}

// emitClass runs the render, format and output stages for one class.
func (e *Emitter) emitClass(j job) (classData, string, error) {
	data, err := e.classData(j)
	if err != nil {
		return data, "", err
	}
	file := filepath.Join(j.dir, strings.ToLower(j.class.ShortName())+"_proxy.gen.go")
	log := e.log.WithFields(logrus.Fields{"class": j.proxy.Class, "file": file})

	hash, err := e.hash(j)
	if err != nil {
		return data, "", err
	}
	entryID := "proxy_" + cache.Encode(j.proxy.Class)
	if src, ok := e.cached(entryID, hash); ok {
		if current, err := os.ReadFile(file); err == nil && bytes.Equal(current, src) {
			log.Debug("proxy up to date")
			return data, file, nil
		}
		log.Debug("restoring proxy from cache")
		return data, file, cache.WriteFileAtomic(file, src, 0o644)
	}

	var buf bytes.Buffer
	if err := decoratorTpl.Execute(&buf, data); err != nil {
		return data, "", err
	}
	src, err := imports.Process(file, buf.Bytes(), nil)
	if err != nil {
		return data, "", fmt.Errorf("formatting generated source: %w", err)
	}
	if err := cache.WriteFileAtomic(file, src, 0o644); err != nil {
		return data, "", err
	}
	if e.cache != nil {
		tags := []string{cache.Encode(j.class.PkgPath())}
		if err := e.cache.Set(entryID, cachedSource{Hash: hash, Source: src}, tags, 0); err != nil {
			log.WithError(err).Warn("caching proxy source")
		}
	}
	log.Info("proxy generated")
	return data, file, nil
}

func (e *Emitter) cached(entryID, hash string) ([]byte, bool) {
	if e.cache == nil {
		return nil, false
	}
	var c cachedSource
	ok, err := e.cache.Get(entryID, &c)
	if err != nil || !ok || c.Hash != hash {
		return nil, false
	}
	return c.Source, true
}

func (e *Emitter) hash(j job) (string, error) {
	spec, err := json.Marshal(j.class)
	if err != nil {
		return "", err
	}
	type methodKey struct {
		Name       string
		Introduced bool
		Advices    any
	}
	var methods []methodKey
	for _, name := range j.proxy.MethodNames() {
		m := j.proxy.Methods[name]
		methods = append(methods, methodKey{Name: name, Introduced: m.Introduced, Advices: m.Advices})
	}
	table, err := json.Marshal(methods)
	if err != nil {
		return "", err
	}
	return contentHash(spec, table, []byte(j.dir), []byte(j.pkgName)), nil
}

func (e *Emitter) classData(j job) (classData, error) {
	short := j.class.ShortName()
	qualify := func(expr string) string {
		if j.local {
			return stripQualifier(expr, j.pkgName)
		}
		return expr
	}
	decorator := lowerFirst(short) + "Proxy"
	data := classData{
		Package:     j.pkgName,
		Class:       j.proxy.Class,
		Decorator:   decorator,
		Constructor: "new" + upperFirst(decorator),
		Field:       short,
		Embed:       "*" + short,
	}
	importSet := map[string]struct{}{aopImport: {}}
	if !j.local {
		name := packageName(j.class.PkgPath())
		if p, ok := e.packages[j.class.PkgPath()]; ok {
			name = p.Name
		}
		data.Embed = "*" + name + "." + short
		importSet[j.class.PkgPath()] = struct{}{}
	}

	for _, name := range j.proxy.MethodNames() {
		pm := j.proxy.Methods[name]
		if !j.local && !isExported(name) {
			e.log.WithFields(logrus.Fields{"class": j.proxy.Class, "method": name}).
				Warn("unexported method cannot be intercepted from another package")
			continue
		}
		info, ok := lookupMethod(e.index, j.class, j.proxy.Interfaces, name, pm.Introduced)
		if !ok {
			return data, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, j.proxy.Class, name)
		}
		md := methodData{Name: name}
		var params, args []string
		for i, p := range info.Params() {
			params = append(params, fmt.Sprintf("p%d %s", i, qualify(p.Type)))
			args = append(args, fmt.Sprintf("p%d", i))
			addImports(importSet, p.Imports)
		}
		var results, returns []string
		for i, r := range info.Results() {
			t := qualify(r.Type)
			results = append(results, t)
			returns = append(returns, fmt.Sprintf("aop.Result[%s](r, %d)", t, i))
			addImports(importSet, r.Imports)
		}
		md.Params = strings.Join(params, ", ")
		if len(args) > 0 {
			md.Args = ", " + strings.Join(args, ", ")
		}
		switch len(results) {
		case 0:
		case 1:
			md.Results = results[0]
		default:
			md.Results = "(" + strings.Join(results, ", ") + ")"
		}
		md.Returns = strings.Join(returns, ", ")
		data.Methods = append(data.Methods, md)
	}
	if j.local {
		delete(importSet, j.class.PkgPath())
	}
	data.Imports = filterEmptyStr(collections.SortedKeys(importSet)...)
	return data, nil
}

func addImports(set map[string]struct{}, paths []string) {
	for _, p := range paths {
		set[p] = struct{}{}
	}
}

func (e *Emitter) emitRegistry(dir string, classes []classData) (string, error) {
	sort.Slice(classes, func(i, j int) bool { return classes[i].Class < classes[j].Class })
	data := registryData{
		Package:  classes[0].Package,
		Exported: upperFirst(classes[0].Package),
		Classes:  classes,
	}
	var buf bytes.Buffer
	if err := registryTpl.Execute(&buf, data); err != nil {
		return "", err
	}
	file := filepath.Join(dir, registryFile)
	src, err := imports.Process(file, buf.Bytes(), nil)
	if err != nil {
		return "", fmt.Errorf("formatting generated registry: %w", err)
	}
	return file, cache.WriteFileAtomic(file, src, 0o644)
}
