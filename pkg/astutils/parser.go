// Package astutils builds class metadata from Go source. It loads packages
// with go/packages, reads //@Annotation doc comments and caches the result
// per package, keyed by a hash of the package's files.
package astutils

import (
	"errors"
	"fmt"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/packages"

	"github.com/go-park/flow/pkg/cache"
	"github.com/go-park/flow/pkg/logging"
	"github.com/go-park/flow/pkg/reflection"
)

var ErrLoad = errors.New("loading packages")

// Package is a scanned Go package.
type Package struct {
	Path  string   `json:"path"`
	Name  string   `json:"name"`
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// Result is the outcome of a scan.
type Result struct {
	Classes  []reflection.ClassSpec
	Packages map[string]Package
	// Cached lists the packages served from the cache without type checking
	Cached []string
}

type (
	options struct {
		dir               string
		patterns          []string
		tags              []string
		exclude           []string
		cache             *cache.VariableFrontend
		classInterceptors []ClassInterceptor
		fieldInterceptors []FieldInterceptor
		log               logrus.FieldLogger
	}
	Option func(*options)
)

func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

func WithPatterns(patterns ...string) Option {
	return func(o *options) {
		if len(patterns) > 0 {
			o.patterns = patterns
		}
	}
}

func WithTags(tags ...string) Option {
	return func(o *options) { o.tags = tags }
}

// WithExclude skips files matching doublestar patterns relative to the
// scanner's directory.
func WithExclude(patterns ...string) Option {
	return func(o *options) { o.exclude = patterns }
}

func WithCache(c *cache.VariableFrontend) Option {
	return func(o *options) { o.cache = c }
}

func WithClassInterceptors(i ...ClassInterceptor) Option {
	return func(o *options) { o.classInterceptors = append(o.classInterceptors, i...) }
}

func WithFieldInterceptors(i ...FieldInterceptor) Option {
	return func(o *options) { o.fieldInterceptors = append(o.fieldInterceptors, i...) }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Scanner turns Go packages into reflection class specs.
type Scanner struct {
	options
}

func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{options: options{
		dir:      ".",
		patterns: []string{"./..."},
		exclude:  []string{"**/*_test.go", "**/*_proxy.gen.go", "**/flow_proxies.gen.go"},
		log:      logging.Discard(),
	}}
	for _, opt := range opts {
		opt(&s.options)
	}
	return s
}

type cachedPackage struct {
	Hash    string                 `json:"hash"`
	Package Package                `json:"package"`
	Classes []reflection.ClassSpec `json:"classes"`
}

func (s *Scanner) config(mode packages.LoadMode) *packages.Config {
	cfg := &packages.Config{
		Mode:  mode,
		Dir:   s.dir,
		Tests: false,
		Logf:  func(format string, args ...any) { s.log.WithField("dir", s.dir).Tracef(format, args...) },
	}
	if len(s.tags) > 0 {
		cfg.BuildFlags = []string{fmt.Sprintf("-tags=%s", strings.Join(s.tags, ","))}
	}
	return cfg
}

func (s *Scanner) root() string {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return s.dir
	}
	return root
}

func (s *Scanner) files(pkg *packages.Package) []string {
	var files []string
	for _, f := range pkg.GoFiles {
		if !excluded(s.exclude, s.root(), f) {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files
}

func entryID(pkgPath string) string {
	return "reflection_" + shortHash(pkgPath)
}

// Scan lists the packages matching the patterns, serves unchanged ones
// from the cache and type-checks the rest.
func (s *Scanner) Scan() (*Result, error) {
	listed, err := packages.Load(s.config(packages.NeedName|packages.NeedFiles), s.patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	result := &Result{Packages: map[string]Package{}}
	hashes := map[string]string{}
	var misses []string
	for _, pkg := range listed {
		files := s.files(pkg)
		if len(files) == 0 {
			continue
		}
		hash, err := contentHash(files)
		if err != nil {
			return nil, err
		}
		hashes[pkg.PkgPath] = hash
		if c, ok := s.cached(pkg.PkgPath, hash); ok {
			result.Packages[pkg.PkgPath] = c.Package
			result.Classes = append(result.Classes, c.Classes...)
			result.Cached = append(result.Cached, pkg.PkgPath)
			continue
		}
		misses = append(misses, pkg.PkgPath)
	}
	if len(misses) > 0 {
		if err := s.load(misses, hashes, result); err != nil {
			return nil, err
		}
	}
	sort.Slice(result.Classes, func(i, j int) bool { return result.Classes[i].Name < result.Classes[j].Name })
	sort.Strings(result.Cached)
	return result, nil
}

func (s *Scanner) cached(pkgPath, hash string) (cachedPackage, bool) {
	var c cachedPackage
	if s.cache == nil {
		return c, false
	}
	ok, err := s.cache.Get(entryID(pkgPath), &c)
	if err != nil {
		s.log.WithError(err).WithField("package", pkgPath).Warn("reading reflection cache")
		return c, false
	}
	return c, ok && c.Hash == hash
}

func (s *Scanner) load(pkgPaths []string, hashes map[string]string, result *Result) error {
	mode := packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
		packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports
	loaded, err := packages.Load(s.config(mode), pkgPaths...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	var ifaces []*types.TypeName
	for _, pkg := range loaded {
		if len(pkg.Errors) > 0 {
			return fmt.Errorf("%w: %s: %v", ErrLoad, pkg.PkgPath, pkg.Errors[0])
		}
		ifaces = append(ifaces, s.interfaces(pkg)...)
	}
	for _, pkg := range loaded {
		files := s.files(pkg)
		p := Package{Path: pkg.PkgPath, Name: pkg.Name, Dir: filepath.Dir(files[0]), Files: files}
		classes, err := s.classes(pkg, ifaces)
		if err != nil {
			return err
		}
		result.Packages[pkg.PkgPath] = p
		result.Classes = append(result.Classes, classes...)
		s.log.WithFields(logrus.Fields{"package": pkg.PkgPath, "classes": len(classes)}).Debug("package scanned")
		if s.cache == nil {
			continue
		}
		entry := cachedPackage{Hash: hashes[pkg.PkgPath], Package: p, Classes: classes}
		if err := s.cache.Set(entryID(pkg.PkgPath), entry, []string{cache.Encode(pkg.PkgPath)}, 0); err != nil {
			s.log.WithError(err).WithField("package", pkg.PkgPath).Warn("writing reflection cache")
		}
	}
	return nil
}

func (s *Scanner) inScope(pkg *packages.Package, obj types.Object) bool {
	file := pkg.Fset.Position(obj.Pos()).Filename
	return file != "" && !excluded(s.exclude, s.root(), file)
}

func (s *Scanner) interfaces(pkg *packages.Package) []*types.TypeName {
	var list []*types.TypeName
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() || !s.inScope(pkg, tn) {
			continue
		}
		if iface, ok := tn.Type().Underlying().(*types.Interface); ok && iface.NumMethods() > 0 {
			list = append(list, tn)
		}
	}
	return list
}

func className(tn *types.TypeName) string {
	return tn.Pkg().Path() + "." + tn.Name()
}

func (s *Scanner) classes(pkg *packages.Package, ifaces []*types.TypeName) ([]reflection.ClassSpec, error) {
	docs := newDocIndex(pkg.Fset, pkg.Syntax)
	scope := pkg.Types.Scope()
	var classes []reflection.ClassSpec
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() || !s.inScope(pkg, tn) {
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok || named.TypeParams() != nil {
			continue
		}
		var spec reflection.ClassSpec
		var err error
		switch u := named.Underlying().(type) {
		case *types.Interface:
			spec, err = s.interfaceSpec(tn, u, docs)
		case *types.Struct:
			spec, err = s.structSpec(pkg, tn, u, docs, ifaces)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		s.interceptClass(&spec, docs.types[name])
		classes = append(classes, spec)
	}
	return classes, nil
}

func (s *Scanner) interfaceSpec(tn *types.TypeName, iface *types.Interface, docs *docIndex) (reflection.ClassSpec, error) {
	annos, err := docs.annotations(tn.Name())
	if err != nil {
		return reflection.ClassSpec{}, err
	}
	spec := reflection.ClassSpec{Name: className(tn), Interface: true, Annotations: annos}
	for i := 0; i < iface.NumMethods(); i++ {
		m := iface.Method(i)
		ms := methodSpecOf(m.Name(), m.Type().(*types.Signature))
		if ms.Annotations, err = docs.annotations(tn.Name() + "." + m.Name()); err != nil {
			return spec, err
		}
		spec.Methods = append(spec.Methods, ms)
	}
	return spec, nil
}

func (s *Scanner) structSpec(pkg *packages.Package, tn *types.TypeName, st *types.Struct, docs *docIndex, ifaces []*types.TypeName) (reflection.ClassSpec, error) {
	name := tn.Name()
	annos, err := docs.annotations(name)
	if err != nil {
		return reflection.ClassSpec{}, err
	}
	spec := reflection.ClassSpec{Name: className(tn), Annotations: annos}
	ptr := types.NewPointer(tn.Type())

	mset := types.NewMethodSet(ptr)
	for i := 0; i < mset.Len(); i++ {
		fn, ok := mset.At(i).Obj().(*types.Func)
		if !ok {
			continue
		}
		ms := methodSpecOf(fn.Name(), fn.Type().(*types.Signature))
		if ms.Annotations, err = docs.annotations(name + "." + fn.Name()); err != nil {
			return spec, err
		}
		spec.Methods = append(spec.Methods, ms)
	}

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() {
			if spec.Parent == "" {
				if parent, ok := embeddedStruct(f.Type()); ok {
					spec.Parent = parent
				}
			}
			continue
		}
		fs := reflection.FieldSpec{Name: f.Name(), Type: parameterOf(f.Name(), f.Type()), Tag: st.Tag(i)}
		if fs.Annotations, err = docs.annotations(name + "." + f.Name()); err != nil {
			return spec, err
		}
		s.interceptField(&fs, docs.fields[name+"."+f.Name()])
		spec.Fields = append(spec.Fields, fs)
	}

	for _, iface := range ifaces {
		if types.Implements(ptr, iface.Type().Underlying().(*types.Interface)) {
			spec.Interfaces = append(spec.Interfaces, className(iface))
		}
	}
	sort.Strings(spec.Interfaces)

	if ctor, ok := constructorOf(pkg.Types.Scope(), tn); ok {
		ms := methodSpecOf(reflection.ConstructorName, ctor.Type().(*types.Signature))
		if ms.Annotations, err = docs.annotations(ctor.Name()); err != nil {
			return spec, err
		}
		spec.Constructor = &ms
	}
	return spec, nil
}

func embeddedStruct(t types.Type) (string, bool) {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return "", false
	}
	if _, ok := named.Underlying().(*types.Struct); !ok {
		return "", false
	}
	return className(named.Obj()), true
}

// constructorOf finds New<Type> returning *Type or (*Type, error).
func constructorOf(scope *types.Scope, tn *types.TypeName) (*types.Func, bool) {
	fn, ok := scope.Lookup("New" + tn.Name()).(*types.Func)
	if !ok {
		return nil, false
	}
	sig := fn.Type().(*types.Signature)
	res := sig.Results()
	if res.Len() < 1 || res.Len() > 2 {
		return nil, false
	}
	if !types.Identical(res.At(0).Type(), types.NewPointer(tn.Type())) {
		return nil, false
	}
	if res.Len() == 2 && !types.Identical(res.At(1).Type(), types.Universe.Lookup("error").Type()) {
		return nil, false
	}
	return fn, true
}
