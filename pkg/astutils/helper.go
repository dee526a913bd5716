package astutils

import (
	"crypto/sha256"
	"encoding/hex"
	"go/types"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/go-park/flow/pkg/reflection"
)

func qualifier(p *types.Package) string { return p.Name() }

// parameterOf renders t like reflection.ParameterOf does for runtime types.
func parameterOf(name string, t types.Type) reflection.Parameter {
	set := map[string]struct{}{}
	collectImports(t, set, map[types.Type]bool{})
	p := reflection.Parameter{Name: name, Type: types.TypeString(t, qualifier)}
	for path := range set {
		p.Imports = append(p.Imports, path)
	}
	sort.Strings(p.Imports)
	return p
}

func collectImports(t types.Type, set map[string]struct{}, seen map[types.Type]bool) {
	if seen[t] {
		return
	}
	seen[t] = true
	switch t := t.(type) {
	case *types.Named:
		if pkg := t.Obj().Pkg(); pkg != nil {
			set[pkg.Path()] = struct{}{}
		}
		if args := t.TypeArgs(); args != nil {
			for i := 0; i < args.Len(); i++ {
				collectImports(args.At(i), set, seen)
			}
		}
	case *types.Pointer:
		collectImports(t.Elem(), set, seen)
	case *types.Slice:
		collectImports(t.Elem(), set, seen)
	case *types.Array:
		collectImports(t.Elem(), set, seen)
	case *types.Chan:
		collectImports(t.Elem(), set, seen)
	case *types.Map:
		collectImports(t.Key(), set, seen)
		collectImports(t.Elem(), set, seen)
	case *types.Signature:
		collectTuple(t.Params(), set, seen)
		collectTuple(t.Results(), set, seen)
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			collectImports(t.Field(i).Type(), set, seen)
		}
	case *types.Interface:
		for i := 0; i < t.NumMethods(); i++ {
			collectImports(t.Method(i).Type(), set, seen)
		}
	}
}

func collectTuple(tuple *types.Tuple, set map[string]struct{}, seen map[types.Type]bool) {
	for i := 0; i < tuple.Len(); i++ {
		collectImports(tuple.At(i).Type(), set, seen)
	}
}

// methodSpecOf describes a method or function signature.
func methodSpecOf(name string, sig *types.Signature) reflection.MethodSpec {
	spec := reflection.MethodSpec{Name: name, Variadic: sig.Variadic()}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		v := params.At(i)
		if sig.Variadic() && i == params.Len()-1 {
			p := parameterOf(v.Name(), v.Type().(*types.Slice).Elem())
			p.Type = "..." + p.Type
			spec.Params = append(spec.Params, p)
			continue
		}
		spec.Params = append(spec.Params, parameterOf(v.Name(), v.Type()))
	}
	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		v := results.At(i)
		spec.Results = append(spec.Results, parameterOf(v.Name(), v.Type()))
	}
	return spec
}

// excluded reports whether file, relative to root, matches a pattern.
func excluded(patterns []string, root, file string) bool {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = file
	}
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// contentHash hashes the names and contents of files.
func contentHash(files []string) (string, error) {
	h := sha256.New()
	for _, name := range files {
		io.WriteString(h, filepath.Base(name))
		h.Write([]byte{0})
		f, err := os.Open(name)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
