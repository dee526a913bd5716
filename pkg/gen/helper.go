package gen

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-park/flow/pkg/reflection"
)

// lookupMethod finds the metadata of an intercepted method: a class method,
// the constructor or a method of an introduced interface.
func lookupMethod(idx *reflection.Index, class *reflection.ClassInfo, introductions []string, name string, introduced bool) (*reflection.MethodInfo, bool) {
	if !introduced {
		if m, ok := class.Method(name); ok {
			return m, true
		}
		if ctor, ok := class.ConstructorMethod(); ok && name == reflection.ConstructorName {
			return ctor, true
		}
		return nil, false
	}
	for _, iface := range introductions {
		ic, ok := idx.Class(iface)
		if !ok {
			continue
		}
		if m, ok := ic.Method(name); ok {
			return m, true
		}
	}
	return nil, false
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}

func isExported(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// packageName guesses the name of a package from its import path, dropping
// a major version suffix.
func packageName(pkgPath string) string {
	base := path.Base(pkgPath)
	if len(base) > 1 && base[0] == 'v' && strings.Trim(base[1:], "0123456789") == "" {
		base = path.Base(path.Dir(pkgPath))
	}
	return strings.NewReplacer("-", "", ".", "").Replace(base)
}

// stripQualifier removes the pkg qualifier from a type expression, for code
// generated inside pkg itself.
func stripQualifier(expr, pkg string) string {
	re := regexp.MustCompile(`(^|[^\w.])` + regexp.QuoteMeta(pkg) + `\.`)
	return re.ReplaceAllString(expr, "$1")
}

func contentHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func filterEmptyStr(ss ...string) []string {
	arr := make([]string, 0, len(ss))
	for _, s := range ss {
		if len(s) > 0 {
			arr = append(arr, s)
		}
	}
	return arr
}
