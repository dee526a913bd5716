// Package pointcut compiles pointcut expressions such as
//
//	method(.*Service->Place.*()) && !classAnnotatedWith(Internal)
//
// into matchers over classes and methods of the reflection index.
package pointcut

import (
	"fmt"
	"strings"

	"github.com/go-park/flow/pkg/reflection"
)

const (
	designatorMethod              = "method"
	designatorClass               = "class"
	designatorWithin              = "within"
	designatorClassAnnotatedWith  = "classAnnotatedWith"
	designatorMethodAnnotatedWith = "methodAnnotatedWith"
	designatorFilter              = "filter"
	designatorSetting             = "setting"
)

type parser struct {
	src   string
	pos   int
	owner string
}

// Compile parses an expression. owner is the class declaring it; references
// without a class part ("name" instead of "Class->name") resolve against it.
func Compile(src, owner string) (Expr, error) {
	p := &parser{src: src, owner: owner}
	p.skipSpace()
	if p.pos == len(p.src) {
		return nil, p.errorf(p.pos, "empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf(p.pos, "unexpected %q", p.src[p.pos:])
	}
	return e, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src, owner string) Expr {
	e, err := Compile(src, owner)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) errorf(pos int, format string, args ...any) *SyntaxError {
	line, col := 1, 1
	for i := 0; i < pos && i < len(p.src); i++ {
		if p.src[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return &SyntaxError{Source: p.src, Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.consume("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.consume("&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.consume("!") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{expr: e}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, p.errorf(p.pos, "unexpected end of expression")
	}
	if p.consume("(") {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consume(")") {
			return nil, p.errorf(p.pos, "missing )")
		}
		return e, nil
	}
	start := p.pos
	word := p.readWord()
	if word == "" {
		return nil, p.errorf(start, "unexpected %q", p.src[p.pos:p.pos+1])
	}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		argPos := p.pos + 1
		arg, err := p.readArgument()
		if err != nil {
			return nil, err
		}
		return p.designator(word, arg, start, argPos)
	}
	if p.consume("->") {
		p.skipSpace()
		namePos := p.pos
		name := p.readWord()
		if !isIdentifier(name) {
			return nil, p.errorf(namePos, "expected pointcut name after ->")
		}
		return &refExpr{class: word, name: name}, nil
	}
	if !isIdentifier(word) {
		return nil, p.errorf(start, "expected designator or pointcut reference, got %q", word)
	}
	if p.owner == "" {
		return nil, p.errorf(start, "reference %q needs a class", word)
	}
	return &refExpr{class: p.owner, name: word}, nil
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '/' || c == '-' ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || i > 0 && '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

func (p *parser) readWord() string {
	start := p.pos
	for p.pos < len(p.src) && isWordByte(p.src[p.pos]) {
		if strings.HasPrefix(p.src[p.pos:], "->") {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

// readArgument consumes a balanced parenthesised argument, honouring quotes,
// and returns its inner text.
func (p *parser) readArgument() (string, error) {
	open := p.pos
	depth := 0
	var quote byte
	for ; p.pos < len(p.src); p.pos++ {
		c := p.src[p.pos]
		switch {
		case quote != 0:
			if c == '\\' {
				p.pos++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				p.pos++
				return p.src[open+1 : p.pos-1], nil
			}
		}
	}
	return "", p.errorf(open, "unbalanced parentheses")
}

func (p *parser) designator(name, arg string, at, argPos int) (Expr, error) {
	switch name {
	case designatorMethod:
		return p.methodDesignator(arg, argPos)
	case designatorClass:
		re, err := anchored(arg)
		if err != nil {
			return nil, p.errorf(argPos, "bad class pattern: %v", err)
		}
		return &classExpr{class: re, src: strings.TrimSpace(arg)}, nil
	case designatorWithin:
		t := strings.TrimSpace(arg)
		if t == "" {
			return nil, p.errorf(argPos, "within needs a type name")
		}
		return &withinExpr{typeName: t}, nil
	case designatorClassAnnotatedWith, designatorMethodAnnotatedWith:
		return p.annotatedDesignator(name == designatorMethodAnnotatedWith, arg, argPos)
	case designatorFilter:
		f := strings.TrimSpace(arg)
		if f == "" {
			return nil, p.errorf(argPos, "filter needs a name")
		}
		return &filterExpr{name: f}, nil
	case designatorSetting:
		return p.settingDesignator(arg, argPos)
	}
	return nil, p.errorf(at, "unknown designator %q", name)
}

func (p *parser) methodDesignator(arg string, argPos int) (Expr, error) {
	s := strings.TrimSpace(arg)
	e := &methodExpr{src: s}
	for _, v := range []reflection.Visibility{reflection.Exported, reflection.Unexported} {
		if rest, ok := strings.CutPrefix(s, v.String()+" "); ok {
			v := v
			e.visibility = &v
			s = strings.TrimSpace(rest)
			break
		}
	}
	i := strings.Index(s, "->")
	if i < 0 {
		return nil, p.errorf(argPos, "expected ClassPattern->methodPattern()")
	}
	classPattern, methodPart := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+2:])
	if !strings.HasSuffix(methodPart, ")") {
		return nil, p.errorf(argPos, "method pattern %q must end with ()", methodPart)
	}
	open := matchingOpen(methodPart)
	if open < 0 {
		return nil, p.errorf(argPos, "unbalanced method pattern %q", methodPart)
	}
	if args := strings.TrimSpace(methodPart[open+1 : len(methodPart)-1]); args != "" {
		return nil, p.errorf(argPos, "argument constraints are not supported: %q", args)
	}
	var err error
	if e.class, err = anchored(classPattern); err != nil {
		return nil, p.errorf(argPos, "bad class pattern: %v", err)
	}
	if e.method, err = anchored(methodPart[:open]); err != nil {
		return nil, p.errorf(argPos, "bad method pattern: %v", err)
	}
	return e, nil
}

// matchingOpen returns the index of the '(' matching the final ')' of s.
func matchingOpen(s string) int {
	depth := 0
	for i := len(s) - 2; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func (p *parser) annotatedDesignator(onMethod bool, arg string, argPos int) (Expr, error) {
	parts := splitArgs(arg)
	pattern := strings.TrimSpace(parts[0])
	if pattern == "" {
		return nil, p.errorf(argPos, "annotation pattern is empty")
	}
	re, err := anchored(pattern)
	if err != nil {
		return nil, p.errorf(argPos, "bad annotation pattern: %v", err)
	}
	e := &annotatedExpr{onMethod: onMethod, name: re, src: strings.TrimSpace(arg)}
	for _, part := range parts[1:] {
		key, value, negate, ok := parseComparison(part)
		if !ok {
			return nil, p.errorf(argPos, "bad annotation constraint %q", strings.TrimSpace(part))
		}
		if key == "value" {
			key = ""
		}
		e.constraints = append(e.constraints, constraint{key: key, value: value, negate: negate})
	}
	return e, nil
}

func (p *parser) settingDesignator(arg string, argPos int) (Expr, error) {
	s := strings.TrimSpace(arg)
	if s == "" {
		return nil, p.errorf(argPos, "setting needs a path")
	}
	if !strings.Contains(s, "==") {
		return &settingExpr{path: s}, nil
	}
	key, value, negate, ok := parseComparison(s)
	if !ok || negate {
		return nil, p.errorf(argPos, "bad setting comparison %q", s)
	}
	return &settingExpr{path: key, value: &value}, nil
}

// parseComparison splits `key == "value"` or `key != value`.
func parseComparison(s string) (key, value string, negate, ok bool) {
	op := "=="
	i := strings.Index(s, op)
	if j := strings.Index(s, "!="); j >= 0 && (i < 0 || j < i) {
		op, i, negate = "!=", j, true
	}
	if i < 0 {
		return "", "", false, false
	}
	key = strings.TrimSpace(s[:i])
	value = strings.TrimSpace(s[i+len(op):])
	if key == "" || value == "" {
		return "", "", false, false
	}
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	return key, value, negate, true
}

// splitArgs splits on commas outside quotes and parentheses.
func splitArgs(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
