package annotation

import (
	"fmt"
	"go/ast"
	"regexp"
	"strconv"
	"strings"
)

var regexAnnotation = regexp.MustCompile(`^@([A-Z][A-Za-z0-9_]*)\s*(\((.*)\))?\s*$`)

// ParseComment parses the annotations of a doc comment group. A nil group
// yields no annotations.
func ParseComment(c *ast.CommentGroup) (List, error) {
	if c == nil {
		return nil, nil
	}
	return Parse(c.Text())
}

// Parse scans text line by line and returns every annotation found. Lines
// that do not start with '@' are ignored.
func Parse(text string) (List, error) {
	var result List
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "@") {
			continue
		}
		ss := regexAnnotation.FindStringSubmatch(line)
		if ss == nil {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformed, i+1, line)
		}
		anno := Annotation{Name: ss[1]}
		if ss[2] != "" {
			args, err := parseArgs(ss[3])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, i+1, err)
			}
			anno.Args = args
		}
		result = append(result, anno)
	}
	return result, nil
}

func parseArgs(s string) (map[string]string, error) {
	args := map[string]string{}
	parts, err := splitTopLevel(s)
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := DefaultKey
		if i := assignIndex(part); i > 0 {
			key = strings.TrimSpace(part[:i])
			part = strings.TrimSpace(part[i+1:])
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("duplicate argument %q", key)
		}
		args[key] = unquote(part)
	}
	return args, nil
}

// splitTopLevel splits on commas outside quotes and brackets.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
		case r == '"' || r == '`' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q", r)
			}
		case r == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote %q", quote)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	return append(parts, s[start:]), nil
}

// assignIndex finds a key=value separator in a bare identifier prefix.
func assignIndex(part string) int {
	i := strings.IndexByte(part, '=')
	if i <= 0 || (i+1 < len(part) && part[i+1] == '=') {
		return -1
	}
	for _, r := range strings.TrimSpace(part[:i]) {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return -1
		}
	}
	return i
}

func unquote(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '"', '`':
			if v, err := strconv.Unquote(s); err == nil {
				return v
			}
		case '\'':
			if s[len(s)-1] == '\'' {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}
