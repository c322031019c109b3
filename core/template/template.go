// Package template compiles display strings containing ${path}
// substitutions. A template is parsed once; executing it never fails:
// paths that cannot be resolved substitute the empty string.
package template

import (
	"fmt"
	"strings"

	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/expr"
)

// PathParser parses the text between ${ and } into a field path.
type PathParser func(text string) (expr.FieldAccess, error)

// Template is a compiled display string.
type Template struct {
	source string
	parts  []part
}

type part struct {
	text string
	path []string // nil for literal text
}

// IsTemplate reports whether s contains a ${ substitution.
func IsTemplate(s string) bool {
	return strings.Contains(s, "${")
}

// Compile parses s. Each ${...} token is handed to parsePath.
func Compile(s string, parsePath PathParser) (*Template, error) {
	t := &Template{source: s}
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			if rest != "" {
				t.parts = append(t.parts, part{text: rest})
			}
			return t, nil
		}
		if start > 0 {
			t.parts = append(t.parts, part{text: rest[:start]})
		}

		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated ${ in %q", s)
		}
		inner := strings.TrimSpace(rest[start+2 : start+end])
		if inner == "" {
			return nil, fmt.Errorf("empty ${} in %q", s)
		}
		fa, err := parsePath(inner)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", s, err)
		}
		t.parts = append(t.parts, part{path: fa.Path})
		rest = rest[start+end+1:]
	}
}

// Source returns the original template text.
func (t *Template) Source() string {
	return t.source
}

// Paths returns the paths referenced by the template, in order.
func (t *Template) Paths() []expr.FieldAccess {
	var out []expr.FieldAccess
	for _, p := range t.parts {
		if p.path != nil {
			out = append(out, expr.FieldAccess{Path: p.path})
		}
	}
	return out
}

// Execute renders the template for ev. Unresolvable paths become "".
func (t *Template) Execute(r expr.Resolver, ev event.Event, ctx event.Context) string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.path == nil {
			b.WriteString(p.text)
			continue
		}
		v, err := r.Resolve(p.path, ev, ctx)
		if err != nil {
			continue
		}
		b.WriteString(expr.FormatValueIn(v, ctx.Location))
	}
	return b.String()
}
