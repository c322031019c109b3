package compiler

import (
	"fmt"
	"strings"

	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/expr"
	"github.com/artpar/eventdsl/core/schema"
	"github.com/artpar/eventdsl/core/validation"
)

// check validates the declaration-level invariants of d.
func check(d schema.TypeDeclaration) error {
	fail := func(field, format string, args ...any) error {
		return &CompileError{ID: d.ID, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(d.ID) == "" {
		return fail("", "type id is required")
	}

	fields := make(map[string]schema.FieldDeclaration, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			return fail(fmt.Sprintf("fields[%d]", i), "field name is required")
		}
		if _, dup := fields[f.Name]; dup {
			return fail(f.Name, "duplicate field")
		}
		if event.IsFixedField(f.Name) {
			return fail(f.Name, "%q is a fixed event field", f.Name)
		}
		if !f.Type.Valid() {
			return fail(f.Name, "unknown field type %q", f.Type)
		}
		for _, v := range f.Enum {
			if err := validation.CheckValue(f.Type.Elem(), v); err != nil {
				return fail(f.Name, "enum value %s: %v", expr.FormatLiteral(v), err)
			}
		}
		if f.Default != nil {
			if err := validation.CheckValue(f.Type, f.Default); err != nil {
				return fail(f.Name, "default %s: %v", expr.FormatLiteral(f.Default), err)
			}
			if len(f.Enum) > 0 && !f.Type.IsList() && !inEnum(f.Enum, f.Default) {
				return fail(f.Name, "default %s is not one of the enum values", expr.FormatLiteral(f.Default))
			}
		}
		fields[f.Name] = f
	}

	for i, r := range d.Rules {
		name := fmt.Sprintf("validate[%d]", i)
		if r.Expr == nil {
			return fail(name, "rule has no expression")
		}
		if err := checkExpr(r.Expr, fields); err != nil {
			return fail(name, "%s: %v", r.Expr.String(), err)
		}
		if err := checkCondition(r.Expr, fields); err != nil {
			return fail(name, "%v", err)
		}
	}

	keys := make(map[string]bool, len(d.Display))
	for i, b := range d.Display {
		if b.Key == "" {
			return fail(fmt.Sprintf("display[%d]", i), "display key is required")
		}
		if keys[b.Key] {
			return fail("display."+b.Key, "duplicate display key")
		}
		keys[b.Key] = true
		if b.IsComputed() {
			if err := checkExpr(b.Expr, fields); err != nil {
				return fail("display."+b.Key, "%v", err)
			}
		}
	}

	flags := make(map[string]bool, len(d.Behavior))
	for i, b := range d.Behavior {
		if b.Key == "" {
			return fail(fmt.Sprintf("behavior[%d]", i), "behavior key is required")
		}
		if flags[b.Key] {
			return fail("behavior."+b.Key, "duplicate behavior key")
		}
		flags[b.Key] = true
	}

	return nil
}

func inEnum(values []any, v any) bool {
	n := expr.Normalize(v)
	for _, e := range values {
		if expr.Normalize(e) == n {
			return true
		}
	}
	return false
}

// checkExpr verifies operators and paths of e without evaluating it.
func checkExpr(e expr.Expr, fields map[string]schema.FieldDeclaration) error {
	var err error
	expr.Walk(e, func(n expr.Expr) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case expr.Comparison:
			if !n.Op.Valid() {
				err = fmt.Errorf("unknown operator %q", n.Op)
			} else if n.Left == nil || n.Right == nil {
				err = fmt.Errorf("comparison is missing an operand")
			}
		case expr.Between:
			if n.Field == nil || n.Min == nil || n.Max == nil {
				err = fmt.Errorf("between is missing an operand")
			}
		case expr.And:
			err = checkTerms("and", n.Terms)
		case expr.Or:
			err = checkTerms("or", n.Terms)
		case expr.Not:
			if n.Term == nil {
				err = fmt.Errorf("not is missing its operand")
			}
		case expr.FieldAccess:
			err = checkPath(n, fields)
		}
		return err == nil
	})
	return err
}

// checkCondition reports rule terms that cannot yield a boolean: anything
// other than a comparison, between, boolean literal, declared boolean field,
// or and/or/not of those.
func checkCondition(e expr.Expr, fields map[string]schema.FieldDeclaration) error {
	switch n := e.(type) {
	case expr.Comparison, expr.Between:
		return nil
	case expr.And:
		return checkConditions(n.Terms, fields)
	case expr.Or:
		return checkConditions(n.Terms, fields)
	case expr.Not:
		return checkCondition(n.Term, fields)
	case expr.Literal:
		if _, ok := n.Value.(bool); ok {
			return nil
		}
	case expr.FieldAccess:
		if len(n.Path) == 1 {
			if f, ok := fields[n.Path[0]]; ok && f.Type == schema.TypeBoolean {
				return nil
			}
		}
	}
	return fmt.Errorf("%s is not a condition", e.String())
}

func checkConditions(terms []expr.Expr, fields map[string]schema.FieldDeclaration) error {
	for _, t := range terms {
		if err := checkCondition(t, fields); err != nil {
			return err
		}
	}
	return nil
}

func checkTerms(op string, terms []expr.Expr) error {
	if len(terms) == 0 {
		return fmt.Errorf("%s has no terms", op)
	}
	for _, t := range terms {
		if t == nil {
			return fmt.Errorf("%s has an empty term", op)
		}
	}
	return nil
}

// checkPath reports paths that can never resolve: an unknown context root,
// a segment after a synthetic accessor, or a name that is neither a payload
// key nor an accessor on a value without keys. A known accessor on a value
// of the wrong kind is left to evaluation.
func checkPath(fa expr.FieldAccess, fields map[string]schema.FieldDeclaration) error {
	if len(fa.Path) == 0 {
		return fmt.Errorf("empty field path")
	}
	for _, seg := range fa.Path {
		if seg == "" {
			return fmt.Errorf("path %q has an empty segment", fa.String())
		}
	}

	root := fa.Path[0]
	if strings.HasPrefix(root, "$") && !expr.IsContextRoot(root) {
		return fmt.Errorf("unknown context root %q", root)
	}

	for i := 1; i < len(fa.Path)-1; i++ {
		if expr.IsAccessor(fa.Path[i]) {
			return fmt.Errorf("path %q: nothing can follow %q", fa.String(), fa.Path[i])
		}
	}
	if len(fa.Path) < 2 {
		return nil
	}

	next := fa.Path[1]
	if !expr.IsAccessor(next) && !hasKeys(root, fields) {
		return fmt.Errorf("path %q: unknown accessor %q", fa.String(), next)
	}
	return nil
}

// hasKeys reports whether root may hold a map. Fixed fields, $now, $events
// and declared fields never do; undeclared payload keys, $user and $hints
// may.
func hasKeys(root string, fields map[string]schema.FieldDeclaration) bool {
	switch root {
	case expr.RootNow, expr.RootEvents, event.FieldID, event.FieldType,
		event.FieldTitle, event.FieldStartTime, event.FieldEndTime:
		return false
	}
	_, declared := fields[root]
	return !declared
}
