package compiler

import (
	"errors"
	"fmt"
	"maps"

	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/expr"
	"github.com/artpar/eventdsl/core/parser"
	"github.com/artpar/eventdsl/core/schema"
	"github.com/artpar/eventdsl/core/template"
	"github.com/artpar/eventdsl/core/validation"
)

// DefaultColor is the rendered color of types without a color binding.
const DefaultColor = "#3788d8"

// Display keys with a dedicated RenderedEvent field.
const (
	DisplayTitle       = "title"
	DisplayColor       = "color"
	DisplayIcon        = "icon"
	DisplayDescription = "description"
)

// CompiledType is the executable form of one declaration.
type CompiledType struct {
	ID          string
	Name        string
	Description string
	Schema      *schema.Schema

	decl      schema.TypeDeclaration
	evaluator expr.Evaluator
	shape     *validation.Validator
	rules     []compiledRule
	display   []compiledBinding
	behavior  map[string]any
}

type compiledRule struct {
	expr  expr.Expr
	label string // custom message, or the rule text
	fail  string
}

type compiledBinding struct {
	key      string
	literal  string
	tmpl     *template.Template
	computed expr.Expr
}

// Declaration returns the declaration the type was compiled from.
func (c *CompiledType) Declaration() schema.TypeDeclaration {
	return c.decl
}

// Behavior returns a copy of the static behavior flags.
func (c *CompiledType) Behavior() map[string]any {
	return maps.Clone(c.behavior)
}

// Validate checks ev against the payload schema and then every rule, in
// declaration order. All failures are collected.
func (c *CompiledType) Validate(ev event.Event, ctx event.Context) event.ValidationResult {
	result := event.NewValidationResult()

	for _, fe := range c.shape.Validate(ev.Data) {
		result.AddError(fe.Error())
	}

	for _, r := range c.rules {
		ok, err := c.evaluator.EvalBool(r.expr, ev, ctx)
		if err != nil {
			result.AddError(ruleErrorMessage(r.label, err))
			continue
		}
		if !ok {
			result.AddError(r.fail)
		}
	}
	return result
}

func ruleErrorMessage(label string, err error) string {
	var ee *expr.EvaluationError
	if errors.As(err, &ee) {
		return fmt.Sprintf("%s: %s: %s", label, ee.Path, ee.Reason)
	}
	return fmt.Sprintf("%s: %v", label, err)
}

// Render produces the presentation of ev. Templates never fail; a computed
// binding that cannot be evaluated returns an *expr.EvaluationError.
func (c *CompiledType) Render(ev event.Event, ctx event.Context) (event.RenderedEvent, error) {
	out := event.RenderedEvent{Title: ev.Title, Color: DefaultColor}

	for _, b := range c.display {
		val, err := c.renderBinding(b, ev, ctx)
		if err != nil {
			return event.RenderedEvent{}, fmt.Errorf("display %s: %w", b.key, err)
		}

		switch b.key {
		case DisplayTitle:
			out.Title = val
		case DisplayColor:
			out.Color = val
		case DisplayIcon:
			out.Icon = val
		case DisplayDescription:
			out.Description = val
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]string)
			}
			out.Extra[b.key] = val
		}
	}
	return out, nil
}

func (c *CompiledType) renderBinding(b compiledBinding, ev event.Event, ctx event.Context) (string, error) {
	switch {
	case b.computed != nil:
		v, err := c.evaluator.Eval(b.computed, ev, ctx)
		if err != nil {
			return "", err
		}
		return expr.FormatValueIn(v, ctx.Location), nil
	case b.tmpl != nil:
		return b.tmpl.Execute(c.evaluator.Resolver, ev, ctx), nil
	default:
		return b.literal, nil
	}
}

func newEvaluator(fields []schema.FieldDeclaration) expr.Evaluator {
	defaults := make(map[string]any)
	for _, f := range fields {
		if f.Default != nil {
			defaults[f.Name] = f.Default
		}
	}
	return expr.Evaluator{Resolver: expr.Resolver{Defaults: defaults}}
}

func compileRules(rules []schema.ValidationRule) []compiledRule {
	out := make([]compiledRule, len(rules))
	for i, r := range rules {
		text := r.Expr.String()
		cr := compiledRule{expr: r.Expr, label: text, fail: text + " failed"}
		if r.Message != "" {
			cr.label = r.Message
			cr.fail = r.Message
		}
		out[i] = cr
	}
	return out
}

func compileDisplay(d schema.TypeDeclaration) ([]compiledBinding, error) {
	fields := make(map[string]schema.FieldDeclaration, len(d.Fields))
	for _, f := range d.Fields {
		fields[f.Name] = f
	}

	out := make([]compiledBinding, 0, len(d.Display))
	for _, b := range d.Display {
		cb := compiledBinding{key: b.Key, literal: b.Value}
		switch {
		case b.IsComputed():
			cb.computed = b.Expr
		case template.IsTemplate(b.Value):
			tmpl, err := template.Compile(b.Value, parser.ParsePath)
			if err != nil {
				return nil, &CompileError{ID: d.ID, Field: "display." + b.Key, Reason: err.Error()}
			}
			for _, fa := range tmpl.Paths() {
				if err := checkPath(fa, fields); err != nil {
					return nil, &CompileError{ID: d.ID, Field: "display." + b.Key, Reason: err.Error()}
				}
			}
			cb.tmpl = tmpl
		}
		out = append(out, cb)
	}
	return out, nil
}
