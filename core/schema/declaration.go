package schema

import (
	"encoding/json"
	"fmt"

	"github.com/artpar/eventdsl/core/expr"
)

// TypeDeclaration is the root definition of one event type.
type TypeDeclaration struct {
	// ID is the unique key of the type (e.g., "meeting").
	ID string `json:"id" yaml:"id"`

	// Name is the human readable name.
	Name string `json:"name" yaml:"name"`

	// Description for documentation.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Fields are the payload fields, in declaration order.
	Fields []FieldDeclaration `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Rules are evaluated in order by the compiled validator.
	Rules []ValidationRule `json:"validate,omitempty" yaml:"-"`

	// Display binds presentation keys to literals, templates or expressions.
	Display []DisplayBinding `json:"display,omitempty" yaml:"-"`

	// Behavior holds static flags, stored verbatim.
	Behavior []BehaviorBinding `json:"behavior,omitempty" yaml:"behavior,omitempty"`
}

// Field returns the field declaration with the given name.
func (d TypeDeclaration) Field(name string) (FieldDeclaration, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDeclaration{}, false
}

// ValidationRule is one boolean expression an event must satisfy.
type ValidationRule struct {
	Expr expr.Expr

	// Message replaces the generated failure message when set.
	Message string

	// Line is the source line of the rule, 0 for hand-built trees.
	Line int
}

// Rule returns a ValidationRule without a custom message.
func Rule(e expr.Expr) ValidationRule {
	return ValidationRule{Expr: e}
}

type ruleJSON struct {
	Expr    json.RawMessage `json:"expr"`
	Message string          `json:"message,omitempty"`
	Line    int             `json:"line,omitempty"`
}

func (r ValidationRule) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(r.Expr)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleJSON{Expr: raw, Message: r.Message, Line: r.Line})
}

func (r *ValidationRule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}
	e, err := expr.Unmarshal(raw.Expr)
	if err != nil {
		return err
	}
	*r = ValidationRule{Expr: e, Message: raw.Message, Line: raw.Line}
	return nil
}

// DisplayBinding binds a presentation key (title, color, icon, description
// or any other) to a value.
//
// When Expr is nil, Value is a literal, or a template if it contains ${...}
// substitutions. When Expr is set the binding is computed by evaluating it.
type DisplayBinding struct {
	Key   string
	Value string
	Expr  expr.Expr
}

// IsComputed reports whether the binding is an expression.
func (b DisplayBinding) IsComputed() bool {
	return b.Expr != nil
}

type displayJSON struct {
	Key   string          `json:"key"`
	Value string          `json:"value,omitempty"`
	Expr  json.RawMessage `json:"expr,omitempty"`
}

func (b DisplayBinding) MarshalJSON() ([]byte, error) {
	out := displayJSON{Key: b.Key, Value: b.Value}
	if b.Expr != nil {
		raw, err := json.Marshal(b.Expr)
		if err != nil {
			return nil, err
		}
		out.Expr = raw
	}
	return json.Marshal(out)
}

func (b *DisplayBinding) UnmarshalJSON(data []byte) error {
	var raw displayJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode display binding: %w", err)
	}
	e, err := expr.Unmarshal(raw.Expr)
	if err != nil {
		return err
	}
	*b = DisplayBinding{Key: raw.Key, Value: raw.Value, Expr: e}
	return nil
}

// BehaviorBinding is a static key/value flag.
type BehaviorBinding struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}
