// Package validation checks an event payload against the structural schema
// generated for its type. It runs before the type's rules.
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/expr"
	"github.com/artpar/eventdsl/core/schema"
)

// FieldError represents a payload shape failure.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator validates payloads against one schema.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema *schema.Schema
}

// New creates a validator for s.
func New(s *schema.Schema) *Validator {
	return &Validator{schema: s}
}

// Validate checks data and returns every failure, in schema property order.
// Keys not declared in the schema are accepted: the payload is free-form.
func (v *Validator) Validate(data map[string]any) []FieldError {
	var errs []FieldError

	for _, name := range v.schema.Order {
		prop := v.schema.Properties[name]
		value, hasValue := data[name]

		if !hasValue || value == nil {
			if v.schema.IsRequired(name) && prop.Default == nil {
				errs = append(errs, FieldError{Field: name, Constraint: "required", Message: "field is required"})
			}
			continue
		}

		errs = append(errs, checkProperty(name, prop, value)...)
	}

	return errs
}

func checkProperty(name string, prop *schema.Schema, value any) []FieldError {
	if prop.FieldType.IsList() {
		items := expr.Normalize(value)
		list, ok := items.([]any)
		if !ok {
			return []FieldError{{Field: name, Constraint: "type", Value: value, Message: "must be a list"}}
		}
		var errs []FieldError
		for i, item := range list {
			itemName := fmt.Sprintf("%s[%d]", name, i)
			errs = append(errs, checkProperty(itemName, prop.Items, item)...)
		}
		return errs
	}

	if err := CheckValue(prop.FieldType, value); err != nil {
		return []FieldError{{Field: name, Constraint: "type", Value: value, Message: err.Error()}}
	}
	if len(prop.Enum) > 0 && !containsValue(prop.Enum, value) {
		return []FieldError{{Field: name, Constraint: "enum", Value: value,
			Message: fmt.Sprintf("must be one of: %s", joinValues(prop.Enum))}}
	}
	return nil
}

// CheckValue reports whether value is acceptable for the scalar or list
// type t. The returned error text is suitable as a user-facing message.
func CheckValue(t schema.FieldType, value any) error {
	if t.IsList() {
		list, ok := expr.Normalize(value).([]any)
		if !ok {
			return fmt.Errorf("must be a list")
		}
		for i, item := range list {
			if err := CheckValue(t.Elem(), item); err != nil {
				return fmt.Errorf("item %d %s", i, err.Error())
			}
		}
		return nil
	}

	v := expr.Normalize(value)
	switch t {
	case schema.TypeNumber:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("must be a number")
		}
	case schema.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	case schema.TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("must be a string")
		}
	case schema.TypeEmail:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		if _, err := mail.ParseAddress(str); err != nil {
			return fmt.Errorf("invalid email address")
		}
	case schema.TypeURL:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		if _, err := url.ParseRequestURI(str); err != nil {
			return fmt.Errorf("invalid URL")
		}
	case schema.TypeDate, schema.TypeTime, schema.TypeDatetime:
		return checkTemporal(t, v)
	default:
		return fmt.Errorf("unknown field type %q", t)
	}
	return nil
}

var temporalLayouts = map[schema.FieldType][]string{
	schema.TypeDate:     event.DateLayouts,
	schema.TypeTime:     event.TimeLayouts,
	schema.TypeDatetime: event.DatetimeLayouts,
}

func checkTemporal(t schema.FieldType, v any) error {
	if _, ok := v.(time.Time); ok {
		return nil
	}
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("must be a %s string", t)
	}
	for _, layout := range temporalLayouts[t] {
		if _, err := time.Parse(layout, str); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q", t, str)
}

// containsValue checks if value equals one of the allowed values.
func containsValue(allowed []any, value any) bool {
	v := expr.Normalize(value)
	for _, a := range allowed {
		if expr.Normalize(a) == v {
			return true
		}
	}
	return false
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = expr.FormatValue(v)
	}
	return strings.Join(parts, ", ")
}
