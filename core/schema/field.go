package schema

import (
	"fmt"
	"strings"
)

// FieldDeclaration defines one payload field of an event type.
type FieldDeclaration struct {
	// Name is the payload key.
	Name string `json:"name" yaml:"name"`

	// Type is the field type. See FieldType constants and ListOf.
	Type FieldType `json:"type" yaml:"type"`

	// Required indicates the payload must carry this field.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Default is used when the payload does not carry the field.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// Enum restricts the field to a set of literal values.
	Enum []any `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// FieldType represents the type of a payload field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeEmail    FieldType = "email"
	TypeURL      FieldType = "url"
	TypeDate     FieldType = "date"
	TypeTime     FieldType = "time"
	TypeDatetime FieldType = "datetime"
)

const listPrefix = "list of "

// ScalarTypes lists the scalar field types in declaration order.
var ScalarTypes = []FieldType{
	TypeString, TypeNumber, TypeBoolean, TypeEmail,
	TypeURL, TypeDate, TypeTime, TypeDatetime,
}

// ListOf returns the list type whose items are elem.
func ListOf(elem FieldType) FieldType {
	return FieldType(listPrefix + string(elem))
}

// ParseFieldType parses a type expression such as "email" or
// "list of email". Repeated whitespace is tolerated.
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(strings.Join(strings.Fields(s), " "))
	if !t.Valid() {
		return "", fmt.Errorf("unknown field type %q", s)
	}
	return t, nil
}

// IsList reports whether t is a list type.
func (t FieldType) IsList() bool {
	return strings.HasPrefix(string(t), listPrefix)
}

// Elem returns the item type of a list, or t itself for scalars.
func (t FieldType) Elem() FieldType {
	if t.IsList() {
		return FieldType(strings.TrimPrefix(string(t), listPrefix))
	}
	return t
}

// IsScalar reports whether t is one of the scalar types.
func (t FieldType) IsScalar() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeEmail,
		TypeURL, TypeDate, TypeTime, TypeDatetime:
		return true
	}
	return false
}

// Valid reports whether t is a scalar type or a list of a scalar type.
func (t FieldType) Valid() bool {
	if t.IsList() {
		return t.Elem().IsScalar()
	}
	return t.IsScalar()
}

// IsTemporal reports whether t is a date, time or datetime.
func (t FieldType) IsTemporal() bool {
	return t == TypeDate || t == TypeTime || t == TypeDatetime
}

// Primitive returns the structural primitive of t: string, number, boolean
// or array.
func (t FieldType) Primitive() string {
	if t.IsList() {
		return "array"
	}
	switch t {
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Format returns the format tag of a string-based scalar, or "".
func (t FieldType) Format() string {
	switch t {
	case TypeEmail:
		return "email"
	case TypeURL:
		return "uri"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeDatetime:
		return "date-time"
	}
	return ""
}
