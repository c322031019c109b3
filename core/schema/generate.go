package schema

// Schema is a JSON-Schema shaped description of an event payload.
type Schema struct {
	Type       string             `json:"type" yaml:"type"`
	Format     string             `json:"format,omitempty" yaml:"format,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum       []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default    any                `json:"default,omitempty" yaml:"default,omitempty"`

	// Order lists property names in declaration order.
	Order []string `json:"-" yaml:"-"`

	// FieldType is the declared type the entry was generated from.
	FieldType FieldType `json:"-" yaml:"-"`
}

// GenerateSchema maps field declarations to an object schema. It performs
// no validation; unknown types produce a string entry without a format.
func GenerateSchema(fields []FieldDeclaration) *Schema {
	s := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema, len(fields)),
	}

	for _, f := range fields {
		prop := entryFor(f.Type)
		if len(f.Enum) > 0 {
			enum := make([]any, len(f.Enum))
			copy(enum, f.Enum)
			if prop.Items != nil {
				prop.Items.Enum = enum
			} else {
				prop.Enum = enum
			}
		}
		prop.Default = f.Default

		if _, seen := s.Properties[f.Name]; !seen {
			s.Order = append(s.Order, f.Name)
		}
		s.Properties[f.Name] = prop

		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}

	return s
}

func entryFor(t FieldType) *Schema {
	if t.IsList() {
		return &Schema{
			Type:      "array",
			Items:     entryFor(t.Elem()),
			FieldType: t,
		}
	}
	return &Schema{
		Type:      t.Primitive(),
		Format:    t.Format(),
		FieldType: t,
	}
}

// IsRequired reports whether name is in the required set.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}
