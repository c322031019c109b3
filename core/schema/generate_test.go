package schema

import (
	"encoding/json"
	"testing"

	"github.com/artpar/eventdsl/core/expr"
)

func TestParseFieldType(t *testing.T) {
	tests := []struct {
		in      string
		want    FieldType
		wantErr bool
	}{
		{"string", TypeString, false},
		{"datetime", TypeDatetime, false},
		{"list of email", ListOf(TypeEmail), false},
		{"list   of  number", ListOf(TypeNumber), false},
		{"integer", "", true},
		{"list of list of string", "", true},
		{"list of", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFieldType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFieldType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFieldType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldTypeMethods(t *testing.T) {
	list := ListOf(TypeDate)
	if !list.IsList() {
		t.Error("list of date should be a list")
	}
	if list.Elem() != TypeDate {
		t.Errorf("Elem() = %q, want date", list.Elem())
	}
	if list.Primitive() != "array" {
		t.Errorf("Primitive() = %q, want array", list.Primitive())
	}
	if TypeEmail.Elem() != TypeEmail {
		t.Error("Elem() of a scalar should be the scalar")
	}
	if !TypeTime.IsTemporal() || TypeString.IsTemporal() {
		t.Error("IsTemporal mismatch")
	}
}

func TestGenerateSchema(t *testing.T) {
	fields := []FieldDeclaration{
		{Name: "attendees", Type: ListOf(TypeEmail), Required: true},
		{Name: "room", Type: TypeString},
		{Name: "priority", Type: TypeNumber, Default: 1},
		{Name: "private", Type: TypeBoolean},
		{Name: "link", Type: TypeURL},
		{Name: "day", Type: TypeDate},
		{Name: "at", Type: TypeTime},
		{Name: "deadline", Type: TypeDatetime, Required: true},
		{Name: "status", Type: TypeString, Enum: []any{"open", "closed"}},
	}

	s := GenerateSchema(fields)

	if s.Type != "object" {
		t.Errorf("Type = %q, want object", s.Type)
	}
	if len(s.Properties) != len(fields) {
		t.Fatalf("Properties has %d entries, want %d", len(s.Properties), len(fields))
	}

	tests := []struct {
		name       string
		wantType   string
		wantFormat string
	}{
		{"room", "string", ""},
		{"priority", "number", ""},
		{"private", "boolean", ""},
		{"link", "string", "uri"},
		{"day", "string", "date"},
		{"at", "string", "time"},
		{"deadline", "string", "date-time"},
	}
	for _, tt := range tests {
		p := s.Properties[tt.name]
		if p.Type != tt.wantType || p.Format != tt.wantFormat {
			t.Errorf("%s = {%s, %q}, want {%s, %q}", tt.name, p.Type, p.Format, tt.wantType, tt.wantFormat)
		}
	}

	att := s.Properties["attendees"]
	if att.Type != "array" || att.Items == nil {
		t.Fatalf("attendees = %+v, want array with items", att)
	}
	if att.Items.Type != "string" || att.Items.Format != "email" {
		t.Errorf("attendees.items = {%s, %q}, want {string, email}", att.Items.Type, att.Items.Format)
	}

	if len(s.Required) != 2 || s.Required[0] != "attendees" || s.Required[1] != "deadline" {
		t.Errorf("Required = %v, want [attendees deadline]", s.Required)
	}
	if !s.IsRequired("deadline") || s.IsRequired("room") {
		t.Error("IsRequired mismatch")
	}
	if s.Properties["priority"].Default != 1 {
		t.Errorf("priority default = %v, want 1", s.Properties["priority"].Default)
	}
	if len(s.Properties["status"].Enum) != 2 {
		t.Errorf("status enum = %v, want 2 values", s.Properties["status"].Enum)
	}
	if s.Order[0] != "attendees" || s.Order[len(s.Order)-1] != "status" {
		t.Errorf("Order = %v, want declaration order", s.Order)
	}
}

func TestGenerateSchema_Empty(t *testing.T) {
	s := GenerateSchema(nil)
	if s.Type != "object" || len(s.Properties) != 0 || len(s.Required) != 0 {
		t.Errorf("GenerateSchema(nil) = %+v, want empty object schema", s)
	}
}

func TestDeclarationJSON_AnyKeyOrder(t *testing.T) {
	data := `{
  "validate": [
    {"message": "too many", "expr": {"max": {"value": 50, "kind": "literal"}, "kind": "between",
      "field": {"path": "attendees.count", "kind": "field"}, "min": {"kind": "literal", "value": 1}}}
  ],
  "display": [{"value": "#4285f4", "key": "color"},
              {"expr": {"kind": "field", "path": ["room"]}, "key": "description"}],
  "fields": [{"type": "list of email", "required": true, "name": "attendees"}],
  "behavior": [{"value": true, "key": "draggable"}],
  "name": "Meeting",
  "id": "meeting"
}`

	var d TypeDeclaration
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if d.ID != "meeting" || d.Name != "Meeting" {
		t.Errorf("ID/Name = %q/%q", d.ID, d.Name)
	}
	if len(d.Fields) != 1 || d.Fields[0].Type != ListOf(TypeEmail) || !d.Fields[0].Required {
		t.Errorf("Fields = %+v", d.Fields)
	}
	if len(d.Rules) != 1 {
		t.Fatalf("Rules has %d entries, want 1", len(d.Rules))
	}
	if _, ok := d.Rules[0].Expr.(expr.Between); !ok {
		t.Errorf("rule expr = %T, want expr.Between", d.Rules[0].Expr)
	}
	if got := d.Rules[0].Expr.String(); got != "attendees.count between 1 and 50" {
		t.Errorf("rule = %q", got)
	}
	if d.Rules[0].Message != "too many" {
		t.Errorf("rule message = %q", d.Rules[0].Message)
	}
	if len(d.Display) != 2 || d.Display[0].IsComputed() || !d.Display[1].IsComputed() {
		t.Errorf("Display = %+v", d.Display)
	}
	if len(d.Behavior) != 1 || d.Behavior[0].Value != true {
		t.Errorf("Behavior = %+v", d.Behavior)
	}

	// Encoding and decoding again keeps the rule text.
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var again TypeDeclaration
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("second Unmarshal failed: %v", err)
	}
	if again.Rules[0].Expr.String() != d.Rules[0].Expr.String() {
		t.Errorf("rule after re-encoding = %q, want %q", again.Rules[0].Expr.String(), d.Rules[0].Expr.String())
	}
}

func TestDescribe(t *testing.T) {
	d := TypeDeclaration{
		ID:   "holiday",
		Name: "Holiday",
		Fields: []FieldDeclaration{
			{Name: "country", Type: TypeString, Required: true},
		},
		Rules:    []ValidationRule{Rule(expr.Compare(expr.OpEQ, expr.Field("country"), expr.Lit("DE")))},
		Display:  []DisplayBinding{{Key: "color", Value: "#ff0000"}},
		Behavior: []BehaviorBinding{{Key: "allDay", Value: true}},
	}

	resp := Describe(d)
	if resp.ID != "holiday" || len(resp.Fields) != 1 || len(resp.Rules) != 1 {
		t.Fatalf("Describe = %+v", resp)
	}
	if resp.Rules[0].Rule != `country == "DE"` {
		t.Errorf("rule = %q", resp.Rules[0].Rule)
	}
	if resp.Display[0] != "color" {
		t.Errorf("display = %v", resp.Display)
	}
	if resp.Behavior["allDay"] != true {
		t.Errorf("behavior = %v", resp.Behavior)
	}
}
