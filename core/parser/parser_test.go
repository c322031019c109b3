package parser

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/eventdsl/core/expr"
	"github.com/artpar/eventdsl/core/schema"
)

const meetingSource = `# team meetings
type: meeting
name: "Team Meeting"
description: Recurring syncs
fields:
  - attendees: list of email, required
  - room: string, default="Main"
  - priority: number, default=1, enum=[1|2|3]
  - status: string, enum=[open, closed]
validate:
  - attendees.count >= 1
  - rule: startTime.hour between 8 and 18
    message: "meetings happen during office hours"
  - not (status == "closed" and priority > 1)
display:
  color: "#4285f4"
  title: "${title} (${attendees.count})"
  description:
    expr: attendees.count > 5
behavior:
  draggable: true
  maxPerDay: 3
`

func TestParse_Meeting(t *testing.T) {
	d, err := Parse(meetingSource)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if d.ID != "meeting" || d.Name != "Team Meeting" || d.Description != "Recurring syncs" {
		t.Errorf("ID/Name/Description = %q/%q/%q", d.ID, d.Name, d.Description)
	}

	if len(d.Fields) != 4 {
		t.Fatalf("Fields has %d entries, want 4", len(d.Fields))
	}
	att := d.Fields[0]
	if att.Name != "attendees" || att.Type != schema.ListOf(schema.TypeEmail) || !att.Required {
		t.Errorf("attendees = %+v", att)
	}
	if d.Fields[1].Default != "Main" {
		t.Errorf("room default = %v, want Main", d.Fields[1].Default)
	}
	prio := d.Fields[2]
	if prio.Default != 1.0 || len(prio.Enum) != 3 || prio.Enum[2] != 3.0 {
		t.Errorf("priority = %+v", prio)
	}
	if status := d.Fields[3]; len(status.Enum) != 2 || status.Enum[1] != "closed" {
		t.Errorf("status enum = %v", status.Enum)
	}

	if len(d.Rules) != 3 {
		t.Fatalf("Rules has %d entries, want 3", len(d.Rules))
	}
	wantRules := []string{
		"attendees.count >= 1",
		"startTime.hour between 8 and 18",
		`not (status == "closed" and priority > 1)`,
	}
	for i, want := range wantRules {
		if got := d.Rules[i].Expr.String(); got != want {
			t.Errorf("rule %d = %q, want %q", i, got, want)
		}
	}
	if d.Rules[0].Line != 11 || d.Rules[1].Line != 12 {
		t.Errorf("rule lines = %d, %d, want 11, 12", d.Rules[0].Line, d.Rules[1].Line)
	}
	if d.Rules[1].Message != "meetings happen during office hours" {
		t.Errorf("rule message = %q", d.Rules[1].Message)
	}

	if len(d.Display) != 3 {
		t.Fatalf("Display has %d entries, want 3", len(d.Display))
	}
	if d.Display[0].Key != "color" || d.Display[0].Value != "#4285f4" {
		t.Errorf("color binding = %+v", d.Display[0])
	}
	if d.Display[1].Value != "${title} (${attendees.count})" {
		t.Errorf("title binding = %+v", d.Display[1])
	}
	if !d.Display[2].IsComputed() {
		t.Errorf("description binding should be computed: %+v", d.Display[2])
	}

	if len(d.Behavior) != 2 || d.Behavior[0].Value != true || d.Behavior[1].Value != 3 {
		t.Errorf("Behavior = %+v", d.Behavior)
	}
}

func TestParse_AnyKeyOrder(t *testing.T) {
	d, err := Parse("behavior:\n  allDay: true\nname: Holiday\ntype: holiday\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if d.ID != "holiday" || len(d.Behavior) != 1 {
		t.Errorf("declaration = %+v", d)
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		wantLine int
		contains string
	}{
		{"missing type", "name: X\n", 1, "missing required key"},
		{"unknown key", "type: a\ncolour: red\n", 2, "unknown key"},
		{"duplicate key", "type: a\nname: A\nname: B\n", 3, "duplicate key"},
		{"not a mapping", "- a\n- b\n", 1, "mapping"},
		{"unknown field type", "type: a\nfields:\n  - n: integer\n", 3, "unknown field type"},
		{"unknown modifier", "type: a\nfields:\n  - n: number, unique\n", 3, "unknown modifier"},
		{"bad enum", "type: a\nfields:\n  - n: string, enum=a|b\n", 3, "enum"},
		{"bad field name", "type: a\nfields:\n  - 9lives: number\n", 3, "not a valid identifier"},
		{"bad type id", "type: \"my type\"\n", 1, "not a valid identifier"},
		{"arrow operator", "type: a\nvalidate:\n  - count => 1\n", 3, "unknown operator \"=>\""},
		{"single equals", "type: a\nvalidate:\n  - count = 1\n", 3, "unknown operator \"=\""},
		{"diamond operator", "type: a\nvalidate:\n  - count <> 1\n", 3, "unknown operator \"<>\""},
		{"dangling and", "type: a\nvalidate:\n  - a > 1 and\n", 3, "expected a value"},
		{"unclosed paren", "type: a\nvalidate:\n  - (a > 1\n", 3, "expected )"},
		{"between without and", "type: a\nvalidate:\n  - a between 1 or 2\n", 3, "expected and"},
		{"unknown root", "type: a\nvalidate:\n  - $calendar.count > 1\n", 3, "unknown context root"},
		{"empty rule", "type: a\nvalidate:\n  - rule: \"\"\n", 3, "no expression"},
		{"number rule", "type: a\nvalidate:\n  - 5\n", 3, "expected a condition"},
		{"string rule", "type: a\nvalidate:\n  - '\"yes\"'\n", 3, "expected a condition"},
		{"fixed field rule", "type: a\nvalidate:\n  - title\n", 3, "expected a condition"},
		{"accessor rule", "type: a\nvalidate:\n  - attendees.count\n", 3, "expected a condition"},
		{"number term", "type: a\nvalidate:\n  - a > 1 and 5\n", 3, "expected a condition"},
		{"negated null", "type: a\nvalidate:\n  - not null\n", 3, "expected a condition"},
		{"undeclared field rule", "type: a\nvalidate:\n  - online\n", 3, "not a boolean field"},
		{"string field condition", "type: a\nfields:\n  - room: string\nvalidate:\n  - not room\n", 5, "not a boolean field"},
		{"duplicate display", "type: a\ndisplay:\n  color: red\n  color: blue\n", 4, "duplicate display key"},
		{"list behavior", "type: a\nbehavior:\n  tags:\n    - x\n", 4, "behavior"},
		{"bad yaml", "type: a\n  name: b\n", 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.source)
			if err == nil {
				t.Fatal("expected error")
			}
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not a *SyntaxError: %v", err, err)
			}
			if se.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", se.Line, tt.wantLine, err)
			}
			if !strings.Contains(se.Message, tt.contains) {
				t.Errorf("Message = %q, want it to contain %q", se.Message, tt.contains)
			}
		})
	}
}

func TestParse_RuleText(t *testing.T) {
	tests := []struct {
		name string
		rule string
		want string
	}{
		{"colon in literal", `  - title == "Standup: daily"`, `title == "Standup: daily"`},
		{"hash in literal", `  - title != "x #1"`, `title != "x #1"`},
		{"trailing comment", `  - priority > 1  # high only`, `priority > 1`},
		{"single quotes", `  - room == 'x: y'`, `room == "x: y"`},
		{"quoted item", `  - "room == 'A: B'"`, `room == "A: B"`},
		{"mapping form", "  - rule: title == \"a: b\" # note\n    message: \"x: y\"", `title == "a: b"`},
		{"continuation", "  - priority > 1 and\n    room == \"c: d\"", `priority > 1 and room == "c: d"`},
		{"flush sequence", `- title == "k: v"`, `title == "k: v"`},
		{"boolean field", `  - online`, `online`},
		{"negated comparison", `  - not (title == "a")`, `not title == "a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := "type: a\nvalidate:\n" + tt.rule + "\ndisplay:\n  title: \"${title}: #1\"\nfields:\n  - online: boolean\n"
			d, err := Parse(source)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(d.Rules) != 1 {
				t.Fatalf("Rules = %+v, want one", d.Rules)
			}
			if got := d.Rules[0].Expr.String(); got != tt.want {
				t.Errorf("rule = %s, want %s", got, tt.want)
			}
			if d.Rules[0].Line != 3 {
				t.Errorf("Line = %d, want 3", d.Rules[0].Line)
			}
			if d.Display[0].Value != "${title}: #1" {
				t.Errorf("display title = %q", d.Display[0].Value)
			}
		})
	}
}

func TestParse_RuleTextLineNumbers(t *testing.T) {
	source := "type: a\nvalidate:\n  - a > 1 and\n    b < 2\n  - c == \"x: y\"\n  - d >\n"
	_, err := Parse(source)
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SyntaxError", err)
	}
	if se.Line != 6 {
		t.Errorf("Line = %d, want 6 (%v)", se.Line, err)
	}
}

func TestParseAll_MultipleDocuments(t *testing.T) {
	source := "type: a\n---\n# empty\n---\ntype: b\nname: B\n"
	decls, err := ParseAll(source)
	if err != nil {
		t.Fatalf("ParseAll failed: %v", err)
	}
	if len(decls) != 2 || decls[0].ID != "a" || decls[1].ID != "b" {
		t.Errorf("decls = %+v", decls)
	}

	if _, err := Parse(source); err == nil {
		t.Error("Parse should reject more than one declaration")
	}
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a > 1", "a > 1"},
		{"a>=1.5", "a >= 1.5"},
		{"x == 'single'", `x == "single"`},
		{"a or b and c", "a or b and c"},
		{"(a or b) and c", "(a or b) and c"},
		{"not not flag", "not not flag"},
		{"$now.hour < 12", "$now.hour < 12"},
		{"$events.count <= 3", "$events.count <= 3"},
		{"value == null", "value == null"},
		{"done != false", "done != false"},
		{"temp between -5 and 30", "temp between -5 and 30"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := ParseExpression(tt.in)
			if err != nil {
				t.Fatalf("ParseExpression(%q) failed: %v", tt.in, err)
			}
			if got := e.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseExpression_Precedence(t *testing.T) {
	e, err := ParseExpression("a or b and not c")
	if err != nil {
		t.Fatalf("ParseExpression failed: %v", err)
	}
	or, ok := e.(expr.Or)
	if !ok || len(or.Terms) != 2 {
		t.Fatalf("top node = %#v, want Or with 2 terms", e)
	}
	and, ok := or.Terms[1].(expr.And)
	if !ok || len(and.Terms) != 2 {
		t.Fatalf("second term = %#v, want And", or.Terms[1])
	}
	if _, ok := and.Terms[1].(expr.Not); !ok {
		t.Errorf("last term = %#v, want Not", and.Terms[1])
	}
}

func TestParseExpression_ReparsesOwnOutput(t *testing.T) {
	inputs := []string{
		"not (a > 1 or b < 2) and c == \"x\"",
		"(a or b) and (c or d)",
		"startTime.dayOfWeek between 1 and 5",
	}
	for _, in := range inputs {
		e, err := ParseExpression(in)
		if err != nil {
			t.Fatalf("ParseExpression(%q) failed: %v", in, err)
		}
		again, err := ParseExpression(e.String())
		if err != nil {
			t.Fatalf("ParseExpression(%q) failed: %v", e.String(), err)
		}
		if again.String() != e.String() {
			t.Errorf("reparse = %q, want %q", again.String(), e.String())
		}
	}
}

func TestParsePath(t *testing.T) {
	fa, err := ParsePath(" attendees.count ")
	if err != nil {
		t.Fatalf("ParsePath failed: %v", err)
	}
	if len(fa.Path) != 2 || fa.Path[0] != "attendees" || fa.Path[1] != "count" {
		t.Errorf("Path = %v", fa.Path)
	}

	for _, bad := range []string{"", "a.", "a b", "1.x", "a > 1", "$bogus"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("ParsePath(%q) should fail", bad)
		}
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"12", 12.0},
		{"-1.5", -1.5},
		{`"quoted text"`, "quoted text"},
		{"true", true},
		{"null", nil},
		{"word", "word"},
	}
	for _, tt := range tests {
		got, err := ParseLiteral(tt.in)
		if err != nil {
			t.Errorf("ParseLiteral(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLiteral(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParse_JSONRoundTrip(t *testing.T) {
	d, err := Parse(meetingSource)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back schema.TypeDeclaration
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(back.Rules) != len(d.Rules) {
		t.Fatalf("Rules = %d, want %d", len(back.Rules), len(d.Rules))
	}
	for i := range d.Rules {
		if back.Rules[i].Expr.String() != d.Rules[i].Expr.String() {
			t.Errorf("rule %d = %q, want %q", i, back.Rules[i].Expr.String(), d.Rules[i].Expr.String())
		}
		if back.Rules[i].Message != d.Rules[i].Message {
			t.Errorf("rule %d message = %q, want %q", i, back.Rules[i].Message, d.Rules[i].Message)
		}
	}
	if !back.Display[2].IsComputed() || back.Display[2].Expr.String() != d.Display[2].Expr.String() {
		t.Errorf("computed display binding lost: %+v", back.Display[2])
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "team")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "a.evt"):      "type: a\n",
		filepath.Join(sub, "b.yaml"):     "type: b\n---\ntype: c\n",
		filepath.Join(dir, "notes.txt"):  "not a declaration",
		filepath.Join(sub, "broken.yml"): "",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	decls, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}
	var ids []string
	for _, d := range decls {
		ids = append(ids, d.ID)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("ids = %v, want [a b c]", ids)
	}
}

func TestParseFile_ErrorCarriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.evt")
	if err := os.WriteFile(path, []byte("type: a\nbogus: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseFile(path)
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SyntaxError", err)
	}
	if se.File != path || se.Line != 2 {
		t.Errorf("SyntaxError = %+v", se)
	}
	if !strings.HasPrefix(err.Error(), path+":2:") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSplitDocuments(t *testing.T) {
	text := "type: a\nname: A\n---\n---\ntype: b\nname: B\nvalidate:\n  - startTime.hour >= 9\n"

	docs, err := SplitDocuments(text)
	if err != nil {
		t.Fatalf("SplitDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %q, want 2", docs)
	}
	for i, want := range []string{"a", "b"} {
		d, err := Parse(docs[i])
		if err != nil {
			t.Fatalf("Parse(docs[%d]) failed: %v", i, err)
		}
		if d.ID != want {
			t.Errorf("docs[%d] id = %q, want %q", i, d.ID, want)
		}
	}
	if !strings.Contains(docs[1], "startTime.hour >= 9") {
		t.Errorf("docs[1] = %q, want the rule text kept", docs[1])
	}

	if _, err := SplitDocuments("type: [a"); err == nil {
		t.Error("SplitDocuments should fail on invalid YAML")
	}
}
