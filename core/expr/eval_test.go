package expr

import (
	"errors"
	"testing"
	"time"

	"github.com/artpar/eventdsl/core/event"
)

func testEvent() event.Event {
	return event.Event{
		ID:        "evt-1",
		Type:      "meeting",
		Title:     "Planning",
		StartTime: time.Date(2024, 5, 6, 10, 30, 0, 0, time.UTC), // Monday
		EndTime:   time.Date(2024, 5, 6, 11, 0, 0, 0, time.UTC),
		Data: map[string]any{
			"attendees": []string{"a@example.com", "b@example.com", "c@example.com"},
			"priority":  3,
			"room":      map[string]any{"name": "Blue", "capacity": 8},
			"note":      "bring slides",
			"online":    true,
			"due":       "2024-05-10T16:45:00Z",
		},
	}
}

func TestResolve(t *testing.T) {
	ev := testEvent()
	ctx := event.Context{
		Now:    time.Date(2024, 5, 5, 9, 0, 0, 0, time.UTC),
		Events: []event.Event{ev, ev},
		Hints:  map[string]any{"theme": "dark"},
	}
	r := Resolver{Defaults: map[string]any{"reminder": 15}}

	tests := []struct {
		path string
		want any
	}{
		{"id", "evt-1"},
		{"type", "meeting"},
		{"title", "Planning"},
		{"startTime.hour", float64(10)},
		{"startTime.minute", float64(30)},
		{"startTime.dayOfWeek", float64(1)},
		{"attendees.count", float64(3)},
		{"priority", float64(3)},
		{"room.name", "Blue"},
		{"room.capacity", float64(8)},
		{"online", true},
		{"due.hour", float64(16)},
		{"due.minute", float64(45)},
		{"due.dayOfWeek", float64(5)},
		{"reminder", float64(15)},
		{"missing", nil},
		{"$now.dayOfWeek", float64(0)},
		{"$events.count", float64(2)},
		{"$hints.theme", "dark"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := r.Resolve(Field(tt.path).Path, ev, ctx)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %v (%T), want %v (%T)", tt.path, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestResolve_Location(t *testing.T) {
	ev := testEvent()
	loc := time.FixedZone("UTC+9", 9*3600)

	got, err := Resolver{}.Resolve(Field("startTime.hour").Path, ev, event.Context{Location: loc})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != float64(19) {
		t.Errorf("hour in UTC+9 = %v, want 19", got)
	}
}

func TestResolve_Inapplicable(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		path     string
		wantPath string
	}{
		{"title.count", "title.count"},
		{"priority.count", "priority.count"},
		{"note.hour", "note.hour"},
		{"attendees.hour", "attendees.hour"},
		{"startTime.count", "startTime.count"},
		{"room.floor", "room.floor"},
		{"missing.count", "missing.count"},
		{"attendees.count.hour", "attendees.count.hour"},
		{"$calendar", "$calendar"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := Resolver{}.Resolve(Field(tt.path).Path, ev, event.Context{})
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("Resolve(%q) error = %v, want *EvaluationError", tt.path, err)
			}
			if evalErr.Path != tt.wantPath {
				t.Errorf("EvaluationError.Path = %q, want %q", evalErr.Path, tt.wantPath)
			}
			if evalErr.Reason == "" {
				t.Error("EvaluationError.Reason is empty")
			}
		})
	}
}

func TestBetween_Inclusive(t *testing.T) {
	rule := InRange(Field("attendees.count"), Lit(1), Lit(50))

	tests := []struct {
		count int
		want  bool
	}{
		{0, false},
		{1, true},
		{2, true},
		{50, true},
		{51, false},
	}

	for _, tt := range tests {
		attendees := make([]any, tt.count)
		for i := range attendees {
			attendees[i] = "x@example.com"
		}
		ev := event.Event{Data: map[string]any{"attendees": attendees}}

		got, err := Evaluator{}.EvalBool(rule, ev, event.Context{})
		if err != nil {
			t.Fatalf("count %d: unexpected error: %v", tt.count, err)
		}
		if got != tt.want {
			t.Errorf("count %d: between 1 and 50 = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestComparison(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{"number ge", Compare(OpGE, Field("startTime.hour"), Lit(9)), true},
		{"number le", Compare(OpLE, Field("startTime.hour"), Lit(9)), false},
		{"number gt", Compare(OpGT, Field("priority"), Lit(2.5)), true},
		{"number lt", Compare(OpLT, Field("priority"), Lit(3)), false},
		{"number eq", Compare(OpEQ, Field("priority"), Lit(3)), true},
		{"string eq", Compare(OpEQ, Field("room.name"), Lit("Blue")), true},
		{"string ne", Compare(OpNE, Field("title"), Lit("Standup")), true},
		{"string order", Compare(OpLT, Lit("apple"), Lit("banana")), true},
		{"bool eq", Compare(OpEQ, Field("online"), Lit(true)), true},
		{"time vs time", Compare(OpLT, Field("startTime"), Field("endTime")), true},
		{"time vs string", Compare(OpGT, Field("startTime"), Lit("2024-05-01")), true},
		{"string vs time", Compare(OpGT, Field("due"), Field("startTime")), true},
		{"missing eq null", Compare(OpEQ, Field("missing"), Lit(nil)), true},
		{"present ne null", Compare(OpNE, Field("note"), Lit(nil)), true},
		{"path vs path", Compare(OpGE, Field("room.capacity"), Field("attendees.count")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateBool(tt.expr, ev, event.Context{})
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestComparison_Incompatible(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		name string
		expr Expr
	}{
		{"string vs number", Compare(OpGT, Field("title"), Lit(3))},
		{"number vs string", Compare(OpEQ, Field("priority"), Lit("3"))},
		{"bool ordering", Compare(OpGT, Field("online"), Lit(false))},
		{"missing ordering", Compare(OpGT, Field("missing"), Lit(1))},
		{"list vs number", Compare(OpEQ, Field("attendees"), Lit(3))},
		{"between mixed", InRange(Field("title"), Lit(1), Lit(2))},
		{"unknown operator", Compare(Operator("=>"), Lit(1), Lit(1))},
		{"non-boolean and", And{Terms: []Expr{Field("priority")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluator{}.EvalBool(tt.expr, ev, event.Context{})
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("%s: error = %v, want *EvaluationError", tt.expr, err)
			}
		})
	}
}

func TestBooleanShortCircuit(t *testing.T) {
	ev := testEvent()
	failing := Compare(OpGT, Field("title.count"), Lit(1))

	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{"and stops at first false", And{Terms: []Expr{Lit(false), failing}}, false},
		{"or stops at first true", Or{Terms: []Expr{Lit(true), failing}}, true},
		{"not", Not{Term: Lit(false)}, true},
		{"nested", Or{Terms: []Expr{
			And{Terms: []Expr{Compare(OpEQ, Field("online"), Lit(false)), failing}},
			Compare(OpEQ, Field("type"), Lit("meeting")),
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluator{}.EvalBool(tt.expr, ev, event.Context{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	// Without a short circuit the failing term is reached.
	_, err := Evaluator{}.EvalBool(And{Terms: []Expr{Lit(true), failing}}, ev, event.Context{})
	if err == nil {
		t.Error("expected the second term to be evaluated and fail")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		expr Expr
		want string
	}{
		{Compare(OpLE, Field("startTime.hour"), Lit(18)), "startTime.hour <= 18"},
		{InRange(Field("attendees.count"), Lit(1), Lit(50)), "attendees.count between 1 and 50"},
		{Compare(OpEQ, Field("status"), Lit("open")), `status == "open"`},
		{Compare(OpNE, Field("note"), Lit(nil)), "note != null"},
		{And{Terms: []Expr{Lit(true), Or{Terms: []Expr{Field("a"), Field("b")}}}}, "true and (a or b)"},
		{Not{Term: And{Terms: []Expr{Field("a"), Field("b")}}}, "not (a and b)"},
		{Not{Term: Compare(OpGT, Field("x"), Lit(1.5))}, "not x > 1.5"},
	}

	for _, tt := range tests {
		if got := tt.expr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{3, "3"},
		{2.5, "2.5"},
		{true, "true"},
		{"x", "x"},
		{[]string{"a", "b"}, "a, b"},
		{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02T03:04:05Z"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	e := And{Terms: []Expr{
		InRange(Field("attendees.count"), Lit(1), Lit(5)),
		Not{Term: Compare(OpEQ, Field("title"), Field("room.name"))},
	}}

	paths := Paths(e)
	want := []string{"attendees.count", "title", "room.name"}
	if len(paths) != len(want) {
		t.Fatalf("Paths() returned %d paths, want %d", len(paths), len(want))
	}
	for i, p := range paths {
		if p.String() != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, p.String(), want[i])
		}
	}
}

func TestEvaluate_FieldAccess(t *testing.T) {
	ev := event.Event{Title: "Standup", Data: map[string]any{"room": "101"}}

	for path, want := range map[string]any{"title": "Standup", "room": "101"} {
		got, err := Evaluate(Field(path), ev, event.Context{})
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", path, err)
		}
		if got != want {
			t.Errorf("Evaluate(%s) = %v, want %v", path, got, want)
		}
	}
}
