package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/eventdsl/adapters/clock"
	"github.com/artpar/eventdsl/core/compiler"
	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/events"
	"github.com/artpar/eventdsl/core/parser"
)

const source = `type: meeting
name: Team Meeting
fields:
  - attendees: list of email, required
validate:
  - attendees.count between 1 and 50
  - startTime > $now
display:
  color: "#4285f4"
  title: "${title} (${attendees.count})"
behavior:
  draggable: true
---
type: holiday
name: Holiday
behavior:
  allDay: true
`

func compileSource(t *testing.T, text string) *compiler.DataModel {
	t.Helper()
	decls, err := parser.ParseAll(text)
	if err != nil {
		t.Fatalf("ParseAll failed: %v", err)
	}
	model, err := compiler.Compile(decls)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return model
}

type recordingMetrics struct {
	mu          sync.Mutex
	validations int
	renders     int
	renderErrs  int
}

func (m *recordingMetrics) ObserveValidation(string, bool, int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations++
}

func (m *recordingMetrics) ObserveRender(_ string, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders++
	if err != nil {
		m.renderErrs++
	}
}

func (m *recordingMetrics) ObserveReload(int, error) {}

func meeting(start time.Time) event.Event {
	return event.Event{
		ID:        "ev-1",
		Type:      "meeting",
		Title:     "Planning",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Data:      map[string]any{"attendees": []string{"a@example.com", "b@example.com"}},
	}
}

func TestRuntime(t *testing.T) {
	model := compileSource(t, source)
	ct, _ := model.Get("meeting")

	now := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	m := &recordingMetrics{}
	rt := New(ct, WithClock(clock.NewFake(now)), WithMetrics(m))

	if rt.ID() != "meeting" || rt.Name() != "Team Meeting" {
		t.Errorf("ID/Name = %q/%q", rt.ID(), rt.Name())
	}
	if !rt.Schema().IsRequired("attendees") {
		t.Error("schema should require attendees")
	}
	if rt.Behavior()["draggable"] != true {
		t.Errorf("Behavior = %v", rt.Behavior())
	}

	// The clock supplies $now when the context leaves it zero.
	if res := rt.Validate(meeting(now.Add(time.Hour)), event.Context{}); !res.Valid {
		t.Errorf("future meeting: %+v, want valid", res)
	}
	res := rt.Validate(meeting(now.Add(-time.Hour)), event.Context{})
	if res.Valid || len(res.Errors) != 1 || res.Errors[0] != "startTime > $now failed" {
		t.Errorf("past meeting: %+v", res)
	}

	// An explicit Now wins over the clock.
	explicit := event.Context{Now: now.Add(-2 * time.Hour)}
	if res := rt.Validate(meeting(now.Add(-time.Hour)), explicit); !res.Valid {
		t.Errorf("explicit now: %+v, want valid", res)
	}

	out, err := rt.Render(meeting(now), event.Context{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Title != "Planning (2)" || out.Color != "#4285f4" {
		t.Errorf("Render = %+v", out)
	}

	if m.validations != 3 || m.renders != 1 {
		t.Errorf("metrics = %d validations, %d renders", m.validations, m.renders)
	}
}

func TestRuntime_Location(t *testing.T) {
	model := compileSource(t, `type: standup
validate:
  - startTime.hour == 9
`)
	ct, _ := model.Get("standup")

	berlin := time.FixedZone("CEST", 2*60*60)
	rt := New(ct, WithLocation(berlin))

	// 07:00 UTC is 09:00 in the calendar location.
	ev := event.Event{StartTime: time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)}
	if res := rt.Validate(ev, event.Context{}); !res.Valid {
		t.Errorf("Validate = %+v, want valid in calendar location", res)
	}
	if res := rt.Validate(ev, event.Context{Location: time.UTC}); res.Valid {
		t.Error("context location should override the runtime default")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry(WithLogger(zerolog.Nop()))
	reg.Load(context.Background(), compileSource(t, source))

	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}
	ids := reg.IDs()
	if ids[0] != "meeting" || ids[1] != "holiday" {
		t.Errorf("IDs = %v, want load order", ids)
	}

	rt, err := reg.Lookup("holiday")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rt.Behavior()["allDay"] != true {
		t.Errorf("holiday behavior = %v", rt.Behavior())
	}

	_, err = reg.Lookup("birthday")
	var ute *UnknownTypeError
	if !errors.As(err, &ute) || ute.ID != "birthday" {
		t.Errorf("Lookup(birthday) error = %v, want *UnknownTypeError", err)
	}

	if _, err := reg.Validate("birthday", event.Event{}, event.Context{}); !errors.As(err, &ute) {
		t.Errorf("Validate on unknown type error = %v", err)
	}
	res, err := reg.Validate("holiday", event.Event{}, event.Context{})
	if err != nil || !res.Valid {
		t.Errorf("Validate(holiday) = %+v, %v", res, err)
	}
}

func TestRegistry_LoadReplacesAndPublishes(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())

	var mu sync.Mutex
	seen := map[string][]string{}
	bus.Subscribe("type.*", func(ctx context.Context, ev events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.Name] = append(seen[ev.Name], ev.TypeID)
		return nil
	})

	reg := NewRegistry(WithBus(bus))
	reg.Load(context.Background(), compileSource(t, source))
	reg.Load(context.Background(), compileSource(t, "type: holiday\n---\ntype: birthday\n"))

	if got := reg.IDs(); len(got) != 2 || got[0] != "holiday" || got[1] != "birthday" {
		t.Errorf("IDs after reload = %v", got)
	}
	if _, err := reg.Lookup("meeting"); err == nil {
		t.Error("meeting should be gone after reload")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen[events.TypeLoaded]) != 4 {
		t.Errorf("loaded events = %v, want 4", seen[events.TypeLoaded])
	}
	if removed := seen[events.TypeRemoved]; len(removed) != 1 || removed[0] != "meeting" {
		t.Errorf("removed events = %v, want [meeting]", removed)
	}
}

func TestRegistry_Remove(t *testing.T) {
	reg := NewRegistry()
	reg.Load(context.Background(), compileSource(t, source))

	if err := reg.Remove(context.Background(), "meeting"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if ids := reg.IDs(); len(ids) != 1 || ids[0] != "holiday" {
		t.Errorf("IDs = %v, want [holiday]", ids)
	}

	var ute *UnknownTypeError
	if err := reg.Remove(context.Background(), "meeting"); !errors.As(err, &ute) {
		t.Errorf("second Remove error = %v, want *UnknownTypeError", err)
	}
}

func TestRegistry_LoadNilClears(t *testing.T) {
	reg := NewRegistry()
	reg.Load(context.Background(), compileSource(t, source))
	reg.Load(context.Background(), nil)

	if reg.Len() != 0 || len(reg.IDs()) != 0 {
		t.Errorf("IDs = %v, want none after loading a nil model", reg.IDs())
	}
}

func TestRegistry_ConcurrentLookupAndLoad(t *testing.T) {
	reg := NewRegistry()
	model := compileSource(t, source)
	reg.Load(context.Background(), model)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if rt, err := reg.Lookup("holiday"); err == nil {
					rt.Validate(event.Event{}, event.Context{})
				}
			}
		}()
		go func() {
			defer wg.Done()
			reg.Load(context.Background(), model)
		}()
	}
	wg.Wait()

	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}
}
