package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/eventdsl/core/events"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		lines = append(lines, entry)
	}
	return lines
}

func TestRegisterHooks(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	bus := events.NewBus(zerolog.Nop())
	RegisterHooks(bus, logger)

	for _, name := range []string{events.TypeLoaded, events.TypeRemoved, events.CatalogFailed} {
		if !bus.HasSubscribers(name) {
			t.Errorf("no subscriber for %s", name)
		}
	}

	ctx := context.Background()
	bus.Publish(ctx, events.Event{Name: events.TypeLoaded, TypeID: "meeting", Source: "dir:types"})
	bus.Publish(ctx, events.Event{Name: events.TypeRemoved, TypeID: "holiday"})
	bus.Publish(ctx, events.Event{Name: events.CatalogFailed, Err: errors.New("broken: title is a string")})

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("logged %d lines, want 3: %s", len(lines), buf.String())
	}

	tests := []struct {
		level, event, typeID string
	}{
		{"info", events.TypeLoaded, "meeting"},
		{"info", events.TypeRemoved, "holiday"},
	}
	for i, tt := range tests {
		if lines[i]["level"] != tt.level || lines[i]["event"] != tt.event || lines[i]["type"] != tt.typeID {
			t.Errorf("line %d = %v", i, lines[i])
		}
	}
	if lines[0]["source"] != "dir:types" {
		t.Errorf("source = %v, want dir:types", lines[0]["source"])
	}

	failure := lines[2]
	if failure["level"] != "warn" || failure["error"] != "broken: title is a string" {
		t.Errorf("failure line = %v", failure)
	}
}

func TestRegisterHooks_IgnoresCatalogReloaded(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewBus(zerolog.Nop())
	RegisterHooks(bus, zerolog.New(&buf).Level(zerolog.InfoLevel))

	bus.Publish(context.Background(), events.Event{Name: events.CatalogReloaded})
	if buf.Len() != 0 {
		t.Errorf("catalog.reloaded logged: %s", buf.String())
	}
}
