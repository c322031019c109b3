package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/eventdsl/adapters/ics"
	"github.com/artpar/eventdsl/core/event"
)

// loadEvents reads events from a .json, .yaml/.yml or .ics file. JSON and
// YAML files hold either one event or a list. defaultType fills events
// without a type.
func loadEvents(path, defaultType string, loc *time.Location) ([]event.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	var events []event.Event
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ics", ".ical":
		events, err = ics.Parse(bytes.NewReader(data), ics.Options{DefaultType: defaultType, Location: loc})
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return events, nil
	case ".json":
		events, err = decodeEvents(data, json.Unmarshal)
	case ".yaml", ".yml":
		events, err = decodeEvents(data, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("unsupported events file %q (want .json, .yaml or .ics)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range events {
		if events[i].Type == "" {
			events[i].Type = defaultType
		}
	}
	return events, nil
}

func decodeEvents(data []byte, unmarshal func([]byte, any) error) ([]event.Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '-') {
		var events []event.Event
		if err := unmarshal(data, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var ev event.Event
	if err := unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return []event.Event{ev}, nil
}
