// Package ics imports concrete event instances from iCalendar data.
//
// Each VEVENT becomes one event.Event:
//
//	UID            -> ID
//	SUMMARY        -> Title
//	DTSTART/DTEND  -> StartTime/EndTime
//	X-EVENT-TYPE   -> Type (else the first CATEGORIES value, else the default type)
//
// DESCRIPTION, LOCATION, ORGANIZER and ATTENDEE populate the payload as
// description, location, organizer and attendees. Every other X-EVENT-<NAME>
// property is copied into the payload under the lower-cased NAME.
// Recurrences are not expanded.
package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/ports"
)

// PropertyPrefix marks custom properties that map into the payload.
const PropertyPrefix = "X-EVENT-"

// PropertyType names the event type of a VEVENT.
const PropertyType = PropertyPrefix + "TYPE"

// Payload keys filled from standard properties.
const (
	KeyDescription = "description"
	KeyLocation    = "location"
	KeyOrganizer   = "organizer"
	KeyAttendees   = "attendees"
	KeyAllDay      = "allDay"
)

// Options control how VEVENTs map to events.
type Options struct {
	// DefaultType is used when a VEVENT names no type.
	DefaultType string

	// Location is used for floating times and all-day dates. Nil means UTC.
	Location *time.Location
}

// Parse reads every VEVENT in r.
func Parse(r io.Reader, opts Options) ([]event.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	vevents := cal.Events()
	out := make([]event.Event, 0, len(vevents))
	for i, ve := range vevents {
		ev, err := convert(ve, opts.DefaultType, loc)
		if err != nil {
			return nil, fmt.Errorf("vevent %d: %w", i+1, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func convert(ve *ical.VEvent, defaultType string, loc *time.Location) (event.Event, error) {
	ev := event.Event{
		ID:   propValue(ve, ical.ComponentPropertyUniqueId),
		Type: eventType(ve, defaultType),
		Data: make(map[string]any),
	}
	if ev.ID == "" {
		return event.Event{}, errors.New("missing UID")
	}
	ev.Title = propValue(ve, ical.ComponentPropertySummary)

	allDay := isAllDay(ve)
	var err error
	if allDay {
		ev.StartTime, err = ve.GetAllDayStartAt()
	} else {
		ev.StartTime, err = ve.GetStartAt()
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("%s: DTSTART: %w", ev.ID, err)
	}
	if allDay {
		ev.EndTime, err = ve.GetAllDayEndAt()
	} else {
		ev.EndTime, err = ve.GetEndAt()
	}
	if err != nil {
		// DTEND is optional; an event without it ends when it starts.
		ev.EndTime = ev.StartTime
	}

	switch {
	case allDay:
		ev.StartTime = civilDate(ev.StartTime, loc)
		ev.EndTime = civilDate(ev.EndTime, loc)
		ev.Data[KeyAllDay] = true
	case isFloating(ve.GetProperty(ical.ComponentPropertyDtStart)):
		ev.StartTime = wallClock(ev.StartTime, loc)
		if isFloating(ve.GetProperty(ical.ComponentPropertyDtEnd)) {
			ev.EndTime = wallClock(ev.EndTime, loc)
		}
	}

	if v := propValue(ve, ical.ComponentPropertyDescription); v != "" {
		ev.Data[KeyDescription] = v
	}
	if v := propValue(ve, ical.ComponentPropertyLocation); v != "" {
		ev.Data[KeyLocation] = v
	}
	if v := propValue(ve, ical.ComponentPropertyOrganizer); v != "" {
		ev.Data[KeyOrganizer] = strings.TrimPrefix(strings.TrimPrefix(v, "mailto:"), "MAILTO:")
	}
	if attendees := ve.Attendees(); len(attendees) > 0 {
		emails := make([]any, 0, len(attendees))
		for _, a := range attendees {
			emails = append(emails, a.Email())
		}
		ev.Data[KeyAttendees] = emails
	}

	for _, p := range ve.Properties {
		name := strings.ToUpper(p.IANAToken)
		if !strings.HasPrefix(name, PropertyPrefix) || name == PropertyType {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, PropertyPrefix))
		ev.Data[key] = p.Value
	}
	return ev, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func eventType(ve *ical.VEvent, defaultType string) string {
	if t := propValue(ve, ical.ComponentProperty(PropertyType)); t != "" {
		return t
	}
	if c := propValue(ve, ical.ComponentPropertyCategories); c != "" {
		first, _, _ := strings.Cut(c, ",")
		return strings.ToLower(strings.TrimSpace(first))
	}
	return defaultType
}

func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// isFloating reports whether p is a date-time with neither a TZID nor a
// UTC designator.
func isFloating(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if _, ok := p.ICalParameters["TZID"]; ok {
		return false
	}
	return !strings.HasSuffix(strings.TrimSpace(p.Value), "Z")
}

// civilDate reinterprets the calendar date of t at midnight in loc.
func civilDate(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// wallClock reinterprets the wall-clock reading of t in loc.
func wallClock(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// File is an event source over one .ics file.
type File struct {
	Path string
	Options
}

var _ ports.EventSource = File{}

// Events reads and parses the file.
func (f File) Events(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	events, err := Parse(bytes.NewReader(data), f.Options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return events, nil
}
