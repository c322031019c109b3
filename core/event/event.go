// Package event defines the concrete event instances that compiled types are
// evaluated against, the read-only context passed alongside them, and the
// results produced by validation and rendering.
package event

import (
	"time"
)

// Fixed field names. A field path whose first segment matches one of these
// resolves against the Event struct instead of its Data payload.
const (
	FieldID        = "id"
	FieldType      = "type"
	FieldTitle     = "title"
	FieldStartTime = "startTime"
	FieldEndTime   = "endTime"
)

// IsFixedField reports whether name is one of the fixed event fields.
func IsFixedField(name string) bool {
	switch name {
	case FieldID, FieldType, FieldTitle, FieldStartTime, FieldEndTime:
		return true
	}
	return false
}

// Event is one concrete event instance.
type Event struct {
	ID        string    `json:"id" yaml:"id"`
	Type      string    `json:"type" yaml:"type"`
	Title     string    `json:"title" yaml:"title"`
	StartTime time.Time `json:"startTime" yaml:"startTime"`
	EndTime   time.Time `json:"endTime" yaml:"endTime"`

	// Data is the free-form payload described by the type's fields.
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Fixed returns the value of a fixed field and whether name is one.
func (e Event) Fixed(name string) (any, bool) {
	switch name {
	case FieldID:
		return e.ID, true
	case FieldType:
		return e.Type, true
	case FieldTitle:
		return e.Title, true
	case FieldStartTime:
		return e.StartTime, true
	case FieldEndTime:
		return e.EndTime, true
	}
	return nil, false
}

// Duration returns EndTime - StartTime.
func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Context is the host-supplied input passed next to an event. The core never
// mutates it.
type Context struct {
	// Now is the reference time for validation rules.
	Now time.Time `json:"now,omitempty" yaml:"now,omitempty"`

	// Events are the sibling events, for rules that look across events.
	Events []Event `json:"events,omitempty" yaml:"events,omitempty"`

	// User is an opaque host user object. Policy decisions stay with the host.
	User any `json:"user,omitempty" yaml:"user,omitempty"`

	// Hints are presentation hints for rendering (theme, locale, ...).
	Hints map[string]any `json:"hints,omitempty" yaml:"hints,omitempty"`

	// Location is the civil calendar used for hour/minute/dayOfWeek.
	// When nil, each time value is read in its own location.
	Location *time.Location `json:"-" yaml:"-"`
}

// ValidationResult is the outcome of validating one event.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// AddError records a failure and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// NewValidationResult returns a valid result with an empty error list.
func NewValidationResult() ValidationResult {
	return ValidationResult{Valid: true, Errors: []string{}}
}

// RenderedEvent is the presentation data produced for one event.
type RenderedEvent struct {
	Title       string `json:"title"`
	Color       string `json:"color"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`

	// Extra holds display bindings other than title, color, icon and description.
	Extra map[string]string `json:"extra,omitempty"`
}
