/*
Package schema defines the declaration tree for event types and generates
the structural schema of an event's payload.

An event type is a self-contained declaration: the payload fields it owns,
the rules an event must satisfy, how the event is displayed, and static
behavior flags read by the host UI.

# Declaration

A minimal declaration in the textual form accepted by package parser:

	type: meeting
	name: "Meeting"
	description: "Internal meeting with attendees"

	fields:
	  - attendees: list of email, required
	  - room: string
	  - priority: number, default=1

	validate:
	  - attendees.count between 1 and 50
	  - startTime.hour >= 9
	  - rule: startTime.hour <= 18
	    message: "meetings must start before 18:00"

	display:
	  title: "${title} (${attendees.count})"
	  color: "#4285f4"
	  icon: "users"

	behavior:
	  draggable: true
	  resizable: false

Hosts may also build a TypeDeclaration by hand (for example from a visual
editor) or decode it from JSON. Both forms compile identically.

# Field Types

Supported field types:

  - string:   Text value
  - number:   Integer or floating-point value
  - boolean:  true or false
  - email:    Email address (string, format "email")
  - url:      URL (string, format "uri")
  - date:     Calendar date (string, format "date")
  - time:     Time of day (string, format "time")
  - datetime: Date and time (string, format "date-time")
  - list of T: Array whose items are the scalar type T

# Field Paths

Rules and templates reach values with dotted paths. The first segment names
one of the fixed event fields (id, type, title, startTime, endTime) or a
payload field. Later segments name nested payload keys or one of the
synthetic accessors:

  - count:     length of a list
  - hour:      hour of a date/time (0-23)
  - minute:    minute of a date/time (0-59)
  - dayOfWeek: day of the week of a date/time (0=Sunday)

Paths starting with $ read the evaluation context: $now, $events, $user and
$hints.

# Schema Generation

GenerateSchema maps the field list to a JSON-Schema shaped object. It only
describes structure; package validation checks a payload against it.
*/
package schema
