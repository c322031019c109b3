package event

import (
	"fmt"
	"slices"
	"time"
)

// Layouts accepted for datetime, date and time values.
var (
	DatetimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	DateLayouts = []string{"2006-01-02"}
	TimeLayouts = []string{"15:04:05", "15:04"}
)

// timeLayouts is every layout a string may use where a time is expected.
var timeLayouts = slices.Concat(DatetimeLayouts, DateLayouts, TimeLayouts)

// ParseTime parses s using the layouts accepted for date, time and datetime
// values. Values without a zone are read in loc (UTC when loc is nil).
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date or time", s)
}

// Components are the civil calendar parts of a time value.
type Components struct {
	Hour      int
	Minute    int
	DayOfWeek int // 0=Sunday .. 6=Saturday
}

// ComponentsOf returns the civil components of t in loc, or in t's own
// location when loc is nil.
func ComponentsOf(t time.Time, loc *time.Location) Components {
	if loc != nil {
		t = t.In(loc)
	}
	return Components{
		Hour:      t.Hour(),
		Minute:    t.Minute(),
		DayOfWeek: int(t.Weekday()),
	}
}
