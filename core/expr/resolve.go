package expr

import (
	"fmt"
	"strings"
	"time"

	"github.com/artpar/eventdsl/core/event"
)

// EvaluationError reports a path or operation that could not be applied to
// the values of a particular event.
type EvaluationError struct {
	Path   string
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %s", e.Path, e.Reason)
}

// Resolver resolves field paths against an event and its context.
type Resolver struct {
	// Defaults supplies values for payload keys the event does not carry.
	Defaults map[string]any
}

// Resolve returns the value at path.
//
// The first segment names a fixed event field, a payload key, or a context
// root ($now, $events, $user, $hints). Each further segment is a map key or
// a synthetic accessor: count on lists, hour/minute/dayOfWeek on times.
func (r Resolver) Resolve(path []string, ev event.Event, ctx event.Context) (any, error) {
	if len(path) == 0 {
		return nil, &EvaluationError{Path: "", Reason: "empty path"}
	}

	root := path[0]
	var cur any
	switch {
	case strings.HasPrefix(root, "$"):
		v, err := contextRoot(root, ctx)
		if err != nil {
			return nil, &EvaluationError{Path: root, Reason: err.Error()}
		}
		cur = v
	case event.IsFixedField(root):
		cur, _ = ev.Fixed(root)
	default:
		if v, ok := ev.Data[root]; ok {
			cur = v
		} else if d, ok := r.Defaults[root]; ok {
			cur = d
		}
	}
	cur = Normalize(cur)

	for i := 1; i < len(path); i++ {
		next, err := step(cur, path[i], ctx.Location)
		if err != nil {
			return nil, &EvaluationError{Path: strings.Join(path[:i+1], "."), Reason: err.Error()}
		}
		cur = next
	}
	return cur, nil
}

func contextRoot(root string, ctx event.Context) (any, error) {
	switch root {
	case RootNow:
		if ctx.Now.IsZero() {
			return nil, nil
		}
		return ctx.Now, nil
	case RootEvents:
		return Normalize(ctx.Events), nil
	case RootUser:
		return ctx.User, nil
	case RootHints:
		if ctx.Hints == nil {
			return nil, nil
		}
		return ctx.Hints, nil
	}
	return nil, fmt.Errorf("unknown context root %q", root)
}

func step(cur any, seg string, loc *time.Location) (any, error) {
	switch v := cur.(type) {
	case map[string]any:
		val, ok := v[seg]
		if !ok {
			return nil, fmt.Errorf("no field %q", seg)
		}
		return Normalize(val), nil
	case []any:
		if seg == AccessorCount {
			return float64(len(v)), nil
		}
		return nil, fmt.Errorf("%q is not applicable to a list", seg)
	case time.Time:
		if IsTimeAccessor(seg) {
			return component(v, seg, loc), nil
		}
		return nil, fmt.Errorf("%q is not applicable to a datetime", seg)
	case string:
		if IsTimeAccessor(seg) {
			t, err := event.ParseTime(v, loc)
			if err != nil {
				return nil, fmt.Errorf("%q requires a date or time: %v", seg, err)
			}
			return component(t, seg, loc), nil
		}
		return nil, fmt.Errorf("%q is not applicable to a string", seg)
	case nil:
		return nil, fmt.Errorf("no value to read %q from", seg)
	}
	return nil, fmt.Errorf("%q is not applicable to a %s", seg, KindOf(cur))
}

func component(t time.Time, seg string, loc *time.Location) float64 {
	c := event.ComponentsOf(t, loc)
	switch seg {
	case AccessorHour:
		return float64(c.Hour)
	case AccessorMinute:
		return float64(c.Minute)
	default:
		return float64(c.DayOfWeek)
	}
}
