package expr

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/eventdsl/core/event"
)

// Normalize converts host values into the evaluator's value set: float64 for
// every number, []any for lists, map[string]any for string-keyed maps.
// Strings, bools, time.Time and nil pass through.
func Normalize(v any) any {
	switch n := v.(type) {
	case nil, string, bool, float64, time.Time, map[string]any, []any:
		return v
	case *time.Time:
		if n == nil {
			return nil
		}
		return *n
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	case []event.Event:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = e
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(n))
		for k, s := range n {
			out[k] = s
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	}
	return v
}

// KindOf names the kind of a normalized value for error messages.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case time.Time:
		return "datetime"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	case event.Event:
		return "event"
	}
	return fmt.Sprintf("%T", v)
}

// FormatValue renders a value as display text. Whole numbers print without
// a fractional part; lists are comma separated; nil is empty.
func FormatValue(v any) string {
	return FormatValueIn(v, nil)
}

// FormatValueIn is FormatValue with times shown in loc when loc is set.
func FormatValueIn(v any, loc *time.Location) string {
	switch x := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if loc != nil {
			x = x.In(loc)
		}
		return x.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = FormatValueIn(item, loc)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	case event.Event:
		return x.Title
	default:
		return fmt.Sprint(x)
	}
}
