package expr

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Node kinds used by the JSON tree format.
const (
	KindLiteral = "literal"
	KindField   = "field"
	KindCompare = "compare"
	KindBetween = "between"
	KindAnd     = "and"
	KindOr      = "or"
	KindNot     = "not"
)

func (l Literal) MarshalJSON() ([]byte, error) {
	v := l.Value
	if t, ok := v.(time.Time); ok {
		v = t.Format(time.RFC3339Nano)
	}
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}{KindLiteral, v})
}

func (f FieldAccess) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string   `json:"kind"`
		Path []string `json:"path"`
	}{KindField, f.Path})
}

func (c Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string   `json:"kind"`
		Op    Operator `json:"op"`
		Left  Expr     `json:"left"`
		Right Expr     `json:"right"`
	}{KindCompare, c.Op, c.Left, c.Right})
}

func (b Between) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Field Expr   `json:"field"`
		Min   Expr   `json:"min"`
		Max   Expr   `json:"max"`
	}{KindBetween, b.Field, b.Min, b.Max})
}

func (a And) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Terms []Expr `json:"terms"`
	}{KindAnd, a.Terms})
}

func (o Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Terms []Expr `json:"terms"`
	}{KindOr, o.Terms})
}

func (n Not) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Term Expr   `json:"term"`
	}{KindNot, n.Term})
}

// rawNode is the union of every node's JSON fields.
type rawNode struct {
	Kind  string            `json:"kind"`
	Value any               `json:"value"`
	Path  json.RawMessage   `json:"path"`
	Op    Operator          `json:"op"`
	Left  json.RawMessage   `json:"left"`
	Right json.RawMessage   `json:"right"`
	Field json.RawMessage   `json:"field"`
	Min   json.RawMessage   `json:"min"`
	Max   json.RawMessage   `json:"max"`
	Terms []json.RawMessage `json:"terms"`
	Term  json.RawMessage   `json:"term"`
}

// Unmarshal decodes an expression tree from its JSON form. Object keys may
// appear in any order. A field path may be given as an array of segments or
// as a dotted string.
func Unmarshal(data []byte) (Expr, error) {
	if isNull(data) {
		return nil, nil
	}
	var n rawNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode expression: %w", err)
	}

	switch n.Kind {
	case KindLiteral:
		return Literal{Value: n.Value}, nil
	case KindField:
		path, err := decodePath(n.Path)
		if err != nil {
			return nil, err
		}
		return FieldAccess{Path: path}, nil
	case KindCompare:
		left, err := Unmarshal(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := Unmarshal(n.Right)
		if err != nil {
			return nil, err
		}
		return Comparison{Op: n.Op, Left: left, Right: right}, nil
	case KindBetween:
		field, err := Unmarshal(n.Field)
		if err != nil {
			return nil, err
		}
		lo, err := Unmarshal(n.Min)
		if err != nil {
			return nil, err
		}
		hi, err := Unmarshal(n.Max)
		if err != nil {
			return nil, err
		}
		return Between{Field: field, Min: lo, Max: hi}, nil
	case KindAnd, KindOr:
		terms := make([]Expr, 0, len(n.Terms))
		for _, raw := range n.Terms {
			t, err := Unmarshal(raw)
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
		}
		if n.Kind == KindAnd {
			return And{Terms: terms}, nil
		}
		return Or{Terms: terms}, nil
	case KindNot:
		t, err := Unmarshal(n.Term)
		if err != nil {
			return nil, err
		}
		return Not{Term: t}, nil
	case "":
		return nil, fmt.Errorf("decode expression: missing kind")
	}
	return nil, fmt.Errorf("decode expression: unknown kind %q", n.Kind)
}

func decodePath(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var segs []string
	if err := json.Unmarshal(raw, &segs); err == nil {
		return segs, nil
	}
	var dotted string
	if err := json.Unmarshal(raw, &dotted); err != nil {
		return nil, fmt.Errorf("decode expression: path must be a string or list of strings")
	}
	return strings.Split(dotted, "."), nil
}

func isNull(data []byte) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}
