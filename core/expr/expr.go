// Package expr implements the expression language used by validation rules
// and computed display bindings: a closed set of node kinds, field path
// resolution against events, and evaluation with typed comparison semantics.
package expr

import (
	"strconv"
	"strings"
	"time"
)

// Expr is an expression node. The set of implementations is closed: Literal,
// FieldAccess, Comparison, Between, And, Or and Not.
type Expr interface {
	// String renders the node in the textual rule grammar.
	String() string
	isExpr()
}

// Operator is a comparison operator.
type Operator string

const (
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpLT Operator = "<"
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

// Valid reports whether o is a known comparison operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGE, OpLE, OpGT, OpLT, OpEQ, OpNE:
		return true
	}
	return false
}

// Synthetic accessors.
const (
	AccessorCount     = "count"
	AccessorHour      = "hour"
	AccessorMinute    = "minute"
	AccessorDayOfWeek = "dayOfWeek"
)

// IsTimeAccessor reports whether seg reads a component of a date/time.
func IsTimeAccessor(seg string) bool {
	return seg == AccessorHour || seg == AccessorMinute || seg == AccessorDayOfWeek
}

// IsAccessor reports whether seg is a synthetic accessor.
func IsAccessor(seg string) bool {
	return seg == AccessorCount || IsTimeAccessor(seg)
}

// Context roots. A path starting with one of these reads the evaluation
// context instead of the event.
const (
	RootNow    = "$now"
	RootEvents = "$events"
	RootUser   = "$user"
	RootHints  = "$hints"
)

// IsContextRoot reports whether seg is a known context root.
func IsContextRoot(seg string) bool {
	switch seg {
	case RootNow, RootEvents, RootUser, RootHints:
		return true
	}
	return false
}

// Literal is a constant value.
type Literal struct {
	Value any
}

// FieldAccess reads a value from the event (or context) by path.
type FieldAccess struct {
	Path []string
}

// Comparison compares two operands.
type Comparison struct {
	Op    Operator
	Left  Expr
	Right Expr
}

// Between is an inclusive range test: Min <= Field <= Max.
type Between struct {
	Field Expr
	Min   Expr
	Max   Expr
}

// And is true when every term is true.
type And struct {
	Terms []Expr
}

// Or is true when any term is true.
type Or struct {
	Terms []Expr
}

// Not negates its term.
type Not struct {
	Term Expr
}

func (Literal) isExpr()     {}
func (FieldAccess) isExpr() {}
func (Comparison) isExpr()  {}
func (Between) isExpr()     {}
func (And) isExpr()         {}
func (Or) isExpr()          {}
func (Not) isExpr()         {}

// Lit returns a Literal holding v.
func Lit(v any) Literal {
	return Literal{Value: v}
}

// Field returns a FieldAccess for a dotted path such as "startTime.hour".
func Field(path string) FieldAccess {
	return FieldAccess{Path: strings.Split(path, ".")}
}

// Compare returns a Comparison.
func Compare(op Operator, left, right Expr) Comparison {
	return Comparison{Op: op, Left: left, Right: right}
}

// InRange returns a Between.
func InRange(field, min, max Expr) Between {
	return Between{Field: field, Min: min, Max: max}
}

func (l Literal) String() string {
	return FormatLiteral(l.Value)
}

// FormatLiteral renders v as it would be written in the rule grammar.
func FormatLiteral(v any) string {
	switch x := Normalize(v).(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return strconv.Quote(x.Format(time.RFC3339))
	default:
		return strconv.Quote(FormatValue(x))
	}
}

func (f FieldAccess) String() string {
	return strings.Join(f.Path, ".")
}

func (c Comparison) String() string {
	return operand(c.Left) + " " + string(c.Op) + " " + operand(c.Right)
}

func (b Between) String() string {
	return operand(b.Field) + " between " + operand(b.Min) + " and " + operand(b.Max)
}

func (a And) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		if _, ok := t.(Or); ok {
			parts[i] = "(" + str(t) + ")"
		} else {
			parts[i] = str(t)
		}
	}
	return strings.Join(parts, " and ")
}

func (o Or) String() string {
	parts := make([]string, len(o.Terms))
	for i, t := range o.Terms {
		parts[i] = str(t)
	}
	return strings.Join(parts, " or ")
}

func (n Not) String() string {
	switch n.Term.(type) {
	case And, Or:
		return "not (" + str(n.Term) + ")"
	}
	return "not " + str(n.Term)
}

// operand renders a comparison operand, parenthesizing anything that is not
// a leaf.
func operand(e Expr) string {
	switch e.(type) {
	case Literal, FieldAccess, nil:
		return str(e)
	}
	return "(" + str(e) + ")"
}

func str(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

// Walk visits e and its children depth-first. Returning false from fn skips
// the children of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case Comparison:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case Between:
		Walk(n.Field, fn)
		Walk(n.Min, fn)
		Walk(n.Max, fn)
	case And:
		for _, t := range n.Terms {
			Walk(t, fn)
		}
	case Or:
		for _, t := range n.Terms {
			Walk(t, fn)
		}
	case Not:
		Walk(n.Term, fn)
	}
}

// Paths returns every FieldAccess in e, in visiting order.
func Paths(e Expr) []FieldAccess {
	var out []FieldAccess
	Walk(e, func(n Expr) bool {
		if f, ok := n.(FieldAccess); ok {
			out = append(out, f)
		}
		return true
	})
	return out
}
