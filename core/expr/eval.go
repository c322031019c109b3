package expr

import (
	"cmp"
	"fmt"
	"time"

	"github.com/artpar/eventdsl/core/event"
)

// Evaluator evaluates expressions. The zero value is ready to use.
type Evaluator struct {
	Resolver Resolver
}

// Evaluate evaluates e with a zero Evaluator.
func Evaluate(e Expr, ev event.Event, ctx event.Context) (any, error) {
	return Evaluator{}.Eval(e, ev, ctx)
}

// EvaluateBool evaluates e with a zero Evaluator and requires a boolean.
func EvaluateBool(e Expr, ev event.Event, ctx event.Context) (bool, error) {
	return Evaluator{}.EvalBool(e, ev, ctx)
}

// Eval evaluates e to a normalized value.
func (x Evaluator) Eval(e Expr, ev event.Event, ctx event.Context) (any, error) {
	switch n := e.(type) {
	case Literal:
		return Normalize(n.Value), nil
	case FieldAccess:
		return x.Resolver.Resolve(n.Path, ev, ctx)
	case Comparison:
		left, err := x.Eval(n.Left, ev, ctx)
		if err != nil {
			return nil, err
		}
		right, err := x.Eval(n.Right, ev, ctx)
		if err != nil {
			return nil, err
		}
		ok, err := compareValues(n.Op, left, right)
		if err != nil {
			return nil, &EvaluationError{Path: n.String(), Reason: err.Error()}
		}
		return ok, nil
	case Between:
		return x.between(n, ev, ctx)
	case And:
		for _, t := range n.Terms {
			ok, err := x.EvalBool(t, ev, ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, t := range n.Terms {
			ok, err := x.EvalBool(t, ev, ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := x.EvalBool(n.Term, ev, ctx)
		if err != nil {
			return nil, err
		}
		return !ok, nil
	case nil:
		return nil, &EvaluationError{Path: "", Reason: "missing expression"}
	}
	return nil, &EvaluationError{Path: e.String(), Reason: fmt.Sprintf("unsupported expression %T", e)}
}

// EvalBool evaluates e and requires a boolean result.
func (x Evaluator) EvalBool(e Expr, ev event.Event, ctx event.Context) (bool, error) {
	v, err := x.Eval(e, ev, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &EvaluationError{Path: str(e), Reason: fmt.Sprintf("expected a boolean, got %s", KindOf(v))}
	}
	return b, nil
}

func (x Evaluator) between(n Between, ev event.Event, ctx event.Context) (any, error) {
	v, err := x.Eval(n.Field, ev, ctx)
	if err != nil {
		return nil, err
	}
	lo, err := x.Eval(n.Min, ev, ctx)
	if err != nil {
		return nil, err
	}
	hi, err := x.Eval(n.Max, ev, ctx)
	if err != nil {
		return nil, err
	}

	ok, err := compareValues(OpLE, lo, v)
	if err != nil {
		return nil, &EvaluationError{Path: n.String(), Reason: err.Error()}
	}
	if !ok {
		return false, nil
	}
	ok, err = compareValues(OpLE, v, hi)
	if err != nil {
		return nil, &EvaluationError{Path: n.String(), Reason: err.Error()}
	}
	return ok, nil
}

// compareValues applies op to two normalized values.
func compareValues(op Operator, left, right any) (bool, error) {
	if !op.Valid() {
		return false, fmt.Errorf("unknown operator %q", op)
	}

	if left == nil || right == nil {
		switch op {
		case OpEQ:
			return left == nil && right == nil, nil
		case OpNE:
			return !(left == nil && right == nil), nil
		}
		return false, fmt.Errorf("cannot order a missing value with %s", op)
	}

	switch a := left.(type) {
	case float64:
		if b, ok := right.(float64); ok {
			return ordered(op, cmp.Compare(a, b)), nil
		}
	case string:
		switch b := right.(type) {
		case string:
			return ordered(op, cmp.Compare(a, b)), nil
		case time.Time:
			t, err := event.ParseTime(a, b.Location())
			if err != nil {
				return false, err
			}
			return ordered(op, t.Compare(b)), nil
		}
	case time.Time:
		switch b := right.(type) {
		case time.Time:
			return ordered(op, a.Compare(b)), nil
		case string:
			t, err := event.ParseTime(b, a.Location())
			if err != nil {
				return false, err
			}
			return ordered(op, a.Compare(t)), nil
		}
	case bool:
		if b, ok := right.(bool); ok {
			switch op {
			case OpEQ:
				return a == b, nil
			case OpNE:
				return a != b, nil
			}
			return false, fmt.Errorf("booleans only support == and !=, not %s", op)
		}
	}
	return false, fmt.Errorf("cannot compare %s with %s", KindOf(left), KindOf(right))
}

func ordered(op Operator, c int) bool {
	switch op {
	case OpGE:
		return c >= 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpLT:
		return c < 0
	case OpEQ:
		return c == 0
	default:
		return c != 0
	}
}
