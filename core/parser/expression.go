package parser

import (
	"fmt"
	"strconv"

	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/expr"
	"github.com/artpar/eventdsl/core/schema"
)

// ParseExpression parses the textual rule grammar:
//
//	expr     = or
//	or       = and { "or" and }
//	and      = unary { "and" unary }
//	unary    = "not" unary | primary
//	primary  = "(" expr ")" | operand [ op operand | "between" operand "and" operand ]
//	operand  = path | number | string | "true" | "false" | "null"
//	path     = name { "." name }
func ParseExpression(text string) (expr.Expr, error) {
	p := &exprParser{lex: NewLexer(text)}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseRule parses a validation rule: an expression whose every top-level
// term is a condition. Bare numbers, strings, null and paths that always
// name a non-boolean value are rejected.
func ParseRule(text string) (expr.Expr, error) {
	e, err := ParseExpression(text)
	if err != nil {
		return nil, err
	}
	if err := requireCondition(e); err != nil {
		return nil, err
	}
	return e, nil
}

func requireCondition(e expr.Expr) error {
	return eachCondition(e, func(term expr.Expr) error {
		switch n := term.(type) {
		case expr.Literal:
			if _, ok := n.Value.(bool); !ok {
				return fmt.Errorf("expected a condition, got %s", n)
			}
		case expr.FieldAccess:
			if neverBoolean(n) {
				return fmt.Errorf("expected a condition, got %s", n)
			}
		}
		return nil
	})
}

// requireBooleanFields rejects a bare field used as a condition unless it
// is declared boolean.
func requireBooleanFields(e expr.Expr, fields []schema.FieldDeclaration) error {
	return eachCondition(e, func(term expr.Expr) error {
		fa, ok := term.(expr.FieldAccess)
		if !ok {
			return nil
		}
		for _, f := range fields {
			if len(fa.Path) == 1 && f.Name == fa.Path[0] && f.Type == schema.TypeBoolean {
				return nil
			}
		}
		return fmt.Errorf("expected a condition, %s is not a boolean field", fa)
	})
}

// eachCondition calls fn for every term of e in condition position: e itself
// or the operands of and, or and not.
func eachCondition(e expr.Expr, fn func(expr.Expr) error) error {
	var terms []expr.Expr
	switch n := e.(type) {
	case expr.And:
		terms = n.Terms
	case expr.Or:
		terms = n.Terms
	case expr.Not:
		terms = []expr.Expr{n.Term}
	default:
		return fn(e)
	}
	for _, t := range terms {
		if err := eachCondition(t, fn); err != nil {
			return err
		}
	}
	return nil
}

// neverBoolean reports paths that resolve to a string, time, list or number
// whatever the payload holds.
func neverBoolean(fa expr.FieldAccess) bool {
	last := fa.Path[len(fa.Path)-1]
	if len(fa.Path) > 1 && expr.IsAccessor(last) {
		return true
	}
	root := fa.Path[0]
	return len(fa.Path) == 1 && (event.IsFixedField(root) || root == expr.RootNow || root == expr.RootEvents)
}

// ParsePath parses a dotted field path such as "startTime.hour" or
// "$user.id".
func ParsePath(text string) (expr.FieldAccess, error) {
	p := &exprParser{lex: NewLexer(text)}
	tok := p.lex.Next()
	if tok.Kind != TokIdent {
		return expr.FieldAccess{}, p.errorf(tok, "expected a field path, got %s", tok)
	}
	fa, err := p.parsePath(tok)
	if err != nil {
		return expr.FieldAccess{}, err
	}
	if err := p.expectEOF(); err != nil {
		return expr.FieldAccess{}, err
	}
	return fa, nil
}

// ParseLiteral parses a single literal value: a number, quoted string,
// true, false or null. A bare word is read as a string.
func ParseLiteral(text string) (any, error) {
	p := &exprParser{lex: NewLexer(text)}
	tok := p.lex.Next()
	var v any
	switch {
	case tok.Kind == TokIdent && tok.Val == kwTrue:
		v = true
	case tok.Kind == TokIdent && tok.Val == kwFalse:
		v = false
	case tok.Kind == TokIdent && tok.Val == kwNull:
		v = nil
	case tok.Kind == TokIdent:
		v = tok.Val
	case tok.Kind == TokNumber:
		n, err := strconv.ParseFloat(tok.Val, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %s", tok)
		}
		v = n
	case tok.Kind == TokString:
		v = tok.Val
	default:
		return nil, p.errorf(tok, "expected a literal, got %s", tok)
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return v, nil
}

type exprParser struct {
	lex *Lexer
}

func (p *exprParser) errorf(tok Token, format string, args ...any) error {
	if err := p.lex.Err(); err != nil {
		return err
	}
	return fmt.Errorf("column %d: %s", tok.Pos+1, fmt.Sprintf(format, args...))
}

func (p *exprParser) expectEOF() error {
	tok := p.lex.Next()
	if tok.Kind != TokEOF {
		return p.errorf(tok, "unexpected %s", tok)
	}
	return p.lex.Err()
}

func (p *exprParser) isKeyword(word string) bool {
	tok := p.lex.Peek()
	return tok.Kind == TokIdent && tok.Val == word
}

func (p *exprParser) parseOr() (expr.Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []expr.Expr{first}
	for p.isKeyword(kwOr) {
		p.lex.Next()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return expr.Or{Terms: terms}, nil
}

func (p *exprParser) parseAnd() (expr.Expr, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []expr.Expr{first}
	for p.isKeyword(kwAnd) {
		p.lex.Next()
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return expr.And{Terms: terms}, nil
}

func (p *exprParser) parseUnary() (expr.Expr, error) {
	if p.isKeyword(kwNot) {
		p.lex.Next()
		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.Not{Term: term}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (expr.Expr, error) {
	if tok := p.lex.Peek(); tok.Kind == TokLParen {
		p.lex.Next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.lex.Next(); closing.Kind != TokRParen {
			return nil, p.errorf(closing, "expected ), got %s", closing)
		}
		return e, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch tok := p.lex.Peek(); {
	case tok.Kind == TokOp:
		p.lex.Next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return expr.Comparison{Op: expr.Operator(tok.Val), Left: left, Right: right}, nil
	case tok.Kind == TokIdent && tok.Val == kwBetween:
		p.lex.Next()
		lo, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if sep := p.lex.Next(); sep.Kind != TokIdent || sep.Val != kwAnd {
			return nil, p.errorf(sep, "expected and in between, got %s", sep)
		}
		hi, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return expr.Between{Field: left, Min: lo, Max: hi}, nil
	}
	return left, p.lex.Err()
}

func (p *exprParser) parseOperand() (expr.Expr, error) {
	tok := p.lex.Next()
	switch tok.Kind {
	case TokNumber:
		n, err := strconv.ParseFloat(tok.Val, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %s", tok)
		}
		return expr.Literal{Value: n}, nil
	case TokString:
		return expr.Literal{Value: tok.Val}, nil
	case TokIdent:
		switch tok.Val {
		case kwTrue:
			return expr.Literal{Value: true}, nil
		case kwFalse:
			return expr.Literal{Value: false}, nil
		case kwNull:
			return expr.Literal{Value: nil}, nil
		}
		if keywords[tok.Val] {
			return nil, p.errorf(tok, "expected a value, got %s", tok)
		}
		return p.parsePath(tok)
	}
	return nil, p.errorf(tok, "expected a value, got %s", tok)
}

// parsePath reads the remaining segments of a path whose first segment is
// first.
func (p *exprParser) parsePath(first Token) (expr.FieldAccess, error) {
	if first.Val[0] == '$' && !expr.IsContextRoot(first.Val) {
		return expr.FieldAccess{}, p.errorf(first, "unknown context root %s", first)
	}
	path := []string{first.Val}
	for p.lex.Peek().Kind == TokDot {
		p.lex.Next()
		seg := p.lex.Next()
		if seg.Kind != TokIdent || seg.Val[0] == '$' {
			return expr.FieldAccess{}, p.errorf(seg, "expected a name after ., got %s", seg)
		}
		path = append(path, seg.Val)
	}
	return expr.FieldAccess{Path: path}, p.lex.Err()
}
