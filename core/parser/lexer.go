package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind classifies expression tokens.
type TokenKind string

const (
	TokEOF    TokenKind = "EOF"
	TokIdent  TokenKind = "IDENT"
	TokNumber TokenKind = "NUMBER"
	TokString TokenKind = "STRING"
	TokOp     TokenKind = "OP"
	TokDot    TokenKind = "DOT"
	TokLParen TokenKind = "LPAREN"
	TokRParen TokenKind = "RPAREN"
	TokComma  TokenKind = "COMMA"
	TokLBrack TokenKind = "LBRACK"
	TokRBrack TokenKind = "RBRACK"
)

// Token is one lexical token. Pos is the byte offset in the input.
type Token struct {
	Kind TokenKind
	Val  string
	Pos  int
}

func (t Token) String() string {
	if t.Kind == TokEOF {
		return "end of input"
	}
	return strconv.Quote(t.Val)
}

// Keywords of the rule grammar.
const (
	kwAnd     = "and"
	kwOr      = "or"
	kwNot     = "not"
	kwBetween = "between"
	kwTrue    = "true"
	kwFalse   = "false"
	kwNull    = "null"
)

var keywords = map[string]bool{
	kwAnd:     true,
	kwOr:      true,
	kwNot:     true,
	kwBetween: true,
	kwTrue:    true,
	kwFalse:   true,
	kwNull:    true,
}

var operators = map[string]bool{
	">=": true,
	"<=": true,
	">":  true,
	"<":  true,
	"==": true,
	"!=": true,
}

// Lexer splits an expression into tokens with one token of lookahead.
type Lexer struct {
	text   string
	pos    int
	buffer *Token
	err    error
}

// NewLexer creates a lexer over text.
func NewLexer(text string) *Lexer {
	return &Lexer{text: text}
}

// Err returns the first lexical error, if any.
func (l *Lexer) Err() error {
	return l.err
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	if l.buffer == nil {
		tok := l.nextToken()
		l.buffer = &tok
	}
	return *l.buffer
}

// Next consumes and returns the next token.
func (l *Lexer) Next() Token {
	if l.buffer != nil {
		tok := *l.buffer
		l.buffer = nil
		return tok
	}
	return l.nextToken()
}

func (l *Lexer) fail(pos int, format string, args ...any) Token {
	if l.err == nil {
		l.err = fmt.Errorf("column %d: %s", pos+1, fmt.Sprintf(format, args...))
	}
	l.pos = len(l.text)
	return Token{Kind: TokEOF, Pos: pos}
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.text) {
		switch l.text[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) nextToken() Token {
	if l.err != nil {
		return Token{Kind: TokEOF, Pos: l.pos}
	}
	l.skipSpace()
	if l.pos >= len(l.text) {
		return Token{Kind: TokEOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.text[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return Token{Kind: TokLParen, Val: "(", Pos: start}
	case ch == ')':
		l.pos++
		return Token{Kind: TokRParen, Val: ")", Pos: start}
	case ch == '[':
		l.pos++
		return Token{Kind: TokLBrack, Val: "[", Pos: start}
	case ch == ']':
		l.pos++
		return Token{Kind: TokRBrack, Val: "]", Pos: start}
	case ch == ',':
		l.pos++
		return Token{Kind: TokComma, Val: ",", Pos: start}
	case ch == '.':
		l.pos++
		return Token{Kind: TokDot, Val: ".", Pos: start}
	case ch == '"' || ch == '\'':
		return l.lexString(ch)
	case isDigit(ch) || (ch == '-' && l.pos+1 < len(l.text) && isDigit(l.text[l.pos+1])):
		return l.lexNumber()
	case isIdentStart(ch) || ch == '$':
		l.pos++
		for l.pos < len(l.text) && isIdentPart(l.text[l.pos]) {
			l.pos++
		}
		val := l.text[start:l.pos]
		if val == "$" {
			return l.fail(start, "expected a name after $")
		}
		return Token{Kind: TokIdent, Val: val, Pos: start}
	case isOpChar(ch):
		for l.pos < len(l.text) && isOpChar(l.text[l.pos]) {
			l.pos++
		}
		op := l.text[start:l.pos]
		if !operators[op] {
			return l.fail(start, "unknown operator %q", op)
		}
		return Token{Kind: TokOp, Val: op, Pos: start}
	}
	return l.fail(start, "unexpected character %q", ch)
}

func (l *Lexer) lexString(quote byte) Token {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.text) {
		ch := l.text[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.text):
			next := l.text[l.pos+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(next)
			}
			l.pos += 2
		case ch == quote:
			l.pos++
			return Token{Kind: TokString, Val: b.String(), Pos: start}
		default:
			b.WriteByte(ch)
			l.pos++
		}
	}
	return l.fail(start, "unterminated string")
}

func (l *Lexer) lexNumber() Token {
	start := l.pos
	if l.text[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.text) && isDigit(l.text[l.pos]) {
		l.pos++
	}
	if l.pos+1 < len(l.text) && l.text[l.pos] == '.' && isDigit(l.text[l.pos+1]) {
		l.pos++
		for l.pos < len(l.text) && isDigit(l.text[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.text) && isIdentStart(l.text[l.pos]) {
		return l.fail(start, "malformed number %q", l.text[start:l.pos+1])
	}
	return Token{Kind: TokNumber, Val: l.text[start:l.pos], Pos: start}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isOpChar(c byte) bool {
	return c == '<' || c == '>' || c == '=' || c == '!'
}
