package memdriver

import (
	"cmp"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// predicate is a parsed SQL-subset filter.
//
// Grammar:
//
//	expr       := and (OR and)*
//	and        := unary (AND unary)*
//	unary      := NOT unary | primary
//	primary    := '(' expr ')' | comparison
//	comparison := operand (cmpOp operand | IS [NOT] NULL)
//	operand    := column | literal
//
// cmpOp is one of = != <> < <= > >=. Literals are numbers,
// single-quoted strings ('' escapes a quote), TRUE, FALSE and NULL.
// Comparisons touching NULL are false; IS NULL is the way to test for
// null. NOT flips the two-valued result.
type predicate struct {
	root boolNode
	cols []string
}

func (p *predicate) columns() []string { return p.cols }

func (p *predicate) eval(get func(string) (any, error)) (bool, error) {
	return p.root.eval(get)
}

func parsePredicate(input string) (*predicate, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty predicate")
	}

	p := &parser{lex: &lexer{input: input}, cols: make(map[string]struct{})}
	if err := p.advance(); err != nil {
		return nil, err
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s after predicate", p.tok)
	}

	cols := make([]string, 0, len(p.cols))
	for c := range p.cols {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return &predicate{root: root, cols: cols}, nil
}

type boolNode interface {
	eval(get func(string) (any, error)) (bool, error)
}

type binaryNode struct {
	or          bool
	left, right boolNode
}

func (n *binaryNode) eval(get func(string) (any, error)) (bool, error) {
	l, err := n.left.eval(get)
	if err != nil {
		return false, err
	}
	if n.or && l {
		return true, nil
	}
	if !n.or && !l {
		return false, nil
	}
	return n.right.eval(get)
}

type notNode struct {
	inner boolNode
}

func (n *notNode) eval(get func(string) (any, error)) (bool, error) {
	v, err := n.inner.eval(get)
	if err != nil {
		return false, err
	}
	return !v, nil
}

type cmpNode struct {
	op          string
	left, right operand
}

func (n *cmpNode) eval(get func(string) (any, error)) (bool, error) {
	l, err := n.left.value(get)
	if err != nil {
		return false, err
	}
	r, err := n.right.value(get)
	if err != nil {
		return false, err
	}
	if l == nil || r == nil {
		return false, nil
	}
	return compareValues(n.op, l, r)
}

type nullNode struct {
	col    string
	negate bool
}

func (n *nullNode) eval(get func(string) (any, error)) (bool, error) {
	v, err := get(n.col)
	if err != nil {
		return false, err
	}
	isNull := v == nil
	if n.negate {
		return !isNull, nil
	}
	return isNull, nil
}

type operand struct {
	isCol bool
	col   string
	lit   any
}

func (o operand) value(get func(string) (any, error)) (any, error) {
	if o.isCol {
		return get(o.col)
	}
	return o.lit, nil
}

func compareValues(op string, l, r any) (bool, error) {
	switch lv := l.(type) {
	case int64:
		switch rv := r.(type) {
		case int64:
			return compareOrdered(op, lv, rv)
		case float64:
			return compareOrdered(op, float64(lv), rv)
		}
	case float64:
		switch rv := r.(type) {
		case int64:
			return compareOrdered(op, lv, float64(rv))
		case float64:
			return compareOrdered(op, lv, rv)
		}
	case string:
		if rv, ok := r.(string); ok {
			return compareOrdered(op, lv, rv)
		}
	case bool:
		if rv, ok := r.(bool); ok {
			switch op {
			case "=":
				return lv == rv, nil
			case "!=":
				return lv != rv, nil
			default:
				return false, fmt.Errorf("operator %s not supported for booleans", op)
			}
		}
	}
	return false, fmt.Errorf("cannot compare %T with %T", l, r)
}

func compareOrdered[T cmp.Ordered](op string, l, r T) (bool, error) {
	switch op {
	case "=":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	default:
		return false, fmt.Errorf("unknown operator %s", op)
	}
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of predicate"
	}
	return fmt.Sprintf("%q", t.text)
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
			continue
		}
		break
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF}, nil
	}

	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}, nil
	case c == '=':
		l.pos++
		return token{kind: tokOp, text: "="}, nil
	case c == '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokOp, text: "!="}, nil
		}
		return token{}, fmt.Errorf("unexpected character '!' in predicate")
	case c == '<':
		if l.pos+1 < len(l.input) {
			switch l.input[l.pos+1] {
			case '=':
				l.pos += 2
				return token{kind: tokOp, text: "<="}, nil
			case '>':
				l.pos += 2
				return token{kind: tokOp, text: "!="}, nil
			}
		}
		l.pos++
		return token{kind: tokOp, text: "<"}, nil
	case c == '>':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokOp, text: ">="}, nil
		}
		l.pos++
		return token{kind: tokOp, text: ">"}, nil
	case c == '\'':
		return l.scanString()
	case c == '`':
		end := strings.IndexByte(l.input[l.pos+1:], '`')
		if end < 0 {
			return token{}, fmt.Errorf("unterminated quoted identifier in predicate")
		}
		text := l.input[l.pos+1 : l.pos+1+end]
		l.pos += end + 2
		return token{kind: tokIdent, text: text}, nil
	case c == '-' || isDigit(c):
		return l.scanNumber()
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.input[start:l.pos]}, nil
	default:
		return token{}, fmt.Errorf("unexpected character %q in predicate", string(c))
	}
}

func (l *lexer) scanString() (token, error) {
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokString, text: sb.String()}, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return token{}, fmt.Errorf("unterminated string literal in predicate")
}

func (l *lexer) scanNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			return token{}, fmt.Errorf("unexpected character '-' in predicate")
		}
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			return token{}, fmt.Errorf("malformed number in predicate")
		}
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return token{kind: tokNumber, text: l.input[start:l.pos]}, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

type parser struct {
	lex  *lexer
	tok  token
	cols map[string]struct{}
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, kw)
}

func (p *parser) parseOr() (boolNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{or: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (boolNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (boolNode, error) {
	if p.isKeyword("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (boolNode, error) {
	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("expected ) but got %s", p.tok)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (boolNode, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.isKeyword("IS") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		negate := false
		if p.isKeyword("NOT") {
			negate = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if !p.isKeyword("NULL") {
			return nil, fmt.Errorf("expected NULL but got %s", p.tok)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !left.isCol {
			return nil, fmt.Errorf("IS NULL requires a column")
		}
		return &nullNode{col: left.col, negate: negate}, nil
	}

	if p.tok.kind != tokOp {
		return nil, fmt.Errorf("expected comparison operator but got %s", p.tok)
	}
	op := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &cmpNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseOperand() (operand, error) {
	switch p.tok.kind {
	case tokIdent:
		switch {
		case p.isKeyword("TRUE"):
			if err := p.advance(); err != nil {
				return operand{}, err
			}
			return operand{lit: true}, nil
		case p.isKeyword("FALSE"):
			if err := p.advance(); err != nil {
				return operand{}, err
			}
			return operand{lit: false}, nil
		case p.isKeyword("NULL"):
			if err := p.advance(); err != nil {
				return operand{}, err
			}
			return operand{}, nil
		default:
			col := p.tok.text
			if err := p.advance(); err != nil {
				return operand{}, err
			}
			p.cols[col] = struct{}{}
			return operand{isCol: true, col: col}, nil
		}
	case tokString:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return operand{}, err
		}
		return operand{lit: text}, nil
	case tokNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return operand{}, err
		}
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return operand{lit: n}, nil
		}
		x, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return operand{}, fmt.Errorf("malformed number %s in predicate", text)
		}
		return operand{lit: x}, nil
	default:
		return operand{}, fmt.Errorf("expected column or literal but got %s", p.tok)
	}
}
