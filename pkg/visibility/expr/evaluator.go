package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mosaicdocs/sourcemgr/pkg/visibility"
)

// Evaluator implements applicability rules as written in field
// declarations. The grammar is deliberately small:
//
//   - truthy checks: `is_classified`
//   - negation: `!is_classified`
//   - comparisons: `project_type == "CCR"`, `priority != 3`
//   - composition: `a == "x" && b`, `a || b`, with parentheses
//
// Identifiers resolve against Context.Values; the `extras.` prefix reads
// from Context.Extras instead.
type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

func (e *Evaluator) Eval(fieldName, rule string, ctx visibility.Context) (bool, error) {
	_ = fieldName
	node, err := parse(rule)
	if err != nil {
		return false, err
	}
	if node == nil {
		return true, nil
	}
	return node.eval(ctx), nil
}

// Validate parses a rule without evaluating it, so declaration loaders can
// reject malformed rules up front.
func Validate(rule string) error {
	_, err := parse(rule)
	return err
}

func parse(rule string) (node, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil, nil
	}
	p := &parser{input: trimmed}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("visibility/expr: unexpected %q at offset %d", p.input[p.pos:], p.pos)
	}
	return n, nil
}

type node interface {
	eval(ctx visibility.Context) bool
}

type orNode struct{ left, right node }

func (n orNode) eval(ctx visibility.Context) bool { return n.left.eval(ctx) || n.right.eval(ctx) }

type andNode struct{ left, right node }

func (n andNode) eval(ctx visibility.Context) bool { return n.left.eval(ctx) && n.right.eval(ctx) }

type notNode struct{ inner node }

func (n notNode) eval(ctx visibility.Context) bool { return !n.inner.eval(ctx) }

type truthyNode struct{ ident string }

func (n truthyNode) eval(ctx visibility.Context) bool {
	value, ok := resolve(n.ident, ctx)
	return ok && truthy(value)
}

type compareNode struct {
	ident   string
	literal literal
	negated bool
}

func (n compareNode) eval(ctx visibility.Context) bool {
	value, ok := resolve(n.ident, ctx)
	equal := n.literal.matches(value, ok)
	if n.negated {
		return !equal
	}
	return equal
}

type literalKind int

const (
	literalString literalKind = iota
	literalNumber
	literalBool
	literalNull
)

type literal struct {
	kind literalKind
	str  string
	num  float64
	b    bool
}

func (l literal) matches(value any, present bool) bool {
	switch l.kind {
	case literalNull:
		return !present || value == nil
	case literalBool:
		return present && truthy(value) == l.b
	case literalNumber:
		if !present {
			return false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(value)), 64)
		return err == nil && f == l.num
	default:
		return present && fmt.Sprint(value) == l.str
	}
}

func resolve(ident string, ctx visibility.Context) (any, bool) {
	if name, ok := strings.CutPrefix(ident, "extras."); ok {
		value, found := ctx.Extras[name]
		return value, found
	}
	value, found := ctx.Values[ident]
	return value, found
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s != "" && s != "false" && s != "0" && s != "no"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.consumeOp("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.consumeOp("&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '!' && !strings.HasPrefix(p.input[p.pos:], "!=") {
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("visibility/expr: unexpected end of rule")
	}

	if p.input[p.pos] == '(' {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, fmt.Errorf("visibility/expr: missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	}

	ident, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	negated := false
	switch {
	case strings.HasPrefix(p.input[p.pos:], "=="):
		p.pos += 2
	case strings.HasPrefix(p.input[p.pos:], "!="):
		p.pos += 2
		negated = true
	case strings.HasPrefix(p.input[p.pos:], "="):
		return nil, fmt.Errorf("visibility/expr: unexpected '='; use '=='")
	default:
		return truthyNode{ident: ident}, nil
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return compareNode{ident: ident, literal: lit, negated: negated}, nil
}

func (p *parser) parseIdent() (string, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("visibility/expr: expected identifier at offset %d", start)
	}
	return p.input[start:p.pos], nil
}

func (p *parser) parseLiteral() (literal, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return literal{}, fmt.Errorf("visibility/expr: expected value after comparison")
	}

	switch ch := p.input[p.pos]; {
	case ch == '"' || ch == '\'':
		return p.parseQuoted(ch)
	case ch == '-' || (ch >= '0' && ch <= '9'):
		start := p.pos
		p.pos++
		for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return literal{}, fmt.Errorf("visibility/expr: invalid number %q", p.input[start:p.pos])
		}
		return literal{kind: literalNumber, num: f}, nil
	default:
		word, err := p.parseIdent()
		if err != nil {
			return literal{}, err
		}
		switch word {
		case "true":
			return literal{kind: literalBool, b: true}, nil
		case "false":
			return literal{kind: literalBool, b: false}, nil
		case "null", "nil":
			return literal{kind: literalNull}, nil
		default:
			// Bare words compare as strings, so `status == draft` works.
			return literal{kind: literalString, str: word}, nil
		}
	}
}

func (p *parser) parseQuoted(quote byte) (literal, error) {
	p.pos++
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.input) {
		return literal{}, fmt.Errorf("visibility/expr: unterminated string")
	}
	value := p.input[start:p.pos]
	p.pos++
	return literal{kind: literalString, str: value}, nil
}

func (p *parser) consumeOp(op string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], op) {
		p.pos += len(op)
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch == '.' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
