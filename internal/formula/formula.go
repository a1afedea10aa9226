// Package formula implements the small arithmetic expression language
// used by calculator fields: expr := term (('+'|'-') term)*; term := factor
// (('*'|'/') factor)*; factor := number unit | ident | '(' expr ')'.
package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/serebryakov7/wmbusmeters/internal/units"
)

// Value is an evaluated formula result: a scalar, or a measurement with a
// Unit attached.
type Value struct {
	Number  float64
	Unit    units.Unit
	HasUnit bool
}

// FieldLookup resolves an identifier (a field name including its unit
// suffix, e.g. "total_energy_consumption_kwh") to its previously computed
// value.
type FieldLookup func(name string) (Value, bool)

// Evaluate parses and evaluates expr, resolving identifiers via lookup.
// It never panics: all failures are returned as errors instead of a crash.
func Evaluate(expr string, lookup FieldLookup) (Value, error) {
	p := &parser{tokens: tokenize(expr), lookup: lookup}
	v, err := p.parseExpr()
	if err != nil {
		return Value{}, err
	}
	if p.pos != len(p.tokens) {
		return Value{}, fmt.Errorf("formula: unexpected trailing input at token %d", p.pos)
	}
	return v, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{tokOp, string(c)})
			i++
		case isDigit(c):
			j := i
			for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		default:
			j := i
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			if j == i {
				j++ // swallow an unrecognized byte rather than looping forever
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		}
	}
	return toks
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c)
}

type parser struct {
	tokens []token
	pos    int
	lookup FieldLookup
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) parseExpr() (Value, error) {
	v, err := p.parseTerm()
	if err != nil {
		return Value{}, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "+" && t.text != "-") {
			break
		}
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return Value{}, err
		}
		v, err = addOrSub(v, rhs, t.text == "-")
		if err != nil {
			return Value{}, err
		}
	}
	return v, nil
}

func (p *parser) parseTerm() (Value, error) {
	v, err := p.parseFactor()
	if err != nil {
		return Value{}, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "*" && t.text != "/") {
			break
		}
		p.pos++
		rhs, err := p.parseFactor()
		if err != nil {
			return Value{}, err
		}
		v, err = mulOrDiv(v, rhs, t.text == "/")
		if err != nil {
			return Value{}, err
		}
	}
	return v, nil
}

func (p *parser) parseFactor() (Value, error) {
	t, ok := p.peek()
	if !ok {
		return Value{}, fmt.Errorf("formula: unexpected end of expression")
	}
	switch t.kind {
	case tokLParen:
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return Value{}, err
		}
		close, ok := p.peek()
		if !ok || close.kind != tokRParen {
			return Value{}, fmt.Errorf("formula: missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case tokNumber:
		p.pos++
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("formula: bad number %q: %w", t.text, err)
		}
		if unitTok, ok := p.peek(); ok && unitTok.kind == tokIdent {
			if u, ok := parseUnitName(unitTok.text); ok {
				p.pos++
				return Value{Number: n, Unit: u, HasUnit: true}, nil
			}
		}
		return Value{Number: n}, nil
	case tokIdent:
		p.pos++
		v, ok := p.lookup(t.text)
		if !ok {
			return Value{}, fmt.Errorf("formula: unknown identifier %q", t.text)
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("formula: unexpected token %q", t.text)
	}
}

func addOrSub(a, b Value, sub bool) (Value, error) {
	if a.HasUnit != b.HasUnit {
		return Value{}, fmt.Errorf("formula: cannot add/subtract a bare number and a unit value")
	}
	if a.HasUnit && !units.CanConvert(a.Unit, b.Unit) {
		return Value{}, fmt.Errorf("formula: incompatible quantities in addition: %s vs %s", a.Unit, b.Unit)
	}
	bVal := b.Number
	if a.HasUnit && a.Unit != b.Unit {
		bVal = units.Convert(b.Number, b.Unit, a.Unit)
	}
	if sub {
		return Value{Number: a.Number - bVal, Unit: a.Unit, HasUnit: a.HasUnit}, nil
	}
	return Value{Number: a.Number + bVal, Unit: a.Unit, HasUnit: a.HasUnit}, nil
}

func mulOrDiv(a, b Value, div bool) (Value, error) {
	// Only scalar-times-measurement is supported; multiplying two
	// unit-bearing values is a formula error.
	if a.HasUnit && b.HasUnit {
		return Value{}, fmt.Errorf("formula: cannot multiply two unit-bearing values")
	}
	result := Value{}
	switch {
	case a.HasUnit:
		result.Unit, result.HasUnit = a.Unit, true
	case b.HasUnit:
		result.Unit, result.HasUnit = b.Unit, true
	}
	if div {
		if b.Number == 0 {
			return Value{}, fmt.Errorf("formula: division by zero")
		}
		result.Number = a.Number / b.Number
	} else {
		result.Number = a.Number * b.Number
	}
	return result, nil
}

var unitNames = map[string]units.Unit{
	"kwh": units.KWH, "wh": units.WH, "j": units.Joule,
	"m3": units.M3, "l": units.L,
	"kw": units.KW, "w": units.W,
	"m3h": units.M3H, "lh": units.LH,
	"c": units.C, "k": units.K,
	"h": units.Hour, "min": units.Minute, "s": units.Second, "y": units.Year,
	"hca": units.HCAUnit, "v": units.Volt, "a": units.Ampere,
	"rh": units.RH, "bar": units.Bar,
}

func parseUnitName(s string) (units.Unit, bool) {
	u, ok := unitNames[strings.ToLower(s)]
	return u, ok
}
