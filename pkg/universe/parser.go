package universe

import (
	"strconv"
	"strings"
	"text/scanner"

	"github.com/aruna-project/aruna-server/pkg/arerr"
)

// Parse compiles a filter expression of the grammar:
//
//	expr   := term (("AND" | "OR") term)*
//	term   := field "=" value | field "IN" "(" value ("," value)* ")" |
//	          field "<" value | field ">" value
//	field  := one of the whitelisted Field names (labels.key etc. written
//	          with a literal dot)
//	value  := a double-quoted string literal
//
// into an Expr tree, rejecting any field not in the whitelist — this is the
// only entry point for filter text the request layer accepts; raw numeric
// variant filters are never part of the grammar (Open Question (c)).
func Parse(input string) (Expr, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(input))
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanInts
	p.next()

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, arerr.NewInvalid("universe: unexpected trailing input %q", p.text)
	}
	return expr, nil
}

type parser struct {
	s    scanner.Scanner
	tok  rune
	text string
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok == scanner.Ident && (strings.EqualFold(p.text, "AND") || strings.EqualFold(p.text, "OR")) {
		isAnd := strings.EqualFold(p.text, "AND")
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if isAnd {
			left = And(left, right)
		} else {
			left = Or(left, right)
		}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	if !whitelist[field] {
		return nil, arerr.NewInvalid("universe: field %q is not filterable", field)
	}

	switch {
	case p.tok == '=':
		p.next()
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Eq(field, val), nil
	case p.tok == '<':
		p.next()
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Lt(field, val), nil
	case p.tok == '>':
		p.next()
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Gt(field, val), nil
	case p.tok == scanner.Ident && strings.EqualFold(p.text, "IN"):
		p.next()
		if p.tok != '(' {
			return nil, arerr.NewInvalid("universe: expected '(' after IN")
		}
		p.next()
		var values []string
		for {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.tok == ',' {
				p.next()
				continue
			}
			break
		}
		if p.tok != ')' {
			return nil, arerr.NewInvalid("universe: expected ')' to close IN list")
		}
		p.next()
		return In(field, values...), nil
	default:
		return nil, arerr.NewInvalid("universe: expected operator after field %q, got %q", field, p.text)
	}
}

// parseField accepts identifier sequences joined by '.', e.g. labels.key.
func (p *parser) parseField() (Field, error) {
	if p.tok != scanner.Ident {
		return "", arerr.NewInvalid("universe: expected field name, got %q", p.text)
	}
	name := p.text
	p.next()
	for p.tok == '.' {
		p.next()
		if p.tok != scanner.Ident {
			return "", arerr.NewInvalid("universe: expected identifier after '.'")
		}
		name = name + "." + p.text
		p.next()
	}
	return Field(name), nil
}

func (p *parser) parseValue() (string, error) {
	if p.tok != scanner.String {
		return "", arerr.NewInvalid("universe: expected quoted string value, got %q", p.text)
	}
	v, err := unquote(p.text)
	if err != nil {
		return "", arerr.NewInvalid("universe: malformed string literal %q: %v", p.text, err)
	}
	p.next()
	return v, nil
}

func unquote(s string) (string, error) {
	return strconv.Unquote(s)
}
