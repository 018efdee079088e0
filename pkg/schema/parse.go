package schema

import (
	"fmt"
	"strings"
)

// Parse converts a format hint into a Type.
//
//	hint   = scalar | object | list
//	scalar = "int" | "float" | "str" | "string" | "bool"
//	object = "{" key ":" hint { "," key ":" hint } "}"
//	list   = "list[" hint "]" | "[" hint "]"
func Parse(hint string) (Type, error) {
	p := &parser{src: hint}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("format hint %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) parseType() (Type, error) {
	switch {
	case p.consume("{"):
		return p.parseObject()
	case p.consume("["):
		return p.parseListBody()
	}

	name := p.ident()
	switch strings.ToLower(name) {
	case "int", "integer":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "str", "string":
		return String(), nil
	case "bool", "boolean":
		return Bool(), nil
	case "list":
		if !p.consume("[") {
			return nil, p.errorf("expected [ after list")
		}
		return p.parseListBody()
	case "":
		return nil, p.errorf("expected a type")
	default:
		return nil, p.errorf("unsupported type %q", name)
	}
}

func (p *parser) parseListBody() (Type, error) {
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.consume("]") {
		return nil, p.errorf("expected ]")
	}
	return List(elem), nil
}

func (p *parser) parseObject() (Type, error) {
	var fields []Field
	seen := map[string]bool{}
	for {
		key := p.ident()
		if key == "" {
			return nil, p.errorf("expected a field name")
		}
		if seen[key] {
			return nil, p.errorf("duplicate field %q", key)
		}
		seen[key] = true
		if !p.consume(":") {
			return nil, p.errorf("expected : after %q", key)
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: key, Type: t})

		if p.consume(",") {
			continue
		}
		if p.consume("}") {
			return Object(fields...), nil
		}
		return nil, p.errorf("expected , or }")
	}
}
