package marker

import "fmt"

// parser is a recursive-descent parser over the lexed tokens. Grammar:
//
//	expr   := term ("or" term)*
//	term   := atom ("and" atom)*
//	atom   := "(" expr ")" | comparison
//	comparison := value op value
//	value  := variable | string
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) atEnd() bool {
	return p.peek().kind == tokEOF
}

func (p *parser) parseOr() (node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for p.peek().kind == tokIdent && p.peek().text == "or" {
		p.next()
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return orNode{operands: operands}, nil
}

func (p *parser) parseAnd() (node, error) {
	first, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for p.peek().kind == tokIdent && p.peek().text == "and" {
		p.next()
		n, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return andNode{operands: operands}, nil
}

func (p *parser) parseAtom() (node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected ')', got %q", p.peek().text)
		}
		p.next()
		return n, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	op, err := p.parseCmpOp()
	if err != nil {
		return nil, err
	}

	right, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	return cmpNode{left: left, op: op, right: right}, nil
}

func (p *parser) parseCmpOp() (string, error) {
	t := p.peek()
	switch {
	case t.kind == tokOp:
		p.next()
		return t.text, nil
	case t.kind == tokIdent && t.text == "in":
		p.next()
		return "in", nil
	case t.kind == tokIdent && t.text == "not":
		p.next()
		if p.peek().kind != tokIdent || p.peek().text != "in" {
			return "", fmt.Errorf("expected 'in' after 'not', got %q", p.peek().text)
		}
		p.next()
		return "not in", nil
	}
	return "", fmt.Errorf("expected comparison operator, got %q", t.text)
}

func (p *parser) parseValue() (value, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return value{text: t.text, isLiteral: true}, nil
	case tokIdent:
		if t.text == "and" || t.text == "or" || t.text == "in" || t.text == "not" {
			return value{}, fmt.Errorf("unexpected keyword %q", t.text)
		}
		return value{text: t.text}, nil
	}
	return value{}, fmt.Errorf("expected variable or string, got %q", t.text)
}
