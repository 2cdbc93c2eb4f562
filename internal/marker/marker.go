// Package marker parses and evaluates environment markers, the conditional
// expressions that restrict when a requirement applies (PEP 508), e.g.
//
//	python_version >= "3.10" and platform_system != "Windows"
package marker

import (
	"fmt"
	"strings"

	"github.com/frederic-klein/yarp/internal/pep440"
)

// Marker is a parsed marker expression.
type Marker struct {
	root node
	text string
}

type node interface {
	eval(env Environment) (bool, error)
	render(b *strings.Builder)
}

// orNode and andNode hold two or more operands in source order.
type orNode struct{ operands []node }
type andNode struct{ operands []node }

// cmpNode is a single comparison. Either side is a variable or a quoted
// string literal.
type cmpNode struct {
	left  value
	op    string
	right value
}

type value struct {
	text      string
	isLiteral bool
}

// Parse parses a marker expression.
func Parse(s string) (*Marker, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("marker %q: unexpected %q", s, p.peek().text)
	}
	return &Marker{root: root, text: strings.TrimSpace(s)}, nil
}

// Eval evaluates the marker against env.
func (m *Marker) Eval(env Environment) (bool, error) {
	if m == nil {
		return true, nil
	}
	return m.root.eval(env)
}

// String renders the marker in normalized form.
func (m *Marker) String() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	m.root.render(&b)
	return b.String()
}

func (n orNode) eval(env Environment) (bool, error) {
	for _, op := range n.operands {
		ok, err := op.eval(env)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (n andNode) eval(env Environment) (bool, error) {
	for _, op := range n.operands {
		ok, err := op.eval(env)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (n cmpNode) eval(env Environment) (bool, error) {
	left, err := n.left.resolve(env)
	if err != nil {
		return false, err
	}
	right, err := n.right.resolve(env)
	if err != nil {
		return false, err
	}

	switch n.op {
	case "in":
		return strings.Contains(right, left), nil
	case "not in":
		return !strings.Contains(right, left), nil
	case "===":
		return left == right, nil
	case "~=":
		specs, err := pep440.ParseSpecifiers("~=" + right)
		if err != nil {
			return false, fmt.Errorf("marker %q: %w", n.String(), err)
		}
		v, err := pep440.Parse(left)
		if err != nil {
			return false, fmt.Errorf("marker %q: %w", n.String(), err)
		}
		return specs.Match(v)
	}

	// Version ordering when both sides parse as versions, string
	// comparison otherwise.
	if pep440.IsValid(left) && pep440.IsValid(right) {
		c, err := pep440.CompareStrings(left, right)
		if err != nil {
			return false, err
		}
		return cmpResult(n.op, c), nil
	}
	return cmpResult(n.op, strings.Compare(left, right)), nil
}

func cmpResult(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

func (v value) resolve(env Environment) (string, error) {
	if v.isLiteral {
		return v.text, nil
	}
	return env.Lookup(v.text)
}

func (n orNode) render(b *strings.Builder) {
	for i, op := range n.operands {
		if i > 0 {
			b.WriteString(" or ")
		}
		op.render(b)
	}
}

func (n andNode) render(b *strings.Builder) {
	for i, op := range n.operands {
		if i > 0 {
			b.WriteString(" and ")
		}
		if or, ok := op.(orNode); ok {
			b.WriteByte('(')
			or.render(b)
			b.WriteByte(')')
		} else {
			op.render(b)
		}
	}
}

func (n cmpNode) render(b *strings.Builder) {
	n.left.render(b)
	b.WriteByte(' ')
	b.WriteString(n.op)
	b.WriteByte(' ')
	n.right.render(b)
}

func (n cmpNode) String() string {
	var b strings.Builder
	n.render(&b)
	return b.String()
}

func (v value) render(b *strings.Builder) {
	if v.isLiteral {
		b.WriteByte('"')
		b.WriteString(v.text)
		b.WriteByte('"')
	} else {
		b.WriteString(v.text)
	}
}
