package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jward/morpheus/internal/syntax"
)

type queryParser struct {
	input string
	pos   int
	lang  *syntax.Language
	q     *Query

	// predicates collected while parsing the current top-level pattern
	preds []predicate
}

func (p *queryParser) parse() error {
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil
		}
		p.preds = nil
		root, err := p.parseStep()
		if err != nil {
			return err
		}
		p.q.patterns = append(p.q.patterns, &pattern{root: root, predicates: p.preds})
	}
}

func (p *queryParser) errorf(format string, args ...any) error {
	line := 1 + strings.Count(p.input[:min(p.pos, len(p.input))], "\n")
	return fmt.Errorf("query: line %d: %s", line, fmt.Sprintf(format, args...))
}

// parseStep parses one pattern element and any capture that follows it.
func (p *queryParser) parseStep() (*step, error) {
	var s *step
	var err error
	switch c := p.peek(); {
	case c == '(':
		s, err = p.parseNode()
	case c == '[':
		s, err = p.parseAlternation()
	case c == '"':
		s, err = p.parseToken()
	case c == '_':
		p.pos++
		s = &step{wildcard: true, capture: -1}
	default:
		return nil, p.errorf("unexpected %q", string(c))
	}
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == '@' {
		name, err := p.readCapture()
		if err != nil {
			return nil, err
		}
		s.capture = p.ensureCapture(name)
	}
	return s, nil
}

func (p *queryParser) parseNode() (*step, error) {
	p.pos++ // (
	p.skipSpace()
	switch p.peek() {
	case '#':
		return nil, p.errorf("predicate outside of a pattern")
	case '(', '[', '"':
		return p.parseGroup()
	}
	name, err := p.readIdentifier()
	if err != nil {
		return nil, err
	}
	s := &step{capture: -1}
	switch {
	case name == "_":
		s.wildcard, s.named = true, true
	case p.lang.HasNodeType(name):
		s.kind = name
	default:
		return nil, p.errorf("unknown node type %q", name)
	}

	for {
		p.skipSpace()
		switch c := p.peek(); {
		case c == 0:
			return nil, p.errorf("unterminated pattern (%s", name)
		case c == ')':
			p.pos++
			return s, nil
		case c == '(' && p.peekAt(1) == '#':
			if err := p.parsePredicate(); err != nil {
				return nil, err
			}
		case c == '(' || c == '[' || c == '"' || c == '_':
			child, err := p.parseStep()
			if err != nil {
				return nil, err
			}
			s.children = append(s.children, child)
		case isIdentByte(c):
			field, err := p.readIdentifier()
			if err != nil {
				return nil, err
			}
			p.skipSpace()
			if p.peek() != ':' {
				return nil, p.errorf("unexpected identifier %q", field)
			}
			p.pos++
			if !p.lang.HasField(field) {
				return nil, p.errorf("unknown field %q", field)
			}
			p.skipSpace()
			child, err := p.parseStep()
			if err != nil {
				return nil, err
			}
			child.field = field
			s.children = append(s.children, child)
		default:
			return nil, p.errorf("unexpected %q in pattern (%s", string(c), name)
		}
	}
}

// parseGroup parses ((pattern) predicates...), the form used to attach
// predicates to a pattern.
func (p *queryParser) parseGroup() (*step, error) {
	inner, err := p.parseStep()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		switch c := p.peek(); {
		case c == 0:
			return nil, p.errorf("unterminated group")
		case c == ')':
			p.pos++
			return inner, nil
		case c == '(' && p.peekAt(1) == '#':
			if err := p.parsePredicate(); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("sibling sequences are not supported")
		}
	}
}

func (p *queryParser) parseAlternation() (*step, error) {
	p.pos++ // [
	s := &step{capture: -1}
	for {
		p.skipSpace()
		switch p.peek() {
		case 0:
			return nil, p.errorf("unterminated alternation")
		case ']':
			p.pos++
			if len(s.alts) == 0 {
				return nil, p.errorf("empty alternation")
			}
			return s, nil
		}
		alt, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		if alt.capture >= 0 || len(alt.children) > 0 {
			return nil, p.errorf("alternation branches must be plain node types or tokens")
		}
		s.alts = append(s.alts, alt)
	}
}

func (p *queryParser) parseToken() (*step, error) {
	text, err := p.readString()
	if err != nil {
		return nil, err
	}
	if !p.lang.HasToken(text) {
		return nil, p.errorf("unknown token %q", text)
	}
	return &step{text: text, capture: -1}, nil
}

// parsePredicate parses (#op? @capture args...).
func (p *queryParser) parsePredicate() error {
	p.pos += 2 // (#
	op, err := p.readIdentifier()
	if err != nil {
		return err
	}
	if p.peek() == '?' {
		p.pos++
		op += "?"
	}
	pr := predicate{op: op, other: -1}

	var args []string
	var captureArgs []bool
loop:
	for {
		p.skipSpace()
		switch c := p.peek(); c {
		case 0:
			return p.errorf("unterminated predicate #%s", op)
		case ')':
			p.pos++
			break loop
		case '@':
			name, err := p.readCapture()
			if err != nil {
				return err
			}
			args = append(args, name)
			captureArgs = append(captureArgs, true)
		case '"':
			s, err := p.readString()
			if err != nil {
				return err
			}
			args = append(args, s)
			captureArgs = append(captureArgs, false)
		default:
			return p.errorf("unexpected %q in predicate #%s", string(c), op)
		}
	}
	if len(args) < 2 || !captureArgs[0] {
		return p.errorf("#%s needs a capture and at least one argument", op)
	}
	pr.capture = p.ensureCapture(args[0])
	switch op {
	case "eq?", "not-eq?":
		if len(args) != 2 {
			return p.errorf("#%s takes exactly two arguments", op)
		}
		if captureArgs[1] {
			pr.other = p.ensureCapture(args[1])
		} else {
			pr.values = args[1:]
		}
	case "match?", "not-match?":
		if len(args) != 2 || captureArgs[1] {
			return p.errorf("#%s takes a capture and a pattern", op)
		}
		re, err := regexp.Compile(args[1])
		if err != nil {
			return p.errorf("#%s: %v", op, err)
		}
		pr.re = re
	case "any-of?":
		for i, a := range args[1:] {
			if captureArgs[i+1] {
				return p.errorf("#any-of? takes string arguments")
			}
			pr.values = append(pr.values, a)
		}
	default:
		return p.errorf("unknown predicate #%s", op)
	}
	p.preds = append(p.preds, pr)
	return nil
}

func (p *queryParser) peek() byte { return p.peekAt(0) }

func (p *queryParser) peekAt(off int) byte {
	if p.pos+off >= len(p.input) {
		return 0
	}
	return p.input[p.pos+off]
}

func (p *queryParser) readIdentifier() (string, error) {
	start := p.pos
	for p.pos < len(p.input) && (isIdentByte(p.input[p.pos]) || p.input[p.pos] == '.' || p.input[p.pos] == '-') {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected identifier")
	}
	return p.input[start:p.pos], nil
}

func (p *queryParser) readCapture() (string, error) {
	p.pos++ // @
	name, err := p.readIdentifier()
	if err != nil {
		return "", p.errorf("expected capture name after '@'")
	}
	return name, nil
}

func (p *queryParser) readString() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.input):
			p.pos++
			switch p.input[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(p.input[p.pos])
			}
		case c == '"':
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

func (p *queryParser) skipSpace() {
	for p.pos < len(p.input) {
		switch c := p.input[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == ';':
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *queryParser) ensureCapture(name string) int {
	for i, c := range p.q.captures {
		if c == name {
			return i
		}
	}
	p.q.captures = append(p.q.captures, name)
	return len(p.q.captures) - 1
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
