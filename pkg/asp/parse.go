package asp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports where a ground term could not be parsed.
type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// ParseFact parses a single ground term such as
// scene_performs_function(0,introduce_character).
func ParseFact(s string) (Fact, error) {
	p := &parser{in: s}
	p.skipSpace()
	f, err := p.term()
	if err != nil {
		return Fact{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Fact{}, p.errorf("unexpected %q after term", p.peek())
	}
	return f, nil
}

// ParseModel parses the whitespace-separated symbols of one answer line.
func ParseModel(line string) ([]Fact, error) {
	p := &parser{in: line}
	var facts []Fact
	for {
		p.skipSpace()
		if p.eof() {
			return facts, nil
		}
		f, err := p.term()
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
		if !p.eof() && !isSpace(p.peek()) {
			return nil, p.errorf("expected space between symbols, got %q", p.peek())
		}
	}
}

// ParseSymbols parses a list of individually rendered symbols, such as the
// Value array of clingo's JSON output.
func ParseSymbols(values []string) ([]Fact, error) {
	facts := make([]Fact, 0, len(values))
	var errs []error
	for _, v := range values {
		f, err := ParseFact(v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		facts = append(facts, f)
	}
	return facts, errors.Join(errs...)
}

type parser struct {
	in  string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.in) }

func (p *parser) peek() byte { return p.in[p.pos] }

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Input: p.in, Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) term() (Fact, error) {
	if p.eof() {
		return Fact{}, p.errorf("unexpected end of input")
	}
	c := p.peek()
	switch {
	case c == '"':
		return p.text()
	case c == '-' || isDigit(c):
		if c == '-' && p.pos+1 < len(p.in) && isIdentStart(p.in[p.pos+1]) {
			// classical negation, -p(1)
			p.pos++
			f, err := p.symbol()
			if err != nil {
				return Fact{}, err
			}
			return Tuple("-"+f.Name(), f.args...), nil
		}
		return p.number()
	case c == '#':
		start := p.pos
		p.pos++
		for !p.eof() && isIdentChar(p.peek()) {
			p.pos++
		}
		name := p.in[start:p.pos]
		if name != "#inf" && name != "#sup" {
			return Fact{}, &SyntaxError{Input: p.in, Offset: start, Msg: fmt.Sprintf("unknown constant %q", name)}
		}
		return Atom(name), nil
	case c == '(':
		return p.tuple("")
	case isIdentStart(c):
		return p.symbol()
	}
	return Fact{}, p.errorf("unexpected %q", c)
}

func (p *parser) number() (Fact, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
	}
	n, err := strconv.Atoi(p.in[start:p.pos])
	if err != nil {
		return Fact{}, &SyntaxError{Input: p.in, Offset: start, Msg: "invalid number"}
	}
	return Number(n), nil
}

func (p *parser) text() (Fact, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		switch c {
		case '"':
			return Text(sb.String()), nil
		case '\\':
			if p.eof() {
				return Fact{}, &SyntaxError{Input: p.in, Offset: start, Msg: "unterminated string"}
			}
			e := p.peek()
			p.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case '"', '\\':
				sb.WriteByte(e)
			default:
				return Fact{}, p.errorf("unknown escape \\%c", e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return Fact{}, &SyntaxError{Input: p.in, Offset: start, Msg: "unterminated string"}
}

func (p *parser) symbol() (Fact, error) {
	start := p.pos
	for !p.eof() && isIdentChar(p.peek()) {
		p.pos++
	}
	name := p.in[start:p.pos]
	if !p.eof() && p.peek() == '(' {
		return p.tuple(name)
	}
	return Atom(name), nil
}

func (p *parser) tuple(name string) (Fact, error) {
	p.pos++ // (
	var args []Fact
	trailing := false
	for {
		p.skipSpace()
		if p.eof() {
			return Fact{}, p.errorf("unterminated argument list")
		}
		if p.peek() == ')' {
			p.pos++
			break
		}
		if len(args) > 0 && !trailing {
			return Fact{}, p.errorf("expected ',' or ')', got %q", p.peek())
		}
		arg, err := p.term()
		if err != nil {
			return Fact{}, err
		}
		args = append(args, arg)
		trailing = false
		p.skipSpace()
		if !p.eof() && p.peek() == ',' {
			p.pos++
			trailing = true
		}
	}
	if name == "" && len(args) == 1 && !trailing {
		return args[0], nil
	}
	if name != "" && len(args) == 0 {
		return Fact{kind: KindTuple, str: name}, nil
	}
	return Fact{kind: KindTuple, str: name, args: args}, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool { return c == '_' || c >= 'a' && c <= 'z' }

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c >= 'A' && c <= 'Z' || isDigit(c) || c == '\''
}
