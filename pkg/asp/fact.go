// Package asp translates answer-set solver output into typed ground facts
// and drives the clingo solver.
package asp

import (
	"slices"
	"strconv"
	"strings"
)

type Kind int

const (
	KindNumber Kind = iota
	KindText
	KindAtom
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "string"
	case KindAtom:
		return "atom"
	case KindTuple:
		return "tuple"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Fact is one ground value shown by a solver model. Values are immutable;
// construct them with Number, Text, Atom or Tuple.
type Fact struct {
	kind Kind
	num  int
	str  string
	args []Fact
}

func Number(n int) Fact { return Fact{kind: KindNumber, num: n} }

func Text(s string) Fact { return Fact{kind: KindText, str: s} }

func Atom(name string) Fact { return Fact{kind: KindAtom, str: name} }

// Tuple builds a function application. A tuple without arguments is an atom.
func Tuple(name string, args ...Fact) Fact {
	if len(args) == 0 && name != "" {
		return Atom(name)
	}
	return Fact{kind: KindTuple, str: name, args: slices.Clone(args)}
}

func (f Fact) Kind() Kind { return f.kind }

// Int returns the value of a number fact.
func (f Fact) Int() (int, bool) {
	return f.num, f.kind == KindNumber
}

// Str returns the value of a string fact.
func (f Fact) Str() (string, bool) {
	return f.str, f.kind == KindText
}

// Name returns the symbol name of an atom or tuple.
func (f Fact) Name() string {
	if f.kind == KindAtom || f.kind == KindTuple {
		return f.str
	}
	return ""
}

func (f Fact) Arity() int { return len(f.args) }

// Arg returns the i-th tuple argument.
func (f Fact) Arg(i int) (Fact, bool) {
	if i < 0 || i >= len(f.args) {
		return Fact{}, false
	}
	return f.args[i], true
}

func (f Fact) Args() []Fact { return slices.Clone(f.args) }

func (f Fact) Equal(g Fact) bool {
	if f.kind != g.kind || f.num != g.num || f.str != g.str || len(f.args) != len(g.args) {
		return false
	}
	for i := range f.args {
		if !f.args[i].Equal(g.args[i]) {
			return false
		}
	}
	return true
}

// String renders the fact in clingo syntax; ParseFact(f.String()) is equal to f.
func (f Fact) String() string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

func (f Fact) write(sb *strings.Builder) {
	switch f.kind {
	case KindNumber:
		sb.WriteString(strconv.Itoa(f.num))
	case KindText:
		sb.WriteByte('"')
		for _, r := range f.str {
			switch r {
			case '"':
				sb.WriteString(`\"`)
			case '\\':
				sb.WriteString(`\\`)
			case '\n':
				sb.WriteString(`\n`)
			default:
				sb.WriteRune(r)
			}
		}
		sb.WriteByte('"')
	case KindAtom:
		sb.WriteString(f.str)
	case KindTuple:
		sb.WriteString(f.str)
		sb.WriteByte('(')
		for i, a := range f.args {
			if i > 0 {
				sb.WriteByte(',')
			}
			a.write(sb)
		}
		if f.str == "" && len(f.args) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	}
}

// Model is the set of facts shown by one solver model, numbered from 1 in
// enumeration order.
type Model struct {
	Number int
	Facts  []Fact
}
