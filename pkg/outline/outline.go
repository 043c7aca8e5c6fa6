// Package outline compiles solver models into ordered scene-label sequences
// and stores them in a line-oriented interchange format.
package outline

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"plotweave/pkg/asp"
)

// TagDelimiter joins the tags of one scene into a composite label, e.g.
// "introduce_character:cold". It is the only combination rule.
const TagDelimiter = ":"

type RelationKind int

const (
	Function RelationKind = iota
	Modifier
)

func (k RelationKind) String() string {
	if k == Function {
		return "function"
	}
	return "modifier"
}

// Relation is a solver predicate that tags a scene, shaped name(Index, tag).
type Relation struct {
	Name string
	Kind RelationKind
}

var DefaultRelations = []Relation{
	{Name: "scene_performs_function", Kind: Function},
	{Name: "scene_introduce_personality", Kind: Modifier},
	{Name: "scene_define_obstacle_type", Kind: Modifier},
}

// Label is one compiled scene label: a bare tag or tags joined by TagDelimiter.
type Label string

// JoinTags combines tags in the given order.
func JoinTags(tags ...string) Label {
	return Label(strings.Join(tags, TagDelimiter))
}

func (l Label) Tags() []string {
	if l == "" {
		return nil
	}
	return strings.Split(string(l), TagDelimiter)
}

// Function returns the leading tag, which names the scene's narrative function.
func (l Label) Function() string {
	fn, _, _ := strings.Cut(string(l), TagDelimiter)
	return fn
}

func (l Label) Composite() bool {
	return strings.Contains(string(l), TagDelimiter)
}

// Valid reports whether every tag of the label is a valid tag.
func (l Label) Valid() bool {
	tags := l.Tags()
	if len(tags) == 0 {
		return false
	}
	for _, t := range tags {
		if !ValidTag(t) {
			return false
		}
	}
	return true
}

// ValidTag reports whether s is a clingo constant: a lowercase letter or
// underscore followed by letters, digits, underscores or primes.
func ValidTag(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c >= 'a' && c <= 'z':
		case i > 0 && (c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '\''):
		default:
			return false
		}
	}
	return true
}

type Outline []Label

func (o Outline) Strings() []string {
	out := make([]string, len(o))
	for i, l := range o {
		out[i] = string(l)
	}
	return out
}

// MalformedFactError reports a tagging fact with the wrong shape, such as a
// non-numeric scene index or a tag that is not a bare atom.
type MalformedFactError struct {
	Fact   asp.Fact
	Reason string
}

func (e *MalformedFactError) Error() string {
	return fmt.Sprintf("malformed fact %s: %s", e.Fact, e.Reason)
}

type Compiler struct {
	Relations []Relation
}

func NewCompiler() *Compiler {
	return &Compiler{Relations: DefaultRelations}
}

// rank orders relations: function relations first, then vocabulary position.
func (c *Compiler) rank(name string) (int, bool) {
	relations := c.Relations
	if relations == nil {
		relations = DefaultRelations
	}
	for i, r := range relations {
		if r.Name == name {
			return int(r.Kind)*len(relations) + i, true
		}
	}
	return 0, false
}

type sceneTag struct {
	rank int
	tag  string
}

// Compile turns the facts of one model into an outline. Facts of unknown
// relations are ignored. The result does not depend on fact order.
func (c *Compiler) Compile(facts []asp.Fact) (Outline, error) {
	scenes := make(map[int][]sceneTag)
	for _, f := range facts {
		if f.Kind() != asp.KindTuple {
			continue
		}
		rank, ok := c.rank(f.Name())
		if !ok {
			continue
		}
		if f.Arity() != 2 {
			return nil, &MalformedFactError{Fact: f, Reason: fmt.Sprintf("want 2 arguments, got %d", f.Arity())}
		}
		first, _ := f.Arg(0)
		index, ok := first.Int()
		if !ok {
			return nil, &MalformedFactError{Fact: f, Reason: "scene index is a " + first.Kind().String() + ", not a number"}
		}
		if index < 0 {
			return nil, &MalformedFactError{Fact: f, Reason: "negative scene index"}
		}
		second, _ := f.Arg(1)
		if second.Kind() != asp.KindAtom {
			return nil, &MalformedFactError{Fact: f, Reason: "tag is a " + second.Kind().String() + ", not an atom"}
		}
		scenes[index] = append(scenes[index], sceneTag{rank: rank, tag: second.Name()})
	}

	indices := make([]int, 0, len(scenes))
	for i := range scenes {
		indices = append(indices, i)
	}
	slices.Sort(indices)

	outline := make(Outline, 0, len(indices))
	for _, i := range indices {
		tags := scenes[i]
		slices.SortFunc(tags, func(a, b sceneTag) int {
			return cmp.Or(cmp.Compare(a.rank, b.rank), strings.Compare(a.tag, b.tag))
		})
		tags = slices.Compact(tags)
		names := make([]string, len(tags))
		for j, t := range tags {
			names[j] = t.tag
		}
		outline = append(outline, JoinTags(names...))
	}
	return outline, nil
}
