// Package prompt compiles outlines into the ordered writing instructions of
// one story.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"plotweave/pkg/outline"
)

const (
	PremisePlaceholder     = "premise"
	InstructionPlaceholder = "instruction"
)

var placeholderRe = regexp.MustCompile(`\{\{([a-z_][a-z0-9_]*)\}\}`)

//go:embed default.yaml
var defaultTable []byte

// Budget bounds the sentence count requested per paragraph. Max 0 disables it.
type Budget struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type Prompts struct {
	Init          string `yaml:"init"`
	Followup      string `yaml:"followup"`
	NaiveInit     string `yaml:"naive_init"`
	NaiveFollowup string `yaml:"naive_followup"`
}

// Table maps compiled scene labels to instruction templates. It is read-only
// once loaded and safe to share between goroutines.
type Table struct {
	Budget  Budget  `yaml:"budget"`
	Prompts Prompts `yaml:"prompts"`
	// Hints holds the prompt for each data-dependent placeholder, keyed by
	// placeholder name.
	Hints        map[string]string `yaml:"hints"`
	Instructions map[string]string `yaml:"instructions"`
}

// DefaultTable returns the built-in vocabulary.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic("prompt: embedded table: " + err.Error())
	}
	return t
}

func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("instruction table %s: %w", path, err)
	}
	return t, nil
}

// Lookup finds the template for a label: the exact composite label first,
// then its bare function tag. matched is the key that was used.
func (t *Table) Lookup(label outline.Label) (tmpl string, matched outline.Label, ok bool) {
	if tmpl, ok := t.Instructions[string(label)]; ok {
		return tmpl, label, true
	}
	fn := outline.Label(label.Function())
	if tmpl, ok := t.Instructions[string(fn)]; ok {
		return tmpl, fn, true
	}
	return "", "", false
}

// Labels returns the table's labels in sorted order.
func (t *Table) Labels() []outline.Label {
	labels := make([]outline.Label, 0, len(t.Instructions))
	for k := range t.Instructions {
		labels = append(labels, outline.Label(k))
	}
	slices.Sort(labels)
	return labels
}

// Validate checks that every template only uses placeholders it can be given.
func (t *Table) Validate() error {
	var errs []error
	check := func(where, tmpl string, allowed ...string) {
		for _, name := range Placeholders(tmpl) {
			if slices.Contains(allowed, name) {
				continue
			}
			if _, ok := t.Hints[name]; ok && !strings.HasPrefix(where, "hints.") {
				continue
			}
			errs = append(errs, fmt.Errorf("%s: unknown placeholder {{%s}}", where, name))
		}
	}

	if t.Budget.Max < 0 || t.Budget.Max > 0 && (t.Budget.Min < 1 || t.Budget.Min > t.Budget.Max) {
		errs = append(errs, fmt.Errorf("budget: invalid range [%d, %d]", t.Budget.Min, t.Budget.Max))
	}
	for name, frame := range map[string]string{"init": t.Prompts.Init, "followup": t.Prompts.Followup} {
		if !strings.Contains(frame, "{{"+InstructionPlaceholder+"}}") {
			errs = append(errs, fmt.Errorf("prompts.%s: missing {{%s}}", name, InstructionPlaceholder))
		}
		check("prompts."+name, frame, PremisePlaceholder, InstructionPlaceholder)
	}
	if !strings.Contains(t.Prompts.Init, "{{"+PremisePlaceholder+"}}") {
		errs = append(errs, fmt.Errorf("prompts.init: missing {{%s}}", PremisePlaceholder))
	}
	check("prompts.naive_init", t.Prompts.NaiveInit, PremisePlaceholder)
	check("prompts.naive_followup", t.Prompts.NaiveFollowup, PremisePlaceholder)

	for name, tmpl := range t.Hints {
		if name == PremisePlaceholder || name == InstructionPlaceholder {
			errs = append(errs, fmt.Errorf("hints.%s: reserved name", name))
		}
		check("hints."+name, tmpl, PremisePlaceholder)
	}
	for label, tmpl := range t.Instructions {
		if !outline.Label(label).Valid() {
			errs = append(errs, fmt.Errorf("instructions: invalid label %q", label))
		}
		check("instructions."+label, tmpl, PremisePlaceholder)
	}
	if len(t.Instructions) == 0 {
		errs = append(errs, errors.New("instructions: table is empty"))
	}
	return errors.Join(errs...)
}

// Placeholders lists the distinct placeholder names in tmpl, in order of
// first appearance.
func Placeholders(tmpl string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

func substitute(tmpl, name, value string) string {
	return strings.ReplaceAll(tmpl, "{{"+name+"}}", value)
}
