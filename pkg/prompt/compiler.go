package prompt

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"plotweave/pkg/inference"
	"plotweave/pkg/outline"
	"plotweave/pkg/schema"
	"plotweave/pkg/utils"
)

// NaiveLabel labels baseline instructions that follow no outline.
const NaiveLabel = "naive"

var ErrUnresolved = errors.New("prompt: plan has unresolved hints")

// MissingInstructionError means the table has no entry for a label the
// outline uses. The table is out of sync with the outline vocabulary.
type MissingInstructionError struct {
	Scene int
	Label outline.Label
}

func (e *MissingInstructionError) Error() string {
	return fmt.Sprintf("scene %d: no instruction for label %q", e.Scene, e.Label)
}

// HintError reports a failed hint sub-generation.
type HintError struct {
	Scene       int
	Placeholder string
	Err         error
}

func (e *HintError) Error() string {
	return fmt.Sprintf("scene %d: generating {{%s}}: %v", e.Scene, e.Placeholder, e.Err)
}

func (e *HintError) Unwrap() error { return e.Err }

// HintRequest asks for one data-dependent value before a scene's instruction
// is final. Prompt is sent on its own, outside the story conversation.
type HintRequest struct {
	Scene       int
	Placeholder string
	Prompt      string
}

// Step is one scene of a Plan. It is resolved once every hint it needs has
// been provided.
type Step struct {
	Scene int
	Label outline.Label
	// Matched is the table key used, which is the bare function tag when the
	// composite label has no entry.
	Matched outline.Label
	text    string
	pending []HintRequest
}

func (s *Step) Resolved() bool { return len(s.pending) == 0 }

func (s *Step) Pending() []HintRequest { return append([]HintRequest(nil), s.pending...) }

// Instruction returns the final instruction once the step is resolved.
func (s *Step) Instruction() (schema.Instruction, bool) {
	if !s.Resolved() {
		return schema.Instruction{}, false
	}
	return schema.Instruction{Scene: s.Scene, Label: string(s.Label), Text: s.text}, true
}

// Plan holds the instructions of one outline, in outline order, while their
// hints are being resolved.
type Plan struct {
	Premise string
	Steps   []*Step
}

func (p *Plan) Len() int { return len(p.Steps) }

func (p *Plan) Pending() []HintRequest {
	var out []HintRequest
	for _, s := range p.Steps {
		out = append(out, s.pending...)
	}
	return out
}

// Provide substitutes value for a pending placeholder of one scene.
func (p *Plan) Provide(scene int, placeholder, value string) error {
	if scene < 0 || scene >= len(p.Steps) {
		return fmt.Errorf("scene %d out of range", scene)
	}
	s := p.Steps[scene]
	for i, req := range s.pending {
		if req.Placeholder == placeholder {
			s.text = substitute(s.text, placeholder, value)
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("scene %d: no pending {{%s}}", scene, placeholder)
}

// Instructions returns one instruction per scene, or ErrUnresolved if any
// hint is still pending.
func (p *Plan) Instructions() ([]schema.Instruction, error) {
	out := make([]schema.Instruction, 0, len(p.Steps))
	for _, s := range p.Steps {
		in, ok := s.Instruction()
		if !ok {
			return nil, fmt.Errorf("%w: scene %d", ErrUnresolved, s.Scene)
		}
		out = append(out, in)
	}
	return out, nil
}

// Compiler turns outlines into instructions. It is safe for concurrent use.
type Compiler struct {
	Table  *Table
	Logger *log.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

// NewCompiler uses the default table when table is nil. A nil r draws
// sentence budgets from the global source.
func NewCompiler(table *Table, r *rand.Rand) *Compiler {
	if table == nil {
		table = DefaultTable()
	}
	return &Compiler{Table: table, rand: r}
}

func (c *Compiler) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func (c *Compiler) sentences() int {
	b := c.Table.Budget
	if b.Max <= 0 {
		return 0
	}
	n := b.Max - b.Min + 1
	if c.rand == nil {
		return b.Min + rand.IntN(n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return b.Min + c.rand.IntN(n)
}

func (c *Compiler) budget(text string) string {
	n := c.sentences()
	if n == 0 {
		return text
	}
	return text + " Use " + strconv.Itoa(n) + " sentences in the paragraph."
}

// Plan looks up every label of o in order. It fails on the first label the
// table does not know.
func (c *Compiler) Plan(o outline.Outline, premise string) (*Plan, error) {
	plan := &Plan{Premise: premise, Steps: make([]*Step, 0, len(o))}
	for i, label := range o {
		tmpl, matched, ok := c.Table.Lookup(label)
		if !ok {
			return nil, &MissingInstructionError{Scene: i, Label: label}
		}

		frame := c.Table.Prompts.Followup
		if i == 0 {
			frame = c.Table.Prompts.Init
		}
		text := substitute(frame, InstructionPlaceholder, tmpl)
		text = substitute(text, PremisePlaceholder, premise)
		text = c.budget(text)

		step := &Step{Scene: i, Label: label, Matched: matched, text: text}
		for _, name := range Placeholders(text) {
			hint, ok := c.Table.Hints[name]
			if !ok {
				continue
			}
			step.pending = append(step.pending, HintRequest{
				Scene:       i,
				Placeholder: name,
				Prompt:      substitute(hint, PremisePlaceholder, premise),
			})
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// Resolve generates every pending hint of the plan. Each request is a one-shot
// conversation with no system turn and no story context; the trimmed reply
// fills that scene only. Failures are not retried.
func (c *Compiler) Resolve(ctx context.Context, plan *Plan, inf inference.Inferencer) error {
	for _, req := range plan.Pending() {
		conv := schema.NewConversation("")
		conv.Append(schema.RoleUser, req.Prompt)
		out, err := inf.Generate(ctx, conv)
		if err != nil {
			return &HintError{Scene: req.Scene, Placeholder: req.Placeholder, Err: err}
		}
		hint := strings.TrimSpace(out)
		if hint == "" {
			return &HintError{Scene: req.Scene, Placeholder: req.Placeholder, Err: errors.New("empty response")}
		}
		c.logger().Debug("resolved hint", "scene", req.Scene, "placeholder", req.Placeholder, "hint", utils.LimitStr(hint, 80))
		if err := plan.Provide(req.Scene, req.Placeholder, hint); err != nil {
			return err
		}
	}
	return nil
}

// Compile plans, resolves and returns the instructions for one outline.
func (c *Compiler) Compile(ctx context.Context, o outline.Outline, premise string, inf inference.Inferencer) ([]schema.Instruction, error) {
	plan, err := c.Plan(o, premise)
	if err != nil {
		return nil, err
	}
	if err := c.Resolve(ctx, plan, inf); err != nil {
		return nil, err
	}
	return plan.Instructions()
}

// Naive builds n baseline instructions that carry the premise but no outline.
func (c *Compiler) Naive(n int, premise string) []schema.Instruction {
	out := make([]schema.Instruction, n)
	for i := range out {
		frame := c.Table.Prompts.NaiveFollowup
		if i == 0 {
			frame = c.Table.Prompts.NaiveInit
		}
		out[i] = schema.Instruction{
			Scene: i,
			Label: NaiveLabel,
			Text:  c.budget(substitute(frame, PremisePlaceholder, premise)),
		}
	}
	return out
}
