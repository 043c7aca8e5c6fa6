// Package narrative executes instructions as one growing conversation and
// extracts the story from it.
package narrative

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"plotweave/pkg/inference"
	"plotweave/pkg/schema"
)

// DefaultSystemPrompt is the fixed style guidance seeded into every story.
//
//go:embed system.txt
var DefaultSystemPrompt string

// ErrEmptyParagraph is returned when the service answers with blank text.
var ErrEmptyParagraph = errors.New("empty paragraph")

// SceneError reports the scene at which generation stopped. Paragraphs before
// it are kept in the returned Narrative.
type SceneError struct {
	Scene int
	Label string
	Err   error
}

func (e *SceneError) Error() string {
	return fmt.Sprintf("scene %d (%s): %v", e.Scene, e.Label, e.Err)
}

func (e *SceneError) Unwrap() error { return e.Err }

// Narrative holds one generated paragraph per scene. Complete is false when
// generation stopped early.
type Narrative struct {
	Paragraphs   []string      `json:"paragraphs"`
	Complete     bool          `json:"complete"`
	Conversation []schema.Turn `json:"conversation,omitempty"`
}

func (n Narrative) Len() int { return len(n.Paragraphs) }

func (n Narrative) Text() string { return strings.Join(n.Paragraphs, "\n") }

// Writer generates stories. It holds no per-story state and may be shared.
type Writer struct {
	Inferencer inference.Inferencer
	// System seeds the conversation; empty means no system turn.
	System string
	Logger *log.Logger
}

func NewWriter(inf inference.Inferencer) *Writer {
	return &Writer{Inferencer: inf, System: DefaultSystemPrompt}
}

func (w *Writer) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}

// Write runs the instructions in order, replaying the full conversation on
// every call. On failure it returns the paragraphs written so far together
// with a *SceneError.
func (w *Writer) Write(ctx context.Context, instructions []schema.Instruction) (Narrative, error) {
	return w.WriteFunc(ctx, instructions, nil)
}

// WriteFunc is Write with a callback invoked after each paragraph is appended.
func (w *Writer) WriteFunc(ctx context.Context, instructions []schema.Instruction, fn func(schema.Instruction, string)) (Narrative, error) {
	conv := schema.NewConversation(w.System)
	finish := func(complete bool) Narrative {
		return Narrative{Paragraphs: conv.Generated(), Complete: complete, Conversation: conv.Turns()}
	}

	for i, in := range instructions {
		if err := ctx.Err(); err != nil {
			return finish(false), &SceneError{Scene: i, Label: in.Label, Err: err}
		}
		conv.Append(schema.RoleUser, in.Text)
		out, err := w.Inferencer.Generate(ctx, conv)
		if err == nil {
			out = strings.TrimSpace(out)
			if out == "" {
				err = ErrEmptyParagraph
			}
		}
		if err != nil {
			w.logger().Warn("story aborted", "scene", i, "label", in.Label, "written", i, "error", err)
			return finish(false), &SceneError{Scene: i, Label: in.Label, Err: err}
		}
		conv.Append(schema.RoleAssistant, out)
		if fn != nil {
			fn(in, out)
		}
	}
	return finish(true), nil
}
