package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"plotweave/pkg/inference"
	"plotweave/pkg/outline"
	"plotweave/pkg/prompt"
	"plotweave/pkg/schema"
)

type call struct {
	turns []schema.Turn
}

// echoRecorder answers with an echo of the last prompt and records each call.
type echoRecorder struct {
	calls  []call
	failAt int
}

func (e *echoRecorder) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	e.calls = append(e.calls, call{turns: conv.Turns()})
	if e.failAt > 0 && len(e.calls) == e.failAt {
		return "", errors.New("rate limited")
	}
	return inference.Echo{}.Generate(ctx, conv)
}

func instructions(n int) []schema.Instruction {
	out := make([]schema.Instruction, n)
	for i := range out {
		out[i] = schema.Instruction{Scene: i, Label: "describe_setting", Text: "write paragraph " + string(rune('A'+i))}
	}
	return out
}

func TestWriteExampleScenario(t *testing.T) {
	o := outline.Outline{"introduce_character", "describe_setting", "add_obstacle_towards_major_goal"}
	rec := &echoRecorder{}

	ins, err := prompt.NewCompiler(nil, nil).Compile(context.Background(), o, "cat pirates", rec)
	if err != nil {
		t.Fatal(err)
	}
	hintCalls := len(rec.calls)
	if hintCalls != 1 {
		t.Fatalf("hint calls = %d, want 1", hintCalls)
	}

	n, err := (&Writer{Inferencer: rec}).Write(context.Background(), ins)
	if err != nil {
		t.Fatal(err)
	}
	if !n.Complete || n.Len() != 3 {
		t.Fatalf("narrative = %+v", n)
	}

	story := rec.calls[hintCalls:]
	first := story[0].turns
	if countRole(first, schema.RoleUser) != 1 {
		t.Errorf("scene 0 call had %d user turns, want 1", countRole(first, schema.RoleUser))
	}
	last := story[2].turns
	if len(last) != 5 {
		t.Errorf("scene 2 call had %d turns, want 5", len(last))
	}
	final := last[len(last)-1].Content
	if strings.Contains(final, "{{obstacle_hint}}") || !strings.Contains(final, "Given the story theme: cat pirates") {
		t.Errorf("scene 2 prompt lacks the resolved hint: %q", final)
	}
	for i, p := range n.Paragraphs {
		if p == "" {
			t.Errorf("paragraph %d is empty", i)
		}
	}

	rec.calls = nil
	if _, err := NewWriter(rec).Write(context.Background(), ins); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.calls[2].turns); got != 6 || rec.calls[2].turns[0].Role != schema.RoleSystem {
		t.Errorf("with system prompt, scene 2 call had %d turns, want 6", got)
	}
}

func TestWriteReplaysConversation(t *testing.T) {
	rec := &echoRecorder{}
	w := &Writer{Inferencer: rec}
	n, err := w.Write(context.Background(), instructions(4))
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range rec.calls {
		if len(c.turns) != 2*i+1 {
			t.Errorf("call %d saw %d turns, want %d", i, len(c.turns), 2*i+1)
		}
		for j, turn := range c.turns {
			want := schema.RoleUser
			if j%2 == 1 {
				want = schema.RoleAssistant
			}
			if turn.Role != want {
				t.Errorf("call %d turn %d role %s", i, j, turn.Role)
			}
		}
	}
	if n.Paragraphs[3] != "echo 4: write paragraph D" {
		t.Errorf("paragraph = %q", n.Paragraphs[3])
	}
	if len(n.Conversation) != 8 {
		t.Errorf("conversation has %d turns", len(n.Conversation))
	}
}

func TestWritePartial(t *testing.T) {
	rec := &echoRecorder{failAt: 3}
	n, err := NewWriter(rec).Write(context.Background(), instructions(5))
	var se *SceneError
	if !errors.As(err, &se) || se.Scene != 2 {
		t.Fatalf("err = %v, want SceneError at scene 2", err)
	}
	if n.Complete || n.Len() != 2 {
		t.Errorf("narrative complete=%v len=%d, want partial with 2 paragraphs", n.Complete, n.Len())
	}
	if len(rec.calls) != 3 {
		t.Errorf("made %d calls after failure", len(rec.calls))
	}
}

func TestWriteEmptyResponse(t *testing.T) {
	blank := inference.Func(func(context.Context, *schema.Conversation) (string, error) { return "  \n", nil })
	n, err := NewWriter(blank).Write(context.Background(), instructions(2))
	if !errors.Is(err, ErrEmptyParagraph) || n.Len() != 0 || n.Complete {
		t.Errorf("n = %+v, err = %v", n, err)
	}
}

func TestWriteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inf := inference.Func(func(ctx context.Context, conv *schema.Conversation) (string, error) {
		if conv.Count(schema.RoleUser) == 2 {
			cancel()
		}
		return "paragraph", nil
	})
	n, err := NewWriter(inf).Write(ctx, instructions(4))
	var se *SceneError
	if !errors.As(err, &se) || !errors.Is(err, context.Canceled) || se.Scene != 2 {
		t.Fatalf("err = %v, want canceled SceneError at scene 2", err)
	}
	if n.Complete || n.Len() != 2 {
		t.Errorf("narrative = %+v", n)
	}
}

func TestWriteFunc(t *testing.T) {
	var seen []int
	_, err := NewWriter(inference.Echo{}).WriteFunc(context.Background(), instructions(3), func(in schema.Instruction, p string) {
		seen = append(seen, in.Scene)
	})
	if err != nil || len(seen) != 3 || seen[2] != 2 {
		t.Errorf("seen = %v, err = %v", seen, err)
	}
}

func TestDefaultSystemPrompt(t *testing.T) {
	if !strings.Contains(DefaultSystemPrompt, "Show, don't tell.") {
		t.Error("system prompt missing style guidance")
	}
}

func countRole(turns []schema.Turn, role schema.Role) int {
	n := 0
	for _, t := range turns {
		if t.Role == role {
			n++
		}
	}
	return n
}
