package outline

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"plotweave/pkg/asp"
)

func TestStream(t *testing.T) {
	solver := asp.Static{Models: [][]asp.Fact{
		{fn(0, "introduce_character"), fn(1, "describe_setting")},
		{asp.Tuple("scene_performs_function", asp.Text("bad"), asp.Atom("a"))},
		{fn(0, "resolve_conflict")},
	}}

	var results []Result
	var errs []error
	for res, err := range Stream(context.Background(), solver, nil) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}

	if len(results) != 2 || results[0].Model != 1 || results[1].Model != 3 {
		t.Fatalf("results = %+v", results)
	}
	if len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	var me *asp.ModelError
	var mf *MalformedFactError
	if !errors.As(errs[0], &me) || me.Number != 2 || !errors.As(errs[0], &mf) {
		t.Errorf("error = %v, want malformed model 2", errs[0])
	}
}

func TestCollect(t *testing.T) {
	logger := log.New(io.Discard)

	solver := asp.Static{Models: [][]asp.Fact{
		{fn(0, "a")},
		{fn(0, "b"), asp.Tuple("scene_introduce_personality", asp.Number(0), asp.Number(3))},
		{},
	}}
	outlines, err := Collect(context.Background(), solver, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	if len(outlines) != 2 || !slices.Equal(outlines[0], Outline{"a"}) || len(outlines[1]) != 0 {
		t.Errorf("outlines = %v", outlines)
	}

	_, err = Collect(context.Background(), asp.Static{Unsatisfiable: true}, nil, logger)
	if !errors.Is(err, asp.ErrUnsatisfiable) {
		t.Errorf("err = %v, want ErrUnsatisfiable", err)
	}
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, asp.Static{Models: [][]asp.Fact{{fn(0, "a")}}}, nil, log.New(io.Discard))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
