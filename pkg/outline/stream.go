package outline

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/charmbracelet/log"

	"plotweave/pkg/asp"
)

// Result is the outline compiled from one solver model.
type Result struct {
	Model   int
	Outline Outline
}

// Stream compiles models lazily as the solver enumerates them. A model that
// fails to compile is yielded as an *asp.ModelError and the stream moves on.
// An unsatisfiable program yields asp.ErrUnsatisfiable once.
func Stream(ctx context.Context, solver asp.Solver, c *Compiler) iter.Seq2[Result, error] {
	if c == nil {
		c = NewCompiler()
	}
	return func(yield func(Result, error) bool) {
		for model, err := range solver.Solve(ctx) {
			if err != nil {
				if !yield(Result{Model: model.Number}, err) {
					return
				}
				var me *asp.ModelError
				if errors.As(err, &me) {
					continue
				}
				return
			}
			outline, err := c.Compile(model.Facts)
			if err != nil {
				err = &asp.ModelError{Number: model.Number, Err: err}
			}
			if !yield(Result{Model: model.Number, Outline: outline}, err) {
				return
			}
		}
	}
}

// Collect drains Stream. Skipped models are logged with their number.
// Unsatisfiable programs return asp.ErrUnsatisfiable and no outlines.
func Collect(ctx context.Context, solver asp.Solver, c *Compiler, logger *log.Logger) ([]Outline, error) {
	if logger == nil {
		logger = log.Default()
	}
	var outlines []Outline
	skipped := 0
	for res, err := range Stream(ctx, solver, c) {
		if err != nil {
			var me *asp.ModelError
			if errors.As(err, &me) {
				skipped++
				logger.Warn("skipping model", "model", me.Number, "err", me.Err)
				continue
			}
			if errors.Is(err, asp.ErrUnsatisfiable) {
				return nil, err
			}
			return outlines, fmt.Errorf("solve: %w", err)
		}
		outlines = append(outlines, res.Outline)
	}
	logger.Info("collected outlines", "outlines", len(outlines), "skipped", skipped)
	return outlines, nil
}
