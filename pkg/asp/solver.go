package asp

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrUnsatisfiable is yielded when the program has no models. It is distinct
// from a model that shows zero facts.
var ErrUnsatisfiable = errors.New("asp: program is unsatisfiable")

// Solver enumerates the models of a fixed logic program.
type Solver interface {
	Solve(ctx context.Context) iter.Seq2[Model, error]
}

// ModelError reports a model whose symbols could not be translated. The
// solve continues past it.
type ModelError struct {
	Number int
	Err    error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %d: %v", e.Number, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Static replays literal models, for fixtures and tests.
type Static struct {
	Models        [][]Fact
	Unsatisfiable bool
}

func (s Static) Solve(ctx context.Context) iter.Seq2[Model, error] {
	return func(yield func(Model, error) bool) {
		if s.Unsatisfiable {
			yield(Model{}, ErrUnsatisfiable)
			return
		}
		for i, facts := range s.Models {
			if err := ctx.Err(); err != nil {
				yield(Model{}, err)
				return
			}
			if !yield(Model{Number: i + 1, Facts: facts}, nil) {
				return
			}
		}
	}
}
