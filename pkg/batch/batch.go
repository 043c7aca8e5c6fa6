// Package batch generates guided and unguided story pairs over independent
// (premise, outline) jobs with bounded concurrency.
package batch

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"plotweave/pkg/inference"
	"plotweave/pkg/narrative"
	"plotweave/pkg/outline"
	"plotweave/pkg/prompt"
	"plotweave/pkg/schema"
)

var ErrNoOutlines = errors.New("batch: no outlines to sample")

type Job struct {
	ID      string          `json:"id"`
	BatchID string          `json:"batch_id"`
	Premise string          `json:"premise"`
	Index   int             `json:"index"`
	Outline outline.Outline `json:"outline"`
}

// Pair is the outcome of one job: the outline-guided story and the naive
// baseline of the same length, each written in its own conversation.
type Pair struct {
	Job         Job                 `json:"job"`
	Guided      narrative.Narrative `json:"guided"`
	Unguided    narrative.Narrative `json:"unguided"`
	GuidedErr   error               `json:"-"`
	UnguidedErr error               `json:"-"`
}

// Usable reports whether both stories are complete.
func (p Pair) Usable() bool {
	return p.GuidedErr == nil && p.UnguidedErr == nil && p.Guided.Complete && p.Unguided.Complete
}

func (p Pair) Err() error {
	return errors.Join(p.GuidedErr, p.UnguidedErr)
}

// Jobs samples n outlines uniformly with replacement for one premise.
func Jobs(premise string, outlines []outline.Outline, n int, r *rand.Rand) ([]Job, error) {
	if len(outlines) == 0 {
		return nil, ErrNoOutlines
	}
	pick := rand.IntN
	if r != nil {
		pick = r.IntN
	}
	batchID := ksuid.New().String()
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{
			ID:      ksuid.New().String(),
			BatchID: batchID,
			Premise: premise,
			Index:   i,
			Outline: outlines[pick(len(outlines))],
		}
	}
	return jobs, nil
}

type Runner struct {
	Compiler *prompt.Compiler
	Writer   *narrative.Writer
	// Hints generates obstacle hints; the writer's inferencer when nil.
	Hints       inference.Inferencer
	Concurrency int
	Logger      *log.Logger
	// OnPair is called once per finished job. Calls are serialized.
	OnPair func(Pair)
	// OnScene is called after each paragraph, from the job's goroutine.
	OnScene func(job Job, mode schema.Mode, in schema.Instruction, paragraph string)

	mu sync.Mutex
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Run processes jobs with at most Concurrency in flight. A failing job never
// stops its siblings; failures are recorded on the job's Pair. Pairs are
// returned in job order.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Pair {
	pairs := make([]Pair, len(jobs))
	var g errgroup.Group
	g.SetLimit(max(r.Concurrency, 1))

	start := time.Now()
	for i, job := range jobs {
		g.Go(func() error {
			pairs[i] = r.RunOne(ctx, job)
			if r.OnPair != nil {
				r.mu.Lock()
				r.OnPair(pairs[i])
				r.mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	usable := 0
	for _, p := range pairs {
		if p.Usable() {
			usable++
		}
	}
	r.logger().Info("batch finished", "jobs", len(jobs), "usable", usable, "elapsed", time.Since(start).Round(time.Millisecond))
	return pairs
}

func (r *Runner) sceneFunc(job Job, mode schema.Mode) func(schema.Instruction, string) {
	if r.OnScene == nil {
		return nil
	}
	return func(in schema.Instruction, paragraph string) {
		r.OnScene(job, mode, in, paragraph)
	}
}

// RunOne writes the guided and unguided stories of one job in sequence.
func (r *Runner) RunOne(ctx context.Context, job Job) Pair {
	logger := r.logger().With("job", job.ID, "premise", job.Premise, "index", job.Index)
	hints := r.Hints
	if hints == nil {
		hints = r.Writer.Inferencer
	}

	pair := Pair{Job: job}
	logger.Debug("using outline", "outline", job.Outline)
	if instructions, err := r.Compiler.Compile(ctx, job.Outline, job.Premise, hints); err != nil {
		pair.GuidedErr = err
	} else {
		pair.Guided, pair.GuidedErr = r.Writer.WriteFunc(ctx, instructions, r.sceneFunc(job, schema.Guided))
	}
	naive := r.Compiler.Naive(len(job.Outline), job.Premise)
	pair.Unguided, pair.UnguidedErr = r.Writer.WriteFunc(ctx, naive, r.sceneFunc(job, schema.Unguided))

	if err := pair.Err(); err != nil {
		logger.Warn("job incomplete", "guided", pair.Guided.Len(), "unguided", pair.Unguided.Len(), "scenes", len(job.Outline), "error", err)
	}
	return pair
}
