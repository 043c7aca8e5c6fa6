// Package eval scores batches of stories for cross-story homogeneity.
package eval

import (
	"context"
	"errors"
	"fmt"
	"math"

	"plotweave/pkg/utils"
)

var (
	ErrEmptyBatch  = errors.New("eval: empty batch")
	ErrRaggedBatch = errors.New("eval: stories have different scene counts")
)

// Embedder maps texts to vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Report holds per-position scores for the guided and unguided batches of
// one premise. Stories of different lengths are scored in separate reports.
type Report struct {
	Premise  string    `json:"premise"`
	Method   string    `json:"method"`
	Scenes   int       `json:"scenes"`
	Stories  int       `json:"stories"`
	Guided   []float64 `json:"guided"`
	Unguided []float64 `json:"unguided"`
}

const (
	MethodEmbedding = "embedding"
	MethodLexical   = "lexical"
)

// Score dispatches to Homogeneity or Lexical. An empty method means
// embedding similarity.
func Score(ctx context.Context, method string, e Embedder, stories [][]string) ([]float64, error) {
	switch method {
	case "", MethodEmbedding:
		if e == nil {
			return nil, errors.New("eval: embedding method needs an embedder")
		}
		return Homogeneity(ctx, e, stories)
	case MethodLexical:
		return Lexical(stories)
	}
	return nil, fmt.Errorf("eval: unknown method %q", method)
}

// Evaluate scores the guided and unguided batches of one premise. Both
// batches must share a scene count.
func Evaluate(ctx context.Context, method string, e Embedder, premise string, guided, unguided [][]string) (Report, error) {
	if method == "" {
		method = MethodEmbedding
	}
	r := Report{Premise: premise, Method: method, Stories: len(guided)}
	var err error
	if r.Guided, err = Score(ctx, method, e, guided); err != nil {
		return Report{}, fmt.Errorf("guided: %w", err)
	}
	if r.Unguided, err = Score(ctx, method, e, unguided); err != nil {
		return Report{}, fmt.Errorf("unguided: %w", err)
	}
	if len(r.Guided) != len(r.Unguided) {
		return Report{}, fmt.Errorf("%w: guided has %d scenes, unguided %d", ErrRaggedBatch, len(r.Guided), len(r.Unguided))
	}
	r.Scenes = len(r.Guided)
	return r, nil
}

func positions(stories [][]string) (int, error) {
	if len(stories) == 0 {
		return 0, ErrEmptyBatch
	}
	n := len(stories[0])
	for i, s := range stories {
		if len(s) != n {
			return 0, fmt.Errorf("%w: story %d has %d scenes, story 0 has %d", ErrRaggedBatch, i, len(s), n)
		}
	}
	return n, nil
}

// Homogeneity returns one score per scene position: the mean cosine
// similarity of each story's passage to the mean embedding of that position.
// Scores range from 0 (unrelated) to 1 (identical).
func Homogeneity(ctx context.Context, e Embedder, stories [][]string) ([]float64, error) {
	n, err := positions(stories)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, n)
	for pos := range n {
		passages := make([]string, len(stories))
		for i, s := range stories {
			passages[i] = s[pos]
		}
		vecs, err := e.Embed(ctx, passages)
		if err != nil {
			return nil, fmt.Errorf("embed position %d: %w", pos, err)
		}
		if len(vecs) != len(passages) {
			return nil, fmt.Errorf("embed position %d: got %d vectors for %d passages", pos, len(vecs), len(passages))
		}
		center, err := mean(vecs)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", pos, err)
		}
		var sum float64
		for _, v := range vecs {
			sum += cosine(v, center)
		}
		scores[pos] = sum / float64(len(vecs))
	}
	return scores, nil
}

// Lexical is an embedding-free score: per position, the mean word overlap
// ratio over every pair of passages. A batch of one story scores 1.
func Lexical(stories [][]string) ([]float64, error) {
	n, err := positions(stories)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, n)
	for pos := range n {
		if len(stories) == 1 {
			scores[pos] = 1
			continue
		}
		var sum float64
		pairs := 0
		for i := range stories {
			for j := i + 1; j < len(stories); j++ {
				sum += utils.CommonRatio(stories[i][pos], stories[j][pos])
				pairs++
			}
		}
		scores[pos] = sum / float64(pairs)
	}
	return scores, nil
}

func mean(vecs [][]float64) ([]float64, error) {
	dim := len(vecs[0])
	out := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding dimensions differ: %d and %d", dim, len(v))
		}
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float64(len(vecs))
	}
	return out, nil
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
