package inference

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"plotweave/pkg/schema"
)

// Limited shares one rate limiter between every conversation that uses it.
type Limited struct {
	Inferencer Inferencer
	Limiter    *rate.Limiter
}

// NewLimited allows perMinute requests per minute with the given burst.
func NewLimited(inf Inferencer, perMinute, burst int) *Limited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limited{
		Inferencer: inf,
		Limiter:    rate.NewLimiter(limit, max(burst, 1)),
	}
}

func (l *Limited) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Inferencer.Generate(ctx, conv)
}

// Timeout bounds each call; a zero duration leaves calls unbounded.
type Timeout struct {
	Inferencer Inferencer
	Duration   time.Duration
}

func (t *Timeout) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	if t.Duration <= 0 {
		return t.Inferencer.Generate(ctx, conv)
	}
	ctx, cancel := context.WithTimeout(ctx, t.Duration)
	defer cancel()
	return t.Inferencer.Generate(ctx, conv)
}
