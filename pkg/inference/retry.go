package inference

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"plotweave/pkg/schema"
)

// Retrying retries transient failures. Nothing retries unless a Retrying is
// configured explicitly.
type Retrying struct {
	Inferencer Inferencer
	Attempts   int
	Backoff    time.Duration
}

func (r *Retrying) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	attempts := max(r.Attempts, 1)
	backoff := r.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		var out string
		out, err = r.Inferencer.Generate(ctx, conv)
		if err == nil {
			return out, nil
		}
		if attempt >= attempts || ctx.Err() != nil || !Transient(err) {
			return "", err
		}
		log.Warn("retrying generation", "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return "", errors.Join(err, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// Transient reports whether err is worth retrying: rate limiting, server
// errors, or a per-call deadline.
func Transient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	var genErr genai.APIError
	if errors.As(err, &genErr) {
		return retryableStatus(genErr.Code)
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
