package inference

import (
	"context"
	"fmt"

	"plotweave/pkg/config"
)

// New builds the configured provider. Each attempt gets the call timeout and
// waits on the shared limiter; retries wrap both.
func New(ctx context.Context, cfg config.AIConfig) (Inferencer, error) {
	opts := Options{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature, TopP: cfg.TopP}

	var inf Inferencer
	switch cfg.Provider {
	case "openai":
		o := NewOpenAIInferencer(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			o.ChangeBaseURL(cfg.BaseURL)
		}
		o.Options = opts
		inf = o
	case "grok", "kimi", "moonshot":
		p := map[string]Provider{"grok": Grok, "kimi": Kimi, "moonshot": Moonshot}[cfg.Provider]
		if cfg.BaseURL != "" {
			p.BaseURL = cfg.BaseURL
		}
		o := NewCompatibleInferencer(p, cfg.APIKey, cfg.Model)
		o.Options = opts
		inf = o
	case "gemini":
		g, err := NewGeminiInferencer(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		g.Options = opts
		inf = g
	case "echo":
		return Echo{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.Timeout > 0 {
		inf = &Timeout{Inferencer: inf, Duration: cfg.Timeout}
	}
	if cfg.RequestsPerMinute > 0 {
		inf = NewLimited(inf, cfg.RequestsPerMinute, cfg.Burst)
	}
	if cfg.Retry.Attempts > 1 {
		inf = &Retrying{Inferencer: inf, Attempts: cfg.Retry.Attempts, Backoff: cfg.Retry.Backoff}
	}
	return inf, nil
}
