package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func float(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "defaults with key",
			mutate: func(c *Config) { c.AI.APIKey = "sk-test" },
		},
		{
			name:   "echo needs no key",
			mutate: func(c *Config) { c.AI.Provider = "echo" },
		},
		{
			name:    "missing key",
			mutate:  func(c *Config) {},
			wantErr: true,
			errMsg:  "APIKey",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.AI.Provider = "markov"; c.AI.APIKey = "k" },
			wantErr: true,
			errMsg:  "Provider",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.AI.Provider = "echo"; c.Batch.Concurrency = 0 },
			wantErr: true,
			errMsg:  "Concurrency",
		},
		{
			name:    "bad base url",
			mutate:  func(c *Config) { c.AI.Provider = "echo"; c.AI.BaseURL = "not-a-url" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "bad eval method",
			mutate:  func(c *Config) { c.AI.Provider = "echo"; c.Eval.Method = "bleu" },
			wantErr: true,
			errMsg:  "Method",
		},
		{
			name:    "non-numeric port",
			mutate:  func(c *Config) { c.AI.Provider = "echo"; c.Server.Port = ":80" },
			wantErr: true,
			errMsg:  "Port",
		},
		{
			name:   "zero temperature",
			mutate: func(c *Config) { c.AI.Provider = "echo"; c.AI.Temperature = new(float64); c.AI.TopP = new(float64) },
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.AI.Provider = "echo"; c.AI.Temperature = float(2.5) },
			wantErr: true,
			errMsg:  "Temperature",
		},
		{
			name:    "too many max tokens",
			mutate:  func(c *Config) { c.AI.Provider = "echo"; c.AI.MaxTokens = 1 << 32 },
			wantErr: true,
			errMsg:  "MaxTokens",
		},
		{
			name:    "too many retries",
			mutate:  func(c *Config) { c.AI.Provider = "echo"; c.AI.Retry.Attempts = 11 },
			wantErr: true,
			errMsg:  "Attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q does not mention %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("PLOTWEAVE_PROVIDER", "")
	t.Setenv("PORT", "9090")

	path := filepath.Join(t.TempDir(), "plotweave.yaml")
	data := `
ai:
  provider: gemini
  timeout: 45s
  temperature: 0
  retry:
    attempts: 3
    backoff: 500ms
batch:
  concurrency: 8
  premises: ["tower of eyeballs"]
solver:
  programs: [story.lp]
  models: 100
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.Provider != "gemini" || cfg.AI.APIKey != "gm-key" {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0 || cfg.AI.TopP != nil {
		t.Errorf("sampling = %v, %v, want explicit zero temperature and unset top_p", cfg.AI.Temperature, cfg.AI.TopP)
	}
	if cfg.AI.Timeout != 45*time.Second || cfg.AI.Retry.Attempts != 3 || cfg.AI.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("durations = %v, %+v", cfg.AI.Timeout, cfg.AI.Retry)
	}
	if cfg.Batch.Concurrency != 8 || cfg.Batch.Stories != 10 || len(cfg.Batch.Premises) != 1 {
		t.Errorf("batch = %+v", cfg.Batch)
	}
	if cfg.Solver.Binary != "clingo" || cfg.Solver.Models != 100 {
		t.Errorf("solver = %+v", cfg.Solver)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want env override", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("PLOTWEAVE_CONFIG", "")
	t.Setenv("PLOTWEAVE_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.APIKey != "sk-env" || cfg.AI.Model != "gpt-4o" {
		t.Errorf("ai = %+v", cfg.AI)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func TestProviderOverride(t *testing.T) {
	t.Setenv("PLOTWEAVE_CONFIG", "")
	t.Setenv("PLOTWEAVE_PROVIDER", "echo")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.Provider != "echo" {
		t.Errorf("provider = %q", cfg.AI.Provider)
	}
}

func TestSaveHidesKey(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "sk-secret"
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") || !strings.Contains(string(data), "${OPENAI_API_KEY}") {
		t.Errorf("saved config:\n%s", data)
	}
}
