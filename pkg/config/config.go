// Package config loads plotweave's YAML configuration, applies environment
// overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "plotweave.yaml"

type Config struct {
	LogLevel string       `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	AI       AIConfig     `yaml:"ai"`
	Solver   SolverConfig `yaml:"solver"`
	Paths    PathsConfig  `yaml:"paths"`
	Batch    BatchConfig  `yaml:"batch"`
	Eval     EvalConfig   `yaml:"eval"`
	Server   ServerConfig `yaml:"server"`
}

type AIConfig struct {
	Provider    string  `yaml:"provider" validate:"required,oneof=openai grok kimi moonshot gemini echo"`
	APIKey      string  `yaml:"api_key" validate:"required_unless=Provider echo"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	MaxTokens int64 `yaml:"max_tokens" validate:"gte=0,lte=1000000"`
	// Temperature and TopP are left to the provider when unset.
	Temperature *float64 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP        *float64 `yaml:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	// RequestsPerMinute is shared by every conversation; 0 disables limiting.
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	Retry             RetryConfig   `yaml:"retry"`
}

// RetryConfig is off unless Attempts is greater than 1.
type RetryConfig struct {
	Attempts int           `yaml:"attempts" validate:"gte=0,lte=10"`
	Backoff  time.Duration `yaml:"backoff" validate:"gte=0"`
}

type SolverConfig struct {
	Binary   string   `yaml:"binary"`
	Programs []string `yaml:"programs" validate:"dive,required"`
	Models   int      `yaml:"models" validate:"gte=0"`
	Args     []string `yaml:"args"`
}

type PathsConfig struct {
	Outlines string `yaml:"outlines" validate:"required"`
	Stories  string `yaml:"stories" validate:"required"`
	// Database enables the sqlite archive when set.
	Database     string `yaml:"database"`
	Instructions string `yaml:"instructions"`
}

type BatchConfig struct {
	Concurrency int      `yaml:"concurrency" validate:"min=1,max=64"`
	Stories     int      `yaml:"stories" validate:"min=1"`
	Premises    []string `yaml:"premises" validate:"dive,required"`
	Seed        uint64   `yaml:"seed"`
}

type EvalConfig struct {
	Method         string `yaml:"method" validate:"oneof=embedding lexical"`
	EmbeddingModel string `yaml:"embedding_model" validate:"required"`
}

type ServerConfig struct {
	Port string `yaml:"port" validate:"required,numeric"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		AI: AIConfig{
			Provider: "openai",
			Timeout:  2 * time.Minute,
			Retry:    RetryConfig{Backoff: 2 * time.Second},
		},
		Solver: SolverConfig{
			Binary:   "clingo",
			Programs: []string{"plotgen.lp"},
		},
		Paths: PathsConfig{
			Outlines: "outlines.csv",
			Stories:  "stories",
		},
		Batch: BatchConfig{
			Concurrency: 4,
			Stories:     10,
			Premises: []string{
				"cat pirate",
				"Cold Emu War",
				"tower of eyeballs",
				"dwarven courtroom drama",
				"noir restaurant duel",
				"starships shaped like organs",
			},
		},
		Eval: EvalConfig{
			Method:         "embedding",
			EmbeddingModel: "text-embedding-3-small",
		},
		Server: ServerConfig{Port: "8080"},
	}
}

// Load reads the config file at path, or $PLOTWEAVE_CONFIG, or DefaultPath.
// A missing file is not an error: defaults and the environment are used.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("PLOTWEAVE_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var providerKeys = map[string]string{
	"openai":   "OPENAI_API_KEY",
	"grok":     "GROK_API_KEY",
	"kimi":     "KIMI_API_KEY",
	"moonshot": "MOONSHOT_API_KEY",
	"gemini":   "GEMINI_API_KEY",
}

func (c *Config) applyEnv() {
	if provider := os.Getenv("PLOTWEAVE_PROVIDER"); provider != "" {
		c.AI.Provider = provider
	}
	if strings.HasPrefix(c.AI.APIKey, "${") {
		c.AI.APIKey = os.ExpandEnv(c.AI.APIKey)
	}
	if c.AI.APIKey == "" {
		if env, ok := providerKeys[c.AI.Provider]; ok {
			c.AI.APIKey = os.Getenv(env)
		}
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" && c.AI.Provider == "openai" && c.AI.Model == "" {
		c.AI.Model = model
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
}

// OpenAIKey returns the key used for embeddings, which always go to OpenAI.
func (c *Config) OpenAIKey() string {
	if c.AI.Provider == "openai" && c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func (c *Config) Save(path string) error {
	out := *c
	if env, ok := providerKeys[c.AI.Provider]; ok {
		out.AI.APIKey = "${" + env + "}"
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
