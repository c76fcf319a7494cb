// Package config loads the YAML run configuration, expanding environment
// variables and applying defaults before validation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talonjobs/talon/internal/retry"
)

// Config is the root configuration for a talon run.
type Config struct {
	Query   string
	Scraper ScraperConfig
	Enrich  EnrichConfig
	Retry   RetryConfig
	AI      AIConfig
	Sink    SinkConfig
	Server  ServerConfig
}

// ScraperConfig controls the job board walk.
type ScraperConfig struct {
	BaseURL               string
	MaxPages              int
	MaxConcurrentRequests int
}

// EnrichConfig controls the classification stage.
type EnrichConfig struct {
	MaxConcurrentTasks int
	DryRun             bool
}

// RetryConfig tunes the classification retry policy.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// Policy converts the tuning values into a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:   r.MaxAttempts,
		InitialDelay:  r.InitialDelay,
		BackoffFactor: r.BackoffFactor,
		JitterFactor:  r.JitterFactor,
	}
}

// AIConfig controls the OpenAI classifier.
type AIConfig struct {
	APIKey  string // expanded from env var by Load
	BaseURL string
	Model   string
	Timeout time.Duration // per-request timeout
}

// SinkConfig selects where enriched postings go: "sqlite", "api", or "none".
type SinkConfig struct {
	Type       string
	DBPath     string // sqlite sink
	APIBaseURL string // api sink
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string
}

const (
	defaultBoardBaseURL  = "https://www.worksourcewa.com/"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "gpt-4.1-nano"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as
// strings).
type rawConfig struct {
	Query   string           `yaml:"query"`
	Scraper rawScraperConfig `yaml:"scraper"`
	Enrich  rawEnrichConfig  `yaml:"enrich"`
	Retry   rawRetryConfig   `yaml:"retry"`
	AI      rawAIConfig      `yaml:"ai"`
	Sink    rawSinkConfig    `yaml:"sink"`
	Server  rawServerConfig  `yaml:"server"`
}

type rawScraperConfig struct {
	BaseURL               string `yaml:"base_url"`
	MaxPages              int    `yaml:"max_pages"`
	MaxConcurrentRequests int    `yaml:"max_concurrent_requests"`
}

type rawEnrichConfig struct {
	MaxConcurrentTasks int  `yaml:"max_concurrent_tasks"`
	DryRun             bool `yaml:"dry_run"`
}

type rawRetryConfig struct {
	MaxAttempts   int     `yaml:"max_attempts"`
	InitialDelay  string  `yaml:"initial_delay"`
	BackoffFactor float64 `yaml:"backoff_factor"`
	JitterFactor  float64 `yaml:"jitter_factor"`
}

type rawAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

type rawSinkConfig struct {
	Type       string `yaml:"type"`
	DBPath     string `yaml:"db_path"`
	APIBaseURL string `yaml:"api_base_url"`
}

type rawServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads and parses the YAML config file at path, expands environment
// variables, applies defaults, validates, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables, e.g. api_key: ${OPENAI_API_KEY}
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	def := retry.DefaultPolicy()

	initialDelay := def.InitialDelay
	if raw.Retry.InitialDelay != "" {
		d, err := time.ParseDuration(raw.Retry.InitialDelay)
		if err != nil {
			return nil, fmt.Errorf("parse retry.initial_delay %q: %w", raw.Retry.InitialDelay, err)
		}
		initialDelay = d
	}

	aiTimeout := 60 * time.Second
	if raw.AI.Timeout != "" {
		d, err := time.ParseDuration(raw.AI.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse ai.timeout %q: %w", raw.AI.Timeout, err)
		}
		aiTimeout = d
	}

	cfg := &Config{
		Query: raw.Query,
		Scraper: ScraperConfig{
			BaseURL:               raw.Scraper.BaseURL,
			MaxPages:              raw.Scraper.MaxPages,
			MaxConcurrentRequests: raw.Scraper.MaxConcurrentRequests,
		},
		Enrich: EnrichConfig{
			MaxConcurrentTasks: raw.Enrich.MaxConcurrentTasks,
			DryRun:             raw.Enrich.DryRun,
		},
		Retry: RetryConfig{
			MaxAttempts:   raw.Retry.MaxAttempts,
			InitialDelay:  initialDelay,
			BackoffFactor: raw.Retry.BackoffFactor,
			JitterFactor:  raw.Retry.JitterFactor,
		},
		AI: AIConfig{
			APIKey:  raw.AI.APIKey,
			BaseURL: raw.AI.BaseURL,
			Model:   raw.AI.Model,
			Timeout: aiTimeout,
		},
		Sink: SinkConfig{
			Type:       raw.Sink.Type,
			DBPath:     raw.Sink.DBPath,
			APIBaseURL: raw.Sink.APIBaseURL,
		},
		Server: ServerConfig{
			Addr: raw.Server.Addr,
		},
	}

	if cfg.Scraper.BaseURL == "" {
		cfg.Scraper.BaseURL = defaultBoardBaseURL
	}
	if cfg.Scraper.MaxPages == 0 {
		cfg.Scraper.MaxPages = 2
	}
	if cfg.Scraper.MaxConcurrentRequests == 0 {
		cfg.Scraper.MaxConcurrentRequests = 25
	}
	if cfg.Enrich.MaxConcurrentTasks == 0 {
		cfg.Enrich.MaxConcurrentTasks = 25
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = def.MaxAttempts
	}
	if cfg.Retry.BackoffFactor == 0 {
		cfg.Retry.BackoffFactor = def.BackoffFactor
	}
	if cfg.Retry.JitterFactor == 0 {
		cfg.Retry.JitterFactor = def.JitterFactor
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModel
	}
	if cfg.Sink.Type == "" {
		cfg.Sink.Type = "sqlite"
	}
	if cfg.Sink.DBPath == "" {
		cfg.Sink.DBPath = "talon.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Query == "" {
		return fmt.Errorf("query is required")
	}
	if cfg.Scraper.MaxPages < 1 {
		return fmt.Errorf("scraper.max_pages must be positive, got %d", cfg.Scraper.MaxPages)
	}
	if !cfg.Enrich.DryRun && cfg.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required unless enrich.dry_run is set")
	}
	switch cfg.Sink.Type {
	case "sqlite", "none":
	case "api":
		if cfg.Sink.APIBaseURL == "" {
			return fmt.Errorf("sink.api_base_url is required when sink.type is %q", cfg.Sink.Type)
		}
	default:
		return fmt.Errorf("sink.type must be sqlite, api, or none, got %q", cfg.Sink.Type)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", cfg.Retry.MaxAttempts)
	}
	return nil
}
