// Package config loads application settings from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/internal/validator"
	"github.com/aretw0/hybridqa/pkg/agent"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "hybridqa.yaml"

// DocsConfig controls the document corpus and retrieval.
type DocsConfig struct {
	Dir        string   `yaml:"dir" validate:"required"`
	Extensions []string `yaml:"extensions"`
	TopK       int      `yaml:"top_k" validate:"min=1"`
}

// DatabaseConfig selects the relational store queried for answers.
type DatabaseConfig struct {
	Driver           string `yaml:"driver" validate:"oneof=sqlite sqlite3 pgx postgres postgresql"`
	DSN              string `yaml:"dsn" validate:"required"`
	QueryTimeoutSecs int    `yaml:"query_timeout_secs" validate:"min=0"`
	SchemaTTLSecs    int    `yaml:"schema_ttl_secs" validate:"min=0"`
	Serialize        bool   `yaml:"serialize"`
}

// LLMConfig configures the language model behind the reasoning capabilities.
type LLMConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=ollama"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"min=0"`
	MaxTokens   int     `yaml:"max_tokens" validate:"min=0"`
	TimeoutSecs int     `yaml:"timeout_secs" validate:"min=0"`
}

// AgentConfig bounds the workflow.
type AgentConfig struct {
	MaxRepairs    *int `yaml:"max_repairs" validate:"omitempty,min=0"`
	MaxSteps      int  `yaml:"max_steps" validate:"min=1"`
	StaleErrors   bool `yaml:"stale_errors"`
	CoerceAnswers bool `yaml:"coerce_answers"` // convert answers to their format hint's shape
}

// BatchConfig configures batch answering.
type BatchConfig struct {
	Workers int `yaml:"workers" validate:"min=1"`
}

// StoreConfig selects where run records are kept.
type StoreConfig struct {
	Type     string `yaml:"type" validate:"oneof=memory redis"`
	RedisURL string `yaml:"redis_url" validate:"required_if=Type redis"`
	Prefix   string `yaml:"prefix"`
	TTLSecs  int    `yaml:"ttl_secs" validate:"min=0"`

	// EncryptionKey enables AES-256 encryption at rest (32 bytes, base64 or hex).
	// FallbackKeys still decrypt records written before a rotation.
	EncryptionKey string   `yaml:"encryption_key,omitempty"`
	FallbackKeys  []string `yaml:"fallback_keys,omitempty"`

	// Redact lists regular expressions masked in stored questions, explanations and errors.
	Redact []string `yaml:"redact,omitempty"`
}

// LogConfig mirrors logging.Options.
type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr        string   `yaml:"addr" validate:"required"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// TracingConfig configures OTLP span export. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Config is the root application configuration.
type Config struct {
	Docs     DocsConfig     `yaml:"docs"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	Batch    BatchConfig    `yaml:"batch"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Docs.Dir == "" {
		cfg.Docs.Dir = "docs"
	}
	if len(cfg.Docs.Extensions) == 0 {
		cfg.Docs.Extensions = []string{".md", ".txt", ".pdf"}
	}
	if cfg.Docs.TopK == 0 {
		cfg.Docs.TopK = 3
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "data/northwind.sqlite"
	}
	if cfg.Database.SchemaTTLSecs == 0 {
		cfg.Database.SchemaTTLSecs = 300
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "phi3.5:3.8b-mini-instruct-q4_K_M"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.Agent.MaxRepairs == nil {
		n := 2
		cfg.Agent.MaxRepairs = &n
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 64
	}
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = 4
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Prefix == "" {
		cfg.Store.Prefix = "hybridqa:run:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "hybridqa"
	}
}

// Load reads a config from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDotEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("HYBRIDQA_DOCS_DIR", &c.Docs.Dir)
	str("HYBRIDQA_DB_DRIVER", &c.Database.Driver)
	str("HYBRIDQA_DB_DSN", &c.Database.DSN)
	str("OLLAMA_BASE_URL", &c.LLM.BaseURL)
	str("HYBRIDQA_LLM_MODEL", &c.LLM.Model)
	str("HYBRIDQA_LOG_LEVEL", &c.Log.Level)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	str("HYBRIDQA_STORE_KEY", &c.Store.EncryptionKey)
	if v := strings.TrimSpace(getenv("REDIS_URL")); v != "" {
		c.Store.RedisURL = v
		c.Store.Type = "redis"
	}
	if v := strings.TrimSpace(getenv("HYBRIDQA_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HYBRIDQA_WORKERS: %w", err)
		}
		c.Batch.Workers = n
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if worst := agent.WorstCaseSteps(c.Repairs()); worst > c.Agent.MaxSteps {
		return fmt.Errorf("invalid config: agent.max_repairs %d needs agent.max_steps >= %d, got %d",
			c.Repairs(), worst, c.Agent.MaxSteps)
	}
	return nil
}

// Resolve loads .env, the config file and environment overrides, then validates.
func Resolve(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoggingOptions converts the log section for logging.NewWithOptions.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      logging.ParseLevel(c.Log.Level),
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// Repairs returns the repair budget. An explicit zero disables repair.
func (c *Config) Repairs() int {
	if c.Agent.MaxRepairs == nil {
		return 2
	}
	return *c.Agent.MaxRepairs
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Database.QueryTimeoutSecs) * time.Second
}

func (c *Config) SchemaTTL() time.Duration {
	return time.Duration(c.Database.SchemaTTLSecs) * time.Second
}

func (c *Config) StoreTTL() time.Duration {
	return time.Duration(c.Store.TTLSecs) * time.Second
}
