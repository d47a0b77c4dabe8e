package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // must cover a full generation on the non-streaming path

	// StreamWriteTimeout is the per-unit write deadline on the streaming
	// path, where WriteTimeout would sever a slow but live generation.
	StreamWriteTimeout time.Duration `yaml:"stream_write_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // history cache TTL
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"`    // max concurrent generations
	MaxOutputTokens int    `yaml:"max_output_tokens"`   // 0 = provider default
	HistoryBudget   int    `yaml:"history_token_budget"` // prompt tokens granted to hydrated history
}

type AdminConfig struct {
	APIKey   string        `yaml:"api_key"` // exchanged for a session token
	Secret   string        `yaml:"secret"`  // HMAC secret for minted tokens
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type RateLimitConfig struct {
	PerThread int           `yaml:"per_thread"` // requests per window, 0 disables
	Window    time.Duration `yaml:"window"`
}

type RetentionConfig struct {
	MaxIdle  time.Duration `yaml:"max_idle"` // 0 disables the worker
	Interval time.Duration `yaml:"interval"`
	Workers  int           `yaml:"workers"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Admin     AdminConfig     `yaml:"admin"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retention RetentionConfig `yaml:"retention"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

type SecurityConfig struct {
	// 32-byte key enabling AES encryption of turn content at rest; empty
	// stores plaintext.
	EncryptionKey string `yaml:"encryption_key"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8032
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.StreamWriteTimeout <= 0 {
		c.Server.StreamWriteTimeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 30 * time.Minute
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 16
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = "gpt-4o-mini"
	}
	if c.AI.HistoryBudget <= 0 {
		c.AI.HistoryBudget = 8192
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 30 * time.Minute
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Retention.Interval <= 0 {
		c.Retention.Interval = time.Hour
	}
	if c.Retention.Workers <= 0 {
		c.Retention.Workers = 4
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if !c.Runtime.Dev && c.AI.OpenAIKey == "" && c.AI.GeminiKey == "" {
		return errors.New("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}
	if k := c.Security.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("security.encryption_key must be 32 bytes, got %d", len(k))
	}
	return nil
}
