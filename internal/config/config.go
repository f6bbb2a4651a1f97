package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"scholarforge/internal/logging"
)

// Config holds all scholarforge configuration.
type Config struct {
	Name string `yaml:"name"`

	// Provider selection and credentials
	Provider ProviderConfig `yaml:"provider"`

	// Retry and circuit breaker around provider calls
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`

	// Persistence
	Store StoreConfig `yaml:"store"`
	Usage UsageConfig `yaml:"usage"`

	// Skill cache
	Skills SkillsConfig `yaml:"skills"`

	// Session defaults
	Session SessionConfig `yaml:"session"`

	Logging LoggingConfig `yaml:"logging"`
}

// ProviderConfig selects the generative backend.
type ProviderConfig struct {
	Name             string            `yaml:"name"` // gemini, anthropic
	GeminiAPIKey     string            `yaml:"gemini_api_key"`
	AnthropicAPIKey  string            `yaml:"anthropic_api_key"`
	AnthropicBaseURL string            `yaml:"anthropic_base_url"`
	Timeout          string            `yaml:"timeout"`
	Models           map[string]string `yaml:"models"` // tier -> model override
}

// RetryConfig configures the invocation retry policy.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
	MaxDelay    string `yaml:"max_delay"`
}

// BreakerConfig configures the provider circuit breaker.
type BreakerConfig struct {
	Enabled             bool   `yaml:"enabled"`
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	HalfOpenRequests    uint32 `yaml:"half_open_requests"`
	OpenTimeout         string `yaml:"open_timeout"`
}

// StoreConfig configures the SQLite document store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// UsageConfig configures token accounting persistence.
type UsageConfig struct {
	Path string `yaml:"path"` // empty keeps usage in memory
}

// SkillsConfig configures the skill cache.
type SkillsConfig struct {
	TTL string `yaml:"ttl"`
}

// SessionConfig holds defaults for session planning and item generation.
type SessionConfig struct {
	ItemCount      int `yaml:"item_count"`
	GenerationSize int `yaml:"generation_size"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string          `yaml:"level"`    // debug, info, warn, error
	Encoding    string          `yaml:"encoding"` // json, console
	File        string          `yaml:"file"`
	Development bool            `yaml:"development"`
	Categories  map[string]bool `yaml:"categories"` // per-category toggles
}

// ToLogging converts to the logging package's config.
func (l LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:       l.Level,
		Encoding:    l.Encoding,
		OutputPath:  l.File,
		Development: l.Development,
		Categories:  l.Categories,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "scholarforge",

		Provider: ProviderConfig{
			Name:             ProviderGemini,
			AnthropicBaseURL: "https://api.anthropic.com/v1",
			Timeout:          "120s",
		},

		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "1s",
			MaxDelay:    "30s",
		},

		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 5,
			HalfOpenRequests:    1,
			OpenTimeout:         "60s",
		},

		Store: StoreConfig{
			DatabasePath: "data/scholarforge.db",
		},

		Usage: UsageConfig{
			Path: "data/usage.json",
		},

		Skills: SkillsConfig{
			TTL: "5m",
		},

		Session: SessionConfig{
			ItemCount:      10,
			GenerationSize: 5,
		},

		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load loads configuration from a YAML file over the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetProviderTimeout returns the provider HTTP timeout.
func (c *Config) GetProviderTimeout() time.Duration {
	return parseDuration(c.Provider.Timeout, 120*time.Second)
}

// GetRetryBaseDelay returns the first retry delay.
func (c *Config) GetRetryBaseDelay() time.Duration {
	return parseDuration(c.Retry.BaseDelay, time.Second)
}

// GetRetryMaxDelay returns the retry delay cap.
func (c *Config) GetRetryMaxDelay() time.Duration {
	return parseDuration(c.Retry.MaxDelay, 30*time.Second)
}

// GetBreakerTimeout returns how long an open breaker stays open.
func (c *Config) GetBreakerTimeout() time.Duration {
	return parseDuration(c.Breaker.OpenTimeout, 60*time.Second)
}

// GetSkillsTTL returns the skill cache TTL.
func (c *Config) GetSkillsTTL() time.Duration {
	return parseDuration(c.Skills.TTL, 5*time.Minute)
}

// APIKey returns the credential for the selected provider.
func (c *Config) APIKey() string {
	switch c.Provider.Name {
	case ProviderAnthropic:
		return c.Provider.AnthropicAPIKey
	default:
		return c.Provider.GeminiAPIKey
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// ValidProviders lists all supported providers.
var ValidProviders = []string{ProviderGemini, ProviderAnthropic}

// ValidTiers lists the tier names accepted in provider.models.
var ValidTiers = []string{"fast", "balanced", "deep"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.Provider.Name == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid provider: %s (valid: %v)", c.Provider.Name, ValidProviders)
	}

	if c.APIKey() == "" {
		return fmt.Errorf("%s API key not configured (set GEMINI_API_KEY or ANTHROPIC_API_KEY)", c.Provider.Name)
	}

	for tier := range c.Provider.Models {
		if !contains(ValidTiers, tier) {
			return fmt.Errorf("invalid model tier: %s (valid: %v)", tier, ValidTiers)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	for name, raw := range map[string]string{
		"retry.base_delay":     c.Retry.BaseDelay,
		"retry.max_delay":      c.Retry.MaxDelay,
		"provider.timeout":     c.Provider.Timeout,
		"breaker.open_timeout": c.Breaker.OpenTimeout,
		"skills.ttl":           c.Skills.TTL,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Session.ItemCount < 1 || c.Session.GenerationSize < 1 {
		return fmt.Errorf("session.item_count and session.generation_size must be positive")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
