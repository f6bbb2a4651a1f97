package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides are the environment variables that may override the file.
type envOverrides struct {
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	DatabasePath    string `env:"SCHOLARFORGE_DB"`
	LogLevel        string `env:"SCHOLARFORGE_LOG_LEVEL"`
	Provider        string `env:"SCHOLARFORGE_PROVIDER"`
}

// applyEnvOverrides applies environment variable overrides.
//
// Precedence: SCHOLARFORGE_PROVIDER always wins. Otherwise, when the
// configured provider has no key but the other provider's key is present,
// the provider switches to the one that can actually be called.
func (c *Config) applyEnvOverrides() error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if raw.GeminiAPIKey != "" {
		c.Provider.GeminiAPIKey = raw.GeminiAPIKey
	}
	if raw.AnthropicAPIKey != "" {
		c.Provider.AnthropicAPIKey = raw.AnthropicAPIKey
	}

	if raw.Provider != "" {
		c.Provider.Name = raw.Provider
	} else if c.APIKey() == "" {
		switch {
		case c.Provider.GeminiAPIKey != "":
			c.Provider.Name = ProviderGemini
		case c.Provider.AnthropicAPIKey != "":
			c.Provider.Name = ProviderAnthropic
		}
	}

	if raw.DatabasePath != "" {
		c.Store.DatabasePath = raw.DatabasePath
	}
	if raw.LogLevel != "" {
		c.Logging.Level = raw.LogLevel
	}
	return nil
}
