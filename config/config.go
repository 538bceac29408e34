// Package config loads runtime settings from the environment and builds the
// dependency set handed to runs.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hupe1980/agentrelay/core"
)

// Environment variable names.
const (
	EnvSearchAPIKey        = "BRAVE_API_KEY"
	EnvMailCredentialsPath = "GMAIL_CREDENTIALS_PATH"
	EnvMailTokenPath       = "GMAIL_TOKEN_PATH"
	EnvModelProvider       = "AGENTRELAY_MODEL_PROVIDER"
	EnvModelName           = "AGENTRELAY_MODEL"
	EnvMaxModelCalls       = "AGENTRELAY_MAX_MODEL_CALLS"
	EnvLogLevel            = "AGENTRELAY_LOG_LEVEL"
)

// Config carries the environment-driven runtime settings. Credential values
// stay inside the Deps set; Config itself is safe to log.
type Config struct {
	SearchAPIKey        string
	MailCredentialsPath string
	MailTokenPath       string

	ModelProvider string // "anthropic" or "openai"
	ModelName     string // provider-specific model identifier, empty for default
	MaxModelCalls int
	LogLevel      string
}

// Load reads settings from the environment. Absent credential values are left
// empty here; run construction rejects them with a dependency error when an
// agent actually requires them.
func Load() (*Config, error) {
	cfg := &Config{
		SearchAPIKey:        os.Getenv(EnvSearchAPIKey),
		MailCredentialsPath: os.Getenv(EnvMailCredentialsPath),
		MailTokenPath:       os.Getenv(EnvMailTokenPath),
		ModelProvider:       envOr(EnvModelProvider, "anthropic"),
		ModelName:           os.Getenv(EnvModelName),
		MaxModelCalls:       10,
		LogLevel:            envOr(EnvLogLevel, "info"),
	}

	if v := os.Getenv(EnvMaxModelCalls); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q", EnvMaxModelCalls, v)
		}
		cfg.MaxModelCalls = n
	}

	switch cfg.ModelProvider {
	case "anthropic", "openai":
	default:
		return nil, fmt.Errorf("%s must be %q or %q, got %q", EnvModelProvider, "anthropic", "openai", cfg.ModelProvider)
	}

	return cfg, nil
}

// Deps builds the dependency set for runs from the loaded credential values.
func (c *Config) Deps() core.Deps {
	deps := core.Deps{}
	if c.SearchAPIKey != "" {
		deps[core.DepSearchAPIKey] = c.SearchAPIKey
	}
	if c.MailCredentialsPath != "" {
		deps[core.DepMailCredentialsPath] = c.MailCredentialsPath
	}
	if c.MailTokenPath != "" {
		deps[core.DepMailTokenPath] = c.MailTokenPath
	}
	return deps
}

// Validate checks that every credential the full agent pair needs is present,
// returning a dependency error naming the corresponding environment variables.
func (c *Config) Validate() error {
	var missing []string
	if c.SearchAPIKey == "" {
		missing = append(missing, EnvSearchAPIKey)
	}
	if c.MailCredentialsPath == "" {
		missing = append(missing, EnvMailCredentialsPath)
	}
	if c.MailTokenPath == "" {
		missing = append(missing, EnvMailTokenPath)
	}
	if len(missing) > 0 {
		return core.NewError(core.KindDependencyMissing, "missing environment variables: %v", missing)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
