package monitoring

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config controls whether the engine exposes a Prometheus metrics endpoint
// and where (§10's monitoring concern).
type Config struct {
	// Enabled activates metric collection and the /metrics endpoint.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled" env:"MONITORING_ENABLED"`
	// Path is the HTTP path metrics are served on.
	Path string `json:"path" yaml:"path" mapstructure:"path" env:"MONITORING_PATH"`
}

// DefaultConfig returns monitoring disabled at the conventional path.
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Path:    "/metrics",
	}
}

// Validate checks Path is a usable, non-conflicting HTTP path.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if strings.HasPrefix(c.Path, "/api/") {
		return fmt.Errorf("monitoring path cannot be under /api/")
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	return nil
}

// LoadWithEnv applies MONITORING_ENABLED/MONITORING_PATH overrides on top
// of yamlConfig (or the default, when nil), env taking precedence.
func LoadWithEnv(_ context.Context, yamlConfig *Config) (*Config, error) {
	config := DefaultConfig()
	if yamlConfig != nil {
		config.Enabled = yamlConfig.Enabled
		if yamlConfig.Path != "" {
			config.Path = yamlConfig.Path
		}
	}
	if envEnabled := os.Getenv("MONITORING_ENABLED"); envEnabled != "" {
		if enabled, err := strconv.ParseBool(envEnabled); err == nil {
			config.Enabled = enabled
		}
	}
	if envPath := os.Getenv("MONITORING_PATH"); envPath != "" {
		config.Path = envPath
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitoring configuration: %w", err)
	}
	return config, nil
}
