// Package config holds the environment configuration for the resource
// handlers. All environment reads happen here; the parsed struct is passed
// to constructors explicitly.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	// LogLevel controls the global slog level.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// PollInterval is the delay between certificate validation-record polls.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	// EventRoleARN is attached to continuation schedule rules when set.
	EventRoleARN string `env:"EVENT_ROLE_ARN"`
	// FunctionARN is the ARN of the handler function itself, used as the
	// invocation target of continuation schedule rules.
	FunctionARN string `env:"FUNCTION_ARN"`
	// Region overrides the SDK default region resolution when set.
	Region string `env:"AWS_REGION"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
