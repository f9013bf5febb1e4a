// Package config loads host configuration: environment defaults for the CLI
// and the toggle settings file a user keeps between runs.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds environment-provided defaults. Command-line flags override
// every field.
type Config struct {
	// DBPath is the session journal. Empty disables journaling.
	DBPath string `env:"SPLITSCRIPT_DB" envDefault:"splitscript.db"`

	// SettingsPath is the toggle file loaded before startup and saved on
	// shutdown. Empty disables persistence.
	SettingsPath string `env:"SPLITSCRIPT_SETTINGS"`

	// Splits names the segments of the in-memory timer.
	Splits []string `env:"SPLITSCRIPT_SPLITS" envSeparator:"," envDefault:"split"`

	// SlowCall is the script call duration that triggers a warning.
	SlowCall time.Duration `env:"SPLITSCRIPT_SLOW_CALL" envDefault:"50ms"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the Config for the current environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
