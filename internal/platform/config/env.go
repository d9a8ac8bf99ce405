// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name declared in an env tag.
const EnvPrefix = "DICENOTATION_"

// ParseEnv loads configuration from environment variables. Tags name the
// variable without EnvPrefix, so `env:"PORT"` reads DICENOTATION_PORT.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
