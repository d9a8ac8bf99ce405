// Package dice parses dice service flags and launches the service.
package dice

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/dicenotation/internal/platform/cmd"
	"github.com/louisbranch/dicenotation/internal/platform/discovery"
	server "github.com/louisbranch/dicenotation/internal/services/dice/app"
)

// Config holds dice command configuration.
type Config struct {
	Port         int    `env:"DICE_PORT"`
	DBPath       string `env:"DICE_DB_PATH"       envDefault:"data/dice.db"`
	PresetsPath  string `env:"DICE_PRESETS_PATH"`
	ExplodeLimit int    `env:"DICE_EXPLODE_LIMIT"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Port == 0 {
		cfg.Port = discovery.GRPCPort(discovery.ServiceDice)
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The dice gRPC server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Roll history SQLite database path")
	fs.StringVar(&cfg.PresetsPath, "presets", cfg.PresetsPath, "YAML preset catalog (defaults to the built-in catalog)")
	fs.IntVar(&cfg.ExplodeLimit, "explode-limit", cfg.ExplodeLimit, "Extra faces a single exploding die may add (0 keeps the default)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.ExplodeLimit < 0 {
		return Config{}, fmt.Errorf("explode limit must not be negative: %d", cfg.ExplodeLimit)
	}
	return cfg, nil
}

// Run starts the dice gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDice, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			DBPath:       cfg.DBPath,
			PresetsPath:  cfg.PresetsPath,
			ExplodeLimit: cfg.ExplodeLimit,
		})
	})
}
