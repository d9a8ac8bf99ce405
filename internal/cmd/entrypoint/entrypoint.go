// Package entrypoint runs the dice gRPC service and the MCP HTTP bridge in
// one process, for single-container deployments.
package entrypoint

import (
	"context"
	"flag"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	entrypoint "github.com/louisbranch/dicenotation/internal/platform/cmd"
	"github.com/louisbranch/dicenotation/internal/platform/discovery"
	server "github.com/louisbranch/dicenotation/internal/services/dice/app"
	mcpservice "github.com/louisbranch/dicenotation/internal/services/mcp/service"
)

// defaultHTTPAddr exposes the MCP bridge outside the container.
const defaultHTTPAddr = "0.0.0.0:8081"

// Config holds combined runtime configuration.
type Config struct {
	DiceAddr     string   `env:"DICE_ADDR"`
	DBPath       string   `env:"DICE_DB_PATH"       envDefault:"data/dice.db"`
	PresetsPath  string   `env:"DICE_PRESETS_PATH"`
	ExplodeLimit int      `env:"DICE_EXPLODE_LIMIT"`
	HTTPAddr     string   `env:"MCP_HTTP_ADDR"`
	AllowedHosts []string `env:"MCP_ALLOWED_HOSTS"  envSeparator:","`
	Token        string   `env:"MCP_TOKEN"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.DiceAddr = discovery.OrDefaultGRPCAddr(cfg.DiceAddr, discovery.ServiceDice)

	fs.StringVar(&cfg.DiceAddr, "dice-addr", cfg.DiceAddr, "dice gRPC bind address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Roll history SQLite database path")
	fs.StringVar(&cfg.PresetsPath, "presets", cfg.PresetsPath, "YAML preset catalog (defaults to the built-in catalog)")
	fs.IntVar(&cfg.ExplodeLimit, "explode-limit", cfg.ExplodeLimit, "Extra faces a single exploding die may add (0 keeps the default)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "MCP HTTP bind address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.ExplodeLimit < 0 {
		return Config{}, fmt.Errorf("explode limit must not be negative: %d", cfg.ExplodeLimit)
	}
	return cfg, nil
}

// Run starts both services and stops them together.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEntrypoint, func(ctx context.Context) error {
		return runServices(ctx, cfg)
	})
}

// runServices serves dice and MCP until ctx ends or either one exits. The
// first exit cancels the other.
func runServices(ctx context.Context, cfg Config) error {
	dice, err := server.NewWithConfig(server.Config{
		Addr:         cfg.DiceAddr,
		DBPath:       cfg.DBPath,
		PresetsPath:  cfg.PresetsPath,
		ExplodeLimit: cfg.ExplodeLimit,
	})
	if err != nil {
		return fmt.Errorf("start dice server: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		defer cancel()
		if err := dice.Serve(groupCtx); err != nil {
			return fmt.Errorf("dice: %w", err)
		}
		log.Printf("dice server stopped")
		return nil
	})
	group.Go(func() error {
		defer cancel()
		err := mcpservice.Run(groupCtx, mcpservice.Config{
			GRPCAddr:     dice.Addr(),
			Transport:    mcpservice.TransportHTTP,
			HTTPAddr:     cfg.HTTPAddr,
			AllowedHosts: cfg.AllowedHosts,
			AuthToken:    cfg.Token,
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
		log.Printf("mcp bridge stopped")
		return nil
	})
	return group.Wait()
}
