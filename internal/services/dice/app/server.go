// Package server wires the dice runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	platformgrpc "github.com/louisbranch/dicenotation/internal/platform/grpc"
	diceservice "github.com/louisbranch/dicenotation/internal/services/dice/api/grpc/dice"
	"github.com/louisbranch/dicenotation/internal/services/dice/presets"
	dicesqlite "github.com/louisbranch/dicenotation/internal/services/dice/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Config configures the dice server runtime.
type Config struct {
	Addr string
	// DBPath is the roll history database; defaults to data/dice.db.
	DBPath string
	// PresetsPath points at a YAML preset catalog; empty uses the built-in one.
	PresetsPath string
	// ExplodeLimit overrides the per-die explosion cap when positive.
	ExplodeLimit int
}

// Server hosts the dice gRPC API and storage lifecycle.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *dicesqlite.Store
}

// New creates a configured dice server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithConfig(Config{Addr: fmt.Sprintf(":%d", port)})
}

// NewWithAddr creates a configured dice server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	return NewWithConfig(Config{Addr: addr})
}

// NewWithConfig creates a dice server from cfg.
func NewWithConfig(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "dice.db")
	}

	catalog, err := presets.Load(cfg.PresetsPath)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	store, err := openDiceStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	var opts []diceservice.Option
	if cfg.ExplodeLimit > 0 {
		opts = append(opts, diceservice.WithExplodeLimit(cfg.ExplodeLimit))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(platformgrpc.RequestMetadataUnaryInterceptor(nil)),
	)
	diceservice.RegisterDiceServer(grpcServer, diceservice.NewService(store, catalog, opts...))
	healthServer := platformgrpc.RegisterHealth(grpcServer, diceservice.ServiceName)

	log.Printf("loaded %d dice presets", catalog.Len())
	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a dice server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewWithConfig(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("dice server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
		return serveResult(<-serveErr)
	case err := <-serveErr:
		return serveResult(err)
	}
}

func serveResult(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

// Close releases dice server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close dice store: %v", err)
		}
		s.store = nil
	}
}

func openDiceStore(path string) (*dicesqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := dicesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dice sqlite store: %w", err)
	}
	return store, nil
}
