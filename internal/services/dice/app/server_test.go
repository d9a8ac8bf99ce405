package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/dicenotation/internal/platform/errors"
	"github.com/louisbranch/dicenotation/internal/platform/errors/i18n"
	platformgrpc "github.com/louisbranch/dicenotation/internal/platform/grpc"
	diceservice "github.com/louisbranch/dicenotation/internal/services/dice/api/grpc/dice"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func startServer(t *testing.T, cfg Config) *grpc.ClientConn {
	t.Helper()
	srv, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial dice server: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Fatalf("close gRPC connection: %v", closeErr)
		}
	})
	return conn
}

func TestServer_RollAndListRoundTrip(t *testing.T) {
	conn := startServer(t, Config{
		Addr:   "127.0.0.1:0",
		DBPath: filepath.Join(t.TempDir(), "nested", "dice.db"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: diceservice.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if health.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %s, want SERVING", health.GetStatus())
	}

	client := diceservice.NewClient(conn)
	rolled, err := client.Roll(ctx, diceservice.RollRequest{Preset: "advantage"})
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if rolled.Notation != "2d20kh1" {
		t.Fatalf("notation = %q, want 2d20kh1", rolled.Notation)
	}
	if rolled.Total < 1 || rolled.Total > 20 {
		t.Fatalf("total = %d, want within [1, 20]", rolled.Total)
	}

	listed, err := client.ListRolls(ctx, diceservice.ListRollsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	if len(listed.Rolls) != 1 || listed.Rolls[0].ID != rolled.ID {
		t.Fatalf("rolls = %+v, want the single roll %s", listed.Rolls, rolled.ID)
	}
}

func TestServer_CustomPresetsAndExplodeLimit(t *testing.T) {
	dir := t.TempDir()
	presetsPath := filepath.Join(dir, "presets.yaml")
	content := "presets:\n  - name: coin\n    notation: 1d1!\n    description: Always explodes\n"
	if err := os.WriteFile(presetsPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	conn := startServer(t, Config{
		Addr:         "127.0.0.1:0",
		DBPath:       filepath.Join(dir, "dice.db"),
		PresetsPath:  presetsPath,
		ExplodeLimit: 3,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := diceservice.NewClient(conn)
	listed, err := client.ListPresets(ctx, diceservice.ListPresetsRequest{})
	if err != nil {
		t.Fatalf("list presets: %v", err)
	}
	if len(listed.Presets) != 1 || listed.Presets[0].Name != "coin" {
		t.Fatalf("presets = %+v, want only coin", listed.Presets)
	}

	if _, err := client.Roll(ctx, diceservice.RollRequest{Preset: "coin"}); err == nil {
		t.Fatal("expected explode limit error")
	}
}

func TestNewWithConfigRejectsBadPresets(t *testing.T) {
	dir := t.TempDir()
	presetsPath := filepath.Join(dir, "presets.yaml")
	if err := os.WriteFile(presetsPath, []byte("presets:\n  - name: broken\n    notation: banana\n"), 0o600); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	_, err := NewWithConfig(Config{
		Addr:        "127.0.0.1:0",
		DBPath:      filepath.Join(dir, "dice.db"),
		PresetsPath: presetsPath,
	})
	if err == nil {
		t.Fatal("expected preset load error")
	}
}

func TestServer_LocalizesErrorsAndEchoesRequestID(t *testing.T) {
	i18n.RegisterCatalog(i18n.NewCatalog("es-ES", map[string]string{
		string(apperrors.CodePresetNotFound): `No existe el preajuste "{{.Name}}".`,
	}))
	conn := startServer(t, Config{
		Addr:   "127.0.0.1:0",
		DBPath: filepath.Join(t.TempDir(), "dice.db"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx,
		platformgrpc.LocaleHeader, "es",
		platformgrpc.RequestIDHeader, "req-42",
	)

	var header metadata.MD
	client := diceservice.NewClient(conn)
	if _, err := client.Validate(ctx, diceservice.ValidateRequest{Notation: "1d6"}, grpc.Header(&header)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := platformgrpc.FirstMetadataValue(header, platformgrpc.RequestIDHeader); got != "req-42" {
		t.Fatalf("request id header = %q, want req-42", got)
	}

	_, err := client.Roll(ctx, diceservice.RollRequest{Preset: "nope"})
	if err == nil {
		t.Fatal("expected error for unknown preset")
	}
	if got := apperrors.LocalizedMessage(err); got != `No existe el preajuste "nope".` {
		t.Fatalf("localized message = %q", got)
	}
}
