package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	dicev1 "github.com/louisbranch/dicenotation/internal/services/dice/api/grpc/dice"
	diceserver "github.com/louisbranch/dicenotation/internal/services/dice/app"
	"github.com/louisbranch/dicenotation/internal/services/mcp/domain"
)

type stubDiceClient struct {
	roll dicev1.RollResponse
}

func (s *stubDiceClient) Roll(context.Context, dicev1.RollRequest, ...grpc.CallOption) (dicev1.RollResponse, error) {
	return s.roll, nil
}

func (s *stubDiceClient) Validate(_ context.Context, req dicev1.ValidateRequest, _ ...grpc.CallOption) (dicev1.ValidateResponse, error) {
	return dicev1.ValidateResponse{Valid: true, Notation: req.Notation, Canonical: req.Notation}, nil
}

func (s *stubDiceClient) ListRolls(context.Context, dicev1.ListRollsRequest, ...grpc.CallOption) (dicev1.ListRollsResponse, error) {
	return dicev1.ListRollsResponse{Rolls: []dicev1.RollResponse{s.roll}}, nil
}

func (s *stubDiceClient) ListPresets(context.Context, dicev1.ListPresetsRequest, ...grpc.CallOption) (dicev1.ListPresetsResponse, error) {
	return dicev1.ListPresetsResponse{Presets: []dicev1.PresetInfo{{Name: "advantage", Notation: "2d20kh1"}}}, nil
}

func connectInMemory(t *testing.T, server *Server, opts *mcp.ClientOptions) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, opts)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func newStubServer(t *testing.T) *Server {
	t.Helper()
	server, err := newServer(&stubDiceClient{roll: dicev1.RollResponse{
		ID:        "roll-1",
		Notation:  "1d20",
		Total:     17,
		Breakdown: "1d20 [17] = 17",
		RNG:       dicev1.RNGResult{SeedUsed: 1, SeedSource: "SERVER", RollMode: "LIVE"},
	}}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func TestServerRegistersDiceToolsAndResources(t *testing.T) {
	session := connectInMemory(t, newStubServer(t), nil)
	ctx := context.Background()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "dice_history,dice_roll,dice_validate" {
		t.Fatalf("tools = %v", names)
	}

	resources, err := session.ListResources(ctx, nil)
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	var uris []string
	for _, resource := range resources.Resources {
		uris = append(uris, resource.URI)
	}
	sort.Strings(uris)
	if strings.Join(uris, ",") != domain.PresetsURI+","+domain.RecentRollsURI {
		t.Fatalf("resources = %v", uris)
	}
}

func TestServerCallRollToolNotifiesSubscribers(t *testing.T) {
	updates := make(chan string, 1)
	session := connectInMemory(t, newStubServer(t), &mcp.ClientOptions{
		ResourceUpdatedHandler: func(_ context.Context, req *mcp.ResourceUpdatedNotificationRequest) {
			updates <- req.Params.URI
		},
	})
	ctx := context.Background()

	if err := session.Subscribe(ctx, &mcp.SubscribeParams{URI: domain.RecentRollsURI}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "dice_roll",
		Arguments: map[string]any{"notation": "1d20"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result.Content)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok || text.Text != "You rolled 1d20:\n🎲 Total: 17" {
		t.Fatalf("content = %+v", result.Content[0])
	}

	select {
	case uri := <-updates:
		if uri != domain.RecentRollsURI {
			t.Fatalf("updated uri = %q", uri)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resource update")
	}
}

func TestServerRejectsUnknownSubscription(t *testing.T) {
	session := connectInMemory(t, newStubServer(t), nil)
	if err := session.Subscribe(context.Background(), &mcp.SubscribeParams{URI: "dice://nope"}); err == nil {
		t.Fatal("expected subscribe error")
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	err := Run(context.Background(), Config{GRPCAddr: "127.0.0.1:1", Transport: "carrier-pigeon"})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("err = %v, want unsupported transport", err)
	}
}

func TestRunWithTransportFailsWithoutDiceServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	serverTransport, _ := mcp.NewInMemoryTransports()
	if err := runWithTransport(ctx, "", serverTransport); err == nil {
		t.Fatal("expected dial error for empty address")
	}
}

// startDiceServer serves a real dice gRPC server on a loopback port.
func startDiceServer(t *testing.T) *diceserver.Server {
	t.Helper()
	dice, err := diceserver.NewWithConfig(diceserver.Config{
		Addr:   "127.0.0.1:0",
		DBPath: filepath.Join(t.TempDir(), "dice.db"),
	})
	if err != nil {
		t.Fatalf("new dice server: %v", err)
	}
	diceCtx, diceCancel := context.WithCancel(context.Background())
	diceDone := make(chan error, 1)
	go func() { diceDone <- dice.Serve(diceCtx) }()
	t.Cleanup(func() {
		diceCancel()
		<-diceDone
	})
	return dice
}

func TestMonitorHealthStopsOnCancel(t *testing.T) {
	dice := startDiceServer(t)
	conn, err := dialDiceGRPC(context.Background(), dice.Addr())
	if err != nil {
		t.Fatalf("dial dice: %v", err)
	}
	defer conn.Close()

	for name, target := range map[string]*grpc.ClientConn{"connected": conn, "nil conn": nil} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				monitorHealth(ctx, target, 5*time.Millisecond)
				close(done)
			}()
			time.Sleep(30 * time.Millisecond)
			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("monitorHealth did not stop after cancel")
			}
		})
	}
}

func TestRunWithHTTPTransportShutsDownCleanly(t *testing.T) {
	dice := startDiceServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	original := listenTCP
	listenTCP = func(string, string) (net.Listener, error) { return listener, nil }
	t.Cleanup(func() { listenTCP = original })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{GRPCAddr: dice.Addr(), Transport: TransportHTTP, HTTPAddr: "ignored:0"})
	}()

	url := "http://" + listener.Addr().String() + "/mcp/health"
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("HTTP runtime did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for HTTP runtime shutdown")
	}
}

func TestRunWithTransportAgainstDiceServer(t *testing.T) {
	dice := startDiceServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- runWithTransport(ctx, dice.Addr(), serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer clientCancel()
	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	validated, err := session.CallTool(clientCtx, &mcp.CallToolParams{
		Name:      "dice_validate",
		Arguments: map[string]any{"notation": "4d6kh3+2"},
	})
	if err != nil {
		t.Fatalf("call dice_validate: %v", err)
	}
	text := validated.Content[0].(*mcp.TextContent).Text
	want := "✅ Valid dice notation: 4d6kh3+2\n\nBreakdown:\n• 4d6 (keep highest 3)\n• Modifier: +2"
	if text != want {
		t.Fatalf("validate text = %q, want %q", text, want)
	}

	if _, err := session.CallTool(clientCtx, &mcp.CallToolParams{
		Name:      "dice_roll",
		Arguments: map[string]any{"preset": "fireball"},
	}); err != nil {
		t.Fatalf("call dice_roll: %v", err)
	}

	read, err := session.ReadResource(clientCtx, &mcp.ReadResourceParams{URI: domain.RecentRollsURI})
	if err != nil {
		t.Fatalf("read recent rolls: %v", err)
	}
	var payload domain.RecentRollsPayload
	if err := json.Unmarshal([]byte(read.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode recent rolls: %v", err)
	}
	if len(payload.Rolls) != 1 || payload.Rolls[0].Notation != "8d6" || payload.Rolls[0].Label != "fireball" {
		t.Fatalf("recent rolls = %+v", payload.Rolls)
	}

	invalid, err := session.CallTool(clientCtx, &mcp.CallToolParams{
		Name:      "dice_roll",
		Arguments: map[string]any{"notation": "banana"},
	})
	if err != nil {
		t.Fatalf("call dice_roll: %v", err)
	}
	if !invalid.IsError {
		t.Fatal("expected tool error for invalid notation")
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for MCP server shutdown")
	}
}
