package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/louisbranch/dicenotation/internal/platform/errors"
	platformgrpc "github.com/louisbranch/dicenotation/internal/platform/grpc"
	dicev1 "github.com/louisbranch/dicenotation/internal/services/dice/api/grpc/dice"
)

type fakeDiceClient struct {
	rollReq      dicev1.RollRequest
	rollResp     dicev1.RollResponse
	rollErr      error
	validateResp dicev1.ValidateResponse
	validateErr  error
	listReq      dicev1.ListRollsRequest
	listResp     dicev1.ListRollsResponse
	listErr      error
	presetsResp  dicev1.ListPresetsResponse
	presetsErr   error
	header       metadata.MD
	outgoing     metadata.MD
}

func (f *fakeDiceClient) setHeader(ctx context.Context, opts []grpc.CallOption) {
	f.outgoing, _ = metadata.FromOutgoingContext(ctx)
	if f.header == nil {
		return
	}
	for _, opt := range opts {
		if header, ok := opt.(grpc.HeaderCallOption); ok {
			*header.HeaderAddr = f.header
		}
	}
}

func (f *fakeDiceClient) Roll(ctx context.Context, req dicev1.RollRequest, opts ...grpc.CallOption) (dicev1.RollResponse, error) {
	f.rollReq = req
	f.setHeader(ctx, opts)
	return f.rollResp, f.rollErr
}

func (f *fakeDiceClient) Validate(ctx context.Context, _ dicev1.ValidateRequest, opts ...grpc.CallOption) (dicev1.ValidateResponse, error) {
	f.setHeader(ctx, opts)
	return f.validateResp, f.validateErr
}

func (f *fakeDiceClient) ListRolls(ctx context.Context, req dicev1.ListRollsRequest, opts ...grpc.CallOption) (dicev1.ListRollsResponse, error) {
	f.listReq = req
	f.setHeader(ctx, opts)
	return f.listResp, f.listErr
}

func (f *fakeDiceClient) ListPresets(ctx context.Context, _ dicev1.ListPresetsRequest, opts ...grpc.CallOption) (dicev1.ListPresetsResponse, error) {
	f.setHeader(ctx, opts)
	return f.presetsResp, f.presetsErr
}

func testRoll() dicev1.RollResponse {
	return dicev1.RollResponse{
		ID:        "roll-1",
		Notation:  "3d6+2",
		Label:     "Damage",
		Total:     12,
		Modifier:  2,
		Breakdown: "3d6 [4, 2, 4] = 10, modifier +2",
		Groups: []dicev1.GroupResult{{
			Notation:     "3d6",
			Description:  "3d6",
			Dice:         []int{4, 2, 4},
			Contribution: 10,
		}},
		RNG: dicev1.RNGResult{
			SeedUsed:   9223372036854775807,
			SeedSource: "SERVER",
			RollMode:   "LIVE",
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("expected one content block, got %+v", result)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want *mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestRollHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeDiceClient{rollResp: testRoll()}
		handler := RollHandler(client, nil)
		toolResult, result, err := handler(context.Background(), nil, RollInput{Notation: "3d6 + 2", Label: "Damage"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "You rolled 3d6 + 2 for Damage:\n🎲 Total: 12"
		if got := toolText(t, toolResult); got != want {
			t.Errorf("text = %q, want %q", got, want)
		}
		if result.Total != 12 || result.ID != "roll-1" {
			t.Errorf("unexpected result: %+v", result)
		}
		if result.Rng == nil || result.Rng.SeedUsed != "9223372036854775807" {
			t.Errorf("rng = %+v, want exact seed", result.Rng)
		}
		if len(result.Groups) != 1 || result.Groups[0].Contribution != 10 {
			t.Errorf("groups = %+v", result.Groups)
		}
		if client.rollReq.Notation != "3d6 + 2" || client.rollReq.Label != "Damage" {
			t.Errorf("request = %+v", client.rollReq)
		}
	})

	t.Run("verbose adds breakdown", func(t *testing.T) {
		roll := testRoll()
		roll.Label = ""
		client := &fakeDiceClient{rollResp: roll}
		toolResult, _, err := RollHandler(client, nil)(context.Background(), nil, RollInput{Notation: "3d6+2", Verbose: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "You rolled 3d6+2:\n🎲 Total: 12\n📊 Breakdown: 3d6 [4, 2, 4] = 10, modifier +2"
		if got := toolText(t, toolResult); got != want {
			t.Errorf("text = %q, want %q", got, want)
		}
	})

	t.Run("preset uses canonical notation", func(t *testing.T) {
		roll := testRoll()
		roll.Notation = "2d20kh1"
		roll.Label = "advantage"
		roll.Preset = "advantage"
		client := &fakeDiceClient{rollResp: roll}
		toolResult, result, err := RollHandler(client, nil)(context.Background(), nil, RollInput{Preset: "advantage"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := toolText(t, toolResult); !strings.HasPrefix(got, "You rolled 2d20kh1 for advantage:") {
			t.Errorf("text = %q", got)
		}
		if result.Preset != "advantage" {
			t.Errorf("preset = %q", result.Preset)
		}
	})

	t.Run("forwards rng and metadata", func(t *testing.T) {
		seed := uint64(42)
		client := &fakeDiceClient{
			rollResp: testRoll(),
			header:   metadata.Pairs(platformgrpc.RequestIDHeader, "server-req"),
		}
		toolResult, _, err := RollHandler(client, nil)(context.Background(), nil, RollInput{
			Notation: "1d20",
			Rng:      &RngRequest{Seed: &seed, RollMode: "REPLAY"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.rollReq.RNG == nil || *client.rollReq.RNG.Seed != 42 || client.rollReq.RNG.RollMode != "REPLAY" {
			t.Errorf("rng request = %+v", client.rollReq.RNG)
		}
		if got := toolResult.Meta[platformgrpc.RequestIDHeader]; got != "server-req" {
			t.Errorf("request id meta = %v, want server-req", got)
		}
		if toolResult.Meta[platformgrpc.InvocationIDHeader] == "" {
			t.Error("expected invocation id meta")
		}
		if platformgrpc.FirstMetadataValue(client.outgoing, platformgrpc.InvocationIDHeader) == "" {
			t.Error("expected invocation id on outgoing metadata")
		}
	})

	t.Run("notifies recent rolls", func(t *testing.T) {
		client := &fakeDiceClient{rollResp: testRoll()}
		var notified []string
		notify := func(_ context.Context, uri string) { notified = append(notified, uri) }
		if _, _, err := RollHandler(client, notify)(context.Background(), nil, RollInput{Notation: "1d6"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(notified) != 1 || notified[0] != RecentRollsURI {
			t.Errorf("notified = %v", notified)
		}
	})

	t.Run("gRPC error carries message", func(t *testing.T) {
		client := &fakeDiceClient{rollErr: apperrors.HandleError(
			apperrors.New(apperrors.CodeInvalidNotation, `Invalid notation part: "3x6". Use dice notation (e.g. 2d6) or whole-number modifiers (e.g. +3).`), "",
		)}
		_, _, err := RollHandler(client, nil)(context.Background(), nil, RollInput{Notation: "3x6"})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), `Invalid notation part: "3x6"`) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("nil client", func(t *testing.T) {
		if _, _, err := RollHandler(nil, nil)(context.Background(), nil, RollInput{Notation: "1d6"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestValidateHandler(t *testing.T) {
	t.Run("valid notation", func(t *testing.T) {
		client := &fakeDiceClient{validateResp: dicev1.ValidateResponse{
			Valid:     true,
			Notation:  "4d6kh3-1d4+2",
			Canonical: "4d6kh3-1d4+2",
			Groups: []dicev1.GroupSummary{
				{Notation: "4d6kh3", Description: "4d6 (keep highest 3)"},
				{Notation: "-1d4", Description: "-1d4"},
			},
			Modifier: 2,
			Min:      1,
			Max:      19,
		}}
		toolResult, result, err := ValidateHandler(client)(context.Background(), nil, ValidateInput{Notation: "4d6kh3-1d4+2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "✅ Valid dice notation: 4d6kh3-1d4+2\n\nBreakdown:\n• 4d6 (keep highest 3)\n• -1d4\n• Modifier: +2"
		if got := toolText(t, toolResult); got != want {
			t.Errorf("text = %q, want %q", got, want)
		}
		if !result.Valid || result.Min != 1 || result.Max != 19 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("negative modifier", func(t *testing.T) {
		client := &fakeDiceClient{validateResp: dicev1.ValidateResponse{
			Valid:    true,
			Groups:   []dicev1.GroupSummary{{Notation: "1d20", Description: "1d20"}},
			Modifier: -3,
		}}
		toolResult, _, err := ValidateHandler(client)(context.Background(), nil, ValidateInput{Notation: "1d20-3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "✅ Valid dice notation: 1d20-3\n\nBreakdown:\n• 1d20\n• Modifier: -3"
		if got := toolText(t, toolResult); got != want {
			t.Errorf("text = %q, want %q", got, want)
		}
	})

	t.Run("invalid notation is not a tool error", func(t *testing.T) {
		client := &fakeDiceClient{validateResp: dicev1.ValidateResponse{
			Valid:    false,
			Notation: "banana",
			Error:    "Invalid dice notation. Use formats like: 3d6, 1d20+5",
		}}
		toolResult, result, err := ValidateHandler(client)(context.Background(), nil, ValidateInput{Notation: "banana"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "❌ Invalid dice notation: banana\n\nError: Invalid dice notation. Use formats like: 3d6, 1d20+5"
		if got := toolText(t, toolResult); got != want {
			t.Errorf("text = %q, want %q", got, want)
		}
		if result.Valid {
			t.Error("expected invalid result")
		}
	})

	t.Run("gRPC error", func(t *testing.T) {
		client := &fakeDiceClient{validateErr: fmt.Errorf("connection refused")}
		if _, _, err := ValidateHandler(client)(context.Background(), nil, ValidateInput{Notation: "1d6"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestHistoryHandler(t *testing.T) {
	t.Run("lists rolls", func(t *testing.T) {
		older := testRoll()
		older.ID = "roll-0"
		older.Label = ""
		older.Notation = "1d20"
		older.Total = 7
		client := &fakeDiceClient{listResp: dicev1.ListRollsResponse{Rolls: []dicev1.RollResponse{testRoll(), older}}}
		toolResult, result, err := HistoryHandler(client)(context.Background(), nil, HistoryInput{Limit: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.listReq.Limit != 2 {
			t.Errorf("limit = %d, want 2", client.listReq.Limit)
		}
		if len(result.Rolls) != 2 || result.Rolls[0].ID != "roll-1" {
			t.Fatalf("rolls = %+v", result.Rolls)
		}
		if result.Rolls[0].CreatedAt != "2026-03-01T12:00:00Z" {
			t.Errorf("created_at = %q", result.Rolls[0].CreatedAt)
		}
		want := "Recent rolls:\n• 2026-03-01T12:00:00Z 3d6+2 (Damage): 12\n• 2026-03-01T12:00:00Z 1d20: 7"
		if got := toolText(t, toolResult); got != want {
			t.Errorf("text = %q, want %q", got, want)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		client := &fakeDiceClient{}
		toolResult, result, err := HistoryHandler(client)(context.Background(), nil, HistoryInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Rolls == nil || len(result.Rolls) != 0 {
			t.Errorf("rolls = %#v, want empty non-nil", result.Rolls)
		}
		if got := toolText(t, toolResult); got != "No rolls recorded yet." {
			t.Errorf("text = %q", got)
		}
	})

	t.Run("gRPC error", func(t *testing.T) {
		client := &fakeDiceClient{listErr: fmt.Errorf("connection refused")}
		if _, _, err := HistoryHandler(client)(context.Background(), nil, HistoryInput{}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestPresetsResourceHandler(t *testing.T) {
	client := &fakeDiceClient{presetsResp: dicev1.ListPresetsResponse{Presets: []dicev1.PresetInfo{
		{Name: "advantage", Notation: "2d20kh1", Description: "Roll two d20 and keep the higher."},
	}}}
	result, err := PresetsResourceHandler(client)(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: PresetsURI},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Contents) != 1 || result.Contents[0].URI != PresetsURI {
		t.Fatalf("contents = %+v", result.Contents)
	}
	var payload PresetListPayload
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Presets) != 1 || payload.Presets[0].Notation != "2d20kh1" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestRecentRollsResourceHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeDiceClient{listResp: dicev1.ListRollsResponse{Rolls: []dicev1.RollResponse{testRoll()}}}
		result, err := RecentRollsResourceHandler(client)(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Contents[0].URI != RecentRollsURI || result.Contents[0].MIMEType != "application/json" {
			t.Fatalf("contents = %+v", result.Contents[0])
		}
		var payload RecentRollsPayload
		if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Rolls) != 1 || payload.Rolls[0].SeedUsed != "9223372036854775807" {
			t.Errorf("payload = %+v", payload)
		}
		if client.listReq.Limit != 0 {
			t.Errorf("limit = %d, want server default", client.listReq.Limit)
		}
	})

	t.Run("gRPC error", func(t *testing.T) {
		client := &fakeDiceClient{listErr: fmt.Errorf("unavailable")}
		if _, err := RecentRollsResourceHandler(client)(context.Background(), nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestNotifyResourceUpdatesSkipsBlank(t *testing.T) {
	var notified []string
	NotifyResourceUpdates(context.Background(), func(_ context.Context, uri string) {
		notified = append(notified, uri)
	}, "", " ", PresetsURI)
	if len(notified) != 1 || notified[0] != PresetsURI {
		t.Errorf("notified = %v", notified)
	}
	NotifyResourceUpdates(context.Background(), nil, PresetsURI)
}
