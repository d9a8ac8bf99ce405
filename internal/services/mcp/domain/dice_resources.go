package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/dicenotation/internal/platform/errors"
	dicev1 "github.com/louisbranch/dicenotation/internal/services/dice/api/grpc/dice"
)

// Resource URIs served by the dice MCP adapter.
const (
	PresetsURI     = "dice://presets"
	RecentRollsURI = "dice://rolls/recent"
)

// PresetEntry is one preset in the presets resource payload.
type PresetEntry struct {
	Name        string `json:"name"`
	Notation    string `json:"notation"`
	Description string `json:"description,omitempty"`
}

// PresetListPayload is the JSON body of dice://presets.
type PresetListPayload struct {
	Presets []PresetEntry `json:"presets"`
}

// RecentRollsPayload is the JSON body of dice://rolls/recent.
type RecentRollsPayload struct {
	Rolls []HistoryEntry `json:"rolls"`
}

// PresetsResource defines the MCP resource for the preset catalog.
func PresetsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "dice_presets",
		Title:       "Dice presets",
		Description: "Named dice notations that dice_roll accepts as preset",
		MIMEType:    "application/json",
		URI:         PresetsURI,
	}
}

// RecentRollsResource defines the MCP resource for recent roll history.
func RecentRollsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "dice_recent_rolls",
		Title:       "Recent rolls",
		Description: "The most recent dice rolls, newest first",
		MIMEType:    "application/json",
		URI:         RecentRollsURI,
	}
}

// PresetsResourceHandler reads the preset catalog from the dice service.
func PresetsResourceHandler(client DiceClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("dice client is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, _ := NewOutgoingContext(runCtx, "")

		response, err := client.ListPresets(callCtx, dicev1.ListPresetsRequest{})
		if err != nil {
			return nil, fmt.Errorf("preset list failed: %s", apperrors.LocalizedMessage(err))
		}

		payload := PresetListPayload{Presets: make([]PresetEntry, 0, len(response.Presets))}
		for _, preset := range response.Presets {
			payload.Presets = append(payload.Presets, PresetEntry{
				Name:        preset.Name,
				Notation:    preset.Notation,
				Description: preset.Description,
			})
		}
		return jsonResource(resourceURI(req, PresetsURI), payload)
	}
}

// RecentRollsResourceHandler reads the default page of roll history.
func RecentRollsResourceHandler(client DiceClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("dice client is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, _ := NewOutgoingContext(runCtx, "")

		response, err := client.ListRolls(callCtx, dicev1.ListRollsRequest{})
		if err != nil {
			return nil, fmt.Errorf("recent rolls failed: %s", apperrors.LocalizedMessage(err))
		}
		return jsonResource(resourceURI(req, RecentRollsURI), RecentRollsPayload{Rolls: historyEntries(response.Rolls)})
	}
}

func resourceURI(req *mcp.ReadResourceRequest, fallback string) string {
	if req == nil || req.Params == nil || req.Params.URI == "" {
		return fallback
	}
	return req.Params.URI
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
