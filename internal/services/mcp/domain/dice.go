package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/louisbranch/dicenotation/internal/platform/errors"
	dicev1 "github.com/louisbranch/dicenotation/internal/services/dice/api/grpc/dice"
)

// DiceClient is the subset of the dice gRPC client used by MCP handlers.
type DiceClient interface {
	Roll(ctx context.Context, req dicev1.RollRequest, opts ...grpc.CallOption) (dicev1.RollResponse, error)
	Validate(ctx context.Context, req dicev1.ValidateRequest, opts ...grpc.CallOption) (dicev1.ValidateResponse, error)
	ListRolls(ctx context.Context, req dicev1.ListRollsRequest, opts ...grpc.CallOption) (dicev1.ListRollsResponse, error)
	ListPresets(ctx context.Context, req dicev1.ListPresetsRequest, opts ...grpc.CallOption) (dicev1.ListPresetsResponse, error)
}

// RngRequest represents optional seed controls for a roll.
type RngRequest struct {
	Seed     *uint64 `json:"seed,omitempty" jsonschema:"seed to replay; honoured only when roll_mode is REPLAY"`
	RollMode string  `json:"roll_mode,omitempty" jsonschema:"LIVE (default) or REPLAY"`
}

// RngResult reports how a roll was seeded.
type RngResult struct {
	SeedUsed   string `json:"seed_used" jsonschema:"seed used for the roll, as a decimal string"`
	SeedSource string `json:"seed_source" jsonschema:"SERVER or CLIENT"`
	RollMode   string `json:"roll_mode" jsonschema:"LIVE or REPLAY"`
}

// RollInput represents the MCP tool input for dice_roll.
type RollInput struct {
	Notation string      `json:"notation,omitempty" jsonschema:"dice notation like 3d6+2, 4d6kh3 or 2d20kl1"`
	Label    string      `json:"label,omitempty" jsonschema:"optional label for the roll, e.g. Damage roll"`
	Verbose  bool        `json:"verbose,omitempty" jsonschema:"show a detailed breakdown of the roll"`
	Preset   string      `json:"preset,omitempty" jsonschema:"named preset to roll instead of notation"`
	Rng      *RngRequest `json:"rng,omitempty" jsonschema:"optional rng configuration"`
}

// RollGroup represents one evaluated dice group.
type RollGroup struct {
	Notation     string `json:"notation" jsonschema:"canonical group notation"`
	Description  string `json:"description" jsonschema:"human-readable group summary"`
	Dice         []int  `json:"dice" jsonschema:"retained die values"`
	Dropped      []int  `json:"dropped,omitempty" jsonschema:"die values discarded by keep or drop"`
	Contribution int    `json:"contribution" jsonschema:"signed amount the group adds to the total"`
}

// RollResult represents the MCP tool output for dice_roll.
type RollResult struct {
	ID        string      `json:"id" jsonschema:"roll identifier"`
	Notation  string      `json:"notation" jsonschema:"canonical notation that was rolled"`
	Label     string      `json:"label,omitempty" jsonschema:"roll label"`
	Preset    string      `json:"preset,omitempty" jsonschema:"preset name when one was used"`
	Total     int         `json:"total" jsonschema:"final total"`
	Modifier  int         `json:"modifier" jsonschema:"flat modifier included in the total"`
	Breakdown string      `json:"breakdown" jsonschema:"per-die breakdown"`
	Groups    []RollGroup `json:"groups,omitempty" jsonschema:"per-group results"`
	Rng       *RngResult  `json:"rng,omitempty" jsonschema:"rng details"`
}

// ValidateInput represents the MCP tool input for dice_validate.
type ValidateInput struct {
	Notation string `json:"notation" jsonschema:"dice notation to validate, e.g. 3d6+2"`
}

// ValidateResult represents the MCP tool output for dice_validate.
type ValidateResult struct {
	Valid     bool     `json:"valid" jsonschema:"whether the notation parses"`
	Canonical string   `json:"canonical,omitempty" jsonschema:"normalized notation"`
	Error     string   `json:"error,omitempty" jsonschema:"parse error for invalid notation"`
	Groups    []string `json:"groups,omitempty" jsonschema:"description of each dice group"`
	Modifier  int      `json:"modifier" jsonschema:"flat modifier"`
	Min       int      `json:"min" jsonschema:"smallest possible total, ignoring explosions"`
	Max       int      `json:"max" jsonschema:"largest possible total, ignoring explosions"`
}

// HistoryInput represents the MCP tool input for dice_history.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum rolls to return (default 10, max 50)"`
}

// HistoryEntry is one recorded roll.
type HistoryEntry struct {
	ID        string `json:"id" jsonschema:"roll identifier"`
	Notation  string `json:"notation" jsonschema:"canonical notation"`
	Label     string `json:"label,omitempty" jsonschema:"roll label"`
	Preset    string `json:"preset,omitempty" jsonschema:"preset name"`
	Total     int    `json:"total" jsonschema:"final total"`
	Breakdown string `json:"breakdown" jsonschema:"per-die breakdown"`
	SeedUsed  string `json:"seed_used" jsonschema:"seed used for the roll"`
	RollMode  string `json:"roll_mode" jsonschema:"LIVE or REPLAY"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp"`
}

// HistoryResult represents the MCP tool output for dice_history.
type HistoryResult struct {
	Rolls []HistoryEntry `json:"rolls" jsonschema:"rolls, newest first"`
}

// RollTool defines the MCP tool schema for rolling dice.
func RollTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "dice_roll",
		Description: `Roll dice using standard notation (e.g., "3d6+2", "2d20kh1") or a named preset`,
	}
}

// ValidateTool defines the MCP tool schema for validating notation.
func ValidateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "dice_validate",
		Description: "Validate dice notation without rolling",
	}
}

// HistoryTool defines the MCP tool schema for recent rolls.
func HistoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "dice_history",
		Description: "List the most recent dice rolls",
	}
}

// RollHandler executes a dice roll and notifies subscribers of the recent
// rolls resource.
func RollHandler(client DiceClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[RollInput, RollResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollInput) (*mcp.CallToolResult, RollResult, error) {
		if client == nil {
			return nil, RollResult{}, fmt.Errorf("dice client is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, callMeta := NewOutgoingContext(runCtx, NewInvocationID())

		request := dicev1.RollRequest{
			Notation: input.Notation,
			Preset:   input.Preset,
			Label:    input.Label,
		}
		if input.Rng != nil {
			request.RNG = &dicev1.RNGRequest{Seed: input.Rng.Seed, RollMode: input.Rng.RollMode}
		}

		var header metadata.MD
		response, err := client.Roll(callCtx, request, grpc.Header(&header))
		if err != nil {
			return nil, RollResult{}, fmt.Errorf("dice roll failed: %s", apperrors.LocalizedMessage(err))
		}

		notation := strings.TrimSpace(input.Notation)
		if notation == "" {
			notation = response.Notation
		}
		text := formatRollText(notation, response.Label, response.Total, response.Breakdown, input.Verbose)

		NotifyResourceUpdates(ctx, notify, RecentRollsURI)
		return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header), text), rollResultFromResponse(response), nil
	}
}

// ValidateHandler checks notation without rolling. Invalid notation is a
// normal result, not a tool error.
func ValidateHandler(client DiceClient) mcp.ToolHandlerFor[ValidateInput, ValidateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ValidateInput) (*mcp.CallToolResult, ValidateResult, error) {
		if client == nil {
			return nil, ValidateResult{}, fmt.Errorf("dice client is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, callMeta := NewOutgoingContext(runCtx, NewInvocationID())

		var header metadata.MD
		response, err := client.Validate(callCtx, dicev1.ValidateRequest{Notation: input.Notation}, grpc.Header(&header))
		if err != nil {
			return nil, ValidateResult{}, fmt.Errorf("dice validate failed: %s", apperrors.LocalizedMessage(err))
		}

		result := ValidateResult{
			Valid:     response.Valid,
			Canonical: response.Canonical,
			Error:     response.Error,
			Modifier:  response.Modifier,
			Min:       response.Min,
			Max:       response.Max,
		}
		for _, group := range response.Groups {
			result.Groups = append(result.Groups, group.Description)
		}

		text := formatValidateText(input.Notation, result)
		return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header), text), result, nil
	}
}

// HistoryHandler lists recent rolls, newest first.
func HistoryHandler(client DiceClient) mcp.ToolHandlerFor[HistoryInput, HistoryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryResult, error) {
		if client == nil {
			return nil, HistoryResult{}, fmt.Errorf("dice client is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, callMeta := NewOutgoingContext(runCtx, NewInvocationID())

		var header metadata.MD
		response, err := client.ListRolls(callCtx, dicev1.ListRollsRequest{Limit: input.Limit}, grpc.Header(&header))
		if err != nil {
			return nil, HistoryResult{}, fmt.Errorf("dice history failed: %s", apperrors.LocalizedMessage(err))
		}

		result := HistoryResult{Rolls: historyEntries(response.Rolls)}
		return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header), formatHistoryText(result.Rolls)), result, nil
	}
}

// formatRollText renders:
//
//	You rolled 3d6+2 for Damage:
//	🎲 Total: 12
//	📊 Breakdown: 3d6 [4, 2, 4] = 10, modifier +2
func formatRollText(notation, label string, total int, breakdown string, verbose bool) string {
	var b strings.Builder
	b.WriteString("You rolled " + notation)
	if label != "" {
		b.WriteString(" for " + label)
	}
	b.WriteString(":\n🎲 Total: " + strconv.Itoa(total))
	if verbose {
		b.WriteString("\n📊 Breakdown: " + breakdown)
	}
	return b.String()
}

func formatValidateText(notation string, result ValidateResult) string {
	if !result.Valid {
		return fmt.Sprintf("❌ Invalid dice notation: %s\n\nError: %s", notation, result.Error)
	}
	var b strings.Builder
	b.WriteString("✅ Valid dice notation: " + notation)
	if len(result.Groups) > 0 {
		b.WriteString("\n\nBreakdown:")
		for _, group := range result.Groups {
			b.WriteString("\n• " + group)
		}
	}
	if result.Modifier != 0 {
		fmt.Fprintf(&b, "\n• Modifier: %+d", result.Modifier)
	}
	return b.String()
}

func formatHistoryText(rolls []HistoryEntry) string {
	if len(rolls) == 0 {
		return "No rolls recorded yet."
	}
	var b strings.Builder
	b.WriteString("Recent rolls:")
	for _, roll := range rolls {
		fmt.Fprintf(&b, "\n• %s %s", roll.CreatedAt, roll.Notation)
		if roll.Label != "" {
			fmt.Fprintf(&b, " (%s)", roll.Label)
		}
		fmt.Fprintf(&b, ": %d", roll.Total)
	}
	return b.String()
}

func rollResultFromResponse(response dicev1.RollResponse) RollResult {
	result := RollResult{
		ID:        response.ID,
		Notation:  response.Notation,
		Label:     response.Label,
		Preset:    response.Preset,
		Total:     response.Total,
		Modifier:  response.Modifier,
		Breakdown: response.Breakdown,
		Rng: &RngResult{
			SeedUsed:   strconv.FormatInt(response.RNG.SeedUsed, 10),
			SeedSource: response.RNG.SeedSource,
			RollMode:   response.RNG.RollMode,
		},
	}
	for _, group := range response.Groups {
		result.Groups = append(result.Groups, RollGroup{
			Notation:     group.Notation,
			Description:  group.Description,
			Dice:         group.Dice,
			Dropped:      group.Dropped,
			Contribution: group.Contribution,
		})
	}
	return result
}

func historyEntries(rolls []dicev1.RollResponse) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(rolls))
	for _, roll := range rolls {
		entries = append(entries, HistoryEntry{
			ID:        roll.ID,
			Notation:  roll.Notation,
			Label:     roll.Label,
			Preset:    roll.Preset,
			Total:     roll.Total,
			Breakdown: roll.Breakdown,
			SeedUsed:  strconv.FormatInt(roll.RNG.SeedUsed, 10),
			RollMode:  roll.RNG.RollMode,
			CreatedAt: formatTimestamp(roll.CreatedAt),
		})
	}
	return entries
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
