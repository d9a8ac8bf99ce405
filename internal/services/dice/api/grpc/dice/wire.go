// Package dice exposes the dice.v1.DiceService gRPC API.
//
// Requests and responses travel as google.protobuf.Struct values whose
// fields mirror the JSON form of the Go types below, so clients need no
// generated stubs. Seeds are sent as decimal strings to survive the float64
// number encoding of Struct.
//
// Every other integer (total, modifier, min, max) travels as a Struct number
// and is exact only up to 2^53. Parse bounds the modifier to ±MaxModifier
// and each group to MaxGroupVolume, which keeps totals far below that limit.
package dice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/dicenotation/internal/platform/errors"
	"github.com/louisbranch/dicenotation/internal/platform/requestctx"
)

// ServiceName is the fully qualified gRPC service name, also used for health.
const ServiceName = "dice.v1.DiceService"

const (
	methodRoll        = "Roll"
	methodValidate    = "Validate"
	methodListRolls   = "ListRolls"
	methodListPresets = "ListPresets"
)

// RNGRequest carries optional seed controls for a roll.
type RNGRequest struct {
	Seed     *uint64 `json:"seed,omitempty,string"`
	RollMode string  `json:"roll_mode,omitempty"`
}

// RollRequest asks for a roll of Notation or of the named Preset.
type RollRequest struct {
	Notation string      `json:"notation,omitempty"`
	Preset   string      `json:"preset,omitempty"`
	Label    string      `json:"label,omitempty"`
	RNG      *RNGRequest `json:"rng,omitempty"`
}

// RNGResult reports how the roll was seeded.
type RNGResult struct {
	SeedUsed   int64  `json:"seed_used,string"`
	SeedSource string `json:"seed_source"`
	RollMode   string `json:"roll_mode"`
}

// GroupResult summarizes one evaluated dice group.
type GroupResult struct {
	Notation     string `json:"notation"`
	Description  string `json:"description"`
	Dice         []int  `json:"dice"`
	Dropped      []int  `json:"dropped,omitempty"`
	Contribution int    `json:"contribution"`
}

// RollResponse is one evaluated roll.
type RollResponse struct {
	ID        string        `json:"id"`
	Notation  string        `json:"notation"`
	Label     string        `json:"label,omitempty"`
	Preset    string        `json:"preset,omitempty"`
	Total     int           `json:"total"`
	Modifier  int           `json:"modifier"`
	Breakdown string        `json:"breakdown"`
	Groups    []GroupResult `json:"groups,omitempty"`
	RNG       RNGResult     `json:"rng"`
	CreatedAt time.Time     `json:"created_at"`
}

// ValidateRequest asks whether Notation parses.
type ValidateRequest struct {
	Notation string `json:"notation"`
}

// GroupSummary describes one parsed dice group.
type GroupSummary struct {
	Notation    string `json:"notation"`
	Description string `json:"description"`
}

// ValidateResponse reports the parse outcome. Invalid notation is a normal
// response with Valid false, not an error.
type ValidateResponse struct {
	Valid     bool           `json:"valid"`
	Notation  string         `json:"notation"`
	Canonical string         `json:"canonical,omitempty"`
	Error     string         `json:"error,omitempty"`
	Groups    []GroupSummary `json:"groups,omitempty"`
	Modifier  int            `json:"modifier"`
	Min       int            `json:"min"`
	Max       int            `json:"max"`
}

// ListRollsRequest pages roll history; Limit defaults to 10 and caps at 50.
type ListRollsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ListRollsResponse lists rolls newest first.
type ListRollsResponse struct {
	Rolls []RollResponse `json:"rolls"`
}

// ListPresetsRequest has no fields.
type ListPresetsRequest struct{}

// PresetInfo is one named notation.
type PresetInfo struct {
	Name        string `json:"name"`
	Notation    string `json:"notation"`
	Description string `json:"description,omitempty"`
}

// ListPresetsResponse lists presets sorted by name.
type ListPresetsResponse struct {
	Presets []PresetInfo `json:"presets"`
}

// DiceServer is implemented by the dice service.
type DiceServer interface {
	Roll(context.Context, RollRequest) (RollResponse, error)
	Validate(context.Context, ValidateRequest) (ValidateResponse, error)
	ListRolls(context.Context, ListRollsRequest) (ListRollsResponse, error)
	ListPresets(context.Context, ListPresetsRequest) (ListPresetsResponse, error)
}

// ServiceDesc describes dice.v1.DiceService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(methodRoll, DiceServer.Roll),
		unaryMethod(methodValidate, DiceServer.Validate),
		unaryMethod(methodListRolls, DiceServer.ListRolls),
		unaryMethod(methodListPresets, DiceServer.ListPresets),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dice/v1/dice.proto",
}

// RegisterDiceServer registers srv on registrar.
func RegisterDiceServer(registrar grpc.ServiceRegistrar, srv DiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryMethod[Req, Resp any](method string, call func(DiceServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handle := func(ctx context.Context, req any) (any, error) {
				var typed Req
				if err := fromStruct(req.(*structpb.Struct), &typed); err != nil {
					return nil, apperrors.HandleError(apperrors.WithMetadata(
						apperrors.CodeInvalidRequestBody,
						fmt.Sprintf("decode %s request: %v", method, err),
						map[string]string{"Detail": err.Error()},
					), requestctx.LocaleFromContext(ctx))
				}
				resp, err := call(srv.(DiceServer), ctx, typed)
				if err != nil {
					return nil, err
				}
				return toStruct(resp)
			}
			if interceptor == nil {
				return handle(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, handle)
		},
	}
}

func toStruct(value any) (*structpb.Struct, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, target any) error {
	if in == nil {
		return nil
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Client calls dice.v1.DiceService over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a dice service client.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Roll evaluates a notation or preset.
func (c *Client) Roll(ctx context.Context, req RollRequest, opts ...grpc.CallOption) (RollResponse, error) {
	return invoke[RollResponse](ctx, c.cc, methodRoll, req, opts)
}

// Validate parses a notation without rolling it.
func (c *Client) Validate(ctx context.Context, req ValidateRequest, opts ...grpc.CallOption) (ValidateResponse, error) {
	return invoke[ValidateResponse](ctx, c.cc, methodValidate, req, opts)
}

// ListRolls returns recent roll history.
func (c *Client) ListRolls(ctx context.Context, req ListRollsRequest, opts ...grpc.CallOption) (ListRollsResponse, error) {
	return invoke[ListRollsResponse](ctx, c.cc, methodListRolls, req, opts)
}

// ListPresets returns the preset catalog.
func (c *Client) ListPresets(ctx context.Context, req ListPresetsRequest, opts ...grpc.CallOption) (ListPresetsResponse, error) {
	return invoke[ListPresetsResponse](ctx, c.cc, methodListPresets, req, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (Resp, error) {
	var resp Resp
	if cc == nil {
		return resp, fmt.Errorf("dice client connection is not configured")
	}
	in, err := toStruct(req)
	if err != nil {
		return resp, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return resp, err
	}
	if err := fromStruct(out, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}
