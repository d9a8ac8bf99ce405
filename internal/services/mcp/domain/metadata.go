package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc/metadata"

	platformgrpc "github.com/louisbranch/dicenotation/internal/platform/grpc"
)

// ToolCallMetadata carries correlation identifiers for MCP tool calls.
type ToolCallMetadata struct {
	RequestID    string
	InvocationID string
}

// ResourceUpdateNotifier notifies MCP clients about resource updates.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// NewInvocationID generates an invocation identifier for a tool call.
func NewInvocationID() string {
	return uuid.NewString()
}

// NewOutgoingContext attaches a fresh request ID, and invocationID when set,
// to the outgoing gRPC metadata.
func NewOutgoingContext(ctx context.Context, invocationID string) (context.Context, ToolCallMetadata) {
	requestID := uuid.NewString()
	callCtx := metadata.AppendToOutgoingContext(ctx, platformgrpc.RequestIDHeader, requestID)
	if invocationID != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, platformgrpc.InvocationIDHeader, invocationID)
	}
	return callCtx, ToolCallMetadata{RequestID: requestID, InvocationID: invocationID}
}

// MergeResponseMetadata overlays response headers on top of sent metadata.
func MergeResponseMetadata(sent ToolCallMetadata, header metadata.MD) ToolCallMetadata {
	requestID := platformgrpc.FirstMetadataValue(header, platformgrpc.RequestIDHeader)
	if requestID == "" {
		requestID = sent.RequestID
	}
	invocationID := platformgrpc.FirstMetadataValue(header, platformgrpc.InvocationIDHeader)
	if invocationID == "" {
		invocationID = sent.InvocationID
	}
	return ToolCallMetadata{RequestID: requestID, InvocationID: invocationID}
}

// CallToolResultWithMetadata builds a text tool result carrying correlation
// metadata.
func CallToolResultWithMetadata(meta ToolCallMetadata, text string) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Meta: map[string]any{
			platformgrpc.RequestIDHeader: meta.RequestID,
		},
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
	if meta.InvocationID != "" {
		result.Meta[platformgrpc.InvocationIDHeader] = meta.InvocationID
	}
	return result
}

// NotifyResourceUpdates sends resource update notifications for each URI provided.
func NotifyResourceUpdates(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		notify(ctx, uri)
	}
}
