package domain

import "github.com/louisbranch/dicenotation/internal/platform/timeouts"

// grpcCallTimeout caps the time for a single gRPC call from an MCP handler.
const grpcCallTimeout = timeouts.GRPCRequest
