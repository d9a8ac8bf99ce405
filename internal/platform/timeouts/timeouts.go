// Package timeouts defines the durations shared by the dice and MCP services.
package timeouts

import "time"

// GRPCDial caps the wait for a gRPC peer to accept a connection and report
// healthy.
const GRPCDial = 5 * time.Second

// GRPCRequest caps a single call from the MCP adapter to the dice service.
const GRPCRequest = 3 * time.Second

// ReadHeader limits how long the MCP HTTP transport waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits graceful shutdown of listeners and in-flight calls.
const Shutdown = 5 * time.Second
