// Package domain translates MCP tool and resource calls into dice service
// requests.
//
// Handlers parse the MCP input, call the dice gRPC API with correlation
// metadata attached, and render both a human-readable text block and a
// structured result that MCP clients can consume.
package domain
