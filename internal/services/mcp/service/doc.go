// Package service wires protocol transport to the dice MCP handlers.
//
// It knows how to run MCP over stdio or HTTP and delegates tool and resource
// meaning to the domain package.
package service
