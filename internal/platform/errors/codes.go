// Package errors provides structured errors that travel over gRPC with
// machine-readable reasons and user-facing messages.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Notation errors
	CodeInvalidNotation    Code = "INVALID_NOTATION"
	CodeNotationAndPreset  Code = "NOTATION_AND_PRESET"
	CodeExplodeLimit       Code = "EXPLODE_LIMIT"
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"

	// Preset errors
	CodePresetNotFound Code = "PRESET_NOT_FOUND"

	// Random/seed errors
	CodeSeedOutOfRange  Code = "SEED_OUT_OF_RANGE"
	CodeInvalidRollMode Code = "INVALID_ROLL_MODE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidNotation,
		CodeNotationAndPreset,
		CodeInvalidRequestBody,
		CodeSeedOutOfRange,
		CodeInvalidRollMode:
		return codes.InvalidArgument

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodePresetNotFound:
		return codes.NotFound

	// Internal - includes CodeExplodeLimit, a server-side cap rather than a
	// malformed request.
	default:
		return codes.Internal
	}
}
