package grpc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/dicenotation/internal/platform/requestctx"
)

// RequestIDHeader is the gRPC metadata key for request correlation IDs.
const RequestIDHeader = "x-dice-request-id"

// InvocationIDHeader is the gRPC metadata key for MCP tool invocation IDs.
const InvocationIDHeader = "x-dice-invocation-id"

// LocaleHeader is the gRPC metadata key for the caller's locale, used to
// render user-facing error messages.
const LocaleHeader = "x-dice-locale"

// FirstMetadataValue returns the first printable ASCII metadata value for key.
func FirstMetadataValue(md metadata.MD, key string) string {
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if isPrintableASCII(value) {
				return value
			}
		}
	}
	return ""
}

func isPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// RequestMetadataUnaryInterceptor makes sure every unary call carries a
// request ID. Incoming IDs are kept, missing ones are generated, and both
// IDs are echoed back as response headers and stored in requestctx.
func RequestMetadataUnaryInterceptor(newID func() string) gogrpc.UnaryServerInterceptor {
	if newID == nil {
		newID = uuid.NewString
	}
	return func(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		requestID := FirstMetadataValue(md, RequestIDHeader)
		if requestID == "" {
			requestID = newID()
		}
		invocationID := FirstMetadataValue(md, InvocationIDHeader)
		if locale := FirstMetadataValue(md, LocaleHeader); locale != "" {
			ctx = requestctx.WithLocale(ctx, locale)
		}

		header := metadata.Pairs(RequestIDHeader, requestID)
		ctx = requestctx.WithRequestID(ctx, requestID)
		if invocationID != "" {
			header.Append(InvocationIDHeader, invocationID)
			ctx = requestctx.WithInvocationID(ctx, invocationID)
		}
		if err := gogrpc.SetHeader(ctx, header); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(ctx, req)
	}
}
