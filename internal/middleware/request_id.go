// Package middleware provides gRPC interceptors and HTTP middleware that tag
// every analysis request with a request ID.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader carries the request ID in both directions. gRPC metadata
// keys are lower case; net/http canonicalises the header name.
const RequestIDHeader = "x-request-id"

// UnaryRequestIDInterceptor returns a gRPC unary interceptor that reuses the
// caller's x-request-id when it is a valid UUID and otherwise generates a
// UUID v4. The ID is stored in the context and sent back in the response
// header.
func UnaryRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		var incoming string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDHeader); len(vals) > 0 {
				incoming = vals[0]
			}
		}
		requestID := resolveRequestID(incoming)

		ctx = WithRequestID(ctx, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)) // best effort

		return handler(ctx, req)
	}
}

// RequestID is the HTTP counterpart of UnaryRequestIDInterceptor.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := resolveRequestID(r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request ID from the context. It returns an empty
// string if no request ID has been set.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func resolveRequestID(candidate string) string {
	if id, err := uuid.Parse(candidate); err == nil {
		return id.String()
	}
	return uuid.New().String()
}
