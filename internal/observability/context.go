package observability

import (
	"context"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	batchIDKey   contextKey = "batch_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithBatchID adds an enrichment batch ID to the context.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey, batchID)
}

// BatchIDFromContext retrieves the batch ID from context.
// Returns empty string if not present.
func BatchIDFromContext(ctx context.Context) string {
	return stringValue(ctx, batchIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
