package core

import "context"

type requestIDKey struct{}

// maxClientRequestIDLen is the longest X-Client-Request-Id vendors accept.
const maxClientRequestIDLen = 512

// WithRequestID attaches the id that correlates every vendor call of one invocation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the id set by WithRequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// IsValidClientRequestID reports whether id may be sent as X-Client-Request-Id:
// non-empty, ASCII only and at most 512 bytes.
func IsValidClientRequestID(id string) bool {
	if id == "" || len(id) > maxClientRequestIDLen {
		return false
	}
	for _, r := range id {
		if r > 0x7f {
			return false
		}
	}
	return true
}
