package consts

// ContextKey is a custom type for context keys to avoid collisions between packages.
type ContextKey string

const (
	// RequestIDKey carries the HTTP API request ID.
	RequestIDKey = ContextKey("request_id")
)
