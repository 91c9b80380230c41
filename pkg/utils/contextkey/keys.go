package contextkey

// Key types request-scoped context values so they cannot collide with keys
// from other packages.
type Key string

const (
	TraceID   Key = "trace_id"
	RequestID Key = "request_id"
	UserID    Key = "user_id"
)
