package middleware

// DefaultStack returns panic recovery, request ID injection and logging, in
// that order.
func DefaultStack(logger Logger) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Logging(logger),
	}
}
