package middleware

// Context keys used to store request and caller metadata.
const (
	ContextKeyClientID  = "client_id"
	ContextKeyRole      = "client_role"
	ContextKeyRequestID = "request_id"
)
