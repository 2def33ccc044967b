// Package contextkey names the request-scoped values the logger picks up.
package contextkey

// Key is the context key type. Its string value doubles as the log field name.
type Key string

const (
	TraceID   Key = "trace_id"
	RequestID Key = "request_id"
	Team      Key = "team"
	Service   Key = "service"
)

// Logged lists the keys copied onto every log line, in output order.
var Logged = []Key{TraceID, RequestID, Team, Service}
