package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13099: Submission admission errors
// 13100-13199: Execution errors
// 17000-17099: Supervisor errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// Storage & messaging (10400-10499)
	StorageError   ErrorCode = 10400
	PublishFailed  ErrorCode = 10401
	ScratchIOError ErrorCode = 10402

	// ========== Submission Admission (13000-13099) ==========

	CodeTooLarge       ErrorCode = 13002
	UnsafeCode         ErrorCode = 13010
	GameNotFound       ErrorCode = 13011
	StrategyLoadFailed ErrorCode = 13012

	// ========== Execution (13100-13199) ==========

	ExecutionSystemError ErrorCode = 13101
	TrialFailed          ErrorCode = 13103

	// ========== Supervisor (17000-17099) ==========

	ProbeFailed       ErrorCode = 17000
	RestartFailed     ErrorCode = 17001
	RestartSuppressed ErrorCode = 17002
	InstanceNotFound  ErrorCode = 17003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	CacheError:       "Cache operation failed",
	ValidationFailed: "Validation failed",

	StorageError:   "Object storage operation failed",
	PublishFailed:  "Event publish failed",
	ScratchIOError: "Scratch workspace operation failed",

	CodeTooLarge:       "Code is too large",
	UnsafeCode:         "Code failed the safety check",
	GameNotFound:       "Unknown game",
	StrategyLoadFailed: "Strategy could not be loaded",

	ExecutionSystemError: "Execution system error",
	TrialFailed:          "Trial failed",

	ProbeFailed:       "Health probe failed",
	RestartFailed:     "Restart failed",
	RestartSuppressed: "Restart suppressed by cooldown",
	InstanceNotFound:  "Supervised instance not found",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == InstanceNotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == ProbeFailed:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == CodeTooLarge:
		return 400
	case c >= 13000 && c < 13100: // Admission errors are answered in-band
		return 200
	default:
		return 500
	}
}

// Terminal reports whether the code ends a request without any execution
// (static rejection or load failure).
func (c ErrorCode) Terminal() bool {
	return c >= 13000 && c < 13100
}
