package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is an application error tagged with an ErrorCode.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error carrying the code's default message.
func New(code ErrorCode) *Error {
	return &Error{Code: code, Message: code.Message()}
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrapf tags err with code. The formatted text replaces err's message; err
// stays reachable through Unwrap. A nil err yields nil.
func Wrapf(err error, code ErrorCode, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// GetCode reports the code of the outermost *Error in the chain. Foreign
// errors report InternalServerError and nil reports Success.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return InternalServerError
}

// GetError returns the *Error in err's chain or wraps err as an internal error.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return &Error{Code: InternalServerError, Message: err.Error(), Err: err}
}

func Is(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// ValidationError reports a malformed request field.
func ValidationError(field, reason string) *Error {
	return Newf(ValidationFailed, "%s %s", field, reason).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// Rejected wraps an analyzer reason. The reason is the whole message.
func Rejected(reason string) *Error {
	return &Error{Code: UnsafeCode, Message: reason}
}
