// Package response writes the status envelope shared by the execution and
// supervisor HTTP APIs: {"status": "...", "message": "..."}.
package response

import (
	"net/http"

	"arena/pkg/errors"
	"arena/pkg/utils/contextkey"
	"arena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const statusError = "error"

// Envelope is the body written for requests that never reached a handler
// or failed outside the application error path.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Fail writes err with a 5xx status. Codes that map below 500 are promoted
// to 500 since application errors never travel this path.
func Fail(c *gin.Context, err error) {
	customErr := errors.GetError(err)
	status := customErr.Code.HTTPStatus()
	if status < http.StatusInternalServerError {
		status = http.StatusInternalServerError
	}
	logger.Error(c.Request.Context(), "request failed",
		zap.Int("code", int(customErr.Code)),
		zap.Int("status", status),
		zap.Any("details", customErr.Details),
		zap.Error(err),
	)
	c.JSON(status, Envelope{
		Status:  statusError,
		Message: customErr.Error(),
		TraceID: traceID(c),
	})
}

// AbortWithCode rejects the request before it reaches the handler.
func AbortWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	if message == "" {
		message = code.Message()
	}
	logger.Warn(c.Request.Context(), "request rejected",
		zap.Int("code", int(code)),
		zap.String("message", message),
	)
	c.AbortWithStatusJSON(code.HTTPStatus(), Envelope{
		Status:  statusError,
		Message: message,
		TraceID: traceID(c),
	})
}

func traceID(c *gin.Context) string {
	if v, ok := c.Get(string(contextkey.TraceID)); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
