package response

import (
	"net/http"

	"judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the JSON envelope every handler answers with.
type Response struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
	Details interface{}      `json:"details,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.Success,
		Message: errors.Success.Message(),
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Error answers with err's code and message. Client errors log at warn,
// everything else at error with the captured stack.
func Error(c *gin.Context, err error) {
	coded := errors.GetError(err)
	status := coded.Code.HTTPStatus()

	fields := []zap.Field{
		zap.Int("code", int(coded.Code)),
		zap.String("message", coded.Error()),
		zap.Any("details", coded.Details),
	}
	if status < http.StatusInternalServerError {
		logger.Warn(c.Request.Context(), "request error", fields...)
	} else {
		logger.Error(c.Request.Context(), "request error", append(fields, zap.String("stack", coded.Stack))...)
	}

	c.JSON(status, Response{
		Code:    coded.Code,
		Message: coded.Error(),
		Details: coded.Details,
		TraceID: c.GetString("trace_id"),
	})
}

// ErrorWithCode answers with code; an empty message uses the code's default.
func ErrorWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	if message == "" {
		message = code.Message()
	}
	logger.Warn(c.Request.Context(), "request error",
		zap.Int("code", int(code)),
		zap.String("message", message),
	)
	c.JSON(code.HTTPStatus(), Response{
		Code:    code,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, errors.InvalidParams, message)
}

func NotFound(c *gin.Context, message string) {
	ErrorWithCode(c, errors.NotFound, message)
}

// AbortWithError writes the error response and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
