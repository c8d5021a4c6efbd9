package apierr

import (
	"errors"
	"net/http"

	"github.com/abduss/filevault/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details Details `json:"details,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, successBody{Success: true, Data: data})
}

// Created writes a 201 success envelope.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, successBody{Success: true, Data: data})
}

// Abort records err on the context and stops the handler chain; Handler renders it.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Write renders err immediately as an error envelope.
func Write(c *gin.Context, err *Error) {
	c.AbortWithStatusJSON(err.Status, errorBody{
		Error: errorDetail{Code: err.Code, Message: err.Message, Details: err.Details},
	})
}

// Handler renders the last error attached to the context as an error envelope
// and logs it with the request method, path and status.
// In production, messages and details of unexpected 5xx failures are not exposed.
func Handler(log *zap.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		apiErr := From(err, production)

		log.Error("request error",
			zap.Error(err),
			zap.String("code", apiErr.Code),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", apiErr.Status),
			zap.String("correlation_id", logger.CorrelationID(c)),
		)

		if production && apiErr.Status >= http.StatusInternalServerError {
			apiErr = &Error{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
		}
		Write(c, apiErr)
	}
}

// From converts any error into an *Error. Unknown errors become INTERNAL_ERROR.
func From(err error, production bool) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if production {
		return Internal("An unexpected error occurred").WithCause(err)
	}
	return Internal(err.Error()).WithCause(err)
}

// Recovery turns panics into INTERNAL_ERROR envelopes.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		Write(c, Internal("An unexpected error occurred"))
	})
}
