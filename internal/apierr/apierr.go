// Package apierr defines the uniform API envelope and the error taxonomy served to clients.
//
// Every response is either {"success": true, "data": ...} or
// {"success": false, "error": {"code": "...", "message": "...", "details": {...}}}.
package apierr

import (
	"fmt"
	"net/http"
)

// Stable machine-readable error codes.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeValidation      = "VALIDATION_ERROR"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL_ERROR"
	CodeFileNotFound    = "FILE_NOT_FOUND"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeUploadFailed    = "UPLOAD_FAILED"
	CodeDeleteFailed    = "DELETE_FAILED"
)

// Details carries optional structured context for an error response.
type Details map[string]any

// Error is an error that knows how it is presented over HTTP.
type Error struct {
	Code    string
	Status  int
	Message string
	Details Details
	// Err is the underlying cause. It is logged, never serialized.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// New builds an Error with an explicit code and status.
func New(code string, status int, message string, details Details) *Error {
	return &Error{Code: code, Status: status, Message: message, Details: details}
}

func BadRequest(message string, details Details) *Error {
	return New(CodeBadRequest, http.StatusBadRequest, message, details)
}

func Validation(message string, details Details) *Error {
	return New(CodeValidation, http.StatusBadRequest, message, details)
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return New(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return New(CodeForbidden, http.StatusForbidden, message, nil)
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Not found"
	}
	return New(CodeNotFound, http.StatusNotFound, message, nil)
}

func Conflict(message string, details Details) *Error {
	return New(CodeConflict, http.StatusConflict, message, details)
}

func TooManyRequests(message string) *Error {
	if message == "" {
		message = "Too many requests"
	}
	return New(CodeTooManyRequests, http.StatusTooManyRequests, message, nil)
}

func Internal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(CodeInternal, http.StatusInternalServerError, message, nil)
}

func FileNotFound(message string) *Error {
	if message == "" {
		message = "File not found"
	}
	return New(CodeFileNotFound, http.StatusNotFound, message, nil)
}

func FileTooLarge(message string) *Error {
	if message == "" {
		message = "File size exceeds maximum allowed size"
	}
	return New(CodeFileTooLarge, http.StatusBadRequest, message, nil)
}

func InvalidFileType(message string) *Error {
	if message == "" {
		message = "File type is not allowed"
	}
	return New(CodeInvalidFileType, http.StatusBadRequest, message, nil)
}

func UploadFailed(message string, details Details) *Error {
	if message == "" {
		message = "File upload failed"
	}
	return New(CodeUploadFailed, http.StatusInternalServerError, message, details)
}

func DeleteFailed(message string, details Details) *Error {
	if message == "" {
		message = "File deletion failed"
	}
	return New(CodeDeleteFailed, http.StatusInternalServerError, message, details)
}
