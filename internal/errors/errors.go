package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"phenoprofile/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. Domain errors get the code
// FromDomain assigns them.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain, or the
// code a domain sentinel maps to.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return FromDomain(err)
}

// FromDomain classifies a domain error
func FromDomain(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, core.ErrNoOptimum):
		return CodeNoOptimum
	case stderrors.Is(err, core.ErrRunNotFound), stderrors.Is(err, core.ErrPreferencesMissing):
		return CodeNotFound
	case core.IsConfigurationError(err):
		return CodeConfigInvalid
	case core.IsInputError(err):
		return CodeInvalidInput
	}
	return CodeInternalError
}

// HTTPStatus maps an error code to a response status
func HTTPStatus(code string) int {
	switch code {
	case CodeConfigInvalid, CodeInvalidInput, CodeValidationError:
		return http.StatusBadRequest
	case CodeNoOptimum:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDatabaseError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNoOptimum       = "NO_OPTIMUM"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// NoOptimum reports a sweep that found no operating point. Callers may keep
// the percent curve and carry on.
func NoOptimum(cause error) *AppError {
	return &AppError{Code: CodeNoOptimum, Message: "no optimum found", Cause: cause}
}
