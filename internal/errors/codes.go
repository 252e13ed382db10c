package errors

import (
	"fmt"
)

// ErrorCode classifies a failure so the HTTP layer can map it to a status.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates malformed or missing required input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the referenced note or listing does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeUnauthenticated indicates missing or invalid caller identity.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	// ErrCodePermissionDenied indicates insufficient caller role.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	// ErrCodeUpstream indicates an external gateway returned non-success or a
	// malformed payload.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrCodeAdvisorFailed indicates the advisory operation failed as a whole.
	ErrCodeAdvisorFailed ErrorCode = "ADVISOR_FAILED"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// CodedError is a structured error carrying a classification code.
type CodedError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// InvalidArgument creates a validation error.
func InvalidArgument(format string, args ...any) *CodedError {
	return &CodedError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *CodedError {
	return &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated creates an unauthenticated error.
func Unauthenticated(msg string) *CodedError {
	return &CodedError{Code: ErrCodeUnauthenticated, Message: msg}
}

// PermissionDenied creates a permission-denied error.
func PermissionDenied(msg string) *CodedError {
	return &CodedError{Code: ErrCodePermissionDenied, Message: msg}
}

// Upstream wraps a gateway failure.
func Upstream(msg string, cause error) *CodedError {
	return &CodedError{Code: ErrCodeUpstream, Message: msg, Cause: cause}
}

// AdvisorFailed wraps a failure of the whole advisory operation.
func AdvisorFailed(msg string, cause error) *CodedError {
	return &CodedError{Code: ErrCodeAdvisorFailed, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *CodedError {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err, ErrCodeInternal) == code
}

// CodeOf extracts the error code from any error, walking the cause chain.
// Returns the provided default code if no CodedError is found.
func CodeOf(err error, defaultCode ErrorCode) ErrorCode {
	for err != nil {
		if coded, ok := err.(*CodedError); ok {
			return coded.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return defaultCode
}
