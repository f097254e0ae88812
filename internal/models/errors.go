package models

import (
	"fmt"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// NewNetworkError wraps a transport failure. Optimistic mutations revert on
// it; nothing retries automatically.
func NewNetworkError(err error) *AppError {
	return &AppError{
		Code:    "NETWORK_ERROR",
		Message: "Request failed",
		Err:     err,
	}
}

// NewRejectedError marks an authoritative success:false response. Treated
// like a network failure for revert purposes, but the message is the
// server's.
func NewRejectedError(message string) *AppError {
	if message == "" {
		message = "Request rejected"
	}
	return &AppError{
		Code:    "REJECTED",
		Message: message,
	}
}

// NewAccessDeniedError marks a denied precondition (private room, blocked
// device). It aborts a transition before any speculative state exists.
func NewAccessDeniedError(message string) *AppError {
	if message == "" {
		message = "Access denied"
	}
	return &AppError{
		Code:    "ACCESS_DENIED",
		Message: message,
	}
}

// NewKickedError marks an externally imposed room termination.
func NewKickedError(reason string) *AppError {
	if reason == "" {
		reason = "Removed from the room"
	}
	return &AppError{
		Code:    "KICKED",
		Message: reason,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal error",
		Err:     err,
	}
}

// ErrorCode extracts the AppError code, or empty for foreign errors.
func ErrorCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ""
}
