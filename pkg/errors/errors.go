// Package errors provides custom error types and error handling utilities.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for analysis failures.
type ErrorCode string

// Standard error codes
const (
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeMissingData   ErrorCode = "MISSING_DATA"
	CodeCollaborator  ErrorCode = "COLLABORATOR_FAILURE"
	CodeDegenerate    ErrorCode = "DEGENERATE_COMPUTATION"
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error.
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail key-value pair to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON returns the JSON representation of the error.
func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// Constructor functions for common error types

// New creates a new AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// MissingData creates a missing data error.
func MissingData(message string) *AppError {
	return New(CodeMissingData, message)
}

// Collaborator wraps a failure from an external collaborator. The engine
// never retries these; they surface to the caller unchanged.
func Collaborator(err error, name string) *AppError {
	return Wrap(err, CodeCollaborator, fmt.Sprintf("%s collaborator failed", name))
}

// Degenerate creates a degenerate computation error.
func Degenerate(message string) *AppError {
	return New(CodeDegenerate, message)
}

// Internal creates an internal error.
func Internal(message string) *AppError {
	return New(CodeInternalError, message)
}

// Is checks if the target error is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
