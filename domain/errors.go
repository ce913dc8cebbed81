package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a workflow failure with a stable, caller-visible code.
type ErrorCode int

const (
	// CodeUnknown is the zero value for errors that carry no code.
	CodeUnknown ErrorCode = iota
	// CodeInvalidInput marks a missing or contradictory request parameter.
	CodeInvalidInput
	// CodeInvalidImage marks image bytes that could not be decoded.
	CodeInvalidImage
	// CodeFetchFailed marks a failed or timed-out image download.
	CodeFetchFailed
	// CodeConflict marks an attempt to register an already-registered item_id.
	CodeConflict
	// CodeNotFound marks a delete target that does not exist.
	CodeNotFound
	// CodeStorageFailed marks a blob store fault.
	CodeStorageFailed
	// CodeIndexFailed marks a vector index fault, including provisioning.
	CodeIndexFailed
	// CodeUnauthorized marks a failed credential check.
	CodeUnauthorized
)

// Error is a workflow failure with a stable code and human-readable message.
// Conflict and NotFound are expected outcomes; StorageFailed and IndexFailed
// are infrastructure faults.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error with the given code and message, preserving
// the underlying cause for errors.Is/As inspection.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from err, or CodeUnknown if err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
