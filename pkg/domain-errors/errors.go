// Package dErrors defines the coded error vocabulary shared by services,
// stores, and transport. Handlers translate codes to HTTP statuses through
// httputil; services attach codes at the point where a failure acquires
// domain meaning.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for propagation and transport mapping.
type Code string

const (
	// CodeInvalidProfile marks an empty or malformed profile id. Programmer
	// error on the caller's side: logged and dropped, never retried.
	CodeInvalidProfile Code = "invalid_profile"
	// CodeInvalidInput marks a malformed request field.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a structurally invalid request.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks a missing or failed authentication.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound marks a missing record.
	CodeNotFound Code = "not_found"
	// CodeStorageUnavailable marks unreachable persistence. Recoverable:
	// the caller may retry, and a write that failed with it was not counted.
	CodeStorageUnavailable Code = "storage_unavailable"
	// CodeAggregationCorrupt marks a cached aggregate that disagrees with a
	// full replay. Recovered internally by rebuilding; never a user-facing
	// hard failure.
	CodeAggregationCorrupt Code = "aggregation_corrupt"
	// CodeInternal marks unexpected failures.
	CodeInternal Code = "internal_error"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New returns a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap returns a coded error with a cause preserved for errors.Is/As.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// ToHTTPStatus maps a code to its transport status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidProfile, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsInternal reports whether a code must not leak its description to
// clients.
func IsInternal(code Code) bool {
	return code == CodeInternal || code == CodeAggregationCorrupt
}
