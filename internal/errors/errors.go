// Package errors defines the coded error type shared by cmdtrace packages.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure the UI can react to.
type ErrorCode string

const (
	// Source errors
	ErrCodeSourceInaccessible ErrorCode = "SOURCE_INACCESSIBLE"

	// Query errors
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"

	// Tag registry errors
	ErrCodeInvalidTag  ErrorCode = "INVALID_TAG"
	ErrCodeTagExists   ErrorCode = "TAG_EXISTS"
	ErrCodeTagNotFound ErrorCode = "TAG_NOT_FOUND"

	// Persistence and configuration
	ErrCodeStoreFailed   ErrorCode = "STORE_FAILED"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// Error is a structured error with a code and optional details.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ToJSON renders the error for machine-readable CLI output.
func (e *Error) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Is reports whether any error in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode returns the code of the first *Error in err's chain.
func GetCode(err error) ErrorCode {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// SourceInaccessible reports a source root that exists but cannot be read.
func SourceInaccessible(source, root string, cause error) *Error {
	return Wrap(cause, ErrCodeSourceInaccessible, fmt.Sprintf("cannot read %s sessions at %s", source, root)).
		WithDetail("source", source).
		WithDetail("root", root)
}

// InvalidQuery reports filter syntax that cannot be evaluated.
func InvalidQuery(operator, term, reason string) *Error {
	return New(ErrCodeInvalidQuery, fmt.Sprintf("invalid %s filter %q: %s", operator, term, reason)).
		WithDetail("operator", operator).
		WithDetail("term", term)
}

func TagNotFound(name string) *Error {
	return New(ErrCodeTagNotFound, fmt.Sprintf("tag not found: %s", name)).WithDetail("tag", name)
}

func TagExists(name string) *Error {
	return New(ErrCodeTagExists, fmt.Sprintf("tag already exists: %s", name)).WithDetail("tag", name)
}

func InvalidTag(name, reason string) *Error {
	return New(ErrCodeInvalidTag, fmt.Sprintf("invalid tag %s: %s", name, reason)).WithDetail("tag", name)
}
