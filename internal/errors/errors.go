// Package errors provides the error taxonomy shared by the store, the
// analytics engine and the command line tools.
//
// This file provides:
// - Exit codes for the healthmon CLI
// - Sentinel errors for all error conditions
// - Error category checking functions
// - ErrorToCode mapping
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Exit codes - returned by the healthmon binary
// ============================================================================

const (
	CodeOK               = 0
	CodeUnknown          = 1
	CodeInvalidArgument  = 2
	CodeStoreUnavailable = 3
	CodeSerialization    = 4
	CodeTimeout          = 5
	CodeNoData           = 6
)

// CodeName returns a human-readable name for an exit code.
func CodeName(code int) string {
	switch code {
	case CodeOK:
		return "OK"
	case CodeUnknown:
		return "Unknown"
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeStoreUnavailable:
		return "StoreUnavailable"
	case CodeSerialization:
		return "Serialization"
	case CodeTimeout:
		return "Timeout"
	case CodeNoData:
		return "NoData"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Storage errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStoreClosed      = errors.New("store is closed")
	ErrMigration        = errors.New("schema migration failed")

	// Query errors
	ErrInvalidQuery = errors.New("invalid query")
	ErrInvalidRange = errors.New("invalid time range")
	ErrInvalidLimit = errors.New("invalid limit")

	// Validation errors
	ErrInvalidHostname   = errors.New("invalid hostname")
	ErrInvalidMetricType = errors.New("invalid metric type")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidArgument   = errors.New("invalid argument")

	// Encoding errors
	ErrSerialization = errors.New("payload serialization failed")

	// Transient errors
	ErrTimeout = errors.New("timeout")
	ErrBusy    = errors.New("database busy")

	// Analytics markers. These are returned as values, never as failures
	// of an analysis call.
	ErrNoData = errors.New("no valid data points")

	// Archive errors
	ErrArchive = errors.New("archive failed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// New is a convenience wrapper for errors.New
var New = errors.New

// IsStoreError returns true if err means the durability guarantee of the
// store may not hold for the operation.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreClosed) ||
		errors.Is(err, ErrMigration) ||
		errors.Is(err, ErrArchive)
}

// IsValidation returns true if err is caused by caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidHostname) ||
		errors.Is(err, ErrInvalidMetricType) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidArgument)
}

// IsRetriable returns true if the error is transient. Callers are expected
// to retry the same operation.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrBusy)
}

// ============================================================================
// Error to exit code mapping
// ============================================================================

// ErrorToCode maps an error to the CLI exit code.
func ErrorToCode(err error) int {
	if err == nil {
		return CodeOK
	}

	switch {
	case IsValidation(err):
		return CodeInvalidArgument
	case IsRetriable(err):
		return CodeTimeout
	case Is(err, ErrSerialization):
		return CodeSerialization
	case IsStoreError(err):
		return CodeStoreUnavailable
	case Is(err, ErrNoData):
		return CodeNoData
	default:
		return CodeUnknown
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Unavailable marks err as a storage failure while keeping the cause in
// the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewInvalidQuery creates an invalid-query error with context.
func NewInvalidQuery(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidQuery)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewSerialization creates a serialization error for a payload key.
func NewSerialization(what string, err error) error {
	return fmt.Errorf("%s: %w: %v", what, ErrSerialization, err)
}
