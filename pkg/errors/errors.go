// Package errors provides structured error types for Pulseline.
//
// All errors raised by the ingestion and enrichment pipeline should use these
// types to enable consistent error handling, logging, and retry logic across
// the codebase.
package errors

import (
	"fmt"
)

// ErrorCode represents a unique error identifier for categorization.
type ErrorCode string

// Common error codes used throughout the pipeline.
const (
	// Ingestion errors
	CodeDecodeError       ErrorCode = "DECODE_ERROR"
	CodeDuplicateDetected ErrorCode = "DUPLICATE_DETECTED"
	CodeTransientFetch    ErrorCode = "TRANSIENT_FETCH_ERROR"

	// Enrichment errors
	CodeEnrichmentCompute  ErrorCode = "ENRICHMENT_COMPUTE_ERROR"
	CodeInsufficientSignal ErrorCode = "INSUFFICIENT_SIGNAL"

	// Infrastructure errors
	CodeStorageError  ErrorCode = "STORAGE_ERROR"
	CodeEntryNotFound ErrorCode = "ENTRY_NOT_FOUND"

	// General errors
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// PipelineError is the base error type for all Pulseline errors.
// It provides structured error information including error codes,
// retry semantics, and contextual metadata.
type PipelineError struct {
	Code      ErrorCode         // Unique error code for categorization
	Message   string            // Human-readable error message
	Cause     error             // Underlying error (if any)
	Retryable bool              // Whether the operation can be retried
	Metadata  map[string]string // Additional context
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches by error code so sentinel values work with errors.Is even after
// WithCause/WithMessage have produced a copy.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *PipelineError) WithCause(cause error) *PipelineError {
	return &PipelineError{
		Code:      e.Code,
		Message:   e.Message,
		Cause:     cause,
		Retryable: e.Retryable,
		Metadata:  e.Metadata,
	}
}

// WithMessage adds a custom message.
func (e *PipelineError) WithMessage(msg string) *PipelineError {
	return &PipelineError{
		Code:      e.Code,
		Message:   msg,
		Cause:     e.Cause,
		Retryable: e.Retryable,
		Metadata:  e.Metadata,
	}
}

// WithMetadata adds contextual metadata.
func (e *PipelineError) WithMetadata(key, value string) *PipelineError {
	meta := make(map[string]string)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	return &PipelineError{
		Code:      e.Code,
		Message:   e.Message,
		Cause:     e.Cause,
		Retryable: e.Retryable,
		Metadata:  meta,
	}
}

// Pre-defined sentinel errors for common cases.
// Use these with errors.Is() or wrap them with .WithCause().
var (
	// ErrDecode marks a malformed or unsortable raw record stream. The
	// affected activity is skipped and the batch continues.
	ErrDecode = &PipelineError{Code: CodeDecodeError, Message: "raw stream could not be decoded", Retryable: false}

	// ErrDuplicateDetected is a routing decision, not a failure: the
	// candidate activity matches an already persisted recording.
	ErrDuplicateDetected = &PipelineError{Code: CodeDuplicateDetected, Message: "activity already recorded by another source", Retryable: false}

	// ErrTransientFetch marks a source fetch failure retried at the batch
	// level.
	ErrTransientFetch = &PipelineError{Code: CodeTransientFetch, Message: "activity source unavailable", Retryable: true}

	// ErrEnrichmentCompute marks a per-entry computation failure that drives
	// the queue's attempts/backoff state machine.
	ErrEnrichmentCompute = &PipelineError{Code: CodeEnrichmentCompute, Message: "feature computation failed", Retryable: true}

	// ErrInsufficientSignal marks a segment too short or missing a channel.
	// Features come back null; this never fails a queue entry.
	ErrInsufficientSignal = &PipelineError{Code: CodeInsufficientSignal, Message: "not enough signal to estimate features", Retryable: false}

	ErrStorage       = &PipelineError{Code: CodeStorageError, Message: "store operation failed", Retryable: true}
	ErrEntryNotFound = &PipelineError{Code: CodeEntryNotFound, Message: "entry not found", Retryable: false}
	ErrValidation    = &PipelineError{Code: CodeValidationError, Message: "validation failed", Retryable: false}
	ErrInternal      = &PipelineError{Code: CodeInternalError, Message: "internal error", Retryable: false}
)

// IsRetryable reports whether err (or anything it wraps) is a PipelineError
// marked retryable. Unknown errors are treated as retryable so that a
// transient infrastructure hiccup is never promoted to a terminal failure.
func IsRetryable(err error) bool {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return pe.Retryable
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return true
}
