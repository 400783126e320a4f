// Package errors provides standardized error handling for the resolution engine.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Resolution ambiguity: a tool reference could not be matched confidently.
	// The resolver itself reports this as an empty id, not an error; the code
	// exists so validators and audit logs can surface it uniformly.
	ErrCodeToolUnresolved ErrorCode = "TOOL_UNRESOLVED"

	// Validation findings on an authored resolution flow.
	ErrCodePipelineValidationFailed ErrorCode = "PIPELINE_VALIDATION_FAILED"
	ErrCodeDuplicateSequence        ErrorCode = "DUPLICATE_SEQUENCE"
	ErrCodeUndefinedReference       ErrorCode = "UNDEFINED_REFERENCE"
	ErrCodeMalformedTemplate        ErrorCode = "MALFORMED_TEMPLATE"

	// External reasoning-service failures, always recoverable at turn level.
	ErrCodeReasoningTimeout   ErrorCode = "REASONING_TIMEOUT"
	ErrCodeReasoningFailed    ErrorCode = "REASONING_FAILED"
	ErrCodeStreamInterrupted  ErrorCode = "STREAM_INTERRUPTED"
	ErrCodeGenerationFailed   ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationFallback ErrorCode = "GENERATION_FALLBACK"

	// Record-store and cache failures.
	ErrCodeStoreConnectionFailed ErrorCode = "STORE_CONNECTION_FAILED"
	ErrCodeRecordNotFound        ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeQueryExecutionFailed  ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCacheUnavailable      ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeIndexFailed           ErrorCode = "INDEX_FAILED"

	// Turn lifecycle. Cancellation is a clean termination, not a failure.
	ErrCodeTurnCancelled ErrorCode = "TURN_CANCELLED"

	// Catalog/schema problems.
	ErrCodeCatalogLoadFailed     ErrorCode = "CATALOG_LOAD_FAILED"
	ErrCodeSchemaValidationError ErrorCode = "SCHEMA_VALIDATION_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	if se, ok := err.(*StandardError); ok {
		return se.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or empty when err is not standard.
func CodeOf(err error) ErrorCode {
	if se, ok := err.(*StandardError); ok {
		return se.Code
	}
	return ""
}

// ==========================
// 2. Error Constructors
// ==========================

// NewReasoningTimeoutError creates a retryable timeout error for the
// external reasoning service.
func NewReasoningTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeReasoningTimeout,
		Message:   "Reasoning service call timed out",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewReasoningFailedError creates a retryable reasoning-service error.
func NewReasoningFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReasoningFailed,
		Message:   "Reasoning service call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStreamInterruptedError creates a retryable error for a phase-event
// stream that ended before a terminal event arrived.
func NewStreamInterruptedError(lastPhase string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStreamInterrupted,
		Message:   "Phase-event stream ended prematurely",
		Details:   fmt.Sprintf("lastPhase: %s", lastPhase),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable flow-generation error.
func NewGenerationFailedError(intentName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Resolution flow generation failed",
		Details:   fmt.Sprintf("intent: %s, error: %s", intentName, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPipelineValidationError creates a non-retryable validation error
// carrying the finding count.
func NewPipelineValidationError(findings int) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineValidationFailed,
		Message:   "Resolution flow failed validation",
		Details:   fmt.Sprintf("findings: %d", findings),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreConnectionError creates a retryable record-store connection error.
func NewStoreConnectionError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreConnectionFailed,
		Message:   "Record store connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable missing-record error.
func NewRecordNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Record not found",
		Details:   fmt.Sprintf("%s: %s", kind, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionError creates a retryable store query error.
func NewQueryExecutionError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Record store query error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable cache error. Callers treat the
// cache as best-effort and fall through to the uncached path.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Route cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTurnCancelledError marks a clean cooperative cancellation.
func NewTurnCancelledError(conversationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTurnCancelled,
		Message:   "Turn cancelled by a newer query",
		Details:   fmt.Sprintf("conversationId: %s", conversationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogLoadError creates a retryable tool-catalog load error.
func NewCatalogLoadError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogLoadFailed,
		Message:   "Tool catalog load failed",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaValidationError creates a non-retryable document-schema error.
func NewSchemaValidationError(document string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaValidationError,
		Message:   "Document failed schema validation",
		Details:   fmt.Sprintf("document: %s, %s", document, details),
		Retryable: false,
		Metadata:  map[string]interface{}{"document": document},
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexFailedError creates a retryable phrase-index error.
func NewIndexFailedError(intentID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexFailed,
		Message:   "Intent phrase indexing failed",
		Details:   fmt.Sprintf("intentId: %s, error: %s", intentID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
