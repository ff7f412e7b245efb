// internal/common/errors/errors.go
// Package errors provides standardized error handling for the generation pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeAccessDenied     ErrorCode = "ACCESS_DENIED"

	ErrCodeDuplicateTemplate ErrorCode = "DUPLICATE_TEMPLATE"
	ErrCodeTemplateFormat    ErrorCode = "TEMPLATE_FORMAT_ERROR"

	ErrCodeRetrievalFailed ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeSearchTimeout   ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeProviderFailed  ErrorCode = "PROVIDER_ERROR"
	ErrCodeProviderTimeout ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeEmptyResponse   ErrorCode = "EMPTY_RESPONSE"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeCacheUnavailable       ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Severity distinguishes errors the pipeline absorbs with a default from
// errors that abort the unit of work.
type Severity string

const (
	// SeverityDegraded: continue with a fallback value (e.g. empty context).
	SeverityDegraded Severity = "degraded"
	// SeverityFatal: abort and surface to the caller.
	SeverityFatal Severity = "fatal"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  Severity               `json:"severity"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Severity:  SeverityFatal,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("%sId: %s", strings.ToLower(resource), id),
		Severity:  SeverityFatal,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAccessDeniedError creates a non-retryable authorization error.
func NewAccessDeniedError(userID, projectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAccessDenied,
		Message:   "User does not have access to project",
		Details:   fmt.Sprintf("userId: %s, projectId: %s", userID, projectID),
		Severity:  SeverityFatal,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateTemplateError creates a non-retryable name conflict error.
func NewDuplicateTemplateError(name, tenantType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateTemplate,
		Message:   "Template name already exists for tenant type",
		Details:   fmt.Sprintf("name: %s, tenantType: %s", name, tenantType),
		Severity:  SeverityFatal,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateFormatError creates a non-retryable substitution error. An
// undefined placeholder is a template authoring bug, never transient.
func NewTemplateFormatError(placeholder string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateFormat,
		Message:   "Generation prompt references an undefined placeholder",
		Details:   fmt.Sprintf("placeholder: {%s}", placeholder),
		Severity:  SeverityFatal,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalFailedError creates a degraded retrieval error. The pipeline
// absorbs this and continues with an empty chunk set.
func NewRetrievalFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalFailed,
		Message:   "Document retrieval failed",
		Details:   err.Error(),
		Severity:  SeverityDegraded,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a degraded retrieval timeout error.
func NewSearchTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Document search timeout",
		Details:   "search call exceeded its deadline",
		Severity:  SeverityDegraded,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderError creates a retryable LLM provider error, fatal to the
// current generation or compression call.
func NewProviderError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderFailed,
		Message:   "LLM provider call failed",
		Details:   err.Error(),
		Severity:  SeverityFatal,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a retryable provider timeout error.
func NewProviderTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   "LLM provider timeout",
		Details:   "completion call exceeded its deadline",
		Severity:  SeverityFatal,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyResponseError creates a non-retryable empty completion error.
func NewEmptyResponseError(model string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyResponse,
		Message:   "LLM provider returned an empty completion",
		Details:   fmt.Sprintf("model: %s", model),
		Severity:  SeverityFatal,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Severity:  SeverityFatal,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Severity:  SeverityFatal,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Severity:  SeverityFatal,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a degraded cache error. Callers fall back
// to the backing store.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Cache unavailable",
		Details:   err.Error(),
		Severity:  SeverityDegraded,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a degraded notification error.
// Notification delivery never fails the generation that triggered it.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Severity:  SeverityDegraded,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain, or nil.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return nil
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	stdErr := AsStandard(err)
	return stdErr != nil && stdErr.Code == code
}

// IsDegraded reports whether err can be absorbed with a fallback value.
func IsDegraded(err error) bool {
	stdErr := AsStandard(err)
	return stdErr != nil && stdErr.Severity == SeverityDegraded
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeRetrievalFailed,
		ErrCodeProviderFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeSearchTimeout,
		ErrCodeProviderTimeout,
		ErrCodeCacheUnavailable:
		return 2

	default:
		return 0 // validation / authorization / format errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "RETRIEVAL") || strings.Contains(codeStr, "SEARCH"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "RESPONSE"):
		return "PROVIDER"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "DUPLICATE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ACCESS"):
		return "AUTH"
	default:
		return "OTHER"
	}
}
