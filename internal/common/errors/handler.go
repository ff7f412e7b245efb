// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes and logs pipeline errors consistently.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err to a StandardError, logs it at a level matching its
// severity, and returns the normalized error for the caller to propagate.
func (h *ErrorHandler) Handle(stage string, err error) *StandardError {
	stdErr := h.normalizeError(err)

	fields := map[string]interface{}{
		"stage":     stage,
		"errorCode": string(stdErr.Code),
		"category":  GetErrorCategory(stdErr.Code),
		"retryable": stdErr.Retryable,
		"details":   stdErr.Details,
	}

	if stdErr.Severity == SeverityDegraded {
		h.logger.Warn(stdErr.Message, fields)
	} else {
		h.logger.Error(stdErr.Message, fields)
	}

	return stdErr
}

// normalizeError ensures we always have a StandardError.
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr := AsStandard(err); stdErr != nil {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Severity:  SeverityFatal,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
