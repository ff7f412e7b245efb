// internal/api/respond.go
package api

import (
	"encoding/json"
	"net/http"

	pipelineerrors "prompt-pipeline/internal/common/errors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy to HTTP statuses and renders the
// structured error as the response body.
func (h *Handler) writeError(w http.ResponseWriter, operation string, err error) {
	stdErr := h.errors.Handle(operation, err)

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case pipelineerrors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case pipelineerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case pipelineerrors.ErrCodeAccessDenied:
		status = http.StatusForbidden
	case pipelineerrors.ErrCodeDuplicateTemplate:
		status = http.StatusConflict
	case pipelineerrors.ErrCodeTemplateFormat, pipelineerrors.ErrCodeEmptyResponse:
		status = http.StatusUnprocessableEntity
	case pipelineerrors.ErrCodeProviderTimeout, pipelineerrors.ErrCodeSearchTimeout:
		status = http.StatusGatewayTimeout
	case pipelineerrors.ErrCodeProviderFailed:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, stdErr)
}
