// internal/services/orchestrator/models.go
package orchestrator

import "prompt-pipeline/internal/models"

// GenerateRequest carries the caller's optional inputs to one generation.
type GenerateRequest struct {
	ElementID              string                 `json:"elementId"`
	ProjectID              string                 `json:"projectId"`
	UserID                 string                 `json:"userId"`
	AdditionalInstructions string                 `json:"additionalInstructions,omitempty"`
	OverrideConfig         *models.ConfigOverride `json:"overrideConfig,omitempty"`
}

// BulkError pairs a failed element with its error message.
type BulkError struct {
	ElementID string `json:"elementId"`
	Error     string `json:"error"`
}

// BulkReport aggregates one BulkGenerate run. Generations holds the records
// of the successful runs only; failures appear in Errors.
type BulkReport struct {
	Total       int                  `json:"total"`
	Successful  int                  `json:"successful"`
	Failed      int                  `json:"failed"`
	Generations []*models.Generation `json:"generations"`
	Errors      []BulkError          `json:"errors,omitempty"`
}
