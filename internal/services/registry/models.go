// internal/services/registry/models.go
package registry

import "prompt-pipeline/internal/models"

// CreateInput carries the caller-supplied fields of a new template.
type CreateInput struct {
	Name             string                    `json:"name"`
	Description      string                    `json:"description"`
	TenantType       string                    `json:"tenantType"`
	TaskType         string                    `json:"taskType"`
	ElementType      string                    `json:"elementType"`
	GenerationPrompt string                    `json:"generationPrompt"`
	RetrievalPrompt  string                    `json:"retrievalPrompt,omitempty"`
	ExecutionConfig  models.ExecutionConfig    `json:"executionConfig"`
	Variables        []models.TemplateVariable `json:"variables,omitempty"`
}

// UpdateInput carries partial template updates. Nil fields are left alone.
// BumpVersion increments the version and appends a changelog entry before
// the field updates are applied.
type UpdateInput struct {
	Name             *string                    `json:"name,omitempty"`
	Description      *string                    `json:"description,omitempty"`
	TaskType         *string                    `json:"taskType,omitempty"`
	ElementType      *string                    `json:"elementType,omitempty"`
	GenerationPrompt *string                    `json:"generationPrompt,omitempty"`
	RetrievalPrompt  *string                    `json:"retrievalPrompt,omitempty"`
	ExecutionConfig  *models.ExecutionConfig    `json:"executionConfig,omitempty"`
	Variables        *[]models.TemplateVariable `json:"variables,omitempty"`
	Status           *models.TemplateStatus     `json:"status,omitempty"`
	BumpVersion      bool                       `json:"bumpVersion,omitempty"`
	ChangeSummary    string                     `json:"changeSummary,omitempty"`
}

// DeleteOutcome tags how DeleteTemplate disposed of a template.
type DeleteOutcome string

const (
	// OutcomeDeleted: no element references the template; the row is gone.
	OutcomeDeleted DeleteOutcome = "deleted"
	// OutcomeSoftDeleted: elements still reference the template; it was
	// marked inactive instead.
	OutcomeSoftDeleted DeleteOutcome = "soft_deleted"
)

// DeleteResult reports the outcome of one DeleteTemplate call.
type DeleteResult struct {
	TemplateID       string        `json:"templateId"`
	Outcome          DeleteOutcome `json:"outcome"`
	ReferencingCount int           `json:"referencingCount"`
}

// CleanupReport lists the templates a cleanup run removed (or would remove,
// on a dry run).
type CleanupReport struct {
	Count  int      `json:"count"`
	IDs    []string `json:"ids"`
	DryRun bool     `json:"dryRun"`
}
