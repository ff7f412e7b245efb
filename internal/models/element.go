// internal/models/element.go
package models

import "time"

// ElementStatus marks whether an element can be executed.
type ElementStatus string

const (
	ElementStatusActive   ElementStatus = "active"
	ElementStatusInactive ElementStatus = "inactive"
)

// Element is a project-scoped, frozen snapshot of a template taken at
// provisioning time. Prompt text, execution config, and variables are copied
// by value; TemplateID is a back-reference only, never followed at execution
// time. The owning project controls the element's lifetime.
type Element struct {
	ID               string             `json:"id"`
	ProjectID        string             `json:"projectId"`
	TemplateID       string             `json:"templateId"`
	Name             string             `json:"name"`
	TaskType         string             `json:"taskType"`
	ElementType      string             `json:"elementType"`
	GenerationPrompt string             `json:"generationPrompt"`
	RetrievalPrompt  string             `json:"retrievalPrompt"`
	ExecutionConfig  ExecutionConfig    `json:"executionConfig"`
	Variables        []TemplateVariable `json:"variables"`
	TemplateVersion  int                `json:"templateVersion"`
	IsDefaultElement bool               `json:"isDefaultElement"`
	InsertionBatchID string             `json:"insertionBatchId"`
	Status           ElementStatus      `json:"status"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}
