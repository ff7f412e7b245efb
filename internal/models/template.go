// internal/models/template.go
package models

import "time"

// TemplateStatus marks a template as usable for provisioning or retired.
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusInactive TemplateStatus = "inactive"
)

// Template is a tenant-scoped, reusable prompt definition. Name is unique
// within a tenant type; the retrieval prompt is derived from the generation
// prompt and may be empty when compression has not run or failed.
type Template struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	TenantType       string             `json:"tenantType"`
	TaskType         string             `json:"taskType"`
	ElementType      string             `json:"elementType"`
	GenerationPrompt string             `json:"generationPrompt"`
	RetrievalPrompt  string             `json:"retrievalPrompt"`
	ExecutionConfig  ExecutionConfig    `json:"executionConfig"`
	Variables        []TemplateVariable `json:"variables"`
	Version          int                `json:"version"`
	Status           TemplateStatus     `json:"status"`
	UsageCount       int                `json:"usageCount"`
	ElementCount     int                `json:"elementCount"`
	Changelog        []ChangelogEntry   `json:"changelog,omitempty"`
	CreatedBy        string             `json:"createdBy"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	LastUsedAt       *time.Time         `json:"lastUsedAt,omitempty"`
}

// TemplateVariable describes a named placeholder the generation prompt expects.
type TemplateVariable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ChangelogEntry records one version bump of a template.
type ChangelogEntry struct {
	Version   int       `json:"version"`
	EditorID  string    `json:"editorId"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionConfig holds the LLM invocation settings frozen into an element.
type ExecutionConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// ConfigOverride carries optional per-call overrides. Nil fields keep the
// element's frozen value; set fields win.
type ConfigOverride struct {
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// Merge applies an override field-by-field over the base config.
func (c ExecutionConfig) Merge(o *ConfigOverride) ExecutionConfig {
	if o == nil {
		return c
	}
	merged := c
	if o.Model != nil {
		merged.Model = *o.Model
	}
	if o.Temperature != nil {
		merged.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		merged.MaxTokens = *o.MaxTokens
	}
	return merged
}
