// internal/services/registry/service.go
// Package registry owns canonical, tenant-scoped templates and keeps their
// derived retrieval prompts current.
package registry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/common/validation"
	"prompt-pipeline/internal/models"
	"prompt-pipeline/internal/services/compressor"
	"prompt-pipeline/internal/store"
)

// Compressor is the slice of the prompt compressor the registry needs.
type Compressor interface {
	Compress(ctx context.Context, generationPrompt string, cctx *compressor.Context) (string, error)
}

// Service manages template lifecycle.
type Service struct {
	templates  store.TemplateStore
	elements   store.ElementStore
	compressor Compressor
	logger     logger.Logger
}

func NewService(templates store.TemplateStore, elements store.ElementStore, comp Compressor, log logger.Logger) *Service {
	return &Service{
		templates:  templates,
		elements:   elements,
		compressor: comp,
		logger:     log.WithFields(map[string]interface{}{"service": "registry"}),
	}
}

// CreateTemplate validates the input, rejects duplicate names within the
// tenant, and optionally derives a retrieval prompt. A compression failure is
// logged and the template is still created with an empty retrieval prompt.
func (s *Service) CreateTemplate(ctx context.Context, input CreateInput, creatorID string, autoDeriveRetrieval bool) (*models.Template, error) {
	summary, err := validation.ValidateTemplateInput(toMap(input))
	if err != nil {
		return nil, pipelineerrors.NewValidationError(err.Error())
	}
	if summary != "" {
		return nil, pipelineerrors.NewValidationError(summary)
	}

	existing, err := s.templates.GetByNameAndTenant(ctx, input.Name, input.TenantType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pipelineerrors.NewDuplicateTemplateError(input.Name, input.TenantType)
	}

	now := time.Now().UTC()
	template := &models.Template{
		ID:               uuid.NewString(),
		Name:             input.Name,
		Description:      input.Description,
		TenantType:       input.TenantType,
		TaskType:         input.TaskType,
		ElementType:      input.ElementType,
		GenerationPrompt: input.GenerationPrompt,
		RetrievalPrompt:  input.RetrievalPrompt,
		ExecutionConfig:  input.ExecutionConfig,
		Variables:        input.Variables,
		Version:          1,
		Status:           models.TemplateStatusActive,
		CreatedBy:        creatorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if autoDeriveRetrieval && template.RetrievalPrompt == "" && strings.TrimSpace(template.GenerationPrompt) != "" {
		derived, compressErr := s.compressor.Compress(ctx, template.GenerationPrompt, &compressor.Context{
			TenantType: template.TenantType,
			TaskType:   template.TaskType,
		})
		if compressErr != nil {
			s.logger.Warn("retrieval prompt derivation failed, creating template without it", map[string]interface{}{
				"templateName": template.Name,
				"tenantType":   template.TenantType,
				"error":        compressErr.Error(),
			})
		} else {
			template.RetrievalPrompt = derived
		}
	}

	if err := s.templates.Create(ctx, template); err != nil {
		return nil, err
	}

	s.logger.Info("template created", map[string]interface{}{
		"templateId": template.ID,
		"name":       template.Name,
		"tenantType": template.TenantType,
	})

	return template, nil
}

// UpdateTemplate applies partial updates. A version bump records a changelog
// entry first; a changed generation prompt triggers re-compression with the
// same non-fatal failure policy as creation.
func (s *Service) UpdateTemplate(ctx context.Context, id string, updates UpdateInput, editorID string) (*models.Template, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, pipelineerrors.NewNotFoundError("Template", id)
	}

	if updates.BumpVersion {
		template.Version++
		template.Changelog = append(template.Changelog, models.ChangelogEntry{
			Version:   template.Version,
			EditorID:  editorID,
			Summary:   updates.ChangeSummary,
			Timestamp: time.Now().UTC(),
		})
	}

	if updates.Name != nil && *updates.Name != template.Name {
		conflict, err := s.templates.GetByNameAndTenant(ctx, *updates.Name, template.TenantType)
		if err != nil {
			return nil, err
		}
		if conflict != nil && conflict.ID != template.ID {
			return nil, pipelineerrors.NewDuplicateTemplateError(*updates.Name, template.TenantType)
		}
		template.Name = *updates.Name
	}
	if updates.Description != nil {
		template.Description = *updates.Description
	}
	if updates.TaskType != nil {
		template.TaskType = *updates.TaskType
	}
	if updates.ElementType != nil {
		template.ElementType = *updates.ElementType
	}
	if updates.ExecutionConfig != nil {
		template.ExecutionConfig = *updates.ExecutionConfig
	}
	if updates.Variables != nil {
		template.Variables = *updates.Variables
	}
	if updates.Status != nil {
		template.Status = *updates.Status
	}
	if updates.RetrievalPrompt != nil {
		template.RetrievalPrompt = *updates.RetrievalPrompt
	}

	promptChanged := updates.GenerationPrompt != nil && *updates.GenerationPrompt != template.GenerationPrompt
	if promptChanged {
		template.GenerationPrompt = *updates.GenerationPrompt

		derived, compressErr := s.compressor.Compress(ctx, template.GenerationPrompt, &compressor.Context{
			TenantType: template.TenantType,
			TaskType:   template.TaskType,
		})
		if compressErr != nil {
			// Keep the stale retrieval prompt rather than blocking the edit.
			s.logger.Warn("retrieval prompt refresh failed, keeping previous value", map[string]interface{}{
				"templateId": template.ID,
				"error":      compressErr.Error(),
			})
		} else {
			template.RetrievalPrompt = derived
		}
	}

	template.UpdatedAt = time.Now().UTC()

	if err := s.templates.Update(ctx, template); err != nil {
		return nil, err
	}

	s.logger.Info("template updated", map[string]interface{}{
		"templateId":    template.ID,
		"version":       template.Version,
		"promptChanged": promptChanged,
	})

	return template, nil
}

// DeleteTemplate soft-deletes (marks inactive) when elements still reference
// the template, hard-deletes otherwise.
func (s *Service) DeleteTemplate(ctx context.Context, id string) (*DeleteResult, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, pipelineerrors.NewNotFoundError("Template", id)
	}

	referencing, err := s.elements.CountByTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	if referencing > 0 {
		template.Status = models.TemplateStatusInactive
		template.UpdatedAt = time.Now().UTC()
		if err := s.templates.Update(ctx, template); err != nil {
			return nil, err
		}
		s.logger.Info("template soft-deleted", map[string]interface{}{
			"templateId":       id,
			"referencingCount": referencing,
		})
		return &DeleteResult{TemplateID: id, Outcome: OutcomeSoftDeleted, ReferencingCount: referencing}, nil
	}

	if err := s.templates.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("template deleted", map[string]interface{}{"templateId": id})
	return &DeleteResult{TemplateID: id, Outcome: OutcomeDeleted}, nil
}

// CleanupUnused removes templates older than the cutoff that were never used
// (or not used since the cutoff) and have no referencing elements. With
// dryRun the candidate set is reported but nothing is deleted.
func (s *Service) CleanupUnused(ctx context.Context, olderThanDays int, dryRun bool) (*CleanupReport, error) {
	if olderThanDays <= 0 {
		return nil, pipelineerrors.NewValidationError("olderThanDays must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	candidates, err := s.templates.ListCleanupCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{DryRun: dryRun}
	for _, t := range candidates {
		referencing, err := s.elements.CountByTemplate(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if referencing > 0 {
			continue
		}

		if !dryRun {
			if err := s.templates.Delete(ctx, t.ID); err != nil {
				s.logger.Error("cleanup delete failed", map[string]interface{}{
					"templateId": t.ID,
					"error":      err.Error(),
				})
				continue
			}
		}
		report.Count++
		report.IDs = append(report.IDs, t.ID)
	}

	s.logger.Info("cleanup completed", map[string]interface{}{
		"candidates": len(candidates),
		"removed":    report.Count,
		"dryRun":     dryRun,
	})

	return report, nil
}

// GetTemplate fetches one template by id.
func (s *Service) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, pipelineerrors.NewNotFoundError("Template", id)
	}
	return template, nil
}

// ListActive lists the active templates of one tenant type.
func (s *Service) ListActive(ctx context.Context, tenantType string) ([]*models.Template, error) {
	return s.templates.ListActiveByTenant(ctx, tenantType)
}

func toMap(input CreateInput) map[string]interface{} {
	raw, _ := json.Marshal(input)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	return m
}
