// internal/services/provisioning/service.go
// Package provisioning materializes active templates into frozen, per-project
// elements.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/common/metrics"
	"prompt-pipeline/internal/models"
	"prompt-pipeline/internal/store"
)

// Service provisions template snapshots into projects.
type Service struct {
	templates store.TemplateStore
	elements  store.ElementStore
	projects  store.ProjectStore
	logger    logger.Logger
}

func NewService(templates store.TemplateStore, elements store.ElementStore, projects store.ProjectStore, log logger.Logger) *Service {
	return &Service{
		templates: templates,
		elements:  elements,
		projects:  projects,
		logger:    log.WithFields(map[string]interface{}{"service": "provisioning"}),
	}
}

// ProvisionToProject snapshots every active template of the tenant into the
// project. Without force, a project that already has default elements is a
// no-op so repeated rollout calls stay idempotent. One failing template never
// aborts the batch; the returned slice holds only the elements actually
// created, so callers can diff against the template count to detect partial
// failure.
func (s *Service) ProvisionToProject(ctx context.Context, projectID, tenantType, batchID string, force bool) ([]*models.Element, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, pipelineerrors.NewNotFoundError("Project", projectID)
	}

	if !force {
		existing, err := s.elements.CountDefaultByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			s.logger.Info("project already provisioned, skipping", map[string]interface{}{
				"projectId":       projectID,
				"defaultElements": existing,
			})
			return []*models.Element{}, nil
		}
	}

	templates, err := s.templates.ListActiveByTenant(ctx, tenantType)
	if err != nil {
		return nil, err
	}

	if batchID == "" {
		batchID = fmt.Sprintf("provision_%s_%d", projectID, time.Now().UTC().Unix())
	}

	created := make([]*models.Element, 0, len(templates))
	for _, template := range templates {
		element := snapshotElement(template, projectID, batchID)

		if err := s.elements.Create(ctx, element); err != nil {
			s.logger.Error("element creation failed, continuing batch", map[string]interface{}{
				"templateId": template.ID,
				"projectId":  projectID,
				"batchId":    batchID,
				"error":      err.Error(),
			})
			continue
		}

		if err := s.templates.RecordUsage(ctx, template.ID, 1); err != nil {
			// Usage counters are advisory; the element itself is committed.
			s.logger.Warn("usage counter update failed", map[string]interface{}{
				"templateId": template.ID,
				"error":      err.Error(),
			})
		}

		created = append(created, element)
	}

	metrics.ElementsProvisioned.WithLabelValues(tenantType).Add(float64(len(created)))

	s.logger.Info("provisioning completed", map[string]interface{}{
		"projectId": projectID,
		"batchId":   batchID,
		"templates": len(templates),
		"created":   len(created),
		"force":     force,
	})

	return created, nil
}

// snapshotElement freezes a template into an element. Prompt text, execution
// config, and variables are copied by value so later template edits never
// change existing elements.
func snapshotElement(t *models.Template, projectID, batchID string) *models.Element {
	now := time.Now().UTC()

	variables := make([]models.TemplateVariable, len(t.Variables))
	copy(variables, t.Variables)

	return &models.Element{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		TemplateID:       t.ID,
		Name:             t.Name,
		TaskType:         t.TaskType,
		ElementType:      t.ElementType,
		GenerationPrompt: t.GenerationPrompt,
		RetrievalPrompt:  t.RetrievalPrompt,
		ExecutionConfig:  t.ExecutionConfig,
		Variables:        variables,
		TemplateVersion:  t.Version,
		IsDefaultElement: true,
		InsertionBatchID: batchID,
		Status:           models.ElementStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
