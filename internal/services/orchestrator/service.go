// internal/services/orchestrator/service.go
// Package orchestrator runs the generation pipeline: retrieval, prompt
// assembly, LLM invocation, and the lifecycle of the resulting record.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/llm"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/common/metrics"
	"prompt-pipeline/internal/common/retrieval"
	"prompt-pipeline/internal/models"
	"prompt-pipeline/internal/services/notification"
	"prompt-pipeline/internal/store"
)

// Notifier delivers lifecycle notifications. Delivery is best-effort: the
// orchestrator logs and drops notifier errors.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) (*notification.Receipt, error)
}

const (
	stageRetrieval  = "retrieval"
	stageGeneration = "generation"
)

// Config bounds retrieval depth and bulk fan-out.
type Config struct {
	TopK            int
	BulkConcurrency int
}

func DefaultConfig() *Config {
	return &Config{TopK: 10, BulkConcurrency: 4}
}

// Service executes elements against a project's documents.
type Service struct {
	elements    store.ElementStore
	projects    store.ProjectStore
	generations store.GenerationStore
	retriever   retrieval.Retriever
	provider    llm.Provider
	notifier    Notifier
	config      *Config
	logger      logger.Logger
}

// SetNotifier enables lifecycle notifications. Without one the orchestrator
// runs silently.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func NewService(
	elements store.ElementStore,
	projects store.ProjectStore,
	generations store.GenerationStore,
	retriever retrieval.Retriever,
	provider llm.Provider,
	cfg *Config,
	log logger.Logger,
) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 4
	}
	return &Service{
		elements:    elements,
		projects:    projects,
		generations: generations,
		retriever:   retriever,
		provider:    provider,
		config:      cfg,
		logger:      log.WithFields(map[string]interface{}{"service": "orchestrator"}),
	}
}

// Generate runs one element through retrieval, substitution, and the LLM
// provider. NotFound and AccessDenied fail fast before any record is written.
// A retriever failure degrades to an empty chunk set; substitution and
// provider failures move the record to Failed and surface the error.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*models.Generation, error) {
	element, err := s.elements.GetByID(ctx, req.ElementID)
	if err != nil {
		return nil, err
	}
	if element == nil {
		return nil, pipelineerrors.NewNotFoundError("Element", req.ElementID)
	}
	// Elements belong to exactly one project; an ID from another project is
	// indistinguishable from a missing one.
	if element.ProjectID != req.ProjectID {
		return nil, pipelineerrors.NewNotFoundError("Element", req.ElementID)
	}

	project, err := s.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, pipelineerrors.NewNotFoundError("Project", req.ProjectID)
	}
	if !project.IsAccessibleBy(req.UserID) {
		return nil, pipelineerrors.NewAccessDeniedError(req.UserID, req.ProjectID)
	}

	started := time.Now()
	generation := &models.Generation{
		ID:                     uuid.NewString(),
		ElementID:              element.ID,
		ProjectID:              project.ID,
		UserID:                 req.UserID,
		Status:                 models.GenerationStatusPending,
		AdditionalInstructions: req.AdditionalInstructions,
		CreatedAt:              started.UTC(),
	}
	if err := s.generations.Create(ctx, generation); err != nil {
		return nil, err
	}

	generation.Status = models.GenerationStatusProcessing
	if err := s.generations.Update(ctx, generation); err != nil {
		return nil, err
	}

	log := s.logger.WithFields(map[string]interface{}{
		"generationId": generation.ID,
		"elementId":    element.ID,
		"projectId":    project.ID,
	})

	// Retrieval. A failure here degrades to no context instead of failing
	// the request; partial value beats no value when search is down.
	chunks, retrievalMs := s.retrieveChunks(ctx, element, project, log)
	generation.SourceChunks = chunks
	generation.Metrics.RetrievalTimeMs = retrievalMs
	generation.Metrics.DocumentsRetrieved = len(chunks)

	// Prompt assembly.
	prompt, err := buildPrompt(element.GenerationPrompt, chunks, req.AdditionalInstructions)
	if err != nil {
		return generation, s.failGeneration(ctx, generation, project, stageGeneration, err, log)
	}

	// Provider call with any per-call override merged over the element's
	// frozen config.
	execCfg := element.ExecutionConfig.Merge(req.OverrideConfig)
	genStart := time.Now()
	text, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Model:       execCfg.Model,
		Temperature: execCfg.Temperature,
		MaxTokens:   execCfg.MaxTokens,
	})
	generation.Metrics.GenerationTimeMs = time.Since(genStart).Milliseconds()
	metrics.GenerationStageDuration.WithLabelValues(stageGeneration).Observe(time.Since(genStart).Seconds())
	if err != nil {
		return generation, s.failGeneration(ctx, generation, project, stageGeneration, err, log)
	}

	now := time.Now().UTC()
	generation.GeneratedContent = []string{text}
	generation.Metrics.ProcessingTimeMs = time.Since(started).Milliseconds()
	generation.Status = models.GenerationStatusCompleted
	generation.CompletedAt = &now

	if err := s.generations.Update(ctx, generation); err != nil {
		return generation, err
	}

	metrics.GenerationsCompleted.WithLabelValues(project.TenantType).Inc()
	log.Info("generation completed", map[string]interface{}{
		"documentsRetrieved": generation.Metrics.DocumentsRetrieved,
		"processingTimeMs":   generation.Metrics.ProcessingTimeMs,
	})

	s.notify(ctx, notification.Message{
		RecipientID: project.OwnerID,
		Event:       notification.EventGenerationCompleted,
		ProjectID:   project.ID,
		Metadata: map[string]interface{}{
			"generationId": generation.ID,
		},
	}, log)

	return generation, nil
}

// notify delivers a lifecycle notification when a notifier is configured.
// Failures are logged, never propagated.
func (s *Service) notify(ctx context.Context, msg notification.Message, log logger.Logger) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, msg); err != nil {
		log.Warn("notification delivery failed", map[string]interface{}{
			"event": string(msg.Event),
			"error": err.Error(),
		})
	}
}

// retrieveChunks queries the retriever scoped to the project's documents,
// preferring the compressed retrieval prompt and falling back to the full
// generation prompt when no compression has run.
func (s *Service) retrieveChunks(ctx context.Context, element *models.Element, project *models.Project, log logger.Logger) ([]models.Chunk, int64) {
	query := element.RetrievalPrompt
	if query == "" {
		query = element.GenerationPrompt
	}

	start := time.Now()
	chunks, err := s.retriever.Search(ctx, query, project.DocumentIDs, s.config.TopK)
	elapsed := time.Since(start)
	metrics.GenerationStageDuration.WithLabelValues(stageRetrieval).Observe(elapsed.Seconds())

	if err != nil {
		log.Warn("retrieval failed, continuing without context", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, elapsed.Milliseconds()
	}

	return chunks, elapsed.Milliseconds()
}

// failGeneration moves the record to Failed with stage-tagged error details.
// The record stays retrievable; the error still propagates to the caller.
func (s *Service) failGeneration(ctx context.Context, generation *models.Generation, project *models.Project, stage string, cause error, log logger.Logger) error {
	now := time.Now().UTC()
	generation.Status = models.GenerationStatusFailed
	generation.ErrorDetails = &models.ErrorDetails{
		Stage:     stage,
		Message:   cause.Error(),
		Timestamp: now,
	}
	generation.CompletedAt = &now

	if updateErr := s.generations.Update(ctx, generation); updateErr != nil {
		log.Error("failed to persist failed generation", map[string]interface{}{
			"error": updateErr.Error(),
		})
	}

	errorCode := "UNKNOWN"
	if stdErr := pipelineerrors.AsStandard(cause); stdErr != nil {
		errorCode = string(stdErr.Code)
	}
	metrics.GenerationsFailed.WithLabelValues(stage, errorCode).Inc()

	log.Error("generation failed", map[string]interface{}{
		"stage": stage,
		"error": cause.Error(),
	})

	s.notify(ctx, notification.Message{
		RecipientID: project.OwnerID,
		Event:       notification.EventGenerationFailed,
		ProjectID:   project.ID,
		Priority:    "high",
		Metadata: map[string]interface{}{
			"generationId": generation.ID,
			"stage":        stage,
		},
	}, log)

	return cause
}

// BulkGenerate runs Generate over an explicit element list, or every element
// in the project when none is given, with bounded fan-out. Per-element
// failures land in the report instead of aborting the run.
func (s *Service) BulkGenerate(ctx context.Context, projectID, userID string, elementIDs []string, additionalInstructions string) (*BulkReport, error) {
	if len(elementIDs) == 0 {
		elements, err := s.elements.ListByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		for _, e := range elements {
			elementIDs = append(elementIDs, e.ID)
		}
	}

	report := &BulkReport{Total: len(elementIDs)}
	if report.Total == 0 {
		return report, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.config.BulkConcurrency)
	)

	for _, elementID := range elementIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			generation, err := s.Generate(ctx, GenerateRequest{
				ElementID:              id,
				ProjectID:              projectID,
				UserID:                 userID,
				AdditionalInstructions: additionalInstructions,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, BulkError{ElementID: id, Error: err.Error()})
				return
			}
			report.Successful++
			report.Generations = append(report.Generations, generation)
		}(elementID)
	}
	wg.Wait()

	s.logger.Info("bulk generation completed", map[string]interface{}{
		"projectId":  projectID,
		"total":      report.Total,
		"successful": report.Successful,
		"failed":     report.Failed,
	})

	if s.notifier != nil {
		if project, err := s.projects.GetByID(ctx, projectID); err == nil && project != nil {
			s.notify(ctx, notification.Message{
				RecipientID: project.OwnerID,
				Event:       notification.EventBulkCompleted,
				ProjectID:   projectID,
				Metadata: map[string]interface{}{
					"successful": report.Successful,
					"failed":     report.Failed,
				},
			}, s.logger)
		}
	}

	return report, nil
}
