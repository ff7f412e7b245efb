// internal/services/compressor/service.go
// Package compressor derives compact retrieval queries from verbose
// generation instructions.
package compressor

import (
	"context"
	"strings"
	"sync"
	"time"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/llm"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/common/metrics"
	"prompt-pipeline/internal/models"
	"prompt-pipeline/internal/store"
)

// fallbackPrefixLen bounds the degraded value used when a batch item fails.
const fallbackPrefixLen = 200

// tenantInstructions picks compression wording per tenant type; tenants not
// listed here get the generic instruction.
var tenantInstructions = map[string]string{
	"legal":      "Extract the core legal concepts and terms from this drafting instruction as a short search query. Keep statute names, clause types, and parties.",
	"healthcare": "Extract the core clinical concepts from this instruction as a short search query. Keep conditions, treatments, and document types.",
	"finance":    "Extract the core financial concepts from this instruction as a short search query. Keep instruments, metrics, and reporting periods.",
}

const genericInstruction = "Extract the essential topics and key terms from this instruction as a short document search query. Answer with the query only."

// Service derives and persists retrieval prompts.
type Service struct {
	provider llm.Provider
	elements store.ElementStore
	config   *Config
	logger   logger.Logger
}

func NewService(provider llm.Provider, elements store.ElementStore, cfg *Config, log logger.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		provider: provider,
		elements: elements,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"service": "compressor"}),
	}
}

// Compress derives a retrieval prompt from one generation prompt. Empty input
// is a validation error; an empty completion is an empty-response error.
func (s *Service) Compress(ctx context.Context, generationPrompt string, cctx *Context) (string, error) {
	if strings.TrimSpace(generationPrompt) == "" {
		return "", pipelineerrors.NewValidationError("generation prompt is empty")
	}

	instruction := genericInstruction
	if cctx != nil && cctx.TenantType != "" {
		if tenantWording, ok := tenantInstructions[cctx.TenantType]; ok {
			instruction = tenantWording
		}
	}

	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\nInstruction:\n")
	sb.WriteString(generationPrompt)
	sb.WriteString("\n\nSearch query:")

	callCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	text, err := s.provider.Complete(callCtx, llm.CompletionRequest{
		Prompt:      sb.String(),
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		metrics.CompressionsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	retrievalPrompt := strings.TrimSpace(text)
	if retrievalPrompt == "" {
		metrics.CompressionsTotal.WithLabelValues("empty").Inc()
		return "", pipelineerrors.NewEmptyResponseError(s.config.Model)
	}

	metrics.CompressionsTotal.WithLabelValues("succeeded").Inc()
	return retrievalPrompt, nil
}

// BatchCompress processes prompts in fixed-size chunks, concurrently within a
// chunk, pausing between chunks. A failing item yields a truncated prefix of
// its input instead of an error; output order matches input order.
func (s *Service) BatchCompress(ctx context.Context, prompts []string, contexts []*Context) []BatchResult {
	results := make([]BatchResult, len(prompts))

	for start := 0; start < len(prompts); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(prompts) {
			end = len(prompts)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()

				var cctx *Context
				if idx < len(contexts) {
					cctx = contexts[idx]
				}

				compressed, err := s.Compress(ctx, prompts[idx], cctx)
				if err != nil {
					s.logger.Warn("batch item failed, using truncated fallback", map[string]interface{}{
						"index": idx,
						"error": err.Error(),
					})
					results[idx] = BatchResult{
						Index:           idx,
						RetrievalPrompt: truncate(prompts[idx], fallbackPrefixLen),
						Fallback:        true,
					}
					return
				}
				results[idx] = BatchResult{Index: idx, RetrievalPrompt: compressed}
			}(i)
		}
		wg.Wait()

		// Courtesy pause between chunks to avoid hammering the provider.
		if end < len(prompts) && s.config.BatchPause > 0 {
			select {
			case <-time.After(s.config.BatchPause):
			case <-ctx.Done():
				for i := end; i < len(prompts); i++ {
					results[i] = BatchResult{
						Index:           i,
						RetrievalPrompt: truncate(prompts[i], fallbackPrefixLen),
						Fallback:        true,
					}
				}
				return results
			}
		}
	}

	return results
}

// RegenerateForElement re-derives and persists the retrieval prompt of one
// element.
func (s *Service) RegenerateForElement(ctx context.Context, elementID string) (*models.Element, error) {
	element, err := s.elements.GetByID(ctx, elementID)
	if err != nil {
		return nil, err
	}
	if element == nil {
		return nil, pipelineerrors.NewNotFoundError("Element", elementID)
	}
	if strings.TrimSpace(element.GenerationPrompt) == "" {
		return nil, pipelineerrors.NewValidationError("element has no generation prompt")
	}

	retrievalPrompt, err := s.Compress(ctx, element.GenerationPrompt, &Context{TaskType: element.TaskType})
	if err != nil {
		return nil, err
	}

	if err := s.elements.UpdateRetrievalPrompt(ctx, element.ID, retrievalPrompt); err != nil {
		return nil, err
	}

	element.RetrievalPrompt = retrievalPrompt
	return element, nil
}

// SweepMissing finds elements lacking a retrieval prompt and fills them in
// via BatchCompress. Fallback results are not persisted; a failure on one
// element never blocks persisting the others.
func (s *Service) SweepMissing(ctx context.Context, filter store.SweepFilter) (*SweepReport, error) {
	elements, err := s.elements.ListMissingRetrievalPrompt(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Processed: len(elements)}
	if len(elements) == 0 {
		return report, nil
	}

	prompts := make([]string, len(elements))
	contexts := make([]*Context, len(elements))
	for i, e := range elements {
		prompts[i] = e.GenerationPrompt
		contexts[i] = &Context{TaskType: e.TaskType}
	}

	results := s.BatchCompress(ctx, prompts, contexts)
	for i, result := range results {
		if result.Fallback {
			continue
		}
		if err := s.elements.UpdateRetrievalPrompt(ctx, elements[i].ID, result.RetrievalPrompt); err != nil {
			s.logger.Error("failed to persist retrieval prompt", map[string]interface{}{
				"elementId": elements[i].ID,
				"error":     err.Error(),
			})
			continue
		}
		report.Succeeded++
	}

	s.logger.Info("sweep completed", map[string]interface{}{
		"processed": report.Processed,
		"succeeded": report.Succeeded,
	})

	return report, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
