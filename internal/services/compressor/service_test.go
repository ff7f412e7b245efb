// internal/services/compressor/service_test.go
package compressor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/llm"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/models"
	"prompt-pipeline/internal/store"
)

// ==========================
// Mocks
// ==========================

// mockProvider fails for prompts containing any of the failOn markers.
type mockProvider struct {
	mu       sync.Mutex
	calls    []llm.CompletionRequest
	failOn   []string
	response func(req llm.CompletionRequest) string
}

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	for _, marker := range m.failOn {
		if strings.Contains(req.Prompt, marker) {
			return "", pipelineerrors.NewProviderError(errors.New("simulated provider outage"))
		}
	}
	if m.response != nil {
		return m.response(req), nil
	}
	return "compressed query", nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockElementStore records UpdateRetrievalPrompt calls.
type mockElementStore struct {
	store.ElementStore

	elements    map[string]*models.Element
	missing     []*models.Element
	updated     map[string]string
	updateErrOn string
}

func newMockElementStore() *mockElementStore {
	return &mockElementStore{
		elements: make(map[string]*models.Element),
		updated:  make(map[string]string),
	}
}

func (m *mockElementStore) GetByID(_ context.Context, id string) (*models.Element, error) {
	return m.elements[id], nil
}

func (m *mockElementStore) UpdateRetrievalPrompt(_ context.Context, id, retrievalPrompt string) error {
	if m.updateErrOn == id {
		return pipelineerrors.NewQueryExecutionFailedError("update_retrieval_prompt", errors.New("write failed"))
	}
	m.updated[id] = retrievalPrompt
	return nil
}

func (m *mockElementStore) ListMissingRetrievalPrompt(_ context.Context, _ store.SweepFilter) ([]*models.Element, error) {
	return m.missing, nil
}

func testConfig() *Config {
	return &Config{
		Model:       "test-model",
		Temperature: 0.2,
		MaxTokens:   100,
		Timeout:     5 * time.Second,
		BatchSize:   5,
		BatchPause:  time.Millisecond,
	}
}

// ==========================
// Compress
// ==========================

func TestCompress_DerivesQuery(t *testing.T) {
	provider := &mockProvider{response: func(llm.CompletionRequest) string {
		return "  merger agreement indemnification clauses  "
	}}
	svc := NewService(provider, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	result, err := svc.Compress(context.Background(), "Draft a detailed memo about indemnification clauses in merger agreements", nil)

	require.NoError(t, err)
	assert.Equal(t, "merger agreement indemnification clauses", result)
	require.Equal(t, 1, provider.callCount())
	assert.Equal(t, "test-model", provider.calls[0].Model)
	assert.Equal(t, 100, provider.calls[0].MaxTokens)
}

func TestCompress_EmptyInputIsValidationError(t *testing.T) {
	provider := &mockProvider{}
	svc := NewService(provider, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	_, err := svc.Compress(context.Background(), "   ", nil)

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeValidationFailed))
	assert.Equal(t, 0, provider.callCount())
}

func TestCompress_EmptyResponseIsError(t *testing.T) {
	provider := &mockProvider{response: func(llm.CompletionRequest) string { return "  \n " }}
	svc := NewService(provider, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	_, err := svc.Compress(context.Background(), "Summarize the quarterly filings", nil)

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeEmptyResponse))
}

func TestCompress_TenantSpecificInstruction(t *testing.T) {
	provider := &mockProvider{}
	svc := NewService(provider, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	_, err := svc.Compress(context.Background(), "Draft a contract clause", &Context{TenantType: "legal"})
	require.NoError(t, err)
	assert.Contains(t, provider.calls[0].Prompt, "legal concepts")

	_, err = svc.Compress(context.Background(), "Draft a contract clause", &Context{TenantType: "unknown-tenant"})
	require.NoError(t, err)
	assert.Contains(t, provider.calls[1].Prompt, "essential topics")
}

// ==========================
// BatchCompress
// ==========================

func TestBatchCompress_SevenItemsPreserveOrder(t *testing.T) {
	provider := &mockProvider{
		failOn: []string{"item-3"},
		response: func(req llm.CompletionRequest) string {
			// Echo the item marker so order can be verified.
			for i := 0; i < 7; i++ {
				marker := fmt.Sprintf("item-%d", i+1)
				if strings.Contains(req.Prompt, marker) {
					return "query for " + marker
				}
			}
			return "query"
		},
	}
	svc := NewService(provider, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	prompts := make([]string, 7)
	for i := range prompts {
		prompts[i] = fmt.Sprintf("Write a long report about item-%d with extensive detail", i+1)
	}

	results := svc.BatchCompress(context.Background(), prompts, nil)

	require.Len(t, results, 7)
	for i, result := range results {
		assert.Equal(t, i, result.Index)
		if i == 2 {
			assert.True(t, result.Fallback)
			assert.Equal(t, prompts[2], result.RetrievalPrompt, "fallback keeps the original under 200 chars")
			continue
		}
		assert.False(t, result.Fallback)
		assert.Equal(t, fmt.Sprintf("query for item-%d", i+1), result.RetrievalPrompt)
	}
}

func TestBatchCompress_FallbackTruncatesTo200(t *testing.T) {
	provider := &mockProvider{failOn: []string{"always"}}
	svc := NewService(provider, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	long := "always " + strings.Repeat("x", 400)
	results := svc.BatchCompress(context.Background(), []string{long}, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Fallback)
	assert.Len(t, results[0].RetrievalPrompt, 200)
	assert.Equal(t, long[:200], results[0].RetrievalPrompt)
}

func TestBatchCompress_EmptyInput(t *testing.T) {
	svc := NewService(&mockProvider{}, newMockElementStore(), testConfig(), logger.NewTestLogger(t))
	results := svc.BatchCompress(context.Background(), nil, nil)
	assert.Empty(t, results)
}

// ==========================
// RegenerateForElement
// ==========================

func TestRegenerateForElement(t *testing.T) {
	elements := newMockElementStore()
	elements.elements["el-1"] = &models.Element{
		ID:               "el-1",
		GenerationPrompt: "Write a thorough analysis of lease termination rights",
	}
	provider := &mockProvider{response: func(llm.CompletionRequest) string { return "lease termination rights" }}
	svc := NewService(provider, elements, testConfig(), logger.NewTestLogger(t))

	element, err := svc.RegenerateForElement(context.Background(), "el-1")

	require.NoError(t, err)
	assert.Equal(t, "lease termination rights", element.RetrievalPrompt)
	assert.Equal(t, "lease termination rights", elements.updated["el-1"])
}

func TestRegenerateForElement_NotFound(t *testing.T) {
	svc := NewService(&mockProvider{}, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	_, err := svc.RegenerateForElement(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeNotFound))
}

func TestRegenerateForElement_NoGenerationPrompt(t *testing.T) {
	elements := newMockElementStore()
	elements.elements["el-1"] = &models.Element{ID: "el-1"}
	svc := NewService(&mockProvider{}, elements, testConfig(), logger.NewTestLogger(t))

	_, err := svc.RegenerateForElement(context.Background(), "el-1")

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeValidationFailed))
}

// ==========================
// SweepMissing
// ==========================

func TestSweepMissing_PersistsOnlyRealCompressions(t *testing.T) {
	elements := newMockElementStore()
	elements.missing = []*models.Element{
		{ID: "el-1", GenerationPrompt: "Summarize vendor contracts in detail"},
		{ID: "el-2", GenerationPrompt: "FAIL this one on purpose"},
		{ID: "el-3", GenerationPrompt: "Describe compliance obligations at length"},
	}
	provider := &mockProvider{failOn: []string{"FAIL"}}
	svc := NewService(provider, elements, testConfig(), logger.NewTestLogger(t))

	report, err := svc.SweepMissing(context.Background(), store.SweepFilter{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Contains(t, elements.updated, "el-1")
	assert.Contains(t, elements.updated, "el-3")
	assert.NotContains(t, elements.updated, "el-2", "fallback results are not persisted")
}

func TestSweepMissing_PersistFailureDoesNotBlockOthers(t *testing.T) {
	elements := newMockElementStore()
	elements.missing = []*models.Element{
		{ID: "el-1", GenerationPrompt: "Summarize vendor contracts in detail"},
		{ID: "el-2", GenerationPrompt: "Describe compliance obligations at length"},
	}
	elements.updateErrOn = "el-1"
	svc := NewService(&mockProvider{}, elements, testConfig(), logger.NewTestLogger(t))

	report, err := svc.SweepMissing(context.Background(), store.SweepFilter{})

	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Contains(t, elements.updated, "el-2")
}

func TestSweepMissing_NothingToDo(t *testing.T) {
	svc := NewService(&mockProvider{}, newMockElementStore(), testConfig(), logger.NewTestLogger(t))

	report, err := svc.SweepMissing(context.Background(), store.SweepFilter{})

	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, report.Succeeded)
}
