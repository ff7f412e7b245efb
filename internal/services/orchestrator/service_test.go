// internal/services/orchestrator/service_test.go
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

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

type mockElementStore struct {
	store.ElementStore
	elements  map[string]*models.Element
	byProject map[string][]*models.Element
}

func (m *mockElementStore) GetByID(_ context.Context, id string) (*models.Element, error) {
	return m.elements[id], nil
}

func (m *mockElementStore) ListByProject(_ context.Context, projectID string) ([]*models.Element, error) {
	return m.byProject[projectID], nil
}

type mockProjectStore struct {
	projects map[string]*models.Project
}

func (m *mockProjectStore) GetByID(_ context.Context, id string) (*models.Project, error) {
	return m.projects[id], nil
}

type mockGenerationStore struct {
	mu      sync.Mutex
	records map[string]*models.Generation
	history []models.GenerationStatus
}

func newMockGenerationStore() *mockGenerationStore {
	return &mockGenerationStore{records: make(map[string]*models.Generation)}
}

func (m *mockGenerationStore) Create(_ context.Context, g *models.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *g
	m.records[g.ID] = &clone
	m.history = append(m.history, g.Status)
	return nil
}

func (m *mockGenerationStore) Update(_ context.Context, g *models.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *g
	m.records[g.ID] = &clone
	m.history = append(m.history, g.Status)
	return nil
}

func (m *mockGenerationStore) GetByID(_ context.Context, id string) (*models.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}

type mockRetriever struct {
	mu       sync.Mutex
	chunks   []models.Chunk
	err      error
	gotQuery string
	gotTopK  int
}

func (m *mockRetriever) Search(_ context.Context, query string, _ []string, topK int) ([]models.Chunk, error) {
	m.mu.Lock()
	m.gotQuery = query
	m.gotTopK = topK
	m.mu.Unlock()
	return m.chunks, m.err
}

type mockProvider struct {
	mu      sync.Mutex
	text    string
	err     error
	lastReq llm.CompletionRequest
}

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// ==========================
// Fixtures
// ==========================

func testElement() *models.Element {
	return &models.Element{
		ID:               "el-1",
		ProjectID:        "proj-1",
		GenerationPrompt: "Summarize {retrieved_chunks} {additional_instructions}",
		RetrievalPrompt:  "summary query",
		ExecutionConfig:  models.ExecutionConfig{Model: "base-model", Temperature: 0.5, MaxTokens: 800},
	}
}

func testProject() *models.Project {
	return &models.Project{
		ID:          "proj-1",
		OwnerID:     "user-1",
		TenantType:  "legal",
		DocumentIDs: []string{"doc-1", "doc-2"},
	}
}

func newTestService(t *testing.T, element *models.Element, project *models.Project, retriever *mockRetriever, provider *mockProvider) (*Service, *mockGenerationStore) {
	elements := &mockElementStore{elements: map[string]*models.Element{}}
	if element != nil {
		elements.elements[element.ID] = element
	}
	projects := &mockProjectStore{projects: map[string]*models.Project{}}
	if project != nil {
		projects.projects[project.ID] = project
	}
	generations := newMockGenerationStore()

	svc := NewService(elements, projects, generations, retriever, provider,
		&Config{TopK: 10, BulkConcurrency: 2}, logger.NewTestLogger(t))
	return svc, generations
}

// ==========================
// Generate
// ==========================

func TestGenerate_Success(t *testing.T) {
	retriever := &mockRetriever{chunks: []models.Chunk{
		{DocumentTitle: "Contract", PageNumber: 3, ChunkText: "Payment due in 30 days."},
	}}
	provider := &mockProvider{text: "The contract requires payment within 30 days."}
	svc, generations := newTestService(t, testElement(), testProject(), retriever, provider)

	generation, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusCompleted, generation.Status)
	assert.Equal(t, []string{"The contract requires payment within 30 days."}, generation.GeneratedContent)
	assert.Equal(t, 1, generation.Metrics.DocumentsRetrieved)
	assert.NotNil(t, generation.CompletedAt)
	assert.Nil(t, generation.ErrorDetails)

	// Pending and Processing were persisted before the terminal state.
	assert.Equal(t, []models.GenerationStatus{
		models.GenerationStatusPending,
		models.GenerationStatusProcessing,
		models.GenerationStatusCompleted,
	}, generations.history)

	// Retrieval used the compressed prompt, not the verbose one.
	assert.Equal(t, "summary query", retriever.gotQuery)
	assert.Equal(t, 10, retriever.gotTopK)
}

func TestGenerate_ElementNotFound_NoRecordCreated(t *testing.T) {
	svc, generations := newTestService(t, nil, testProject(), &mockRetriever{}, &mockProvider{})

	_, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "missing", ProjectID: "proj-1", UserID: "user-1",
	})

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeNotFound))
	assert.Empty(t, generations.records, "fail-fast errors must not create generation records")
}

func TestGenerate_ElementFromAnotherProject_NoRecordCreated(t *testing.T) {
	foreign := testElement()
	foreign.ProjectID = "proj-other"
	project := testProject()
	elements := &mockElementStore{elements: map[string]*models.Element{foreign.ID: foreign}}
	projects := &mockProjectStore{projects: map[string]*models.Project{project.ID: project}}
	generations := newMockGenerationStore()
	svc := NewService(elements, projects, generations, &mockRetriever{}, &mockProvider{text: "ok"},
		&Config{TopK: 10, BulkConcurrency: 2}, logger.NewTestLogger(t))

	_, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: foreign.ID, ProjectID: project.ID, UserID: "user-1",
	})

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeNotFound))
	assert.Empty(t, generations.records, "an element outside the project must not produce a record")
}

func TestGenerate_AccessDenied_NoRecordCreated(t *testing.T) {
	svc, generations := newTestService(t, testElement(), testProject(), &mockRetriever{}, &mockProvider{})

	_, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "intruder",
	})

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeAccessDenied))
	assert.Empty(t, generations.records)
}

func TestGenerate_SharedUserHasAccess(t *testing.T) {
	project := testProject()
	project.SharedUserIDs = []string{"collaborator"}
	provider := &mockProvider{text: "ok"}
	svc, _ := newTestService(t, testElement(), project, &mockRetriever{}, provider)

	generation, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "collaborator",
	})

	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusCompleted, generation.Status)
}

func TestGenerate_RetrievalFailureDegradesToEmptyContext(t *testing.T) {
	retriever := &mockRetriever{err: pipelineerrors.NewRetrievalFailedError(errors.New("search cluster down"))}
	provider := &mockProvider{text: "generated without context"}
	svc, _ := newTestService(t, testElement(), testProject(), retriever, provider)

	generation, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "user-1",
	})

	require.NoError(t, err, "retrieval failure must not fail the generation")
	assert.Equal(t, models.GenerationStatusCompleted, generation.Status)
	assert.Equal(t, 0, generation.Metrics.DocumentsRetrieved)
	assert.Empty(t, generation.SourceChunks)
}

func TestGenerate_EmptyRetrieverStillCompletes(t *testing.T) {
	retriever := &mockRetriever{chunks: []models.Chunk{}}
	provider := &mockProvider{text: "content"}
	svc, _ := newTestService(t, testElement(), testProject(), retriever, provider)

	generation, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusCompleted, generation.Status)
	assert.Equal(t, 0, generation.Metrics.DocumentsRetrieved)
}

func TestGenerate_UndefinedPlaceholderFailsAtGenerationStage(t *testing.T) {
	element := testElement()
	element.GenerationPrompt = "Summarize {undefined_token} in {retrieved_chunks}"
	svc, generations := newTestService(t, element, testProject(), &mockRetriever{}, &mockProvider{})

	generation, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "user-1",
	})

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeTemplateFormat))
	assert.Equal(t, models.GenerationStatusFailed, generation.Status)
	require.NotNil(t, generation.ErrorDetails)
	assert.Equal(t, "generation", generation.ErrorDetails.Stage)

	// The failed record stays retrievable.
	persisted, _ := generations.GetByID(context.Background(), generation.ID)
	require.NotNil(t, persisted)
	assert.Equal(t, models.GenerationStatusFailed, persisted.Status)
}

func TestGenerate_ProviderFailureFailsGeneration(t *testing.T) {
	provider := &mockProvider{err: pipelineerrors.NewProviderError(errors.New("model overloaded"))}
	svc, _ := newTestService(t, testElement(), testProject(), &mockRetriever{}, provider)

	generation, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "user-1",
	})

	require.Error(t, err)
	assert.Equal(t, models.GenerationStatusFailed, generation.Status)
	require.NotNil(t, generation.ErrorDetails)
	assert.Equal(t, "generation", generation.ErrorDetails.Stage)
	assert.NotNil(t, generation.CompletedAt)
}

func TestGenerate_OverrideConfigWinsPerField(t *testing.T) {
	provider := &mockProvider{text: "ok"}
	svc, _ := newTestService(t, testElement(), testProject(), &mockRetriever{}, provider)

	model := "override-model"
	maxTokens := 50
	_, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "user-1",
		OverrideConfig: &models.ConfigOverride{Model: &model, MaxTokens: &maxTokens},
	})

	require.NoError(t, err)
	assert.Equal(t, "override-model", provider.lastReq.Model)
	assert.Equal(t, 50, provider.lastReq.MaxTokens)
	assert.Equal(t, 0.5, provider.lastReq.Temperature, "unset override field keeps the element value")
}

func TestGenerate_FallsBackToGenerationPromptForRetrieval(t *testing.T) {
	element := testElement()
	element.RetrievalPrompt = ""
	retriever := &mockRetriever{}
	svc, _ := newTestService(t, element, testProject(), retriever, &mockProvider{text: "ok"})

	_, err := svc.Generate(context.Background(), GenerateRequest{
		ElementID: "el-1", ProjectID: "proj-1", UserID: "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, element.GenerationPrompt, retriever.gotQuery)
}

// ==========================
// BulkGenerate
// ==========================

func TestBulkGenerate_IsolatesFailures(t *testing.T) {
	good := testElement()
	bad := testElement()
	bad.ID = "el-2"
	bad.GenerationPrompt = "Broken {oops}"

	elements := &mockElementStore{elements: map[string]*models.Element{
		good.ID: good,
		bad.ID:  bad,
	}}
	projects := &mockProjectStore{projects: map[string]*models.Project{"proj-1": testProject()}}
	svc := NewService(elements, projects, newMockGenerationStore(), &mockRetriever{}, &mockProvider{text: "ok"},
		&Config{TopK: 10, BulkConcurrency: 2}, logger.NewTestLogger(t))

	report, err := svc.BulkGenerate(context.Background(), "proj-1", "user-1", []string{"el-1", "el-2"}, "")

	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "el-2", report.Errors[0].ElementID)
	require.Len(t, report.Generations, 1)
}

func TestBulkGenerate_ResolvesProjectElements(t *testing.T) {
	element := testElement()
	elements := &mockElementStore{
		elements:  map[string]*models.Element{element.ID: element},
		byProject: map[string][]*models.Element{"proj-1": {element}},
	}
	projects := &mockProjectStore{projects: map[string]*models.Project{"proj-1": testProject()}}
	svc := NewService(elements, projects, newMockGenerationStore(), &mockRetriever{}, &mockProvider{text: "ok"},
		&Config{TopK: 10, BulkConcurrency: 2}, logger.NewTestLogger(t))

	report, err := svc.BulkGenerate(context.Background(), "proj-1", "user-1", nil, "")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Successful)
}

func TestBulkGenerate_EmptyProject(t *testing.T) {
	elements := &mockElementStore{elements: map[string]*models.Element{}}
	projects := &mockProjectStore{projects: map[string]*models.Project{"proj-1": testProject()}}
	svc := NewService(elements, projects, newMockGenerationStore(), &mockRetriever{}, &mockProvider{},
		nil, logger.NewTestLogger(t))

	report, err := svc.BulkGenerate(context.Background(), "proj-1", "user-1", nil, "")

	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
}
