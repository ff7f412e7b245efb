// internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/models"
	"prompt-pipeline/internal/services/compressor"
	"prompt-pipeline/internal/services/registry"
	"prompt-pipeline/internal/store"
)

// ==========================
// Mocks
// ==========================

type mockTemplateStore struct {
	store.TemplateStore
	byID map[string]*models.Template
}

func (m *mockTemplateStore) Create(_ context.Context, t *models.Template) error {
	m.byID[t.ID] = t
	return nil
}

func (m *mockTemplateStore) GetByID(_ context.Context, id string) (*models.Template, error) {
	return m.byID[id], nil
}

func (m *mockTemplateStore) GetByNameAndTenant(_ context.Context, name, tenantType string) (*models.Template, error) {
	for _, t := range m.byID {
		if t.Name == name && t.TenantType == tenantType {
			return t, nil
		}
	}
	return nil, nil
}

type mockElementStore struct {
	store.ElementStore
}

func (m *mockElementStore) CountByTemplate(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type mockCompressor struct{}

func (m *mockCompressor) Compress(_ context.Context, _ string, _ *compressor.Context) (string, error) {
	return "compressed query", nil
}

type mockGenerationStore struct {
	store.GenerationStore
	byID map[string]*models.Generation
}

func (m *mockGenerationStore) GetByID(_ context.Context, id string) (*models.Generation, error) {
	return m.byID[id], nil
}

func newTestRouter(t *testing.T, templates *mockTemplateStore, generations *mockGenerationStore) *mux.Router {
	log := logger.NewTestLogger(t)
	registrySvc := registry.NewService(templates, &mockElementStore{}, &mockCompressor{}, log)
	handler := NewHandler(registrySvc, nil, nil, nil, generations, log)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func createTemplateBody() string {
	return `{
		"name": "contract-summary",
		"description": "Summarizes contracts",
		"tenantType": "legal",
		"taskType": "summarization",
		"elementType": "text",
		"generationPrompt": "Summarize {retrieved_chunks}",
		"creatorId": "user-1"
	}`
}

// ==========================
// Tests
// ==========================

func TestCreateTemplate_Returns201(t *testing.T) {
	templates := &mockTemplateStore{byID: map[string]*models.Template{}}
	router := newTestRouter(t, templates, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/templates", strings.NewReader(createTemplateBody())))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "contract-summary", created.Name)
	assert.Equal(t, "compressed query", created.RetrievalPrompt)
	assert.Equal(t, 1, created.Version)
}

func TestCreateTemplate_DuplicateReturns409(t *testing.T) {
	templates := &mockTemplateStore{byID: map[string]*models.Template{}}
	router := newTestRouter(t, templates, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/templates", strings.NewReader(createTemplateBody())))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/templates", strings.NewReader(createTemplateBody())))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "DUPLICATE_TEMPLATE")
}

func TestCreateTemplate_MissingFieldsReturns400(t *testing.T) {
	templates := &mockTemplateStore{byID: map[string]*models.Template{}}
	router := newTestRouter(t, templates, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/templates", strings.NewReader(`{"name": "only-a-name"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

func TestGetTemplate_UnknownReturns404(t *testing.T) {
	templates := &mockTemplateStore{byID: map[string]*models.Template{}}
	router := newTestRouter(t, templates, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/templates/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestListTemplates_RequiresTenantType(t *testing.T) {
	templates := &mockTemplateStore{byID: map[string]*models.Template{}}
	router := newTestRouter(t, templates, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/templates", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGeneration(t *testing.T) {
	generations := &mockGenerationStore{byID: map[string]*models.Generation{
		"gen-1": {ID: "gen-1", Status: models.GenerationStatusCompleted},
	}}
	router := newTestRouter(t, &mockTemplateStore{byID: map[string]*models.Template{}}, generations)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/generations/gen-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Generation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.GenerationStatusCompleted, got.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/generations/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
