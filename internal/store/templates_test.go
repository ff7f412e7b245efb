// internal/store/templates_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/models"
)

func templateRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "tenant_type", "task_type", "element_type",
		"generation_prompt", "retrieval_prompt", "execution_config", "variables", "version", "status",
		"usage_count", "element_count", "changelog", "created_by", "created_at", "updated_at", "last_used_at",
	})
}

func TestTemplateStore_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	lastUsed := now.Add(-time.Hour)
	mock.ExpectQuery(`(?s)SELECT .+ FROM templates WHERE id = \$1`).
		WithArgs("tpl-1").
		WillReturnRows(templateRows().AddRow(
			"tpl-1", "contract-summary", "desc", "legal", "summarization", "text",
			"Summarize {retrieved_chunks}", "summary query",
			[]byte(`{"model":"base-model","temperature":0.3,"maxTokens":1000}`),
			[]byte(`[{"name":"tone","required":true}]`),
			2, "active", 5, 12,
			[]byte(`[{"version":2,"editorId":"u-1","summary":"reworded"}]`),
			"u-1", now, now, lastUsed,
		))

	store := NewPostgresTemplateStore(db)
	template, err := store.GetByID(context.Background(), "tpl-1")

	require.NoError(t, err)
	require.NotNil(t, template)
	assert.Equal(t, "contract-summary", template.Name)
	assert.Equal(t, 0.3, template.ExecutionConfig.Temperature)
	assert.Equal(t, 1000, template.ExecutionConfig.MaxTokens)
	require.Len(t, template.Variables, 1)
	assert.Equal(t, "tone", template.Variables[0].Name)
	require.Len(t, template.Changelog, 1)
	assert.Equal(t, 2, template.Changelog[0].Version)
	require.NotNil(t, template.LastUsedAt)
	assert.Equal(t, lastUsed, *template.LastUsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateStore_GetByID_NoRowsIsNil(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT .+ FROM templates WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(templateRows())

	store := NewPostgresTemplateStore(db)
	template, err := store.GetByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, template, "absence is not an error")
}

func TestTemplateStore_GetByNameAndTenant(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT .+ FROM templates WHERE name = \$1 AND tenant_type = \$2`).
		WithArgs("contract-summary", "legal").
		WillReturnRows(templateRows().AddRow(
			"tpl-1", "contract-summary", "desc", "legal", "summarization", "text",
			"p", "", []byte(`{}`), []byte(`[]`), 1, "active", 0, 0, []byte(`[]`),
			"u-1", now, now, nil,
		))

	store := NewPostgresTemplateStore(db)
	template, err := store.GetByNameAndTenant(context.Background(), "contract-summary", "legal")

	require.NoError(t, err)
	require.NotNil(t, template)
	assert.Nil(t, template.LastUsedAt)
}

func TestTemplateStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO templates`).
		WithArgs(
			"tpl-1", "contract-summary", "desc", "legal", "summarization", "text",
			"Summarize {retrieved_chunks}", "summary query",
			sqlmock.AnyArg(), sqlmock.AnyArg(), 1, models.TemplateStatusActive,
			0, 0, sqlmock.AnyArg(), "u-1", sqlmock.AnyArg(), sqlmock.AnyArg(), nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	store := NewPostgresTemplateStore(db)
	err = store.Create(context.Background(), &models.Template{
		ID:               "tpl-1",
		Name:             "contract-summary",
		Description:      "desc",
		TenantType:       "legal",
		TaskType:         "summarization",
		ElementType:      "text",
		GenerationPrompt: "Summarize {retrieved_chunks}",
		RetrievalPrompt:  "summary query",
		Version:          1,
		Status:           models.TemplateStatusActive,
		CreatedBy:        "u-1",
		CreatedAt:        now,
		UpdatedAt:        now,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateStore_CreateFailureIsDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO templates`).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	store := NewPostgresTemplateStore(db)
	err = store.Create(context.Background(), &models.Template{ID: "tpl-1"})

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeDatabaseInsertFailed))
}

func TestTemplateStore_ListCleanupCandidates(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT .+ FROM templates\s+WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnRows(templateRows().
			AddRow("tpl-old", "stale", "d", "legal", "t", "e", "p", "", []byte(`{}`), []byte(`[]`),
				1, "active", 0, 0, []byte(`[]`), "u-1", now, now, nil))

	store := NewPostgresTemplateStore(db)
	candidates, err := store.ListCleanupCandidates(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "tpl-old", candidates[0].ID)
}

func TestTemplateStore_RecordUsage(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`usage_count = usage_count + 1`)).
		WithArgs("tpl-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresTemplateStore(db)
	err = store.RecordUsage(context.Background(), "tpl-1", 3)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
