// internal/store/templates.go
// Package store implements the persistence contracts of the pipeline over
// PostgreSQL. JSON-shaped fields (variables, changelog, chunks, metrics) are
// stored in jsonb columns.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/models"
)

// TemplateStore is the template persistence contract.
type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	GetByID(ctx context.Context, id string) (*models.Template, error)
	GetByNameAndTenant(ctx context.Context, name, tenantType string) (*models.Template, error)
	ListActiveByTenant(ctx context.Context, tenantType string) ([]*models.Template, error)
	Update(ctx context.Context, t *models.Template) error
	Delete(ctx context.Context, id string) error
	ListCleanupCandidates(ctx context.Context, cutoff time.Time) ([]*models.Template, error)
	RecordUsage(ctx context.Context, id string, elementsCreated int) error
}

// PostgresTemplateStore implements TemplateStore over database/sql.
type PostgresTemplateStore struct {
	db *sql.DB
}

func NewPostgresTemplateStore(db *sql.DB) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: db}
}

const templateColumns = `id, name, description, tenant_type, task_type, element_type,
	generation_prompt, retrieval_prompt, execution_config, variables, version, status,
	usage_count, element_count, changelog, created_by, created_at, updated_at, last_used_at`

func (s *PostgresTemplateStore) Create(ctx context.Context, t *models.Template) error {
	execCfg, _ := json.Marshal(t.ExecutionConfig)
	variables, _ := json.Marshal(t.Variables)
	changelog, _ := json.Marshal(t.Changelog)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		t.ID, t.Name, t.Description, t.TenantType, t.TaskType, t.ElementType,
		t.GenerationPrompt, t.RetrievalPrompt, execCfg, variables, t.Version, t.Status,
		t.UsageCount, t.ElementCount, changelog, t.CreatedBy, t.CreatedAt, t.UpdatedAt, t.LastUsedAt,
	)
	if err != nil {
		return pipelineerrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *PostgresTemplateStore) GetByID(ctx context.Context, id string) (*models.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	return scanTemplate(row)
}

func (s *PostgresTemplateStore) GetByNameAndTenant(ctx context.Context, name, tenantType string) (*models.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE name = $1 AND tenant_type = $2`,
		name, tenantType)
	return scanTemplate(row)
}

func (s *PostgresTemplateStore) ListActiveByTenant(ctx context.Context, tenantType string) ([]*models.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE tenant_type = $1 AND status = $2
		 ORDER BY created_at`,
		tenantType, models.TemplateStatusActive)
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("list_active_templates", err)
	}
	defer rows.Close()
	return scanTemplates(rows)
}

func (s *PostgresTemplateStore) Update(ctx context.Context, t *models.Template) error {
	execCfg, _ := json.Marshal(t.ExecutionConfig)
	variables, _ := json.Marshal(t.Variables)
	changelog, _ := json.Marshal(t.Changelog)

	_, err := s.db.ExecContext(ctx, `
		UPDATE templates SET
			name = $2, description = $3, tenant_type = $4, task_type = $5, element_type = $6,
			generation_prompt = $7, retrieval_prompt = $8, execution_config = $9, variables = $10,
			version = $11, status = $12, usage_count = $13, element_count = $14, changelog = $15,
			updated_at = $16, last_used_at = $17
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.TenantType, t.TaskType, t.ElementType,
		t.GenerationPrompt, t.RetrievalPrompt, execCfg, variables,
		t.Version, t.Status, t.UsageCount, t.ElementCount, changelog,
		t.UpdatedAt, t.LastUsedAt,
	)
	if err != nil {
		return pipelineerrors.NewQueryExecutionFailedError("update_template", err)
	}
	return nil
}

func (s *PostgresTemplateStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return pipelineerrors.NewQueryExecutionFailedError("delete_template", err)
	}
	return nil
}

// ListCleanupCandidates returns templates created before the cutoff that were
// never used, or whose last use predates the cutoff. Element references are
// checked separately by the registry.
func (s *PostgresTemplateStore) ListCleanupCandidates(ctx context.Context, cutoff time.Time) ([]*models.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE created_at < $1
		   AND (usage_count = 0 OR last_used_at IS NULL OR last_used_at < $1)
		 ORDER BY created_at`,
		cutoff)
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("list_cleanup_candidates", err)
	}
	defer rows.Close()
	return scanTemplates(rows)
}

// RecordUsage bumps the usage counters after a successful provisioning run.
func (s *PostgresTemplateStore) RecordUsage(ctx context.Context, id string, elementsCreated int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE templates SET
			usage_count = usage_count + 1,
			element_count = element_count + $2,
			last_used_at = $3
		WHERE id = $1`,
		id, elementsCreated, time.Now().UTC())
	if err != nil {
		return pipelineerrors.NewQueryExecutionFailedError("record_template_usage", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var t models.Template
	var execCfg, variables, changelog []byte
	var lastUsedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.TenantType, &t.TaskType, &t.ElementType,
		&t.GenerationPrompt, &t.RetrievalPrompt, &execCfg, &variables, &t.Version, &t.Status,
		&t.UsageCount, &t.ElementCount, &changelog, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &lastUsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("scan_template", err)
	}

	if len(execCfg) > 0 {
		_ = json.Unmarshal(execCfg, &t.ExecutionConfig)
	}
	if len(variables) > 0 {
		_ = json.Unmarshal(variables, &t.Variables)
	}
	if len(changelog) > 0 {
		_ = json.Unmarshal(changelog, &t.Changelog)
	}
	if lastUsedAt.Valid {
		t.LastUsedAt = &lastUsedAt.Time
	}

	return &t, nil
}

func scanTemplates(rows *sql.Rows) ([]*models.Template, error) {
	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("iterate_templates", err)
	}
	return templates, nil
}
