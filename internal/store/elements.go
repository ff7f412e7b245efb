// internal/store/elements.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/models"
)

// ElementStore is the element persistence contract.
type ElementStore interface {
	Create(ctx context.Context, e *models.Element) error
	GetByID(ctx context.Context, id string) (*models.Element, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Element, error)
	CountDefaultByProject(ctx context.Context, projectID string) (int, error)
	CountByTemplate(ctx context.Context, templateID string) (int, error)
	UpdateRetrievalPrompt(ctx context.Context, id, retrievalPrompt string) error
	ListMissingRetrievalPrompt(ctx context.Context, filter SweepFilter) ([]*models.Element, error)
}

// SweepFilter narrows the missing-retrieval-prompt scan.
type SweepFilter struct {
	TenantType string // matches the source template's tenant type when set
	ProjectID  string
	Limit      int
}

// PostgresElementStore implements ElementStore over database/sql.
type PostgresElementStore struct {
	db *sql.DB
}

func NewPostgresElementStore(db *sql.DB) *PostgresElementStore {
	return &PostgresElementStore{db: db}
}

const elementColumns = `id, project_id, template_id, name, task_type, element_type,
	generation_prompt, retrieval_prompt, execution_config, variables, template_version,
	is_default_element, insertion_batch_id, status, created_at, updated_at`

func (s *PostgresElementStore) Create(ctx context.Context, e *models.Element) error {
	execCfg, _ := json.Marshal(e.ExecutionConfig)
	variables, _ := json.Marshal(e.Variables)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO elements (`+elementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.ProjectID, e.TemplateID, e.Name, e.TaskType, e.ElementType,
		e.GenerationPrompt, e.RetrievalPrompt, execCfg, variables, e.TemplateVersion,
		e.IsDefaultElement, e.InsertionBatchID, e.Status, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return pipelineerrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *PostgresElementStore) GetByID(ctx context.Context, id string) (*models.Element, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+elementColumns+` FROM elements WHERE id = $1`, id)
	return scanElement(row)
}

func (s *PostgresElementStore) ListByProject(ctx context.Context, projectID string) ([]*models.Element, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+elementColumns+` FROM elements WHERE project_id = $1 ORDER BY created_at`,
		projectID)
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("list_elements_by_project", err)
	}
	defer rows.Close()
	return scanElements(rows)
}

func (s *PostgresElementStore) CountDefaultByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM elements WHERE project_id = $1 AND is_default_element = true`,
		projectID).Scan(&count)
	if err != nil {
		return 0, pipelineerrors.NewQueryExecutionFailedError("count_default_elements", err)
	}
	return count, nil
}

func (s *PostgresElementStore) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM elements WHERE template_id = $1`,
		templateID).Scan(&count)
	if err != nil {
		return 0, pipelineerrors.NewQueryExecutionFailedError("count_elements_by_template", err)
	}
	return count, nil
}

func (s *PostgresElementStore) UpdateRetrievalPrompt(ctx context.Context, id, retrievalPrompt string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE elements SET retrieval_prompt = $2, updated_at = $3 WHERE id = $1`,
		id, retrievalPrompt, time.Now().UTC())
	if err != nil {
		return pipelineerrors.NewQueryExecutionFailedError("update_retrieval_prompt", err)
	}
	return nil
}

// ListMissingRetrievalPrompt finds elements with a generation prompt but no
// retrieval prompt, joined to templates when a tenant filter is requested.
func (s *PostgresElementStore) ListMissingRetrievalPrompt(ctx context.Context, filter SweepFilter) ([]*models.Element, error) {
	query := `SELECT e.id, e.project_id, e.template_id, e.name, e.task_type, e.element_type,
		e.generation_prompt, e.retrieval_prompt, e.execution_config, e.variables, e.template_version,
		e.is_default_element, e.insertion_batch_id, e.status, e.created_at, e.updated_at
		FROM elements e`
	args := []interface{}{}
	where := ` WHERE (e.retrieval_prompt IS NULL OR e.retrieval_prompt = '')
		AND e.generation_prompt <> ''`

	if filter.TenantType != "" {
		query += ` JOIN templates t ON t.id = e.template_id`
		args = append(args, filter.TenantType)
		where += ` AND t.tenant_type = $1`
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		where += ` AND e.project_id = $` + itoa(len(args))
	}

	query += where + ` ORDER BY e.created_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("list_missing_retrieval_prompt", err)
	}
	defer rows.Close()
	return scanElements(rows)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func scanElement(row rowScanner) (*models.Element, error) {
	var e models.Element
	var execCfg, variables []byte
	var retrievalPrompt sql.NullString // NULL until a compression sweep fills it in

	err := row.Scan(
		&e.ID, &e.ProjectID, &e.TemplateID, &e.Name, &e.TaskType, &e.ElementType,
		&e.GenerationPrompt, &retrievalPrompt, &execCfg, &variables, &e.TemplateVersion,
		&e.IsDefaultElement, &e.InsertionBatchID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("scan_element", err)
	}
	e.RetrievalPrompt = retrievalPrompt.String

	if len(execCfg) > 0 {
		_ = json.Unmarshal(execCfg, &e.ExecutionConfig)
	}
	if len(variables) > 0 {
		_ = json.Unmarshal(variables, &e.Variables)
	}

	return &e, nil
}

func scanElements(rows *sql.Rows) ([]*models.Element, error) {
	var elements []*models.Element
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("iterate_elements", err)
	}
	return elements, nil
}
