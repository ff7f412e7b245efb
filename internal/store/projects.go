// internal/store/projects.go
package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/models"
)

// ProjectStore is the read-only project collaborator contract.
type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
}

// PostgresProjectStore implements ProjectStore over database/sql.
type PostgresProjectStore struct {
	db *sql.DB
}

func NewPostgresProjectStore(db *sql.DB) *PostgresProjectStore {
	return &PostgresProjectStore{db: db}
}

func (s *PostgresProjectStore) GetByID(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, tenant_type, document_ids, shared_user_ids, created_at
		FROM projects WHERE id = $1`, id)

	var p models.Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.TenantType,
		pq.Array(&p.DocumentIDs), pq.Array(&p.SharedUserIDs), &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("scan_project", err)
	}

	return &p, nil
}
