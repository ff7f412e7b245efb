// internal/store/generations.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/models"
)

// GenerationStore is the generation persistence contract. The orchestrator is
// the only writer; records in a terminal status are never updated again.
type GenerationStore interface {
	Create(ctx context.Context, g *models.Generation) error
	Update(ctx context.Context, g *models.Generation) error
	GetByID(ctx context.Context, id string) (*models.Generation, error)
}

// PostgresGenerationStore implements GenerationStore over database/sql.
type PostgresGenerationStore struct {
	db *sql.DB
}

func NewPostgresGenerationStore(db *sql.DB) *PostgresGenerationStore {
	return &PostgresGenerationStore{db: db}
}

const generationColumns = `id, element_id, project_id, user_id, status,
	additional_instructions, source_chunks, generated_content, metrics, error_details,
	created_at, completed_at`

func (s *PostgresGenerationStore) Create(ctx context.Context, g *models.Generation) error {
	chunks, _ := json.Marshal(g.SourceChunks)
	content, _ := json.Marshal(g.GeneratedContent)
	metrics, _ := json.Marshal(g.Metrics)
	errDetails, _ := json.Marshal(g.ErrorDetails)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (`+generationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.ElementID, g.ProjectID, g.UserID, g.Status,
		g.AdditionalInstructions, chunks, content, metrics, errDetails,
		g.CreatedAt, g.CompletedAt,
	)
	if err != nil {
		return pipelineerrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *PostgresGenerationStore) Update(ctx context.Context, g *models.Generation) error {
	chunks, _ := json.Marshal(g.SourceChunks)
	content, _ := json.Marshal(g.GeneratedContent)
	metrics, _ := json.Marshal(g.Metrics)
	errDetails, _ := json.Marshal(g.ErrorDetails)

	_, err := s.db.ExecContext(ctx, `
		UPDATE generations SET
			status = $2, source_chunks = $3, generated_content = $4, metrics = $5,
			error_details = $6, completed_at = $7
		WHERE id = $1`,
		g.ID, g.Status, chunks, content, metrics, errDetails, g.CompletedAt,
	)
	if err != nil {
		return pipelineerrors.NewQueryExecutionFailedError("update_generation", err)
	}
	return nil
}

func (s *PostgresGenerationStore) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE id = $1`, id)

	var g models.Generation
	var chunks, content, metrics, errDetails []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&g.ID, &g.ElementID, &g.ProjectID, &g.UserID, &g.Status,
		&g.AdditionalInstructions, &chunks, &content, &metrics, &errDetails,
		&g.CreatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerrors.NewQueryExecutionFailedError("scan_generation", err)
	}

	if len(chunks) > 0 {
		_ = json.Unmarshal(chunks, &g.SourceChunks)
	}
	if len(content) > 0 {
		_ = json.Unmarshal(content, &g.GeneratedContent)
	}
	if len(metrics) > 0 {
		_ = json.Unmarshal(metrics, &g.Metrics)
	}
	if len(errDetails) > 0 && string(errDetails) != "null" {
		_ = json.Unmarshal(errDetails, &g.ErrorDetails)
	}
	if completedAt.Valid {
		g.CompletedAt = &completedAt.Time
	}

	return &g, nil
}
