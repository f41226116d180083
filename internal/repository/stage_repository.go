package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// stageRepository implements StageRepository over pgx.
type stageRepository struct {
	pool *pgxpool.Pool
}

// NewStageRepository creates a new pipeline-stage repository
func NewStageRepository(pool *pgxpool.Pool) StageRepository {
	return &stageRepository{pool: pool}
}

const stageColumns = `id, list_id, name, color, "order", is_completed, created_at, updated_at`

// FindAll returns every stage of a list in stage order.
func (r *stageRepository) FindAll(ctx context.Context, listID uuid.UUID) ([]domain.ListStage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+stageColumns+` FROM list_stages WHERE list_id = $1 ORDER BY "order" ASC`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	return collectStages(rows)
}

// FindBy returns the stages of a list matching the completed flag.
func (r *stageRepository) FindBy(ctx context.Context, listID uuid.UUID, isCompleted bool) ([]domain.ListStage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+stageColumns+` FROM list_stages WHERE list_id = $1 AND is_completed = $2 ORDER BY "order" ASC`,
		listID, isCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages by completion: %w", err)
	}
	defer rows.Close()

	return collectStages(rows)
}

// Create inserts a stage.
func (r *stageRepository) Create(ctx context.Context, stage domain.ListStage) (domain.ListStage, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO list_stages (list_id, name, color, "order", is_completed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+stageColumns,
		stage.ListID, stage.Name, stage.Color, stage.Order, stage.IsCompleted)

	var s domain.ListStage
	if err := row.Scan(&s.ID, &s.ListID, &s.Name, &s.Color, &s.Order, &s.IsCompleted, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.ListStage{}, fmt.Errorf("failed to create stage: %w", err)
	}
	return s, nil
}

func collectStages(rows pgx.Rows) ([]domain.ListStage, error) {
	stages := []domain.ListStage{}
	for rows.Next() {
		var s domain.ListStage
		if err := rows.Scan(&s.ID, &s.ListID, &s.Name, &s.Color, &s.Order, &s.IsCompleted, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage row: %w", err)
		}
		stages = append(stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stage rows: %w", err)
	}
	return stages, nil
}
