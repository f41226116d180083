package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// listRepository implements ListRepository over pgx.
type listRepository struct {
	pool *pgxpool.Pool
}

// NewListRepository creates a new list repository
func NewListRepository(pool *pgxpool.Pool) ListRepository {
	return &listRepository{pool: pool}
}

// GetByID retrieves a list by ID
func (r *listRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.List, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, space_id, name, created_at, updated_at FROM lists WHERE id = $1`, id)

	var l domain.List
	if err := row.Scan(&l.ID, &l.SpaceID, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.List{}, fmt.Errorf("list %s: %w", id, ErrNotFound)
		}
		return domain.List{}, fmt.Errorf("failed to get list: %w", err)
	}
	return l, nil
}

// Create inserts a list.
func (r *listRepository) Create(ctx context.Context, list domain.List) (domain.List, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lists (space_id, name)
		VALUES ($1, $2)
		RETURNING id, space_id, name, created_at, updated_at`,
		list.SpaceID, list.Name)

	var l domain.List
	if err := row.Scan(&l.ID, &l.SpaceID, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return domain.List{}, fmt.Errorf("failed to create list: %w", err)
	}
	return l, nil
}
