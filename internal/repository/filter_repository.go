package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// filterRepository implements FilterRepository over pgx.
type filterRepository struct {
	pool *pgxpool.Pool
}

// NewFilterRepository creates a new filter repository
func NewFilterRepository(pool *pgxpool.Pool) FilterRepository {
	return &filterRepository{pool: pool}
}

// Create persists a filter owned by one entity.
func (r *filterRepository) Create(ctx context.Context, filter domain.Filter) (domain.Filter, error) {
	whereJSON, err := domain.MarshalFilterNode(filter.Where)
	if err != nil {
		return domain.Filter{}, fmt.Errorf("marshal filter expression: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO filters (entity_id, entity_type, "where")
		VALUES ($1, $2, $3)
		RETURNING id, entity_id, entity_type, "where", created_at`,
		filter.EntityID,
		string(filter.EntityType),
		whereJSON,
	)

	return scanFilter(row)
}

// GetByEntity fetches the filter owned by (entityID, entityType).
func (r *filterRepository) GetByEntity(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) (domain.Filter, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, entity_id, entity_type, "where", created_at
		FROM filters
		WHERE entity_id = $1 AND entity_type = $2`,
		entityID, string(entityType),
	)

	filter, err := scanFilter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Filter{}, fmt.Errorf("filter for %s %s: %w", entityType, entityID, ErrNotFound)
		}
		return domain.Filter{}, err
	}
	return filter, nil
}

func scanFilter(row pgx.Row) (domain.Filter, error) {
	var (
		f     domain.Filter
		where json.RawMessage
	)
	if err := row.Scan(&f.ID, &f.EntityID, &f.EntityType, &where, &f.CreatedAt); err != nil {
		return domain.Filter{}, err
	}

	node, err := domain.UnmarshalFilterNode(where)
	if err != nil {
		return domain.Filter{}, fmt.Errorf("decode filter expression: %w", err)
	}
	f.Where = node
	return f, nil
}
