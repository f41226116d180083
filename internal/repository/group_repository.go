package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// groupRepository implements GroupRepository over pgx.
type groupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new list-group repository
func NewGroupRepository(pool *pgxpool.Pool) GroupRepository {
	return &groupRepository{pool: pool}
}

const groupColumns = `id, list_id, group_by, name, color, icon, "order", is_expanded, entity_id, entity_type, created_at, updated_at`

// Create inserts a group. The unique index on (list_id, group_by, entity_id,
// entity_type, name) absorbs races between concurrent generation calls; a
// conflicting insert reports an error and the caller relies on re-fetching.
func (r *groupRepository) Create(ctx context.Context, group domain.ListGroup) (domain.ListGroup, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO list_groups (list_id, group_by, name, color, icon, "order", is_expanded, entity_id, entity_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
		RETURNING `+groupColumns,
		group.ListID,
		string(group.GroupBy),
		group.Name,
		textOrNull(group.Color),
		textOrNull(group.Icon),
		intOrNull(group.Order),
		group.IsExpanded,
		uuidOrNull(group.EntityID),
		entityTypeOrNull(group.EntityType),
	)

	created, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListGroup{}, fmt.Errorf("group already exists for this reconciliation key")
		}
		return domain.ListGroup{}, fmt.Errorf("failed to create group: %w", err)
	}
	return created, nil
}

// GetByID retrieves a group by ID
func (r *groupRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ListGroup, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM list_groups WHERE id = $1`, id)

	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListGroup{}, fmt.Errorf("group %s: %w", id, ErrNotFound)
		}
		return domain.ListGroup{}, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListByList retrieves the groups of a list with their filters, ordered by
// "order" ascending.
func (r *groupRepository) ListByList(ctx context.Context, listID uuid.UUID, groupBy *domain.GroupBy) ([]domain.GroupWithFilter, error) {
	builder := newSQLBuilder()
	listIdx := builder.addArg(listID)

	query := `
		SELECT g.id, g.list_id, g.group_by, g.name, g.color, g.icon, g."order", g.is_expanded,
		       g.entity_id, g.entity_type, g.created_at, g.updated_at,
		       f.id, f.entity_id, f.entity_type, f.where, f.created_at
		FROM list_groups g
		JOIN lists l ON l.id = g.list_id
		LEFT JOIN filters f ON f.entity_id = g.id AND f.entity_type = 'LIST_GROUP'
		WHERE g.list_id = ` + builder.placeholder(listIdx)

	if groupBy != nil {
		idx := builder.addArg(string(*groupBy))
		query += ` AND g.group_by = ` + builder.placeholder(idx)
	}
	query += ` ORDER BY g."order" ASC NULLS LAST, g.created_at ASC`

	rows, err := r.pool.Query(ctx, query, builder.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []domain.GroupWithFilter{}
	for rows.Next() {
		var (
			g          domain.ListGroup
			color      pgtype.Text
			icon       pgtype.Text
			entityID   uuid.NullUUID
			entityType pgtype.Text
			filterID   uuid.NullUUID
			fEntityID  uuid.NullUUID
			fType      pgtype.Text
			fWhere     json.RawMessage
			fCreatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(
			&g.ID, &g.ListID, &g.GroupBy, &g.Name, &color, &icon, &g.Order, &g.IsExpanded,
			&entityID, &entityType, &g.CreatedAt, &g.UpdatedAt,
			&filterID, &fEntityID, &fType, &fWhere, &fCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		applyGroupNullables(&g, color, icon, entityID, entityType)

		item := domain.GroupWithFilter{ListGroup: g}
		if filterID.Valid {
			where, err := domain.UnmarshalFilterNode(fWhere)
			if err != nil {
				return nil, fmt.Errorf("failed to decode filter for group %s: %w", g.ID, err)
			}
			item.Filter = &domain.Filter{
				ID:         filterID.UUID,
				EntityID:   fEntityID.UUID,
				EntityType: domain.EntityType(fType.String),
				Where:      where,
				CreatedAt:  fCreatedAt.Time,
			}
		}
		groups = append(groups, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group rows: %w", err)
	}

	return groups, nil
}

// Update saves a full group record (callers merge patches beforehand).
func (r *groupRepository) Update(ctx context.Context, group domain.ListGroup) (domain.ListGroup, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE list_groups
		SET name = $2, color = $3, icon = $4, "order" = $5, is_expanded = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+groupColumns,
		group.ID,
		group.Name,
		textOrNull(group.Color),
		textOrNull(group.Icon),
		intOrNull(group.Order),
		group.IsExpanded,
	)

	updated, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListGroup{}, fmt.Errorf("group %s: %w", group.ID, ErrNotFound)
		}
		return domain.ListGroup{}, fmt.Errorf("failed to update group: %w", err)
	}
	return updated, nil
}

// Delete removes a group
func (r *groupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM list_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanGroup(row pgx.Row) (domain.ListGroup, error) {
	var (
		g          domain.ListGroup
		color      pgtype.Text
		icon       pgtype.Text
		entityID   uuid.NullUUID
		entityType pgtype.Text
	)
	if err := row.Scan(
		&g.ID, &g.ListID, &g.GroupBy, &g.Name, &color, &icon, &g.Order, &g.IsExpanded,
		&entityID, &entityType, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return domain.ListGroup{}, err
	}
	applyGroupNullables(&g, color, icon, entityID, entityType)
	return g, nil
}

func applyGroupNullables(g *domain.ListGroup, color, icon pgtype.Text, entityID uuid.NullUUID, entityType pgtype.Text) {
	if color.Valid {
		g.Color = &color.String
	}
	if icon.Valid {
		g.Icon = &icon.String
	}
	if entityID.Valid {
		id := entityID.UUID
		g.EntityID = &id
	}
	if entityType.Valid {
		et := domain.EntityType(entityType.String)
		g.EntityType = &et
	}
}

func intOrNull(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func textOrNull(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func uuidOrNull(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func entityTypeOrNull(et *domain.EntityType) pgtype.Text {
	if et == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*et), Valid: true}
}
