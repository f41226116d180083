package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// cardRepository implements CardRepository over pgx. It doubles as the query
// layer that evaluates declarative group filters against the cards table.
type cardRepository struct {
	pool *pgxpool.Pool
}

// NewCardRepository creates a new card repository
func NewCardRepository(pool *pgxpool.Pool) CardRepository {
	return &cardRepository{pool: pool}
}

const cardColumnsSQL = `id, list_id, name, description, stage_id, assignee_id, due_date, created_at, updated_at`

// Create inserts a card.
func (r *cardRepository) Create(ctx context.Context, card domain.Card) (domain.Card, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO cards (list_id, name, description, stage_id, assignee_id, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+cardColumnsSQL,
		card.ListID,
		card.Name,
		card.Description,
		uuidOrNull(card.StageID),
		uuidOrNull(card.AssigneeID),
		timestampOrNull(card.DueDate),
	)

	created, err := scanCard(row)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to create card: %w", err)
	}
	return created, nil
}

// GetByID retrieves a card by ID
func (r *cardRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Card, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+cardColumnsSQL+` FROM cards WHERE id = $1`, id)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// ListByList retrieves every card of a list.
func (r *cardRepository) ListByList(ctx context.Context, listID uuid.UUID) ([]domain.Card, error) {
	return r.ListByFilter(ctx, listID, nil)
}

// ListByFilter evaluates a filter expression tree against the list's cards.
// Symbolic day-boundary placeholders resolve in the database at query time.
func (r *cardRepository) ListByFilter(ctx context.Context, listID uuid.UUID, where domain.FilterNode) ([]domain.Card, error) {
	builder := newSQLBuilder()
	listIdx := builder.addArg(listID)

	query := `
		SELECT c.id, c.list_id, c.name, c.description, c.stage_id, c.assignee_id, c.due_date, c.created_at, c.updated_at
		FROM cards c
		WHERE c.list_id = ` + builder.placeholder(listIdx)

	if where != nil {
		clause, err := compileFilterNode("c", where, builder)
		if err != nil {
			return nil, fmt.Errorf("compile card filter: %w", err)
		}
		query += ` AND ` + clause
	}
	query += ` ORDER BY c.created_at ASC`

	rows, err := r.pool.Query(ctx, query, builder.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	cards := []domain.Card{}
	for rows.Next() {
		card, err := scanCardRow(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card rows: %w", err)
	}
	return cards, nil
}

// Update saves a full card record.
func (r *cardRepository) Update(ctx context.Context, card domain.Card) (domain.Card, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE cards
		SET name = $2, description = $3, stage_id = $4, assignee_id = $5, due_date = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+cardColumnsSQL,
		card.ID,
		card.Name,
		card.Description,
		uuidOrNull(card.StageID),
		uuidOrNull(card.AssigneeID),
		timestampOrNull(card.DueDate),
	)

	updated, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Card{}, fmt.Errorf("card %s: %w", card.ID, ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("failed to update card: %w", err)
	}
	return updated, nil
}

// Delete removes a card
func (r *cardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanCard(row pgx.Row) (domain.Card, error) {
	var (
		c          domain.Card
		stageID    uuid.NullUUID
		assigneeID uuid.NullUUID
		dueDate    pgtype.Timestamptz
	)
	if err := row.Scan(&c.ID, &c.ListID, &c.Name, &c.Description, &stageID, &assigneeID, &dueDate, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Card{}, err
	}
	applyCardNullables(&c, stageID, assigneeID, dueDate)
	return c, nil
}

func scanCardRow(rows pgx.Rows) (domain.Card, error) {
	var (
		c          domain.Card
		stageID    uuid.NullUUID
		assigneeID uuid.NullUUID
		dueDate    pgtype.Timestamptz
	)
	if err := rows.Scan(&c.ID, &c.ListID, &c.Name, &c.Description, &stageID, &assigneeID, &dueDate, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Card{}, fmt.Errorf("failed to scan card row: %w", err)
	}
	applyCardNullables(&c, stageID, assigneeID, dueDate)
	return c, nil
}

func applyCardNullables(c *domain.Card, stageID, assigneeID uuid.NullUUID, dueDate pgtype.Timestamptz) {
	if stageID.Valid {
		id := stageID.UUID
		c.StageID = &id
	}
	if assigneeID.Valid {
		id := assigneeID.UUID
		c.AssigneeID = &id
	}
	if dueDate.Valid {
		t := dueDate.Time
		c.DueDate = &t
	}
}

func timestampOrNull(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
