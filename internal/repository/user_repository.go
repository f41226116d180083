package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// userRepository implements UserRepository over pgx.
type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, photo, created_at, updated_at`

// ListMembersByList resolves project members through the list's owning chain
// (list -> space -> workspace -> project -> project_members).
func (r *userRepository) ListMembersByList(ctx context.Context, listID uuid.UUID) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.first_name, u.last_name, u.photo, u.created_at, u.updated_at
		FROM users u
		JOIN project_members pm ON pm.user_id = u.id
		JOIN projects p ON p.id = pm.project_id
		JOIN workspaces w ON w.project_id = p.id
		JOIN spaces s ON s.workspace_id = w.id
		JOIN lists l ON l.space_id = s.id
		WHERE l.id = $1
		ORDER BY u.first_name ASC, u.last_name ASC`,
		listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members for list: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// GetByIDs fetches users in bulk; missing ids are simply absent from the result.
func (r *userRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Create inserts a user.
func (r *userRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, photo)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		user.FirstName, user.LastName, textOrNull(user.Photo))

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u     domain.User
		photo pgtype.Text
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &photo, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	if photo.Valid {
		u.Photo = &photo.String
	}
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	users := []domain.User{}
	for rows.Next() {
		var (
			u     domain.User
			photo pgtype.Text
		)
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &photo, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		if photo.Valid {
			u.Photo = &photo.String
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user rows: %w", err)
	}
	return users, nil
}
