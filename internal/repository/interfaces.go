package repository

import (
	"context"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
)

// GroupRepository defines the interface for list-group operations
type GroupRepository interface {
	Create(ctx context.Context, group domain.ListGroup) (domain.ListGroup, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ListGroup, error)
	// ListByList returns the groups of a list (optionally restricted to one
	// strategy), each joined with its filter, ordered by "order" ascending.
	ListByList(ctx context.Context, listID uuid.UUID, groupBy *domain.GroupBy) ([]domain.GroupWithFilter, error)
	Update(ctx context.Context, group domain.ListGroup) (domain.ListGroup, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FilterRepository defines the interface for filter persistence
type FilterRepository interface {
	Create(ctx context.Context, filter domain.Filter) (domain.Filter, error)
	GetByEntity(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) (domain.Filter, error)
}

// StageRepository defines the interface for pipeline-stage lookups
type StageRepository interface {
	// FindAll returns every stage of a list in stage order.
	FindAll(ctx context.Context, listID uuid.UUID) ([]domain.ListStage, error)
	// FindBy returns the stages of a list matching the completed flag.
	FindBy(ctx context.Context, listID uuid.UUID, isCompleted bool) ([]domain.ListStage, error)
	Create(ctx context.Context, stage domain.ListStage) (domain.ListStage, error)
}

// UserRepository defines the interface for user and membership lookups
type UserRepository interface {
	// ListMembersByList resolves the members of the project that transitively
	// owns the list (list -> space -> workspace -> project).
	ListMembersByList(ctx context.Context, listID uuid.UUID) ([]domain.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// CardRepository defines the interface for card operations, including the
// query layer that evaluates declarative group filters.
type CardRepository interface {
	Create(ctx context.Context, card domain.Card) (domain.Card, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Card, error)
	ListByList(ctx context.Context, listID uuid.UUID) ([]domain.Card, error)
	// ListByFilter returns the cards of a list matching a filter expression
	// tree. A nil node matches every card.
	ListByFilter(ctx context.Context, listID uuid.UUID, where domain.FilterNode) ([]domain.Card, error)
	Update(ctx context.Context, card domain.Card) (domain.Card, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListRepository defines the interface for list lookups
type ListRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.List, error)
	Create(ctx context.Context, list domain.List) (domain.List, error)
}
