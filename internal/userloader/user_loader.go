package userloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// UserLoader batches user lookups within one request so card assignee
// resolution issues a single query per response.
type UserLoader struct {
	Loader *dataloader.Loader
}

func NewUserLoader(repo repository.UserRepository) *UserLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Convert keys to []uuid.UUID
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return []*dataloader.Result{{Error: fmt.Errorf("invalid UUID: %w", err)}}
			}
			ids[i] = id
		}

		// Fetch users in batch
		users, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Map UUID -> user for ordering
		userMap := make(map[uuid.UUID]domain.User)
		for _, u := range users {
			userMap[u.ID] = u
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if u, ok := userMap[id]; ok {
				results[i] = &dataloader.Result{Data: u}
			} else {
				results[i] = &dataloader.Result{Error: fmt.Errorf("user %s: %w", id, repository.ErrNotFound)}
			}
		}
		return results
	}

	return &UserLoader{
		Loader: dataloader.NewBatchedLoader(
			batchFn,
			dataloader.WithWait(2*time.Millisecond),
		),
	}
}

// Load resolves one user through the batch.
func (l *UserLoader) Load(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return l.LoadThunk(ctx, id)()
}

// LoadThunk queues a lookup and returns a thunk that resolves it. Callers
// queue every key first so the loader can coalesce them into one query.
func (l *UserLoader) LoadThunk(ctx context.Context, id uuid.UUID) func() (domain.User, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	return func() (domain.User, error) {
		data, err := thunk()
		if err != nil {
			return domain.User{}, err
		}
		user, ok := data.(domain.User)
		if !ok {
			return domain.User{}, fmt.Errorf("unexpected loader result type %T", data)
		}
		return user, nil
	}
}
