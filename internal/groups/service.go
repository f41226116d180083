// Package groups implements the list-group synthesizer: it materializes the
// named buckets a list is grouped into (by stage, assignee, or due-date
// bucket) and the declarative filters the card query layer uses to select
// each bucket's cards.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/google/uuid"
)

// Service orchestrates group listing, generation, and updates.
type Service struct {
	groups  repository.GroupRepository
	filters repository.FilterRepository
	stages  repository.StageRepository
	users   repository.UserRepository
}

// NewService creates a group service over the given repositories.
func NewService(
	groups repository.GroupRepository,
	filters repository.FilterRepository,
	stages repository.StageRepository,
	users repository.UserRepository,
) *Service {
	return &Service{
		groups:  groups,
		filters: filters,
		stages:  stages,
		users:   users,
	}
}

// GenerateRequest describes one group-generation call.
type GenerateRequest struct {
	ListID          uuid.UUID      `json:"list_id"`
	GroupBy         domain.GroupBy `json:"group_by"`
	IgnoreCompleted bool           `json:"ignore_completed"`
}

// List returns the persisted groups of a list, each with its filter, ordered
// ascending by display order. groupBy restricts to one strategy when set.
func (s *Service) List(ctx context.Context, listID uuid.UUID, groupBy *domain.GroupBy) ([]domain.GroupWithFilter, error) {
	return s.groups.ListByList(ctx, listID, groupBy)
}

// Get fetches a single group with its filter, if one exists.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.GroupWithFilter, error) {
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return domain.GroupWithFilter{}, err
	}

	result := domain.GroupWithFilter{ListGroup: group}
	filter, err := s.filters.GetByEntity(ctx, group.ID, domain.EntityTypeListGroup)
	switch {
	case err == nil:
		result.Filter = &filter
	case errors.Is(err, repository.ErrNotFound):
		// groups generated under ALL carry no filter
	default:
		return domain.GroupWithFilter{}, err
	}
	return result, nil
}

// Update merges a partial patch onto the persisted group and saves it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch domain.GroupPatch) (domain.ListGroup, error) {
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return domain.ListGroup{}, err
	}
	return s.groups.Update(ctx, patch.Apply(group))
}

// Generate computes the desired groups for (list, strategy), reconciles them
// against the persisted set, and returns the authoritative post-reconcile
// state. Existing groups are never deleted; a stale group from a prior
// strategy run persists until a caller removes it.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) ([]domain.GroupWithFilter, error) {
	groupBy := req.GroupBy
	if groupBy == "" {
		groupBy = domain.GroupByAll
	}

	existing, err := s.groups.ListByList(ctx, req.ListID, &groupBy)
	if err != nil {
		return nil, fmt.Errorf("load existing groups: %w", err)
	}

	descriptors, err := s.describe(ctx, req.ListID, groupBy)
	if err != nil {
		return nil, err
	}

	s.reconcile(ctx, req.ListID, descriptors, existing)

	// The re-fetch is authoritative: reconciliation attempts that failed are
	// simply absent from it.
	result, err := s.groups.ListByList(ctx, req.ListID, &groupBy)
	if err != nil {
		return nil, fmt.Errorf("reload groups: %w", err)
	}

	if groupBy == domain.GroupByListStage && req.IgnoreCompleted {
		result, err = s.dropCompletedStageGroups(ctx, req.ListID, result)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// describe dispatches to the strategy that computes the desired descriptors.
func (s *Service) describe(ctx context.Context, listID uuid.UUID, groupBy domain.GroupBy) ([]domain.GroupDescriptor, error) {
	switch groupBy {
	case domain.GroupByListStage:
		return s.stageDescriptors(ctx, listID)
	case domain.GroupByAssignees:
		return s.assigneeDescriptors(ctx, listID)
	case domain.GroupByDueDate:
		return dueDateDescriptors(), nil
	default:
		return allDescriptors(), nil
	}
}

// reconcile creates one group (and filter, when the descriptor carries one)
// per desired descriptor that has no persisted match. Creations run
// concurrently and independently; a failed creation never aborts its siblings
// and never fails the overall call, it is only logged. The caller's re-fetch
// resolves what actually persisted.
func (s *Service) reconcile(ctx context.Context, listID uuid.UUID, descriptors []domain.GroupDescriptor, existing []domain.GroupWithFilter) {
	var wg sync.WaitGroup
	for _, desc := range descriptors {
		if hasMatch(desc, existing) {
			continue
		}
		wg.Add(1)
		go func(d domain.GroupDescriptor) {
			defer wg.Done()
			if err := s.createFromDescriptor(ctx, listID, d); err != nil {
				log.Printf("[groups] reconcile %q for list %s: %v", d.Name, listID, err)
			}
		}(desc)
	}
	wg.Wait()
}

func hasMatch(desc domain.GroupDescriptor, existing []domain.GroupWithFilter) bool {
	for _, g := range existing {
		if desc.MatchesGroup(g.ListGroup) {
			return true
		}
	}
	return false
}

func (s *Service) createFromDescriptor(ctx context.Context, listID uuid.UUID, desc domain.GroupDescriptor) error {
	group, err := s.groups.Create(ctx, domain.ListGroup{
		ListID:     listID,
		GroupBy:    desc.GroupBy,
		Name:       desc.Name,
		Color:      desc.Color,
		Icon:       desc.Icon,
		Order:      desc.Order,
		IsExpanded: true,
		EntityID:   desc.EntityID,
		EntityType: desc.EntityType,
	})
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}

	if desc.Where == nil {
		return nil
	}

	if _, err := s.filters.Create(ctx, domain.Filter{
		EntityID:   group.ID,
		EntityType: domain.EntityTypeListGroup,
		Where:      desc.Where,
	}); err != nil {
		return fmt.Errorf("create filter for group %s: %w", group.ID, err)
	}
	return nil
}

// dropCompletedStageGroups removes groups named after completed stages from
// the result set. Name is the join key: group and stage are decoupled rows,
// and pre-existing groups may predate source-entity tagging. The persisted
// rows stay untouched.
func (s *Service) dropCompletedStageGroups(ctx context.Context, listID uuid.UUID, groups []domain.GroupWithFilter) ([]domain.GroupWithFilter, error) {
	open, err := s.stages.FindBy(ctx, listID, false)
	if err != nil {
		return nil, fmt.Errorf("load open stages: %w", err)
	}

	openNames := make(map[string]struct{}, len(open))
	for _, stage := range open {
		openNames[stage.Name] = struct{}{}
	}

	kept := make([]domain.GroupWithFilter, 0, len(groups))
	for _, g := range groups {
		if _, ok := openNames[g.Name]; ok {
			kept = append(kept, g)
		}
	}
	return kept, nil
}
