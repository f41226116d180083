package groups

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/google/uuid"
)

type fakeFilterRepo struct {
	mu      sync.Mutex
	filters map[uuid.UUID]domain.Filter
}

func newFakeFilterRepo() *fakeFilterRepo {
	return &fakeFilterRepo{filters: map[uuid.UUID]domain.Filter{}}
}

func (f *fakeFilterRepo) Create(_ context.Context, filter domain.Filter) (domain.Filter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter.ID = uuid.New()
	filter.CreatedAt = time.Now()
	f.filters[filter.EntityID] = filter
	return filter, nil
}

func (f *fakeFilterRepo) GetByEntity(_ context.Context, entityID uuid.UUID, entityType domain.EntityType) (domain.Filter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter, ok := f.filters[entityID]
	if !ok || filter.EntityType != entityType {
		return domain.Filter{}, fmt.Errorf("filter for %s: %w", entityID, repository.ErrNotFound)
	}
	return filter, nil
}

type fakeGroupRepo struct {
	mu          sync.Mutex
	seq         int
	groups      map[uuid.UUID]domain.ListGroup
	filterRepo  *fakeFilterRepo
	failCreates map[string]bool
}

func newFakeGroupRepo(filterRepo *fakeFilterRepo) *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:      map[uuid.UUID]domain.ListGroup{},
		filterRepo:  filterRepo,
		failCreates: map[string]bool{},
	}
}

func (f *fakeGroupRepo) Create(_ context.Context, group domain.ListGroup) (domain.ListGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreates[group.Name] {
		return domain.ListGroup{}, errors.New("storage unavailable")
	}
	for _, existing := range f.groups {
		if existing.ListID == group.ListID && existing.GroupBy == group.GroupBy &&
			sameID(existing.EntityID, group.EntityID) && sameType(existing.EntityType, group.EntityType) &&
			existing.Name == group.Name {
			return domain.ListGroup{}, errors.New("group already exists for this reconciliation key")
		}
	}

	f.seq++
	group.ID = uuid.New()
	group.CreatedAt = time.Unix(int64(f.seq), 0)
	group.UpdatedAt = group.CreatedAt
	f.groups[group.ID] = group
	return group, nil
}

func (f *fakeGroupRepo) GetByID(_ context.Context, id uuid.UUID) (domain.ListGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, ok := f.groups[id]
	if !ok {
		return domain.ListGroup{}, fmt.Errorf("group %s: %w", id, repository.ErrNotFound)
	}
	return group, nil
}

func (f *fakeGroupRepo) ListByList(_ context.Context, listID uuid.UUID, groupBy *domain.GroupBy) ([]domain.GroupWithFilter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := []domain.GroupWithFilter{}
	for _, group := range f.groups {
		if group.ListID != listID {
			continue
		}
		if groupBy != nil && group.GroupBy != *groupBy {
			continue
		}
		item := domain.GroupWithFilter{ListGroup: group}
		if filter, ok := f.filterRepo.filters[group.ID]; ok {
			filterCopy := filter
			item.Filter = &filterCopy
		}
		result = append(result, item)
	}

	// order ascending, unordered groups last, ties by creation time
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.Order == nil && b.Order == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.Order == nil:
			return false
		case b.Order == nil:
			return true
		case *a.Order != *b.Order:
			return *a.Order < *b.Order
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return result, nil
}

func (f *fakeGroupRepo) Update(_ context.Context, group domain.ListGroup) (domain.ListGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[group.ID]; !ok {
		return domain.ListGroup{}, fmt.Errorf("group %s: %w", group.ID, repository.ErrNotFound)
	}
	f.groups[group.ID] = group
	return group, nil
}

func (f *fakeGroupRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[id]; !ok {
		return fmt.Errorf("group %s: %w", id, repository.ErrNotFound)
	}
	delete(f.groups, id)
	return nil
}

type fakeStageRepo struct {
	stages []domain.ListStage
}

func (f *fakeStageRepo) FindAll(_ context.Context, listID uuid.UUID) ([]domain.ListStage, error) {
	result := []domain.ListStage{}
	for _, stage := range f.stages {
		if stage.ListID == listID {
			result = append(result, stage)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Order < result[j].Order })
	return result, nil
}

func (f *fakeStageRepo) FindBy(_ context.Context, listID uuid.UUID, isCompleted bool) ([]domain.ListStage, error) {
	all, _ := f.FindAll(context.Background(), listID)
	result := []domain.ListStage{}
	for _, stage := range all {
		if stage.IsCompleted == isCompleted {
			result = append(result, stage)
		}
	}
	return result, nil
}

func (f *fakeStageRepo) Create(_ context.Context, stage domain.ListStage) (domain.ListStage, error) {
	stage.ID = uuid.New()
	f.stages = append(f.stages, stage)
	return stage, nil
}

type fakeUserRepo struct {
	members []domain.User
}

func (f *fakeUserRepo) ListMembersByList(_ context.Context, _ uuid.UUID) ([]domain.User, error) {
	return append([]domain.User{}, f.members...), nil
}

func (f *fakeUserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	result := []domain.User{}
	for _, member := range f.members {
		for _, id := range ids {
			if member.ID == id {
				result = append(result, member)
			}
		}
	}
	return result, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	user.ID = uuid.New()
	f.members = append(f.members, user)
	return user, nil
}

func sameID(a, b *uuid.UUID) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func sameType(a, b *domain.EntityType) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

type fixture struct {
	service    *Service
	groupRepo  *fakeGroupRepo
	filterRepo *fakeFilterRepo
	stageRepo  *fakeStageRepo
	userRepo   *fakeUserRepo
	listID     uuid.UUID
}

func newFixture() *fixture {
	filterRepo := newFakeFilterRepo()
	groupRepo := newFakeGroupRepo(filterRepo)
	stageRepo := &fakeStageRepo{}
	userRepo := &fakeUserRepo{}
	return &fixture{
		service:    NewService(groupRepo, filterRepo, stageRepo, userRepo),
		groupRepo:  groupRepo,
		filterRepo: filterRepo,
		stageRepo:  stageRepo,
		userRepo:   userRepo,
		listID:     uuid.New(),
	}
}

func (f *fixture) addStage(name, color string, order int, completed bool) domain.ListStage {
	stage := domain.ListStage{
		ID:          uuid.New(),
		ListID:      f.listID,
		Name:        name,
		Color:       color,
		Order:       order,
		IsCompleted: completed,
	}
	f.stageRepo.stages = append(f.stageRepo.stages, stage)
	return stage
}

func (f *fixture) addMember(first, last string) domain.User {
	user := domain.User{ID: uuid.New(), FirstName: first, LastName: last}
	f.userRepo.members = append(f.userRepo.members, user)
	return user
}

func groupNames(groups []domain.GroupWithFilter) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}

func TestGenerateStageGroups(t *testing.T) {
	f := newFixture()
	todo := f.addStage("Todo", "info", 1, false)
	doing := f.addStage("Doing", "warning", 2, false)
	done := f.addStage("Done", "success", 3, true)

	result, err := f.service.Generate(context.Background(), GenerateRequest{
		ListID:  f.listID,
		GroupBy: domain.GroupByListStage,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("expected 3 groups, got %d: %v", len(result), groupNames(result))
	}
	wantNames := []string{"Todo", "Doing", "Done"}
	for i, name := range wantNames {
		if result[i].Name != name {
			t.Fatalf("expected group %d to be %q, got %q", i, name, result[i].Name)
		}
	}

	for i, stage := range []domain.ListStage{todo, doing, done} {
		group := result[i]
		if group.EntityID == nil || *group.EntityID != stage.ID {
			t.Fatalf("group %q should reference stage %s", group.Name, stage.ID)
		}
		if group.EntityType == nil || *group.EntityType != domain.EntityTypeListStage {
			t.Fatalf("group %q should have stage entity type", group.Name)
		}
		if group.Color == nil || *group.Color != stage.Color {
			t.Fatalf("group %q should carry stage color %q", group.Name, stage.Color)
		}
		if !group.IsExpanded {
			t.Fatalf("new group %q should be expanded", group.Name)
		}

		if group.Filter == nil {
			t.Fatalf("group %q should carry a filter", group.Name)
		}
		boolGroup, ok := group.Filter.Where.(domain.BoolGroup)
		if !ok || len(boolGroup.Children) != 1 {
			t.Fatalf("group %q filter should be a single-condition conjunction, got %#v", group.Name, group.Filter.Where)
		}
		cond, ok := boolGroup.Children[0].(domain.Condition)
		if !ok {
			t.Fatalf("group %q filter child should be a condition", group.Name)
		}
		if cond.Field != domain.CardFieldStageID || cond.Operator != domain.OperatorEquals {
			t.Fatalf("group %q filter should equal-match the stage field, got %+v", group.Name, cond)
		}
		if len(cond.Values) != 1 || cond.Values[0] != stage.ID.String() {
			t.Fatalf("group %q filter should match stage id %s, got %v", group.Name, stage.ID, cond.Values)
		}
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture()
	f.addStage("Todo", "info", 1, false)
	f.addStage("Doing", "warning", 2, false)

	req := GenerateRequest{ListID: f.listID, GroupBy: domain.GroupByListStage}
	first, err := f.service.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	second, err := f.service.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 groups on both runs, got %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("second run should reuse existing groups, got new id for %q", second[i].Name)
		}
	}
}

func TestGenerateDueDateGroups(t *testing.T) {
	f := newFixture()

	result, err := f.service.Generate(context.Background(), GenerateRequest{
		ListID:  f.listID,
		GroupBy: domain.GroupByDueDate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Past Due", "Today", "Upcoming", "No Due Date"}
	if len(result) != len(want) {
		t.Fatalf("expected %d groups, got %d: %v", len(want), len(result), groupNames(result))
	}
	for i, name := range want {
		if result[i].Name != name {
			t.Fatalf("expected group %d to be %q, got %q", i, name, result[i].Name)
		}
		if result[i].EntityID != nil {
			t.Fatalf("due-date group %q should not reference a source entity", name)
		}
		if result[i].Filter == nil {
			t.Fatalf("due-date group %q should carry a filter", name)
		}
	}

	today := result[1].Filter.Where.(domain.BoolGroup).Children[0].(domain.Condition)
	if today.Operator != domain.OperatorBetween {
		t.Fatalf("Today group should use between, got %s", today.Operator)
	}
	if today.Values[0] != domain.PlaceholderStartOfDay || today.Values[1] != domain.PlaceholderEndOfDay {
		t.Fatalf("Today group should span the symbolic day boundaries, got %v", today.Values)
	}
}

func TestGenerateAssigneeGroups(t *testing.T) {
	f := newFixture()
	alice := f.addMember("Alice", "Nguyen")
	bob := f.addMember("Bob", "Okafor")

	result, err := f.service.Generate(context.Background(), GenerateRequest{
		ListID:  f.listID,
		GroupBy: domain.GroupByAssignees,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("expected 2 member groups plus sentinel, got %d: %v", len(result), groupNames(result))
	}
	if result[0].Name != "Alice Nguyen" || result[1].Name != "Bob Okafor" {
		t.Fatalf("member groups out of order: %v", groupNames(result))
	}
	if result[0].EntityID == nil || *result[0].EntityID != alice.ID {
		t.Fatalf("first group should reference %s", alice.ID)
	}
	if result[1].EntityID == nil || *result[1].EntityID != bob.ID {
		t.Fatalf("second group should reference %s", bob.ID)
	}

	sentinel := result[2]
	if sentinel.Name != "No Assignee" {
		t.Fatalf("expected trailing sentinel, got %q", sentinel.Name)
	}
	if sentinel.EntityID != nil || sentinel.EntityType != nil {
		t.Fatalf("sentinel should have no source entity")
	}
	if sentinel.Order != nil {
		t.Fatalf("sentinel should carry no explicit order, got %d", *sentinel.Order)
	}
	cond := sentinel.Filter.Where.(domain.BoolGroup).Children[0].(domain.Condition)
	if cond.Field != domain.CardFieldAssigneeID || cond.Operator != domain.OperatorIsNull {
		t.Fatalf("sentinel filter should null-check the assignee, got %+v", cond)
	}
}

func TestGenerateAssigneeGroupsEmptyProject(t *testing.T) {
	f := newFixture()

	result, err := f.service.Generate(context.Background(), GenerateRequest{
		ListID:  f.listID,
		GroupBy: domain.GroupByAssignees,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || result[0].Name != "No Assignee" {
		t.Fatalf("expected only the sentinel, got %v", groupNames(result))
	}
}

func TestGenerateIgnoreCompletedStages(t *testing.T) {
	f := newFixture()
	f.addStage("Todo", "info", 1, false)
	f.addStage("Doing", "warning", 2, false)
	f.addStage("Done", "success", 3, true)

	result, err := f.service.Generate(context.Background(), GenerateRequest{
		ListID:          f.listID,
		GroupBy:         domain.GroupByListStage,
		IgnoreCompleted: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := groupNames(result)
	if len(got) != 2 || got[0] != "Todo" || got[1] != "Doing" {
		t.Fatalf("expected [Todo Doing], got %v", got)
	}

	// The Done group row is persisted, only the response filters it out.
	all, err := f.service.List(context.Background(), f.listID, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 persisted groups, got %d: %v", len(all), groupNames(all))
	}
}

func TestGenerateDefaultsToAll(t *testing.T) {
	f := newFixture()

	result, err := f.service.Generate(context.Background(), GenerateRequest{ListID: f.listID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || result[0].Name != "All" {
		t.Fatalf("expected single All group, got %v", groupNames(result))
	}
	if result[0].Filter != nil {
		t.Fatalf("All group should carry no filter")
	}
	if result[0].GroupBy != domain.GroupByAll {
		t.Fatalf("All group should be tagged ALL, got %s", result[0].GroupBy)
	}
}

func TestGenerateAbsorbsCreationFailures(t *testing.T) {
	f := newFixture()
	f.addStage("Todo", "info", 1, false)
	f.addStage("Doing", "warning", 2, false)
	f.groupRepo.failCreates["Doing"] = true

	result, err := f.service.Generate(context.Background(), GenerateRequest{
		ListID:  f.listID,
		GroupBy: domain.GroupByListStage,
	})
	if err != nil {
		t.Fatalf("creation failures must not surface, got: %v", err)
	}

	got := groupNames(result)
	if len(got) != 1 || got[0] != "Todo" {
		t.Fatalf("failed creation should be absent from the re-fetch, got %v", got)
	}

	// The next run repairs the gap.
	f.groupRepo.failCreates = map[string]bool{}
	result, err = f.service.Generate(context.Background(), GenerateRequest{
		ListID:  f.listID,
		GroupBy: domain.GroupByListStage,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected repair on next run, got %v", groupNames(result))
	}
}

func TestGenerateKeepsStaleGroups(t *testing.T) {
	f := newFixture()
	stale := f.addStage("Obsolete", "default", 1, false)

	req := GenerateRequest{ListID: f.listID, GroupBy: domain.GroupByListStage}
	if _, err := f.service.Generate(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The stage disappears; its group must survive the next run.
	f.stageRepo.stages = nil
	f.addStage("Fresh", "info", 1, false)

	result, err := f.service.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := groupNames(result)
	if len(got) != 2 {
		t.Fatalf("expected stale group %q to persist next to the new one, got %v", stale.Name, got)
	}
}

func TestGetUnknownGroupIsNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.Get(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMergesPartialPatch(t *testing.T) {
	f := newFixture()
	f.addStage("Todo", "info", 4, false)

	result, err := f.service.Generate(context.Background(), GenerateRequest{
		ListID:  f.listID,
		GroupBy: domain.GroupByListStage,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := result[0]

	newName := "Backlog"
	collapsed := false
	updated, err := f.service.Update(context.Background(), group.ID, domain.GroupPatch{
		Name:       &newName,
		IsExpanded: &collapsed,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Name != "Backlog" {
		t.Fatalf("expected renamed group, got %q", updated.Name)
	}
	if updated.IsExpanded {
		t.Fatalf("expected collapsed group")
	}
	// Untouched fields survive the merge.
	if updated.Color == nil || *updated.Color != "info" {
		t.Fatalf("color should be untouched, got %v", updated.Color)
	}
	if updated.Order == nil || *updated.Order != 4 {
		t.Fatalf("order should be untouched, got %v", updated.Order)
	}
	if updated.EntityID == nil || *updated.EntityID != *group.EntityID {
		t.Fatalf("source entity should be untouched")
	}
}

func TestUpdateUnknownGroupIsNotFound(t *testing.T) {
	f := newFixture()

	name := "x"
	_, err := f.service.Update(context.Background(), uuid.New(), domain.GroupPatch{Name: &name})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
