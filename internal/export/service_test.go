package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/groups"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/google/uuid"
)

type fakeGroupRepo struct {
	groups []domain.GroupWithFilter
}

func (f *fakeGroupRepo) Create(_ context.Context, group domain.ListGroup) (domain.ListGroup, error) {
	group.ID = uuid.New()
	f.groups = append(f.groups, domain.GroupWithFilter{ListGroup: group})
	return group, nil
}

func (f *fakeGroupRepo) GetByID(_ context.Context, id uuid.UUID) (domain.ListGroup, error) {
	for _, g := range f.groups {
		if g.ID == id {
			return g.ListGroup, nil
		}
	}
	return domain.ListGroup{}, repository.ErrNotFound
}

func (f *fakeGroupRepo) ListByList(_ context.Context, listID uuid.UUID, groupBy *domain.GroupBy) ([]domain.GroupWithFilter, error) {
	result := []domain.GroupWithFilter{}
	for _, g := range f.groups {
		if g.ListID != listID {
			continue
		}
		if groupBy != nil && g.GroupBy != *groupBy {
			continue
		}
		result = append(result, g)
	}
	return result, nil
}

func (f *fakeGroupRepo) Update(_ context.Context, group domain.ListGroup) (domain.ListGroup, error) {
	return group, nil
}

func (f *fakeGroupRepo) Delete(_ context.Context, _ uuid.UUID) error {
	return nil
}

type fakeFilterRepo struct{}

func (fakeFilterRepo) Create(_ context.Context, filter domain.Filter) (domain.Filter, error) {
	return filter, nil
}

func (fakeFilterRepo) GetByEntity(_ context.Context, _ uuid.UUID, _ domain.EntityType) (domain.Filter, error) {
	return domain.Filter{}, repository.ErrNotFound
}

type fakeStageRepo struct{}

func (fakeStageRepo) FindAll(_ context.Context, _ uuid.UUID) ([]domain.ListStage, error) {
	return nil, nil
}

func (fakeStageRepo) FindBy(_ context.Context, _ uuid.UUID, _ bool) ([]domain.ListStage, error) {
	return nil, nil
}

func (fakeStageRepo) Create(_ context.Context, stage domain.ListStage) (domain.ListStage, error) {
	return stage, nil
}

type fakeUserRepo struct {
	users []domain.User
}

func (f *fakeUserRepo) ListMembersByList(_ context.Context, _ uuid.UUID) ([]domain.User, error) {
	return append([]domain.User{}, f.users...), nil
}

func (f *fakeUserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	result := []domain.User{}
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				result = append(result, u)
			}
		}
	}
	return result, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	user.ID = uuid.New()
	f.users = append(f.users, user)
	return user, nil
}

// fakeCardRepo evaluates stage-equality filters in memory; a nil tree
// matches every card.
type fakeCardRepo struct {
	cards []domain.Card
}

func (f *fakeCardRepo) Create(_ context.Context, card domain.Card) (domain.Card, error) {
	card.ID = uuid.New()
	f.cards = append(f.cards, card)
	return card, nil
}

func (f *fakeCardRepo) GetByID(_ context.Context, _ uuid.UUID) (domain.Card, error) {
	return domain.Card{}, errors.New("not implemented")
}

func (f *fakeCardRepo) ListByList(_ context.Context, listID uuid.UUID) ([]domain.Card, error) {
	return f.ListByFilter(context.Background(), listID, nil)
}

func (f *fakeCardRepo) ListByFilter(_ context.Context, listID uuid.UUID, where domain.FilterNode) ([]domain.Card, error) {
	result := []domain.Card{}
	for _, card := range f.cards {
		if card.ListID != listID {
			continue
		}
		if matchesStageFilter(card, where) {
			result = append(result, card)
		}
	}
	return result, nil
}

func (f *fakeCardRepo) Update(_ context.Context, card domain.Card) (domain.Card, error) {
	return card, nil
}

func (f *fakeCardRepo) Delete(_ context.Context, _ uuid.UUID) error {
	return nil
}

func matchesStageFilter(card domain.Card, node domain.FilterNode) bool {
	switch n := node.(type) {
	case nil:
		return true
	case domain.BoolGroup:
		for _, child := range n.Children {
			if !matchesStageFilter(card, child) {
				return false
			}
		}
		return true
	case domain.Condition:
		if n.Field != domain.CardFieldStageID || n.Operator != domain.OperatorEquals {
			return false
		}
		return card.StageID != nil && card.StageID.String() == n.Values[0]
	default:
		return false
	}
}

func seedGroup(repo *fakeGroupRepo, listID uuid.UUID, name string, groupBy domain.GroupBy, where domain.FilterNode) {
	group := domain.ListGroup{
		ID:      uuid.New(),
		ListID:  listID,
		Name:    name,
		GroupBy: groupBy,
	}
	item := domain.GroupWithFilter{ListGroup: group}
	if where != nil {
		item.Filter = &domain.Filter{ID: uuid.New(), EntityID: group.ID, EntityType: domain.EntityTypeListGroup, Where: where}
	}
	repo.groups = append(repo.groups, item)
}

func TestBuildWorkbook(t *testing.T) {
	listID := uuid.New()
	todoStage := uuid.New()
	doneStage := uuid.New()
	assignee := domain.User{ID: uuid.New(), FirstName: "Alice", LastName: "Nguyen"}
	due := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	groupRepo := &fakeGroupRepo{}
	seedGroup(groupRepo, listID, "Todo", domain.GroupByListStage,
		domain.And(domain.Condition{Field: domain.CardFieldStageID, Operator: domain.OperatorEquals, Values: []string{todoStage.String()}}))
	seedGroup(groupRepo, listID, "Done", domain.GroupByListStage,
		domain.And(domain.Condition{Field: domain.CardFieldStageID, Operator: domain.OperatorEquals, Values: []string{doneStage.String()}}))

	cardRepo := &fakeCardRepo{cards: []domain.Card{
		{ID: uuid.New(), ListID: listID, Name: "Draft plan", Description: "Q1 scope", StageID: &todoStage, AssigneeID: &assignee.ID, DueDate: &due},
		{ID: uuid.New(), ListID: listID, Name: "Kickoff", StageID: &doneStage},
	}}
	userRepo := &fakeUserRepo{users: []domain.User{assignee}}

	groupService := groups.NewService(groupRepo, fakeFilterRepo{}, fakeStageRepo{}, userRepo)
	service := NewService(groupService, cardRepo, userRepo)

	workbook, err := service.BuildWorkbook(context.Background(), listID, domain.GroupByListStage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheets := workbook.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Todo (1)" || sheets[1] != "Done (2)" {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one card, got %d rows", len(rows))
	}
	if rows[0][0] != "Name" || rows[0][2] != "Assignee" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "Draft plan" || rows[1][1] != "Q1 scope" {
		t.Fatalf("unexpected card row: %v", rows[1])
	}
	if rows[1][2] != "Alice Nguyen" {
		t.Fatalf("assignee should render by full name, got %q", rows[1][2])
	}
	if rows[1][3] != due.Format(time.RFC3339) {
		t.Fatalf("unexpected due date cell: %q", rows[1][3])
	}

	doneRows, err := workbook.GetRows(sheets[1])
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(doneRows) != 2 || doneRows[1][0] != "Kickoff" {
		t.Fatalf("unexpected second sheet: %v", doneRows)
	}
}

func TestBuildWorkbookNoGroups(t *testing.T) {
	groupService := groups.NewService(&fakeGroupRepo{}, fakeFilterRepo{}, fakeStageRepo{}, &fakeUserRepo{})
	service := NewService(groupService, &fakeCardRepo{}, &fakeUserRepo{})

	_, err := service.BuildWorkbook(context.Background(), uuid.New(), domain.GroupByListStage)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSheetNameSanitizes(t *testing.T) {
	got := sheetName("Q1 / Q2: plan?", 0)
	if got != "Q1   Q2  plan (1)" {
		t.Fatalf("unexpected sheet name: %q", got)
	}

	long := sheetName("a very very very long group name indeed", 9)
	if len(long) > 31 {
		t.Fatalf("sheet name exceeds 31 chars: %q", long)
	}
}
