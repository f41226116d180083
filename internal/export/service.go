// Package export renders a list's generated groups and their cards as an
// .xlsx workbook, one sheet per group.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/groups"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var sheetHeader = []string{"Name", "Description", "Assignee", "Due Date", "Created At"}

// Service builds board workbooks.
type Service struct {
	groups *groups.Service
	cards  repository.CardRepository
	users  repository.UserRepository
}

// NewService creates an export service.
func NewService(groupService *groups.Service, cards repository.CardRepository, users repository.UserRepository) *Service {
	return &Service{groups: groupService, cards: cards, users: users}
}

// BuildWorkbook renders the list's groups under one strategy as a workbook.
// Groups without a filter (the ALL bucket) export every card of the list.
func (s *Service) BuildWorkbook(ctx context.Context, listID uuid.UUID, groupBy domain.GroupBy) (*excelize.File, error) {
	groupSet, err := s.groups.List(ctx, listID, &groupBy)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	if len(groupSet) == 0 {
		return nil, fmt.Errorf("list %s has no %s groups: %w", listID, groupBy, repository.ErrNotFound)
	}

	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)

	for i, group := range groupSet {
		sheet := sheetName(group.Name, i)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", sheet, err)
		}

		var where domain.FilterNode
		if group.Filter != nil {
			where = group.Filter.Where
		}
		cards, err := s.cards.ListByFilter(ctx, listID, where)
		if err != nil {
			return nil, fmt.Errorf("load cards for group %q: %w", group.Name, err)
		}

		assignees, err := s.assigneeNames(ctx, cards)
		if err != nil {
			return nil, err
		}

		if err := writeSheet(f, sheet, cards, assignees); err != nil {
			return nil, err
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	return f, nil
}

func (s *Service) assigneeNames(ctx context.Context, cards []domain.Card) (map[uuid.UUID]string, error) {
	idSet := map[uuid.UUID]struct{}{}
	for _, card := range cards {
		if card.AssigneeID != nil {
			idSet[*card.AssigneeID] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	ids := make([]uuid.UUID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load assignees: %w", err)
	}

	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName()
	}
	return names, nil
}

func writeSheet(f *excelize.File, sheet string, cards []domain.Card, assignees map[uuid.UUID]string) error {
	for col, title := range sheetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for row, card := range cards {
		assignee := ""
		if card.AssigneeID != nil {
			assignee = assignees[*card.AssigneeID]
		}
		dueDate := ""
		if card.DueDate != nil {
			dueDate = card.DueDate.Format(time.RFC3339)
		}
		values := []any{card.Name, card.Description, assignee, dueDate, card.CreatedAt.Format(time.RFC3339)}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("card cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write card row: %w", err)
			}
		}
	}
	return nil
}

// sheetName makes a group name safe for use as a sheet title: sheet names
// are capped at 31 characters and may not repeat.
func sheetName(name string, index int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "Group"
	}
	suffix := fmt.Sprintf(" (%d)", index+1)
	if len(cleaned)+len(suffix) > 31 {
		cleaned = cleaned[:31-len(suffix)]
	}
	return cleaned + suffix
}
