package groups

import (
	"context"
	"fmt"

	"github.com/rpattn/taskboard/internal/domain"

	"github.com/google/uuid"
)

// Display names and icons for the fixed group sets.
const (
	allGroupName        = "All"
	noAssigneeGroupName = "No Assignee"

	pastDueGroupName   = "Past Due"
	todayGroupName     = "Today"
	upcomingGroupName  = "Upcoming"
	noDueDateGroupName = "No Due Date"

	iconClockEight      = "clock-eight"
	iconClockTwelve     = "clock-twelve"
	iconClockFour       = "clock-four"
	iconClockSixOutline = "clock-six-outline"

	colorError   = "error"
	colorInfo    = "info"
	colorDefault = "default"
)

// allDescriptors is the fallback strategy: a single unfiltered bucket.
func allDescriptors() []domain.GroupDescriptor {
	return []domain.GroupDescriptor{
		{GroupBy: domain.GroupByAll, Name: allGroupName},
	}
}

// stageDescriptors emits one descriptor per pipeline stage of the list, in
// the stage's own order, filtering cards on their stage reference.
func (s *Service) stageDescriptors(ctx context.Context, listID uuid.UUID) ([]domain.GroupDescriptor, error) {
	stages, err := s.stages.FindAll(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}

	descriptors := make([]domain.GroupDescriptor, 0, len(stages))
	for _, stage := range stages {
		stageID := stage.ID
		color := stage.Color
		order := stage.Order
		entityType := domain.EntityTypeListStage
		descriptors = append(descriptors, domain.GroupDescriptor{
			GroupBy:    domain.GroupByListStage,
			Name:       stage.Name,
			Color:      &color,
			Order:      &order,
			EntityID:   &stageID,
			EntityType: &entityType,
			Where: domain.And(domain.Condition{
				Field:    domain.CardFieldStageID,
				Operator: domain.OperatorEquals,
				Values:   []string{stage.ID.String()},
			}),
		})
	}
	return descriptors, nil
}

// assigneeDescriptors emits one descriptor per member of the project that
// owns the list, plus a trailing unassigned sentinel.
func (s *Service) assigneeDescriptors(ctx context.Context, listID uuid.UUID) ([]domain.GroupDescriptor, error) {
	members, err := s.users.ListMembersByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("load project members: %w", err)
	}

	descriptors := make([]domain.GroupDescriptor, 0, len(members)+1)
	for i, user := range members {
		userID := user.ID
		order := i + 1
		entityType := domain.EntityTypeUser
		descriptors = append(descriptors, domain.GroupDescriptor{
			GroupBy:    domain.GroupByAssignees,
			Name:       user.FullName(),
			Icon:       user.Photo,
			Order:      &order,
			EntityID:   &userID,
			EntityType: &entityType,
			Where: domain.And(domain.Condition{
				Field:    domain.CardFieldAssigneeID,
				Operator: domain.OperatorEquals,
				Values:   []string{user.ID.String()},
			}),
		})
	}

	// The sentinel has no source entity and no explicit order, so it always
	// sorts after the member groups.
	descriptors = append(descriptors, domain.GroupDescriptor{
		GroupBy: domain.GroupByAssignees,
		Name:    noAssigneeGroupName,
		Where: domain.And(domain.Condition{
			Field:    domain.CardFieldAssigneeID,
			Operator: domain.OperatorIsNull,
		}),
	})
	return descriptors, nil
}

// dueDateDescriptors always emits the same four buckets. The day boundaries
// are symbolic placeholders the card query layer resolves at evaluation time;
// this routine never computes a timestamp.
func dueDateDescriptors() []domain.GroupDescriptor {
	return []domain.GroupDescriptor{
		dueDateDescriptor(pastDueGroupName, iconClockEight, colorError, 1, domain.Condition{
			Field:    domain.CardFieldDueDate,
			Operator: domain.OperatorLessThan,
			Values:   []string{domain.PlaceholderStartOfDay},
		}),
		dueDateDescriptor(todayGroupName, iconClockTwelve, colorInfo, 2, domain.Condition{
			Field:    domain.CardFieldDueDate,
			Operator: domain.OperatorBetween,
			Values:   []string{domain.PlaceholderStartOfDay, domain.PlaceholderEndOfDay},
		}),
		dueDateDescriptor(upcomingGroupName, iconClockFour, colorDefault, 3, domain.Condition{
			Field:    domain.CardFieldDueDate,
			Operator: domain.OperatorGreaterThan,
			Values:   []string{domain.PlaceholderEndOfDay},
		}),
		dueDateDescriptor(noDueDateGroupName, iconClockSixOutline, colorDefault, 4, domain.Condition{
			Field:    domain.CardFieldDueDate,
			Operator: domain.OperatorIsNull,
		}),
	}
}

func dueDateDescriptor(name, icon, color string, order int, cond domain.Condition) domain.GroupDescriptor {
	return domain.GroupDescriptor{
		GroupBy: domain.GroupByDueDate,
		Name:    name,
		Icon:    &icon,
		Color:   &color,
		Order:   &order,
		Where:   domain.And(cond),
	}
}
