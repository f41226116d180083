package domain

import (
	"time"

	"github.com/google/uuid"
)

// Filterable card field paths. Group filters reference these; the card query
// layer maps them onto columns.
const (
	CardFieldStageID    = "stageId"
	CardFieldAssigneeID = "assigneeId"
	CardFieldDueDate    = "dueDate"
)

// Card is a single work item within a list.
type Card struct {
	ID          uuid.UUID  `json:"id"`
	ListID      uuid.UUID  `json:"list_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StageID     *uuid.UUID `json:"stage_id,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CardPatch carries a partial card update; nil fields are untouched. The
// Clear* flags explicitly null out optional references.
type CardPatch struct {
	Name          *string    `json:"name,omitempty"`
	Description   *string    `json:"description,omitempty"`
	StageID       *uuid.UUID `json:"stage_id,omitempty"`
	AssigneeID    *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ClearStage    bool       `json:"clear_stage,omitempty"`
	ClearAssignee bool       `json:"clear_assignee,omitempty"`
	ClearDueDate  bool       `json:"clear_due_date,omitempty"`
}

// Apply merges the patch onto c.
func (p CardPatch) Apply(c Card) Card {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.StageID != nil {
		c.StageID = p.StageID
	}
	if p.AssigneeID != nil {
		c.AssigneeID = p.AssigneeID
	}
	if p.DueDate != nil {
		c.DueDate = p.DueDate
	}
	if p.ClearStage {
		c.StageID = nil
	}
	if p.ClearAssignee {
		c.AssigneeID = nil
	}
	if p.ClearDueDate {
		c.DueDate = nil
	}
	c.UpdatedAt = time.Now()
	return c
}
