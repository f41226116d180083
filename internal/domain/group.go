package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GroupBy tags the strategy a list group was generated under.
type GroupBy string

const (
	GroupByAll       GroupBy = "ALL"
	GroupByListStage GroupBy = "LIST_STAGE"
	GroupByAssignees GroupBy = "ASSIGNEES"
	GroupByDueDate   GroupBy = "DUE_DATE"
)

// ParseGroupBy validates a strategy tag coming off the wire. An empty string
// maps to GroupByAll.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch GroupBy(raw) {
	case "":
		return GroupByAll, nil
	case GroupByAll, GroupByListStage, GroupByAssignees, GroupByDueDate:
		return GroupBy(raw), nil
	default:
		return "", fmt.Errorf("unknown groupBy value %q", raw)
	}
}

// EntityType tags the kind of record an id refers to, for filter ownership and
// group source entities.
type EntityType string

const (
	EntityTypeListGroup EntityType = "LIST_GROUP"
	EntityTypeListStage EntityType = "LIST_STAGE"
	EntityTypeUser      EntityType = "USER"
)

// ListGroup is a named bucket of cards within a list. Within one list and one
// strategy the tuple (EntityID, EntityType, Name) is unique; the synthesizer
// uses it as the reconciliation key.
type ListGroup struct {
	ID         uuid.UUID   `json:"id"`
	ListID     uuid.UUID   `json:"list_id"`
	GroupBy    GroupBy     `json:"group_by"`
	Name       string      `json:"name"`
	Color      *string     `json:"color,omitempty"`
	Icon       *string     `json:"icon,omitempty"`
	// Order is nil for groups created without an explicit position; they
	// sort after every ordered group.
	Order      *int `json:"order,omitempty"`
	IsExpanded bool `json:"is_expanded"`
	EntityID   *uuid.UUID  `json:"entity_id,omitempty"`
	EntityType *EntityType `json:"entity_type,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// GroupWithFilter pairs a persisted group with its filter, if one exists.
type GroupWithFilter struct {
	ListGroup
	Filter *Filter `json:"filter,omitempty"`
}

// GroupPatch carries a partial update; nil fields are left untouched.
type GroupPatch struct {
	Name       *string `json:"name,omitempty"`
	Color      *string `json:"color,omitempty"`
	Icon       *string `json:"icon,omitempty"`
	Order      *int    `json:"order,omitempty"`
	IsExpanded *bool   `json:"is_expanded,omitempty"`
}

// Apply merges the patch onto g, returning the updated record.
func (p GroupPatch) Apply(g ListGroup) ListGroup {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Color != nil {
		g.Color = p.Color
	}
	if p.Icon != nil {
		g.Icon = p.Icon
	}
	if p.Order != nil {
		g.Order = p.Order
	}
	if p.IsExpanded != nil {
		g.IsExpanded = *p.IsExpanded
	}
	g.UpdatedAt = time.Now()
	return g
}

// GroupDescriptor is the synthesizer's intermediate representation: a desired
// group computed by a strategy before reconciliation against persisted rows.
type GroupDescriptor struct {
	GroupBy    GroupBy
	Name       string
	Color      *string
	Icon       *string
	Order      *int
	EntityID   *uuid.UUID
	EntityType *EntityType
	Where      FilterNode
}

// MatchesGroup reports whether an existing persisted group satisfies the
// descriptor's reconciliation key.
func (d GroupDescriptor) MatchesGroup(g ListGroup) bool {
	if d.Name != g.Name {
		return false
	}
	if (d.EntityID == nil) != (g.EntityID == nil) {
		return false
	}
	if d.EntityID != nil && *d.EntityID != *g.EntityID {
		return false
	}
	if (d.EntityType == nil) != (g.EntityType == nil) {
		return false
	}
	if d.EntityType != nil && *d.EntityType != *g.EntityType {
		return false
	}
	return true
}
