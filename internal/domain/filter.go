package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FilterOperator enumerates the comparison operators a condition leaf may use.
type FilterOperator string

const (
	OperatorEquals      FilterOperator = "eq"
	OperatorNotEquals   FilterOperator = "ne"
	OperatorLessThan    FilterOperator = "lt"
	OperatorGreaterThan FilterOperator = "gt"
	OperatorBetween     FilterOperator = "between"
	OperatorIsNull      FilterOperator = "is_null"
	OperatorIsNotNull   FilterOperator = "is_not_null"
)

// BoolOperator joins the children of a composite filter node.
type BoolOperator string

const (
	BoolAnd BoolOperator = "and"
	BoolOr  BoolOperator = "or"
)

// Symbolic values a condition may carry instead of a concrete literal. They are
// resolved relative to evaluation time by the card query layer, never by the
// group synthesizer.
const (
	PlaceholderStartOfDay = "$startOfDay"
	PlaceholderEndOfDay   = "$endOfDay"
)

// FilterNode is the closed variant type for filter expression trees: a node is
// either a Condition leaf or a BoolGroup composite. Both serialize to a tagged
// JSON object so persisted trees round-trip without loss.
type FilterNode interface {
	isFilterNode()
}

// Condition is a leaf predicate over a single card field.
type Condition struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	// Values holds the comparison operands: one value for binary operators,
	// two for between, none for null checks.
	Values []string `json:"values,omitempty"`
}

func (Condition) isFilterNode() {}

// BoolGroup combines child nodes under one boolean operator.
type BoolGroup struct {
	Operator BoolOperator `json:"operator"`
	Children []FilterNode `json:"children"`
}

func (BoolGroup) isFilterNode() {}

// And builds a conjunction over the given nodes.
func And(nodes ...FilterNode) BoolGroup {
	return BoolGroup{Operator: BoolAnd, Children: nodes}
}

// Validate checks operator arity on the leaf.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("filter condition requires a field")
	}
	switch c.Operator {
	case OperatorIsNull, OperatorIsNotNull:
		if len(c.Values) != 0 {
			return fmt.Errorf("operator %s takes no values, got %d", c.Operator, len(c.Values))
		}
	case OperatorBetween:
		if len(c.Values) != 2 {
			return fmt.Errorf("operator %s takes exactly two values, got %d", c.Operator, len(c.Values))
		}
	case OperatorEquals, OperatorNotEquals, OperatorLessThan, OperatorGreaterThan:
		if len(c.Values) != 1 {
			return fmt.Errorf("operator %s takes exactly one value, got %d", c.Operator, len(c.Values))
		}
	default:
		return fmt.Errorf("unknown filter operator %q", c.Operator)
	}
	return nil
}

type taggedNode struct {
	Kind     string            `json:"kind"`
	Field    string            `json:"field,omitempty"`
	Operator string            `json:"operator,omitempty"`
	Values   []string          `json:"values,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`
}

const (
	nodeKindCondition = "condition"
	nodeKindGroup     = "group"
)

// MarshalFilterNode encodes a tree as tagged JSON for JSONB persistence.
func MarshalFilterNode(node FilterNode) (json.RawMessage, error) {
	if node == nil {
		return nil, nil
	}
	tagged, err := toTagged(node)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagged)
}

// UnmarshalFilterNode decodes a tagged JSON tree. Empty input yields a nil node.
func UnmarshalFilterNode(data json.RawMessage) (FilterNode, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var tagged taggedNode
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("decode filter node: %w", err)
	}
	return fromTagged(tagged)
}

func toTagged(node FilterNode) (taggedNode, error) {
	switch n := node.(type) {
	case Condition:
		return taggedNode{
			Kind:     nodeKindCondition,
			Field:    n.Field,
			Operator: string(n.Operator),
			Values:   n.Values,
		}, nil
	case BoolGroup:
		children := make([]json.RawMessage, 0, len(n.Children))
		for _, child := range n.Children {
			raw, err := MarshalFilterNode(child)
			if err != nil {
				return taggedNode{}, err
			}
			children = append(children, raw)
		}
		return taggedNode{
			Kind:     nodeKindGroup,
			Operator: string(n.Operator),
			Children: children,
		}, nil
	default:
		return taggedNode{}, fmt.Errorf("unknown filter node type %T", node)
	}
}

func fromTagged(tagged taggedNode) (FilterNode, error) {
	switch tagged.Kind {
	case nodeKindCondition:
		return Condition{
			Field:    tagged.Field,
			Operator: FilterOperator(tagged.Operator),
			Values:   tagged.Values,
		}, nil
	case nodeKindGroup:
		children := make([]FilterNode, 0, len(tagged.Children))
		for _, raw := range tagged.Children {
			child, err := UnmarshalFilterNode(raw)
			if err != nil {
				return nil, err
			}
			if child != nil {
				children = append(children, child)
			}
		}
		return BoolGroup{Operator: BoolOperator(tagged.Operator), Children: children}, nil
	default:
		return nil, fmt.Errorf("unknown filter node kind %q", tagged.Kind)
	}
}

// Filter is a persisted predicate owned by exactly one entity, here always a
// list group. Created together with its owner; the synthesizer never updates it.
type Filter struct {
	ID         uuid.UUID  `json:"id"`
	EntityID   uuid.UUID  `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	Where      FilterNode `json:"where"`
	CreatedAt  time.Time  `json:"created_at"`
}

type filterJSON struct {
	ID         uuid.UUID       `json:"id"`
	EntityID   uuid.UUID       `json:"entity_id"`
	EntityType EntityType      `json:"entity_type"`
	Where      json.RawMessage `json:"where,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MarshalJSON serializes Where in the tagged node form.
func (f Filter) MarshalJSON() ([]byte, error) {
	where, err := MarshalFilterNode(f.Where)
	if err != nil {
		return nil, err
	}
	return json.Marshal(filterJSON{
		ID:         f.ID,
		EntityID:   f.EntityID,
		EntityType: f.EntityType,
		Where:      where,
		CreatedAt:  f.CreatedAt,
	})
}

// UnmarshalJSON restores Where from the tagged node form.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw filterJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	where, err := UnmarshalFilterNode(raw.Where)
	if err != nil {
		return err
	}
	*f = Filter{
		ID:         raw.ID,
		EntityID:   raw.EntityID,
		EntityType: raw.EntityType,
		Where:      where,
		CreatedAt:  raw.CreatedAt,
	}
	return nil
}
