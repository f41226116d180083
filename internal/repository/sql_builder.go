package repository

import (
	"fmt"
	"strings"

	"github.com/rpattn/taskboard/internal/domain"
)

type sqlBuilder struct {
	args []any
}

func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{}
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// cardColumns maps filterable field paths onto card columns. Unknown fields
// are rejected rather than interpolated.
var cardColumns = map[string]string{
	domain.CardFieldStageID:    "stage_id",
	domain.CardFieldAssigneeID: "assignee_id",
	domain.CardFieldDueDate:    "due_date",
}

// Symbolic day boundaries are resolved at evaluation time, in the database's
// clock, so stored filters never go stale.
var placeholderSQL = map[string]string{
	domain.PlaceholderStartOfDay: "date_trunc('day', now())",
	domain.PlaceholderEndOfDay:   "date_trunc('day', now()) + interval '1 day'",
}

// compileFilterNode renders a filter expression tree as a parameterized SQL
// predicate over the aliased cards table.
func compileFilterNode(alias string, node domain.FilterNode, builder *sqlBuilder) (string, error) {
	switch n := node.(type) {
	case domain.Condition:
		return compileCondition(alias, n, builder)
	case domain.BoolGroup:
		if len(n.Children) == 0 {
			return "TRUE", nil
		}
		var op string
		switch n.Operator {
		case domain.BoolAnd:
			op = " AND "
		case domain.BoolOr:
			op = " OR "
		default:
			return "", fmt.Errorf("unknown boolean operator %q", n.Operator)
		}
		clauses := make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			clause, err := compileFilterNode(alias, child, builder)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		}
		return "(" + strings.Join(clauses, op) + ")", nil
	default:
		return "", fmt.Errorf("unknown filter node type %T", node)
	}
}

func compileCondition(alias string, cond domain.Condition, builder *sqlBuilder) (string, error) {
	if err := cond.Validate(); err != nil {
		return "", err
	}

	column, ok := cardColumns[cond.Field]
	if !ok {
		return "", fmt.Errorf("field %q is not filterable", cond.Field)
	}
	qualified := alias + "." + column

	switch cond.Operator {
	case domain.OperatorIsNull:
		return qualified + " IS NULL", nil
	case domain.OperatorIsNotNull:
		return qualified + " IS NOT NULL", nil
	case domain.OperatorEquals:
		return fmt.Sprintf("%s = %s", qualified, operand(cond.Values[0], builder)), nil
	case domain.OperatorNotEquals:
		return fmt.Sprintf("%s <> %s", qualified, operand(cond.Values[0], builder)), nil
	case domain.OperatorLessThan:
		return fmt.Sprintf("%s < %s", qualified, operand(cond.Values[0], builder)), nil
	case domain.OperatorGreaterThan:
		return fmt.Sprintf("%s > %s", qualified, operand(cond.Values[0], builder)), nil
	case domain.OperatorBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s",
			qualified, operand(cond.Values[0], builder), operand(cond.Values[1], builder)), nil
	default:
		return "", fmt.Errorf("unknown filter operator %q", cond.Operator)
	}
}

// operand renders a condition value: symbolic placeholders become SQL
// expressions, literals become bound parameters.
func operand(value string, builder *sqlBuilder) string {
	if expr, ok := placeholderSQL[value]; ok {
		return expr
	}
	idx := builder.addArg(value)
	return builder.placeholder(idx)
}
