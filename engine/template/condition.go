package template

import (
	"strconv"
	"strings"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// Operator is one clause comparison op from §3's Condition definition.
type Operator string

const (
	OpLT           Operator = "<"
	OpGT           Operator = ">"
	OpLTE          Operator = "<="
	OpGTE          Operator = ">="
	OpEQ           Operator = "=="
	OpNEQ          Operator = "!="
	OpContains     Operator = "contains"
	OpContainsAny  Operator = "contains_any"
	OpNotContains  Operator = "not_contains"
	OpStartsWith   Operator = "starts_with"
	OpEndsWith     Operator = "ends_with"
	OpExists       Operator = "exists"
	OpNotExists    Operator = "not_exists"
)

// GroupOperator joins a condition group's clauses.
type GroupOperator string

const (
	GroupAND GroupOperator = "AND"
	GroupOR  GroupOperator = "OR"
)

// Condition is either a clause (Path/Op/Value set, Clauses nil) or a group
// (Operator/Clauses set, Path empty) — the recursive shape from §3.
type Condition struct {
	// Clause fields.
	Path            string   `json:"path,omitempty"`
	Op              Operator `json:"op,omitempty"`
	Value           any      `json:"value,omitempty"`
	CaseInsensitive *bool    `json:"case_insensitive,omitempty"`

	// Group fields.
	GroupOp GroupOperator `json:"operator,omitempty"`
	Clauses []Condition   `json:"clauses,omitempty"`
}

func (c Condition) isGroup() bool {
	return c.GroupOp != "" || c.Clauses != nil
}

// EvaluateCondition never errors: an unresolvable path degrades to false
// (§4.1 failure mode). Groups short-circuit in declared clause order.
func EvaluateCondition(c Condition, ctx map[string]any) bool {
	if c.isGroup() {
		return evaluateGroup(c, ctx)
	}
	return evaluateClause(c, ctx)
}

func evaluateGroup(c Condition, ctx map[string]any) bool {
	switch c.GroupOp {
	case GroupOR:
		for _, clause := range c.Clauses {
			if EvaluateCondition(clause, ctx) {
				return true
			}
		}
		return false
	default: // GroupAND and any unrecognized operator default to AND
		for _, clause := range c.Clauses {
			if !EvaluateCondition(clause, ctx) {
				return false
			}
		}
		return true
	}
}

func evaluateClause(c Condition, ctx map[string]any) bool {
	val, found := resolveConditionPath(ctx, c.Path)

	switch c.Op {
	case OpExists:
		return found && !isNullish(val)
	case OpNotExists:
		return !found || isNullish(val)
	}

	if !found {
		return false
	}

	switch c.Op {
	case OpLT, OpGT, OpLTE, OpGTE, OpEQ, OpNEQ:
		return evaluateNumeric(c.Op, val, c.Value)
	case OpContains, OpContainsAny, OpNotContains, OpStartsWith, OpEndsWith:
		return evaluateString(c.Op, val, c.Value, caseInsensitive(c.CaseInsensitive))
	default:
		return false
	}
}

func caseInsensitive(flag *bool) bool {
	if flag == nil {
		return true
	}
	return *flag
}

func isNullish(v any) bool {
	return v == nil || IsUndefined(v)
}

// resolveConditionPath tries path as given, then the same path with its
// `trigger_data.` prefix added or stripped — §4.1's "papers over author
// inconsistency" rule.
func resolveConditionPath(ctx map[string]any, path string) (any, bool) {
	if v, ok := resolvePath(ctx, path); ok {
		return v, true
	}
	const prefix = ReservedKeyTriggerData + "."
	if strings.HasPrefix(path, prefix) {
		return resolvePath(ctx, strings.TrimPrefix(path, prefix))
	}
	return resolvePath(ctx, prefix+path)
}

func toFloat(v any) (float64, bool) {
	n := core.NewValue(v)
	if f, ok := n.Number(); ok {
		return f, true
	}
	if s, ok := n.String(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func evaluateNumeric(op Operator, left, right any) bool {
	l, lok := toFloat(left)
	r, rok := toFloat(right)
	if !lok || !rok {
		return false
	}
	switch op {
	case OpLT:
		return l < r
	case OpGT:
		return l > r
	case OpLTE:
		return l <= r
	case OpGTE:
		return l >= r
	case OpEQ:
		return l == r
	case OpNEQ:
		return l != r
	default:
		return false
	}
}

func toComparableString(v any, ci bool) string {
	s := stringify(v)
	if ci {
		return strings.ToLower(s)
	}
	return s
}

func evaluateString(op Operator, left, right any, ci bool) bool {
	l := toComparableString(left, ci)
	switch op {
	case OpContains:
		return strings.Contains(l, toComparableString(right, ci))
	case OpNotContains:
		return !strings.Contains(l, toComparableString(right, ci))
	case OpStartsWith:
		return strings.HasPrefix(l, toComparableString(right, ci))
	case OpEndsWith:
		return strings.HasSuffix(l, toComparableString(right, ci))
	case OpContainsAny:
		arr, ok := right.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if strings.Contains(l, toComparableString(item, ci)) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
