package domain

import (
	"encoding/json"
	"fmt"
)

// ConditionalOperator is the comparison applied by a filter rule.
type ConditionalOperator string

// Filter operators.
const (
	OpIsNull             ConditionalOperator = "isNull"
	OpNotNull            ConditionalOperator = "notNull"
	OpEquals             ConditionalOperator = "equals"
	OpNotEquals          ConditionalOperator = "notEquals"
	OpStartsWith         ConditionalOperator = "startsWith"
	OpEndsWith           ConditionalOperator = "endsWith"
	OpInclude            ConditionalOperator = "include"
	OpDoesNotInclude     ConditionalOperator = "doesNotInclude"
	OpLessThan           ConditionalOperator = "lessThan"
	OpLessThanOrEqual    ConditionalOperator = "lessThanOrEqual"
	OpGreaterThan        ConditionalOperator = "greaterThan"
	OpGreaterThanOrEqual ConditionalOperator = "greaterThanOrEqual"
	OpInThePast          ConditionalOperator = "inThePast"
	OpNotInThePast       ConditionalOperator = "notInThePast"
	OpInTheNext          ConditionalOperator = "inTheNext"
	OpInTheCurrent       ConditionalOperator = "inTheCurrent"
	OpInBetween          ConditionalOperator = "inBetween"
)

// UnitOfTime is the unit of a relative date filter.
type UnitOfTime string

// Units of time.
const (
	UnitMilliseconds UnitOfTime = "milliseconds"
	UnitSeconds      UnitOfTime = "seconds"
	UnitMinutes      UnitOfTime = "minutes"
	UnitHours        UnitOfTime = "hours"
	UnitDays         UnitOfTime = "days"
	UnitWeeks        UnitOfTime = "weeks"
	UnitMonths       UnitOfTime = "months"
	UnitQuarters     UnitOfTime = "quarters"
	UnitYears        UnitOfTime = "years"
)

// FilterTarget names the field a rule applies to.
type FilterTarget struct {
	FieldID string `json:"fieldId"`
}

// FilterRuleSettings carries operator-specific options.
type FilterRuleSettings struct {
	UnitOfTime UnitOfTime `json:"unitOfTime,omitempty"`
	Completed  bool       `json:"completed,omitempty"`
}

// FilterNode is either a *FilterGroup or a *FilterRule.
type FilterNode interface {
	filterNode()
}

// GroupKind is the boolean connective of a filter group.
type GroupKind string

// Group kinds.
const (
	GroupAnd GroupKind = "and"
	GroupOr  GroupKind = "or"
)

// FilterGroup is the branch variant of the filter tree.
type FilterGroup struct {
	ID    string
	Kind  GroupKind
	Items []FilterNode
}

// FilterRule is the leaf variant of the filter tree.
type FilterRule struct {
	ID       string              `json:"id"`
	Target   FilterTarget        `json:"target"`
	Operator ConditionalOperator `json:"operator"`
	Values   []any               `json:"values,omitempty"`
	Disabled bool                `json:"disabled,omitempty"`
	Settings *FilterRuleSettings `json:"settings,omitempty"`
}

func (*FilterGroup) filterNode() {}
func (*FilterRule) filterNode()  {}

// And builds an AND group.
func And(id string, items ...FilterNode) *FilterGroup {
	return &FilterGroup{ID: id, Kind: GroupAnd, Items: items}
}

// Or builds an OR group.
func Or(id string, items ...FilterNode) *FilterGroup {
	return &FilterGroup{ID: id, Kind: GroupOr, Items: items}
}

// Rules returns every leaf rule of the group, depth first.
func (g *FilterGroup) Rules() []*FilterRule {
	if g == nil {
		return nil
	}
	var out []*FilterRule
	for _, item := range g.Items {
		switch n := item.(type) {
		case *FilterRule:
			out = append(out, n)
		case *FilterGroup:
			out = append(out, n.Rules()...)
		}
	}
	return out
}

// MarshalJSON encodes the group as {"id": ..., "and"|"or": [...]}.
func (g *FilterGroup) MarshalJSON() ([]byte, error) {
	kind := g.Kind
	if kind == "" {
		kind = GroupAnd
	}
	items := g.Items
	if items == nil {
		items = []FilterNode{}
	}
	return json.Marshal(map[string]any{
		"id":         g.ID,
		string(kind): items,
	})
}

// UnmarshalJSON decodes {"id": ..., "and"|"or": [...]}.
func (g *FilterGroup) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if id, ok := raw["id"]; ok {
		if err := json.Unmarshal(id, &g.ID); err != nil {
			return fmt.Errorf("filter group id: %w", err)
		}
	}
	andItems, hasAnd := raw[string(GroupAnd)]
	orItems, hasOr := raw[string(GroupOr)]
	var rawItems json.RawMessage
	switch {
	case hasAnd && hasOr:
		return ErrValidation("filter group %q has both and/or keys", g.ID)
	case hasAnd:
		g.Kind, rawItems = GroupAnd, andItems
	case hasOr:
		g.Kind, rawItems = GroupOr, orItems
	default:
		return ErrValidation("filter group %q must have an and/or key", g.ID)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return fmt.Errorf("filter group items: %w", err)
	}
	g.Items = make([]FilterNode, 0, len(items))
	for _, item := range items {
		node, err := unmarshalFilterNode(item)
		if err != nil {
			return err
		}
		g.Items = append(g.Items, node)
	}
	return nil
}

func unmarshalFilterNode(data json.RawMessage) (FilterNode, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("filter item: %w", err)
	}
	if _, ok := keys["target"]; ok {
		rule := &FilterRule{}
		if err := json.Unmarshal(data, rule); err != nil {
			return nil, fmt.Errorf("filter rule: %w", err)
		}
		return rule, nil
	}
	group := &FilterGroup{}
	if err := group.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return group, nil
}

// Filters holds the filter trees of a metric query.
type Filters struct {
	Dimensions        *FilterGroup `json:"dimensions,omitempty"`
	Metrics           *FilterGroup `json:"metrics,omitempty"`
	TableCalculations *FilterGroup `json:"tableCalculations,omitempty"`
}
