package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterGroup_UnmarshalNested(t *testing.T) {
	raw := `{
		"id": "root",
		"and": [
			{"id": "r1", "target": {"fieldId": "orders.status"}, "operator": "equals", "values": ["paid"]},
			{"id": "g1", "or": [
				{"id": "r2", "target": {"fieldId": "orders.amount"}, "operator": "greaterThan", "values": [10]},
				{"id": "r3", "target": {"fieldId": "orders.created"}, "operator": "inThePast",
				 "values": [3], "settings": {"unitOfTime": "days", "completed": true}, "disabled": true}
			]}
		]
	}`

	var g FilterGroup
	require.NoError(t, json.Unmarshal([]byte(raw), &g))

	assert.Equal(t, "root", g.ID)
	assert.Equal(t, GroupAnd, g.Kind)
	require.Len(t, g.Items, 2)
	nested, ok := g.Items[1].(*FilterGroup)
	require.True(t, ok)
	assert.Equal(t, GroupOr, nested.Kind)

	rules := g.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"r1", "r2", "r3"}, []string{rules[0].ID, rules[1].ID, rules[2].ID})
	assert.True(t, rules[2].Disabled)
	require.NotNil(t, rules[2].Settings)
	assert.Equal(t, UnitDays, rules[2].Settings.UnitOfTime)
	assert.True(t, rules[2].Settings.Completed)
}

func TestFilterGroup_UnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no connective", raw: `{"id": "g"}`},
		{name: "both connectives", raw: `{"id": "g", "and": [], "or": []}`},
		{name: "items not a list", raw: `{"id": "g", "and": {}}`},
		{name: "nested group invalid", raw: `{"id": "g", "and": [{"id": "inner"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var g FilterGroup
			assert.Error(t, json.Unmarshal([]byte(tc.raw), &g))
		})
	}

	var g FilterGroup
	err := json.Unmarshal([]byte(`{"id": "g", "and": [], "or": []}`), &g)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestFilterGroup_MarshalWireForm(t *testing.T) {
	g := Or("root",
		&FilterRule{ID: "r1", Target: FilterTarget{FieldID: "orders.status"}, Operator: OpIsNull},
		And("inner"),
	)
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "root",
		"or": [
			{"id": "r1", "target": {"fieldId": "orders.status"}, "operator": "isNull"},
			{"id": "inner", "and": []}
		]
	}`, string(data))

	data, err = json.Marshal(&FilterGroup{ID: "k"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "k", "and": []}`, string(data))
}

func TestFilterGroup_RulesNil(t *testing.T) {
	var g *FilterGroup
	assert.Nil(t, g.Rules())
}
