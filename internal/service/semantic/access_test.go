package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"metricql/internal/domain"
)

func TestFilterExplore(t *testing.T) {
	tests := []struct {
		name      string
		attrs     domain.UserAttributeValueMap
		wantEmail bool
	}{
		{"no attributes", nil, false},
		{"wrong value", domain.UserAttributeValueMap{"tier": "silver"}, false},
		{"other attribute", domain.UserAttributeValueMap{"region": "gold"}, false},
		{"granted", domain.UserAttributeValueMap{"tier": "gold"}, true},
		{"granted with extras", domain.UserAttributeValueMap{"tier": "gold", "region": "EU"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			explore := ordersExplore()
			filtered := FilterExplore(explore, tt.attrs)

			_, hasEmail := filtered.Tables["customers"].Dimensions["email"]
			assert.Equal(t, tt.wantEmail, hasEmail)
			assert.Contains(t, filtered.Tables["customers"].Dimensions, "country")
			assert.Len(t, filtered.Tables["customers"].Metrics, 1)
			assert.Len(t, filtered.Tables["orders"].Metrics, 3)
			assert.Equal(t, explore.JoinedTables, filtered.JoinedTables)

			assert.Equal(t, ordersExplore(), explore, "input explore must not change")
		})
	}
}

func TestFilterExplore_Idempotent(t *testing.T) {
	attrs := domain.UserAttributeValueMap{"tier": "silver"}
	once := FilterExplore(ordersExplore(), attrs)
	twice := FilterExplore(once, attrs)
	assert.Equal(t, once, twice)
}

func TestFilterExplore_MultipleRequiredAttributes(t *testing.T) {
	explore := ordersExplore()
	explore.Tables["orders"].Dimensions["amount"].RequiredAttributes = map[string]string{"tier": "gold", "team": "finance"}

	filtered := FilterExplore(explore, domain.UserAttributeValueMap{"tier": "gold"})
	assert.NotContains(t, filtered.Tables["orders"].Dimensions, "amount")

	filtered = FilterExplore(explore, domain.UserAttributeValueMap{"tier": "gold", "team": "finance"})
	assert.Contains(t, filtered.Tables["orders"].Dimensions, "amount")
}

func TestFilterExplore_HiddenFieldIsUnknownToCompiler(t *testing.T) {
	filtered := FilterExplore(ordersExplore(), nil)
	_, err := NewCompiler().Compile(filtered, domain.MetricQuery{Dimensions: []string{"customers.email"}}, compileOpts())
	var e *domain.UnknownFieldError
	assert.ErrorAs(t, err, &e)
}

func TestExploreHasFilteredAttribute(t *testing.T) {
	assert.True(t, ExploreHasFilteredAttribute(ordersExplore()))
	assert.False(t, ExploreHasFilteredAttribute(FilterExplore(ordersExplore(), nil)))
	assert.False(t, ExploreHasFilteredAttribute(nil))
}
