package semantic

import (
	"maps"

	"metricql/internal/domain"
)

// FilterExplore returns a copy of explore without the dimensions whose
// required attributes the user does not hold. A required attribute missing
// from attrs excludes the dimension. Metrics are never removed and the input
// explore is not modified.
func FilterExplore(explore *domain.Explore, attrs domain.UserAttributeValueMap) *domain.Explore {
	if explore == nil {
		return nil
	}
	out := *explore
	out.Tables = make(map[string]*domain.CompiledTable, len(explore.Tables))
	for name, t := range explore.Tables {
		table := *t
		table.Dimensions = make(map[string]*domain.CompiledDimension, len(t.Dimensions))
		for dimName, d := range t.Dimensions {
			if hasUserAttributes(d.RequiredAttributes, attrs) {
				table.Dimensions[dimName] = d
			}
		}
		table.Metrics = maps.Clone(t.Metrics)
		out.Tables[name] = &table
	}
	out.JoinedTables = append([]domain.CompiledExploreJoin(nil), explore.JoinedTables...)
	return &out
}

// ExploreHasFilteredAttribute reports whether any dimension declares required attributes.
func ExploreHasFilteredAttribute(explore *domain.Explore) bool {
	if explore == nil {
		return false
	}
	for _, t := range explore.Tables {
		for _, d := range t.Dimensions {
			if len(d.RequiredAttributes) > 0 {
				return true
			}
		}
	}
	return false
}

func hasUserAttributes(required map[string]string, attrs domain.UserAttributeValueMap) bool {
	for attr, want := range required {
		got, ok := attrs[attr]
		if !ok || got != want {
			return false
		}
	}
	return true
}
