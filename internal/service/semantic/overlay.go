package semantic

import (
	"metricql/internal/domain"
)

// ApplyDashboardFilters merges the dashboard rules that apply to tileID into
// a copy of q. A rule's TileTargets entry for the tile re-targets its field,
// and a nil entry skips the rule for that tile. When explore is not nil, rules
// whose field does not exist in it are skipped. q is not modified.
func ApplyDashboardFilters(explore *domain.Explore, q domain.MetricQuery, f domain.DashboardFilters, tileID string) domain.MetricQuery {
	var resolver *FieldResolver
	if explore != nil {
		resolver = NewFieldResolver(explore, &q)
	}
	pick := func(rules []domain.DashboardFilterRule) []domain.FilterNode {
		var out []domain.FilterNode
		for _, dr := range rules {
			rule, ok := tileRule(dr, tileID)
			if !ok {
				continue
			}
			if resolver != nil {
				if _, err := resolver.Resolve(rule.Target.FieldID); err != nil {
					continue
				}
			}
			out = append(out, rule)
		}
		return out
	}

	out := q
	out.Filters.Dimensions = mergeGroup(q.Filters.Dimensions, pick(f.Dimensions), "dashboard_dimensions")
	out.Filters.Metrics = mergeGroup(q.Filters.Metrics, pick(f.Metrics), "dashboard_metrics")
	return out
}

func tileRule(dr domain.DashboardFilterRule, tileID string) (*domain.FilterRule, bool) {
	rule := dr.FilterRule
	rule.Values = append([]any(nil), dr.Values...)
	if dr.TileTargets != nil {
		if target, ok := dr.TileTargets[tileID]; ok {
			if target == nil {
				return nil, false
			}
			rule.Target = domain.FilterTarget{FieldID: target.FieldID}
		}
	}
	if rule.Settings != nil {
		settings := *rule.Settings
		rule.Settings = &settings
	}
	return &rule, true
}

// mergeGroup ANDs extra rules with an existing group. An existing AND group
// is extended in a copy, anything else is nested under a new AND group.
func mergeGroup(existing *domain.FilterGroup, extra []domain.FilterNode, id string) *domain.FilterGroup {
	if len(extra) == 0 {
		return existing
	}
	if existing == nil {
		return domain.And(id, extra...)
	}
	if existing.Kind == domain.GroupAnd || existing.Kind == "" {
		items := make([]domain.FilterNode, 0, len(existing.Items)+len(extra))
		items = append(items, existing.Items...)
		items = append(items, extra...)
		return domain.And(existing.ID, items...)
	}
	return domain.And(id, append([]domain.FilterNode{existing}, extra...)...)
}
