package semantic

import (
	"strconv"
	"strings"
	"time"

	"metricql/internal/domain"
)

// dateRange is a relative date window. The end bound is exclusive unless
// endInclusive is set.
type dateRange struct {
	start        time.Time
	end          time.Time
	endInclusive bool
}

// relativeDateRange computes the window of a relative date rule anchored at now.
func relativeDateRange(rule *domain.FilterRule, now time.Time) (dateRange, error) {
	unit, err := ruleUnit(rule)
	if err != nil {
		return dateRange{}, err
	}
	completed := rule.Settings != nil && rule.Settings.Completed

	if rule.Operator == domain.OpInTheCurrent {
		start := startOf(now, unit)
		return dateRange{start: start, end: addUnits(start, unit, 1)}, nil
	}

	n, err := ruleMagnitude(rule)
	if err != nil {
		return dateRange{}, err
	}
	switch rule.Operator {
	case domain.OpInThePast, domain.OpNotInThePast:
		if completed {
			end := startOf(now, unit)
			return dateRange{start: addUnits(end, unit, -n), end: end}, nil
		}
		return dateRange{start: addUnits(now, unit, -n), end: now, endInclusive: true}, nil
	case domain.OpInTheNext:
		if completed {
			current := startOf(now, unit)
			return dateRange{start: addUnits(current, unit, 1), end: addUnits(current, unit, n+1)}, nil
		}
		return dateRange{start: now, end: addUnits(now, unit, n), endInclusive: true}, nil
	}
	return dateRange{}, domain.ErrUnsupportedOperator(rule.Operator, "operator %q is not a relative date operator", rule.Operator)
}

func ruleUnit(rule *domain.FilterRule) (domain.UnitOfTime, error) {
	for i := len(rule.Values) - 1; i >= 0; i-- {
		if s, ok := rule.Values[i].(string); ok && isUnit(domain.UnitOfTime(s)) {
			return domain.UnitOfTime(s), nil
		}
	}
	if rule.Settings != nil && isUnit(rule.Settings.UnitOfTime) {
		return rule.Settings.UnitOfTime, nil
	}
	return "", domain.ErrValidation("filter %q on %q requires a unit of time", rule.ID, rule.Target.FieldID)
}

func ruleMagnitude(rule *domain.FilterRule) (int, error) {
	if len(rule.Values) == 0 {
		return 0, domain.ErrValidation("filter %q on %q requires a number of units", rule.ID, rule.Target.FieldID)
	}
	f, err := toFloat(rule.Values[0])
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, domain.ErrValidation("filter %q on %q: %v is not a whole number of units", rule.ID, rule.Target.FieldID, rule.Values[0])
	}
	return int(f), nil
}

func isUnit(u domain.UnitOfTime) bool {
	switch u {
	case domain.UnitMilliseconds, domain.UnitSeconds, domain.UnitMinutes, domain.UnitHours,
		domain.UnitDays, domain.UnitWeeks, domain.UnitMonths, domain.UnitQuarters, domain.UnitYears:
		return true
	}
	return false
}

func addUnits(t time.Time, unit domain.UnitOfTime, n int) time.Time {
	switch unit {
	case domain.UnitMilliseconds:
		return t.Add(time.Duration(n) * time.Millisecond)
	case domain.UnitSeconds:
		return t.Add(time.Duration(n) * time.Second)
	case domain.UnitMinutes:
		return t.Add(time.Duration(n) * time.Minute)
	case domain.UnitHours:
		return t.Add(time.Duration(n) * time.Hour)
	case domain.UnitDays:
		return t.AddDate(0, 0, n)
	case domain.UnitWeeks:
		return t.AddDate(0, 0, 7*n)
	case domain.UnitMonths:
		return t.AddDate(0, n, 0)
	case domain.UnitQuarters:
		return t.AddDate(0, 3*n, 0)
	case domain.UnitYears:
		return t.AddDate(n, 0, 0)
	}
	return t
}

// startOf truncates t to the start of its unit. Weeks start on Monday.
func startOf(t time.Time, unit domain.UnitOfTime) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch unit {
	case domain.UnitMilliseconds:
		return t.Truncate(time.Millisecond)
	case domain.UnitSeconds:
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
	case domain.UnitMinutes:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	case domain.UnitHours:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case domain.UnitDays:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case domain.UnitWeeks:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case domain.UnitMonths:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case domain.UnitQuarters:
		return time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, loc)
	case domain.UnitYears:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	}
	return t
}

// truncateDay drops the clock part of t.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime coerces a filter value to a time.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	}
	return time.Time{}, domain.ErrValidation("%v is not a valid date", v)
}
