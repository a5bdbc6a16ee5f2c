package semantic

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"metricql/internal/dialect"
	"metricql/internal/domain"
)

// fieldSQLFunc returns the expression a filter on f compares against. It
// decides which kinds of fields a filter group may target.
type fieldSQLFunc func(f *ResolvedField) (string, error)

// FilterCompiler translates filter trees into SQL boolean expressions.
type FilterCompiler struct {
	fields   *FieldResolver
	dialect  dialect.Dialect
	now      time.Time
	fieldSQL fieldSQLFunc
}

// NewFilterCompiler creates a FilterCompiler. now anchors relative date rules;
// windows are computed in UTC, the zone fixed filter values are read in.
func NewFilterCompiler(fields *FieldResolver, d dialect.Dialect, now time.Time, fieldSQL fieldSQLFunc) *FilterCompiler {
	return &FilterCompiler{fields: fields, dialect: d, now: now.UTC(), fieldSQL: fieldSQL}
}

// CompileGroup compiles a group. Disabled rules are left out, and a group
// without live rules compiles to "" (no constraint). Groups with more than
// one child are parenthesised.
func (c *FilterCompiler) CompileGroup(g *domain.FilterGroup) (string, error) {
	if g == nil {
		return "", nil
	}
	parts := make([]string, 0, len(g.Items))
	for _, item := range g.Items {
		var (
			sql string
			err error
		)
		switch n := item.(type) {
		case *domain.FilterGroup:
			sql, err = c.CompileGroup(n)
		case *domain.FilterRule:
			if n.Disabled {
				continue
			}
			sql, err = c.CompileRule(n)
		}
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	sep := " AND "
	if g.Kind == domain.GroupOr {
		sep = " OR "
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// CompileRule compiles a single rule, ignoring its Disabled flag.
func (c *FilterCompiler) CompileRule(rule *domain.FilterRule) (string, error) {
	f, err := c.fields.Resolve(rule.Target.FieldID)
	if err != nil {
		return "", err
	}
	expr, err := c.fieldSQL(f)
	if err != nil {
		return "", err
	}
	typ := f.Type()
	if typ == "" {
		typ = inferType(rule.Values)
	}
	field := "(" + expr + ")"
	op := rule.Operator

	switch op {
	case domain.OpIsNull, domain.OpNotNull:
		if len(rule.Values) > 0 {
			return "", domain.ErrValidation("filter %q: operator %q takes no values", rule.ID, op)
		}
		if op == domain.OpIsNull {
			return field + " IS NULL", nil
		}
		return field + " IS NOT NULL", nil

	case domain.OpEquals, domain.OpNotEquals:
		lits, err := c.literals(typ, rule.Values)
		if err != nil {
			return "", err
		}
		negate := op == domain.OpNotEquals
		switch {
		case len(lits) == 0 && negate:
			return field + " IS NOT NULL", nil
		case len(lits) == 0:
			return field + " IS NULL", nil
		case len(lits) == 1 && negate:
			return field + " != " + lits[0], nil
		case len(lits) == 1:
			return field + " = " + lits[0], nil
		case negate:
			return field + " NOT IN (" + strings.Join(lits, ", ") + ")", nil
		default:
			return field + " IN (" + strings.Join(lits, ", ") + ")", nil
		}

	case domain.OpStartsWith, domain.OpEndsWith, domain.OpInclude, domain.OpDoesNotInclude:
		if typ != domain.DimensionString {
			return "", unsupported(op, typ, rule)
		}
		if len(rule.Values) == 0 {
			return "", domain.ErrValidation("filter %q: operator %q requires at least one value", rule.ID, op)
		}
		return c.likeSQL(field, op, rule.Values), nil

	case domain.OpLessThan, domain.OpLessThanOrEqual, domain.OpGreaterThan, domain.OpGreaterThanOrEqual:
		if !isOrdered(typ) {
			return "", unsupported(op, typ, rule)
		}
		if len(rule.Values) == 0 {
			return "", domain.ErrValidation("filter %q: operator %q requires a value", rule.ID, op)
		}
		lit, err := c.literal(typ, rule.Values[0])
		if err != nil {
			return "", err
		}
		return field + " " + comparison[op] + " " + lit, nil

	case domain.OpInBetween:
		if !isOrdered(typ) {
			return "", unsupported(op, typ, rule)
		}
		if len(rule.Values) != 2 {
			return "", domain.ErrValidation("filter %q: operator %q requires exactly two values", rule.ID, op)
		}
		lits, err := c.literals(typ, rule.Values)
		if err != nil {
			return "", err
		}
		return field + " BETWEEN " + lits[0] + " AND " + lits[1], nil

	case domain.OpInThePast, domain.OpNotInThePast, domain.OpInTheNext, domain.OpInTheCurrent:
		if !typ.IsTime() {
			return "", unsupported(op, typ, rule)
		}
		rng, err := relativeDateRange(rule, c.now)
		if err != nil {
			return "", err
		}
		sql := c.rangeSQL(field, typ, rng)
		if op == domain.OpNotInThePast {
			return "NOT " + sql, nil
		}
		return sql, nil
	}
	return "", domain.ErrUnsupportedOperator(op, "filter %q: unknown operator %q", rule.ID, op)
}

var comparison = map[domain.ConditionalOperator]string{
	domain.OpLessThan:           "<",
	domain.OpLessThanOrEqual:    "<=",
	domain.OpGreaterThan:        ">",
	domain.OpGreaterThanOrEqual: ">=",
}

func unsupported(op domain.ConditionalOperator, typ domain.DimensionType, rule *domain.FilterRule) error {
	return domain.ErrUnsupportedOperator(op, "operator %q is not supported for %s field %q", op, typ, rule.Target.FieldID)
}

func isOrdered(typ domain.DimensionType) bool {
	return typ == domain.DimensionNumber || typ.IsTime()
}

func (c *FilterCompiler) likeSQL(field string, op domain.ConditionalOperator, values []any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		s := c.dialect.EscapeLike(toString(v))
		switch op {
		case domain.OpStartsWith:
			parts = append(parts, c.dialect.Like(field, c.dialect.QuoteString(s+"%")))
		case domain.OpEndsWith:
			parts = append(parts, c.dialect.Like(field, c.dialect.QuoteString("%"+s)))
		case domain.OpInclude:
			parts = append(parts, c.dialect.CaseInsensitiveLike(field, c.dialect.QuoteString("%"+s+"%")))
		case domain.OpDoesNotInclude:
			parts = append(parts, "NOT "+c.dialect.CaseInsensitiveLike(field, c.dialect.QuoteString("%"+s+"%")))
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	sep := " OR "
	if op == domain.OpDoesNotInclude {
		sep = " AND "
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (c *FilterCompiler) rangeSQL(field string, typ domain.DimensionType, rng dateRange) string {
	lit := c.dialect.TimestampLiteral
	if typ == domain.DimensionDate {
		lit = c.dialect.DateLiteral
		rng.start, rng.end = truncateDay(rng.start), truncateDay(rng.end)
	}
	upper := " < "
	if rng.endInclusive {
		upper = " <= "
	}
	return "(" + field + " >= " + lit(rng.start) + " AND " + field + upper + lit(rng.end) + ")"
}

func (c *FilterCompiler) literals(typ domain.DimensionType, values []any) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		lit, err := c.literal(typ, v)
		if err != nil {
			return nil, err
		}
		out = append(out, lit)
	}
	return out, nil
}

// literal renders v as a SQL literal of the field's semantic type.
func (c *FilterCompiler) literal(typ domain.DimensionType, v any) (string, error) {
	switch typ {
	case domain.DimensionNumber:
		f, err := toFloat(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case domain.DimensionBoolean:
		b, err := toBool(v)
		if err != nil {
			return "", err
		}
		return c.dialect.BooleanLiteral(b), nil
	case domain.DimensionDate:
		t, err := toTime(v)
		if err != nil {
			return "", err
		}
		return c.dialect.DateLiteral(t), nil
	case domain.DimensionTimestamp:
		t, err := toTime(v)
		if err != nil {
			return "", err
		}
		return c.dialect.TimestampLiteral(t), nil
	}
	return c.dialect.QuoteString(toString(v)), nil
}

// inferType picks a type for untyped fields from the values given.
func inferType(values []any) domain.DimensionType {
	for _, v := range values {
		switch x := v.(type) {
		case bool:
			return domain.DimensionBoolean
		case string:
			if f, err := strconv.ParseFloat(x, 64); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return domain.DimensionString
			}
		}
	}
	return domain.DimensionNumber
}

// toFloat reads v as a finite number. NaN and infinities have no portable
// SQL literal and are rejected.
func toFloat(v any) (float64, error) {
	var (
		f  float64
		ok bool
	)
	switch n := v.(type) {
	case float64:
		f, ok = n, true
	case float32:
		f, ok = float64(n), true
	case int:
		f, ok = float64(n), true
	case int32:
		f, ok = float64(n), true
	case int64:
		f, ok = float64(n), true
	case json.Number:
		parsed, err := n.Float64()
		f, ok = parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		f, ok = parsed, err == nil
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, domain.ErrValidation("%v is not a valid number", v)
	}
	return f, nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err == nil {
			return parsed, nil
		}
	}
	return false, domain.ErrValidation("%v is not a valid boolean", v)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
