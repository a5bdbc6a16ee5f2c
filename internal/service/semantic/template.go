package semantic

import (
	"fmt"
	"regexp"
	"strings"

	"metricql/internal/dialect"
	"metricql/internal/domain"
)

// placeholderRe matches ${...} references in model SQL.
var placeholderRe = regexp.MustCompile(`\$\{\s*([^}\s]+)\s*\}`)

// attribute reference prefixes.
var attributePrefixes = []string{"attributes."}

type renderedSQL struct {
	sql    string
	tables []string
}

// Renderer expands ${...} references in dimension, metric, join and row
// filter SQL. A Renderer belongs to a single compilation.
type Renderer struct {
	explore  *domain.Explore
	fields   *FieldResolver
	dialect  dialect.Dialect
	attrs    domain.UserAttributeValueMap
	cache    map[string]renderedSQL
	visiting map[string]bool
}

// NewRenderer creates a Renderer. fields may be nil when no additional
// metrics need to be visible.
func NewRenderer(explore *domain.Explore, fields *FieldResolver, d dialect.Dialect, attrs domain.UserAttributeValueMap) *Renderer {
	if fields == nil {
		fields = NewFieldResolver(explore, nil)
	}
	return &Renderer{
		explore:  explore,
		fields:   fields,
		dialect:  d,
		attrs:    attrs,
		cache:    map[string]renderedSQL{},
		visiting: map[string]bool{},
	}
}

// TableRef returns the quoted alias a table is selected under.
func (r *Renderer) TableRef(table string) string {
	return r.dialect.QuoteIdentifier(table)
}

// DimensionSQL returns the expanded SQL of a dimension, truncated to its
// time interval. Tables the expression reads from are added to tables.
func (r *Renderer) DimensionSQL(table, name string, tables map[string]bool) (string, error) {
	key := "dimension:" + domain.FieldID(table, name)
	return r.cached(key, tables, func(acc map[string]bool) (string, error) {
		t, ok := r.explore.Tables[table]
		if !ok {
			return "", domain.ErrMissingJoin(table, "table %q is not part of explore %q", table, r.explore.Name)
		}
		d, ok := t.Dimensions[name]
		if !ok {
			return "", domain.ErrUnknownField(domain.FieldID(table, name))
		}
		acc[table] = true
		sql, err := r.render(table, d.SQL, false, acc)
		if err != nil {
			return "", fmt.Errorf("dimension %s: %w", domain.FieldID(table, name), err)
		}
		if d.Type.IsTime() && d.TimeInterval != "" && d.TimeInterval != domain.IntervalRaw {
			sql = r.dialect.DateTrunc(d.TimeInterval, d.Type, sql)
		}
		return sql, nil
	})
}

// MetricSQL returns the aggregated SQL of a metric.
func (r *Renderer) MetricSQL(m *domain.CompiledMetric, tables map[string]bool) (string, error) {
	key := "metric:" + domain.FieldID(m.Table, m.Name)
	return r.cached(key, tables, func(acc map[string]bool) (string, error) {
		if strings.TrimSpace(m.SQL) == "" {
			return "", domain.ErrValidation("metric %q has empty sql", domain.FieldID(m.Table, m.Name))
		}
		acc[m.Table] = true
		inner, err := r.render(m.Table, m.SQL, !m.Type.IsAggregate(), acc)
		if err != nil {
			return "", fmt.Errorf("metric %s: %w", domain.FieldID(m.Table, m.Name), err)
		}
		return r.aggregate(m, inner)
	})
}

func (r *Renderer) aggregate(m *domain.CompiledMetric, inner string) (string, error) {
	switch m.Type {
	case domain.MetricSum:
		return "SUM(" + inner + ")", nil
	case domain.MetricCount:
		return "COUNT(" + inner + ")", nil
	case domain.MetricCountDistinct:
		return "COUNT(DISTINCT " + inner + ")", nil
	case domain.MetricAverage:
		return "AVG(" + inner + ")", nil
	case domain.MetricMin:
		return "MIN(" + inner + ")", nil
	case domain.MetricMax:
		return "MAX(" + inner + ")", nil
	case domain.MetricMedian:
		return r.dialect.Percentile(inner, 0.5)
	case domain.MetricPercentile:
		if m.Percentile < 0 || m.Percentile > 100 {
			return "", domain.ErrValidation("metric %q percentile must be between 0 and 100", m.Name)
		}
		return r.dialect.Percentile(inner, m.Percentile/100)
	case domain.MetricNumber, domain.MetricString, domain.MetricDate, domain.MetricBoolean:
		return inner, nil
	}
	return "", domain.ErrValidation("metric %q has unknown type %q", m.Name, m.Type)
}

// Render expands references in sql written in the scope of table.
func (r *Renderer) Render(table, sql string, tables map[string]bool) (string, error) {
	if tables == nil {
		tables = map[string]bool{}
	}
	return r.render(table, sql, false, tables)
}

func (r *Renderer) cached(key string, tables map[string]bool, build func(map[string]bool) (string, error)) (string, error) {
	if hit, ok := r.cache[key]; ok {
		for _, t := range hit.tables {
			if tables != nil {
				tables[t] = true
			}
		}
		return hit.sql, nil
	}
	if r.visiting[key] {
		return "", domain.ErrValidation("circular reference in %s", strings.TrimPrefix(strings.TrimPrefix(key, "metric:"), "dimension:"))
	}
	r.visiting[key] = true
	defer delete(r.visiting, key)

	acc := map[string]bool{}
	sql, err := build(acc)
	if err != nil {
		return "", err
	}
	hit := renderedSQL{sql: sql}
	for t := range acc {
		hit.tables = append(hit.tables, t)
		if tables != nil {
			tables[t] = true
		}
	}
	r.cache[key] = hit
	return sql, nil
}

func (r *Renderer) render(table, sql string, allowMetrics bool, tables map[string]bool) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(sql, func(match string) string {
		if firstErr != nil {
			return match
		}
		ref := placeholderRe.FindStringSubmatch(match)[1]
		expanded, err := r.expand(table, ref, allowMetrics, tables)
		if err != nil {
			firstErr = err
			return match
		}
		return expanded
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (r *Renderer) expand(table, ref string, allowMetrics bool, tables map[string]bool) (string, error) {
	if ref == "TABLE" {
		tables[table] = true
		return r.TableRef(table), nil
	}
	for _, prefix := range attributePrefixes {
		if name, ok := strings.CutPrefix(ref, prefix); ok {
			value, ok := r.attrs[name]
			if !ok {
				return "", domain.ErrAccessDenied("user attribute %q is required but not set", name)
			}
			return r.dialect.QuoteString(value), nil
		}
	}

	refTable, name := domain.SplitFieldID(ref)
	if refTable == "" {
		refTable = table
	}
	t, ok := r.explore.Tables[refTable]
	if !ok {
		return "", domain.ErrMissingJoin(refTable, "table %q referenced in %q is not part of explore %q", refTable, ref, r.explore.Name)
	}
	if name == "TABLE" {
		tables[refTable] = true
		return r.TableRef(refTable), nil
	}
	if _, ok := t.Dimensions[name]; ok {
		sql, err := r.DimensionSQL(refTable, name, tables)
		if err != nil {
			return "", err
		}
		return wrap(sql), nil
	}
	m, ok := t.Metrics[name]
	if !ok {
		m, ok = r.fields.AdditionalMetric(refTable, name)
	}
	if ok {
		if !allowMetrics {
			return "", domain.ErrValidation("only non-aggregate metrics can reference metric %q", ref)
		}
		sql, err := r.MetricSQL(m, tables)
		if err != nil {
			return "", err
		}
		return wrap(sql), nil
	}
	return "", domain.ErrUnknownField(domain.FieldID(refTable, name))
}

// wrap parenthesises compound expressions so substitution keeps precedence.
func wrap(sql string) string {
	if strings.ContainsAny(sql, " \t\n") {
		return "(" + sql + ")"
	}
	return sql
}
