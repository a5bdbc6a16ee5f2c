package semantic

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"metricql/internal/dialect"
	"metricql/internal/domain"
)

// Compiler turns metric queries into SQL. It holds no state and is safe for
// concurrent use.
type Compiler struct{}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

type selection struct {
	field *ResolvedField
	sql   string
}

// queryBuilder carries the state of one compilation.
type queryBuilder struct {
	explore  *domain.Explore
	query    *domain.MetricQuery
	dialect  dialect.Dialect
	now      time.Time
	fields   *FieldResolver
	renderer *Renderer

	tables     map[string]bool
	dimensions []selection
	metrics    []selection
	selected   map[string]*ResolvedField
	calcs      []*domain.TableCalculation
}

// Compile compiles q against explore into a single SQL statement.
func (c *Compiler) Compile(explore *domain.Explore, q domain.MetricQuery, opts CompileOptions) (*CompiledMetricQuery, error) {
	if err := explore.Validate(); err != nil {
		return nil, err
	}
	d := opts.Dialect
	if d == nil {
		var err error
		if d, err = dialect.For(explore.TargetDatabase); err != nil {
			return nil, err
		}
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	if len(q.Dimensions)+len(q.Metrics) == 0 {
		return nil, domain.ErrValidation("metric query must select at least one dimension or metric")
	}
	if q.Limit != nil && *q.Limit < 0 {
		return nil, domain.ErrValidation("limit must not be negative")
	}

	b := &queryBuilder{
		explore:  explore,
		query:    &q,
		dialect:  d,
		now:      now,
		fields:   NewFieldResolver(explore, &q),
		tables:   map[string]bool{explore.BaseTable: true},
		selected: map[string]*ResolvedField{},
	}
	b.renderer = NewRenderer(explore, b.fields, d, opts.UserAttributes)
	return b.build()
}

func (b *queryBuilder) build() (*CompiledMetricQuery, error) {
	if err := b.selectFields(); err != nil {
		return nil, err
	}
	if err := b.collectTableCalculations(); err != nil {
		return nil, err
	}

	where, err := NewFilterCompiler(b.fields, b.dialect, b.now, b.dimensionFilterSQL).CompileGroup(b.query.Filters.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("dimension filters: %w", err)
	}
	having, err := NewFilterCompiler(b.fields, b.dialect, b.now, b.metricFilterSQL).CompileGroup(b.query.Filters.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metric filters: %w", err)
	}
	outerWhere, err := NewFilterCompiler(b.fields, b.dialect, b.now, b.selectedAliasSQL).CompileGroup(b.query.Filters.TableCalculations)
	if err != nil {
		return nil, fmt.Errorf("table calculation filters: %w", err)
	}
	orderBy, err := b.orderBy()
	if err != nil {
		return nil, err
	}
	joins, rowFilters, err := b.resolveJoins()
	if err != nil {
		return nil, err
	}

	quote := b.dialect.QuoteIdentifier
	base := b.explore.Tables[b.explore.BaseTable]
	cols := make([]string, 0, len(b.dimensions)+len(b.metrics))
	groupBy := make([]string, 0, len(b.dimensions))
	for _, s := range b.dimensions {
		cols = append(cols, s.sql+" AS "+quote(s.field.Alias()))
		groupBy = append(groupBy, s.sql)
	}
	for _, s := range b.metrics {
		cols = append(cols, s.sql+" AS "+quote(s.field.Alias()))
	}

	inner := sq.Select(cols...).From(base.SQLTable + " AS " + quote(b.explore.BaseTable))
	for _, j := range joins {
		inner = inner.JoinClause(j.Clause(quote))
	}
	if where != "" {
		inner = inner.Where(where)
	}
	for _, f := range rowFilters {
		inner = inner.Where(f)
	}
	if (len(b.metrics) > 0 || having != "") && len(groupBy) > 0 {
		inner = inner.GroupBy(groupBy...)
	}
	if having != "" {
		inner = inner.Having(having)
	}

	outer := inner
	if len(b.calcs) > 0 || outerWhere != "" {
		outer, err = b.wrapTableCalculations(inner)
		if err != nil {
			return nil, err
		}
		if outerWhere != "" {
			outer = outer.Where(outerWhere)
		}
	}
	if len(orderBy) > 0 {
		outer = outer.OrderBy(orderBy...)
	}
	if b.query.Limit != nil {
		if b.dialect.LimitStyle() == dialect.LimitTop {
			outer = outer.Options(fmt.Sprintf("TOP %d", *b.query.Limit))
		} else {
			outer = outer.Limit(uint64(*b.query.Limit))
		}
	}

	sql, _, err := outer.ToSql()
	if err != nil {
		return nil, fmt.Errorf("assemble sql: %w", err)
	}
	return b.result(sql, joins), nil
}

func (b *queryBuilder) selectFields() error {
	for _, id := range b.query.Dimensions {
		f, err := b.selectField(id, domain.ItemDimension)
		if err != nil {
			return err
		}
		sql, err := b.renderer.DimensionSQL(f.Table, f.Name, b.tables)
		if err != nil {
			return err
		}
		b.dimensions = append(b.dimensions, selection{field: f, sql: sql})
	}
	for _, id := range b.query.Metrics {
		f, err := b.selectField(id, domain.ItemMetric)
		if err != nil {
			return err
		}
		sql, err := b.renderer.MetricSQL(f.Metric, b.tables)
		if err != nil {
			return err
		}
		b.metrics = append(b.metrics, selection{field: f, sql: sql})
	}
	return nil
}

func (b *queryBuilder) selectField(id string, kind domain.ItemKind) (*ResolvedField, error) {
	f, err := b.fields.Resolve(id)
	if err != nil {
		return nil, err
	}
	if f.Kind != kind {
		return nil, domain.ErrValidation("field %q is not a %s", id, kind)
	}
	if _, dup := b.selected[f.ID]; dup {
		return nil, domain.ErrValidation("field %q is selected more than once", f.ID)
	}
	b.selected[f.ID] = f
	return f, nil
}

func (b *queryBuilder) dimensionFilterSQL(f *ResolvedField) (string, error) {
	if f.Kind != domain.ItemDimension {
		return "", domain.ErrValidation("dimension filters cannot target %s %q", f.Kind, f.ID)
	}
	return b.renderer.DimensionSQL(f.Table, f.Name, b.tables)
}

func (b *queryBuilder) metricFilterSQL(f *ResolvedField) (string, error) {
	if f.Kind != domain.ItemMetric {
		return "", domain.ErrValidation("metric filters cannot target %s %q", f.Kind, f.ID)
	}
	return b.renderer.MetricSQL(f.Metric, b.tables)
}

// selectedAliasSQL references an already selected column in an outer query layer.
func (b *queryBuilder) selectedAliasSQL(f *ResolvedField) (string, error) {
	if _, ok := b.selected[f.ID]; !ok {
		return "", domain.ErrValidation("field %q is not selected", f.ID)
	}
	return b.dialect.QuoteIdentifier(f.Alias()), nil
}

func (b *queryBuilder) orderBy() ([]string, error) {
	out := make([]string, 0, len(b.query.Sorts))
	for _, s := range b.query.Sorts {
		f, err := b.fields.Resolve(s.FieldID)
		if err != nil {
			return nil, err
		}
		ref, err := b.selectedAliasSQL(f)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		if s.Descending {
			out = append(out, ref+" DESC")
		} else {
			out = append(out, ref+" ASC")
		}
	}
	return out, nil
}

// resolveJoins resolves joins for the referenced tables and renders the row
// filters of every table in the FROM clause. Row filters may reference
// further tables, so resolution repeats until the table set is stable.
func (b *queryBuilder) resolveJoins() ([]CompiledJoin, []string, error) {
	done := map[string]bool{}
	var rowFilters []string
	for {
		joins, err := ResolveJoins(b.explore, b.tables, b.renderer)
		if err != nil {
			return nil, nil, err
		}
		present := map[string]bool{b.explore.BaseTable: true}
		names := []string{b.explore.BaseTable}
		for _, j := range joins {
			present[j.Table] = true
			names = append(names, j.Table)
		}
		for _, name := range names {
			if done[name] {
				continue
			}
			done[name] = true
			sqlWhere := strings.TrimSpace(b.explore.Tables[name].SQLWhere)
			if sqlWhere == "" {
				continue
			}
			sql, err := b.renderer.Render(name, sqlWhere, b.tables)
			if err != nil {
				return nil, nil, fmt.Errorf("row filter on %q: %w", name, err)
			}
			rowFilters = append(rowFilters, "("+sql+")")
		}
		stable := true
		for t := range b.tables {
			if !present[t] {
				stable = false
				break
			}
		}
		if stable {
			return joins, rowFilters, nil
		}
	}
}

func (b *queryBuilder) result(sql string, joins []CompiledJoin) *CompiledMetricQuery {
	out := &CompiledMetricQuery{
		SQL:     sql,
		Fields:  map[string]domain.Item{},
		Aliases: map[string]string{},
		Joins:   joins,
	}
	add := func(f *ResolvedField) {
		out.Columns = append(out.Columns, f.ID)
		out.Fields[f.ID] = b.fields.Item(f)
		out.Aliases[f.ID] = f.Alias()
	}
	for _, s := range b.dimensions {
		add(s.field)
	}
	for _, s := range b.metrics {
		add(s.field)
	}
	for _, tc := range b.query.TableCalculations {
		add(b.selected[tc.Name])
	}
	return out
}
