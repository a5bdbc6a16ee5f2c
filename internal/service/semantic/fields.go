package semantic

import (
	"metricql/internal/domain"
)

// ResolvedField is a field reference resolved against an explore and query.
type ResolvedField struct {
	ID               string
	Kind             domain.ItemKind
	Table            string
	Name             string
	Dimension        *domain.CompiledDimension
	Metric           *domain.CompiledMetric
	TableCalculation *domain.TableCalculation
}

// Alias returns the column alias the field is selected as.
func (f *ResolvedField) Alias() string {
	if f.Kind == domain.ItemTableCalculation {
		return f.Name
	}
	return domain.FieldAlias(f.ID)
}

// Type returns the semantic type used to coerce filter values. Table
// calculations have no declared type and return "".
func (f *ResolvedField) Type() domain.DimensionType {
	switch f.Kind {
	case domain.ItemDimension:
		return f.Dimension.Type
	case domain.ItemMetric:
		return f.Metric.Type.ResultType()
	}
	return ""
}

// FieldResolver looks up field ids for one compilation.
type FieldResolver struct {
	explore           *domain.Explore
	tableNames        []string
	tableCalculations map[string]*domain.TableCalculation
	additional        map[string]*domain.CompiledMetric
	additionalByName  map[string]*domain.CompiledMetric
}

// NewFieldResolver indexes the explore together with the query's table
// calculations and additional metrics.
func NewFieldResolver(explore *domain.Explore, q *domain.MetricQuery) *FieldResolver {
	r := &FieldResolver{
		explore:           explore,
		tableNames:        explore.TableNames(),
		tableCalculations: map[string]*domain.TableCalculation{},
		additional:        map[string]*domain.CompiledMetric{},
		additionalByName:  map[string]*domain.CompiledMetric{},
	}
	if q == nil {
		return r
	}
	for i := range q.TableCalculations {
		tc := &q.TableCalculations[i]
		r.tableCalculations[tc.Name] = tc
	}
	for _, am := range q.AdditionalMetrics {
		m := additionalToCompiled(am)
		r.additional[am.ID()] = m
		if _, ok := r.additionalByName[am.Name]; !ok {
			r.additionalByName[am.Name] = m
		}
	}
	return r
}

func additionalToCompiled(am domain.AdditionalMetric) *domain.CompiledMetric {
	label := am.Label
	if label == "" {
		label = am.Name
	}
	return &domain.CompiledMetric{
		Name:       am.Name,
		Table:      am.Table,
		Label:      label,
		Type:       am.Type,
		SQL:        am.SQL,
		Percentile: am.Percentile,
		Format:     am.Format,
	}
}

// Resolve returns the field a qualified "table.name" or bare "name" id refers
// to. Table calculations and additional metrics are checked first. Bare ids
// are searched across tables in TableNames order and the first match wins.
func (r *FieldResolver) Resolve(fieldID string) (*ResolvedField, error) {
	if tc, ok := r.tableCalculations[fieldID]; ok {
		return &ResolvedField{ID: tc.Name, Kind: domain.ItemTableCalculation, Name: tc.Name, TableCalculation: tc}, nil
	}
	if m, ok := r.additional[fieldID]; ok {
		return metricField(m), nil
	}
	if m, ok := r.additionalByName[fieldID]; ok {
		return metricField(m), nil
	}

	table, name := domain.SplitFieldID(fieldID)
	if table != "" {
		if f := r.lookup(table, name); f != nil {
			return f, nil
		}
		return nil, domain.ErrUnknownField(fieldID)
	}
	for _, t := range r.tableNames {
		if f := r.lookup(t, name); f != nil {
			return f, nil
		}
	}
	return nil, domain.ErrUnknownField(fieldID)
}

// AdditionalMetric returns the ad hoc metric registered under table.name.
func (r *FieldResolver) AdditionalMetric(table, name string) (*domain.CompiledMetric, bool) {
	m, ok := r.additional[domain.FieldID(table, name)]
	return m, ok
}

func (r *FieldResolver) lookup(table, name string) *ResolvedField {
	t, ok := r.explore.Tables[table]
	if !ok {
		return nil
	}
	if d, ok := t.Dimensions[name]; ok {
		return &ResolvedField{
			ID:        domain.FieldID(table, name),
			Kind:      domain.ItemDimension,
			Table:     table,
			Name:      name,
			Dimension: d,
		}
	}
	if m, ok := t.Metrics[name]; ok {
		return metricField(m)
	}
	return nil
}

func metricField(m *domain.CompiledMetric) *ResolvedField {
	return &ResolvedField{
		ID:     domain.FieldID(m.Table, m.Name),
		Kind:   domain.ItemMetric,
		Table:  m.Table,
		Name:   m.Name,
		Metric: m,
	}
}

// Item returns the display metadata of a resolved field.
func (r *FieldResolver) Item(f *ResolvedField) domain.Item {
	item := domain.Item{ID: f.ID, Kind: f.Kind, Table: f.Table, Name: f.Name}
	if t, ok := r.explore.Tables[f.Table]; ok {
		item.TableLabel = t.Label
	}
	switch f.Kind {
	case domain.ItemDimension:
		item.Label = f.Dimension.Label
		item.Type = f.Dimension.Type
		item.Format = f.Dimension.Format
	case domain.ItemMetric:
		item.Label = f.Metric.Label
		item.Type = f.Metric.Type.ResultType()
		item.Format = f.Metric.Format
	case domain.ItemTableCalculation:
		item.Label = f.TableCalculation.DisplayName
		item.Type = domain.DimensionNumber
		item.Format = f.TableCalculation.Format
	}
	if item.Label == "" {
		item.Label = f.Name
	}
	return item
}
