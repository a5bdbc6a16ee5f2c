package domain

// SortField orders the result by one field.
type SortField struct {
	FieldID    string `json:"fieldId"`
	Descending bool   `json:"descending"`
}

// TableCalculation is a user expression over already-selected fields. SQL
// references fields as ${table.field} and other calculations as ${name}.
type TableCalculation struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName,omitempty"`
	SQL         string      `json:"sql"`
	Index       int         `json:"index,omitempty"`
	Format      FieldFormat `json:"format,omitempty"`
}

// AdditionalMetric is an ad hoc metric supplied with the query.
type AdditionalMetric struct {
	Name       string      `json:"name"`
	Table      string      `json:"table"`
	Label      string      `json:"label,omitempty"`
	Type       MetricType  `json:"type"`
	SQL        string      `json:"sql"`
	Percentile float64     `json:"percentile,omitempty"`
	Format     FieldFormat `json:"format,omitempty"`
}

// ID returns the qualified field id of the additional metric.
func (m AdditionalMetric) ID() string {
	return FieldID(m.Table, m.Name)
}

// MetricQuery is a request to compile against an explore.
type MetricQuery struct {
	ExploreName       string             `json:"exploreName"`
	Dimensions        []string           `json:"dimensions"`
	Metrics           []string           `json:"metrics"`
	Filters           Filters            `json:"filters"`
	Sorts             []SortField        `json:"sorts,omitempty"`
	Limit             *int               `json:"limit,omitempty"`
	TableCalculations []TableCalculation `json:"tableCalculations,omitempty"`
	AdditionalMetrics []AdditionalMetric `json:"additionalMetrics,omitempty"`
}

// SelectedFieldIDs returns dimensions, metrics, then table calculation names.
func (q MetricQuery) SelectedFieldIDs() []string {
	ids := make([]string, 0, len(q.Dimensions)+len(q.Metrics)+len(q.TableCalculations))
	ids = append(ids, q.Dimensions...)
	ids = append(ids, q.Metrics...)
	for _, tc := range q.TableCalculations {
		ids = append(ids, tc.Name)
	}
	return ids
}

// ItemKind distinguishes the kinds of selectable items.
type ItemKind string

// Item kinds.
const (
	ItemDimension        ItemKind = "dimension"
	ItemMetric           ItemKind = "metric"
	ItemTableCalculation ItemKind = "table_calculation"
)

// Item is the display metadata of one result column.
type Item struct {
	ID         string        `json:"id"`
	Kind       ItemKind      `json:"kind"`
	Table      string        `json:"table,omitempty"`
	TableLabel string        `json:"tableLabel,omitempty"`
	Name       string        `json:"name"`
	Label      string        `json:"label"`
	Type       DimensionType `json:"type"`
	Format     FieldFormat   `json:"format,omitempty"`
}

// DashboardTileTarget re-targets a dashboard filter for one tile.
type DashboardTileTarget struct {
	FieldID string `json:"fieldId"`
}

// DashboardFilterRule is a filter rule set on a dashboard. A nil entry in
// TileTargets means the rule does not apply to that tile.
type DashboardFilterRule struct {
	FilterRule
	TileTargets map[string]*DashboardTileTarget `json:"tileTargets,omitempty"`
}

// DashboardFilters are the active filters of a dashboard.
type DashboardFilters struct {
	Dimensions []DashboardFilterRule `json:"dimensions,omitempty"`
	Metrics    []DashboardFilterRule `json:"metrics,omitempty"`
}
