package semantic

import (
	"time"

	"metricql/internal/dialect"
	"metricql/internal/domain"
)

// CompileOptions configures one compilation.
type CompileOptions struct {
	// Dialect overrides the explore's target database when set.
	Dialect dialect.Dialect
	// Now anchors relative date filters. The zero value means time.Now().
	Now            time.Time
	UserAttributes domain.UserAttributeValueMap
}

// CompiledMetricQuery is the compiler output.
type CompiledMetricQuery struct {
	SQL string `json:"query"`
	// Columns lists the selected field ids in output order.
	Columns []string `json:"columns"`
	// Fields holds display metadata keyed by field id.
	Fields map[string]domain.Item `json:"fields"`
	// Aliases maps field ids to the column alias the warehouse returns.
	Aliases map[string]string `json:"aliases"`
	Joins   []CompiledJoin    `json:"joins"`
}

// QueryRequest is the runtime request contract for compiling and running a
// metric query on behalf of a user.
type QueryRequest struct {
	ProjectID        string                   `json:"projectId"`
	Query            domain.MetricQuery       `json:"query"`
	DashboardFilters *domain.DashboardFilters `json:"dashboardFilters,omitempty"`
	TileID           string                   `json:"tileId,omitempty"`
}

// QueryRows is an executed query with warehouse rows re-keyed by field id.
type QueryRows struct {
	Compiled *CompiledMetricQuery
	Rows     []domain.Row
}

// QueryResult is an executed and formatted query page.
type QueryResult struct {
	SQL    string                 `json:"query"`
	Fields map[string]domain.Item `json:"fields"`
	domain.ResultsPage
}
