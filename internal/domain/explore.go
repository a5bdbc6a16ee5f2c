package domain

import (
	"sort"
	"strings"
)

// WarehouseType tags the SQL dialect an explore is compiled for.
type WarehouseType string

// Supported warehouse types.
const (
	WarehousePostgres   WarehouseType = "postgres"
	WarehouseRedshift   WarehouseType = "redshift"
	WarehouseBigQuery   WarehouseType = "bigquery"
	WarehouseSnowflake  WarehouseType = "snowflake"
	WarehouseDatabricks WarehouseType = "databricks"
	WarehouseTrino      WarehouseType = "trino"
	WarehouseDuckDB     WarehouseType = "duckdb"
	WarehouseClickHouse WarehouseType = "clickhouse"
	WarehouseSQLServer  WarehouseType = "sqlserver"
)

// DimensionType is the semantic type of a dimension or a query result column.
type DimensionType string

// Dimension types.
const (
	DimensionString    DimensionType = "string"
	DimensionNumber    DimensionType = "number"
	DimensionTimestamp DimensionType = "timestamp"
	DimensionDate      DimensionType = "date"
	DimensionBoolean   DimensionType = "boolean"
)

// IsTime reports whether values of this type are dates or timestamps.
func (t DimensionType) IsTime() bool {
	return t == DimensionDate || t == DimensionTimestamp
}

// MetricType is the aggregation (or post-aggregation) kind of a metric.
type MetricType string

// Metric types. The aggregate kinds are wrapped in an aggregate function by the
// compiler; number/string/date/boolean metrics are expressions over other metrics.
const (
	MetricSum           MetricType = "sum"
	MetricCount         MetricType = "count"
	MetricCountDistinct MetricType = "count_distinct"
	MetricAverage       MetricType = "average"
	MetricMin           MetricType = "min"
	MetricMax           MetricType = "max"
	MetricMedian        MetricType = "median"
	MetricPercentile    MetricType = "percentile"
	MetricNumber        MetricType = "number"
	MetricString        MetricType = "string"
	MetricDate          MetricType = "date"
	MetricBoolean       MetricType = "boolean"
)

// IsAggregate reports whether the compiler must wrap the metric SQL in an aggregate function.
func (m MetricType) IsAggregate() bool {
	switch m {
	case MetricSum, MetricCount, MetricCountDistinct, MetricAverage,
		MetricMin, MetricMax, MetricMedian, MetricPercentile:
		return true
	}
	return false
}

// ResultType returns the semantic type of the values the metric produces.
func (m MetricType) ResultType() DimensionType {
	switch m {
	case MetricString:
		return DimensionString
	case MetricDate:
		return DimensionDate
	case MetricBoolean:
		return DimensionBoolean
	default:
		return DimensionNumber
	}
}

// TimeInterval is the truncation grain of a time dimension.
type TimeInterval string

// Time intervals.
const (
	IntervalRaw         TimeInterval = "RAW"
	IntervalMillisecond TimeInterval = "MILLISECOND"
	IntervalSecond      TimeInterval = "SECOND"
	IntervalMinute      TimeInterval = "MINUTE"
	IntervalHour        TimeInterval = "HOUR"
	IntervalDay         TimeInterval = "DAY"
	IntervalWeek        TimeInterval = "WEEK"
	IntervalMonth       TimeInterval = "MONTH"
	IntervalQuarter     TimeInterval = "QUARTER"
	IntervalYear        TimeInterval = "YEAR"
)

// JoinType is the SQL join kind of an explore join.
type JoinType string

// Join types. The zero value compiles as a LEFT OUTER JOIN.
const (
	JoinLeft  JoinType = "left"
	JoinInner JoinType = "inner"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// FormatType selects how numeric values are rendered.
type FormatType string

// Format types.
const (
	FormatDefault  FormatType = ""
	FormatCurrency FormatType = "currency"
	FormatPercent  FormatType = "percent"
	FormatID       FormatType = "id"
	FormatKm       FormatType = "km"
	FormatMi       FormatType = "mi"
)

// CompactUnit scales numbers down before rendering.
type CompactUnit string

// Compact units.
const (
	CompactNone      CompactUnit = ""
	CompactThousands CompactUnit = "thousands"
	CompactMillions  CompactUnit = "millions"
	CompactBillions  CompactUnit = "billions"
	CompactTrillions CompactUnit = "trillions"
)

// NumberSeparator selects thousands and decimal separators.
type NumberSeparator string

// Number separators.
const (
	SeparatorDefault           NumberSeparator = ""
	SeparatorCommaPeriod       NumberSeparator = "commaPeriod"
	SeparatorPeriodComma       NumberSeparator = "periodComma"
	SeparatorSpacePeriod       NumberSeparator = "spacePeriod"
	SeparatorNoSeparatorPeriod NumberSeparator = "noSeparatorPeriod"
)

// FieldFormat is the display format declared on a field.
type FieldFormat struct {
	Type      FormatType      `json:"type,omitempty"`
	Currency  string          `json:"currency,omitempty"`
	Round     *int            `json:"round,omitempty"`
	Compact   CompactUnit     `json:"compact,omitempty"`
	Separator NumberSeparator `json:"separator,omitempty"`
	Prefix    string          `json:"prefix,omitempty"`
	Suffix    string          `json:"suffix,omitempty"`
}

// SourceLocation points at the model file a table was compiled from.
type SourceLocation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// CompiledDimension is a non-aggregated field of a table.
type CompiledDimension struct {
	Name               string            `json:"name"`
	Table              string            `json:"table"`
	Label              string            `json:"label,omitempty"`
	Description        string            `json:"description,omitempty"`
	Type               DimensionType     `json:"type"`
	SQL                string            `json:"sql"`
	TimeInterval       TimeInterval      `json:"timeInterval,omitempty"`
	RequiredAttributes map[string]string `json:"requiredAttributes,omitempty"`
	Format             FieldFormat       `json:"format,omitempty"`
	Hidden             bool              `json:"hidden,omitempty"`
}

// CompiledMetric is an aggregated field of a table. SQL holds the
// pre-aggregation fragment; the compiler applies the aggregation.
type CompiledMetric struct {
	Name        string      `json:"name"`
	Table       string      `json:"table"`
	Label       string      `json:"label,omitempty"`
	Description string      `json:"description,omitempty"`
	Type        MetricType  `json:"type"`
	SQL         string      `json:"sql"`
	Percentile  float64     `json:"percentile,omitempty"`
	Format      FieldFormat `json:"format,omitempty"`
	Hidden      bool        `json:"hidden,omitempty"`
}

// CompiledTable is one table of an explore.
type CompiledTable struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	SQLTable string `json:"sqlTable"`
	// SQLWhere is an always-applied row filter; it may reference ${attributes.<name>}.
	SQLWhere   string                        `json:"sqlWhere,omitempty"`
	Dimensions map[string]*CompiledDimension `json:"dimensions"`
	Metrics    map[string]*CompiledMetric    `json:"metrics"`
	Lineage    map[string][]string           `json:"lineageGraph,omitempty"`
	Source     *SourceLocation               `json:"source,omitempty"`
}

// CompiledExploreJoin joins Table onto the explore using SQLOn.
type CompiledExploreJoin struct {
	Table string   `json:"table"`
	SQLOn string   `json:"sqlOn"`
	Type  JoinType `json:"type,omitempty"`
}

// Explore is a compiled semantic model: a base table plus the tables joinable to it.
type Explore struct {
	Name           string                    `json:"name"`
	Label          string                    `json:"label,omitempty"`
	BaseTable      string                    `json:"baseTable"`
	Tables         map[string]*CompiledTable `json:"tables"`
	JoinedTables   []CompiledExploreJoin     `json:"joinedTables,omitempty"`
	TargetDatabase WarehouseType             `json:"targetDatabase"`
}

// Validate checks the structural invariants that do not depend on a query.
func (e *Explore) Validate() error {
	if e == nil {
		return ErrValidation("explore is required")
	}
	if e.BaseTable == "" {
		return ErrValidation("explore %q has no base table", e.Name)
	}
	if _, ok := e.Tables[e.BaseTable]; !ok {
		return ErrValidation("explore %q base table %q is not defined", e.Name, e.BaseTable)
	}
	for _, j := range e.JoinedTables {
		if _, ok := e.Tables[j.Table]; !ok {
			return ErrMissingJoin(j.Table, "explore %q joins table %q which is not defined", e.Name, j.Table)
		}
	}
	return nil
}

// TableNames returns table names in resolution order: the base table, joined
// tables in declared order, then any remaining tables sorted by name.
func (e *Explore) TableNames() []string {
	names := make([]string, 0, len(e.Tables))
	seen := make(map[string]bool, len(e.Tables))
	add := func(name string) {
		if _, ok := e.Tables[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	add(e.BaseTable)
	for _, j := range e.JoinedTables {
		add(j.Table)
	}
	rest := make([]string, 0)
	for name := range e.Tables {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// FieldID builds the qualified id of a table field.
func FieldID(table, name string) string {
	return table + "." + name
}

// SplitFieldID splits a qualified field id into table and name. The table is
// empty for bare ids.
func SplitFieldID(id string) (table, name string) {
	if t, n, ok := strings.Cut(id, "."); ok {
		return t, n
	}
	return "", id
}

// FieldAlias returns the SQL column alias for a field id.
func FieldAlias(id string) string {
	return strings.ReplaceAll(id, ".", "_")
}
