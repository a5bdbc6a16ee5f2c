package dialect

import (
	"fmt"
	"strings"
	"time"

	"metricql/internal/domain"
)

// Postgres is the PostgreSQL dialect.
type Postgres struct{ ansi }

func (Postgres) Name() domain.WarehouseType { return domain.WarehousePostgres }

func (Postgres) CaseInsensitiveLike(expr, pattern string) string {
	return ilike(expr, pattern)
}

// Redshift is the Amazon Redshift dialect.
type Redshift struct{ ansi }

func (Redshift) Name() domain.WarehouseType { return domain.WarehouseRedshift }

func (Redshift) CaseInsensitiveLike(expr, pattern string) string {
	return ilike(expr, pattern)
}

// Snowflake is the Snowflake dialect.
type Snowflake struct{ ansi }

func (Snowflake) Name() domain.WarehouseType { return domain.WarehouseSnowflake }

func (Snowflake) CaseInsensitiveLike(expr, pattern string) string {
	return ilike(expr, pattern)
}

func (Snowflake) DateTrunc(interval domain.TimeInterval, _ domain.DimensionType, expr string) string {
	if interval == "" || interval == domain.IntervalRaw {
		return expr
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", interval, expr)
}

// DuckDB is the DuckDB dialect.
type DuckDB struct{ ansi }

func (DuckDB) Name() domain.WarehouseType { return domain.WarehouseDuckDB }

func (DuckDB) CaseInsensitiveLike(expr, pattern string) string {
	return ilike(expr, pattern)
}

func (DuckDB) Percentile(expr string, fraction float64) (string, error) {
	return fmt.Sprintf("QUANTILE_CONT(%s, %s)", expr, formatFraction(fraction)), nil
}

// Trino is the Trino/Presto dialect.
type Trino struct{ ansi }

func (Trino) Name() domain.WarehouseType { return domain.WarehouseTrino }

func (Trino) Percentile(expr string, fraction float64) (string, error) {
	return fmt.Sprintf("APPROX_PERCENTILE(%s, %s)", expr, formatFraction(fraction)), nil
}

// BigQuery is the Google BigQuery dialect.
type BigQuery struct{ ansi }

func (BigQuery) Name() domain.WarehouseType { return domain.WarehouseBigQuery }

func (BigQuery) QuoteIdentifier(name string) string { return backtickIdentifier(name) }

func (BigQuery) QuoteString(s string) string { return backslashString(s) }

func (BigQuery) DateTrunc(interval domain.TimeInterval, typ domain.DimensionType, expr string) string {
	if interval == "" || interval == domain.IntervalRaw {
		return expr
	}
	if typ == domain.DimensionDate {
		return fmt.Sprintf("DATE_TRUNC(%s, %s)", expr, interval)
	}
	return fmt.Sprintf("TIMESTAMP_TRUNC(%s, %s)", expr, interval)
}

func (BigQuery) EscapeLike(s string) string { return backslashLikeEscaper.Replace(s) }

func (BigQuery) Like(expr, pattern string) string {
	return fmt.Sprintf("%s LIKE %s", expr, pattern)
}

func (BigQuery) CaseInsensitiveLike(expr, pattern string) string {
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", expr, pattern)
}

func (BigQuery) Concat(parts ...string) string {
	return "CONCAT(" + strings.Join(parts, ", ") + ")"
}

func (BigQuery) Percentile(expr string, fraction float64) (string, error) {
	return fmt.Sprintf("APPROX_QUANTILES(%s, 100)[OFFSET(%d)]", expr, int(fraction*100+0.5)), nil
}

// Databricks is the Databricks/Spark SQL dialect.
type Databricks struct{ ansi }

func (Databricks) Name() domain.WarehouseType { return domain.WarehouseDatabricks }

func (Databricks) QuoteIdentifier(name string) string { return backtickIdentifier(name) }

func (Databricks) QuoteString(s string) string { return backslashString(s) }

func (Databricks) DateTrunc(interval domain.TimeInterval, _ domain.DimensionType, expr string) string {
	if interval == "" || interval == domain.IntervalRaw {
		return expr
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", interval, expr)
}

func (Databricks) Concat(parts ...string) string {
	return "CONCAT(" + strings.Join(parts, ", ") + ")"
}

func (Databricks) Percentile(expr string, fraction float64) (string, error) {
	return fmt.Sprintf("PERCENTILE(%s, %s)", expr, formatFraction(fraction)), nil
}

// ClickHouse is the ClickHouse dialect.
type ClickHouse struct{ ansi }

func (ClickHouse) Name() domain.WarehouseType { return domain.WarehouseClickHouse }

func (ClickHouse) QuoteIdentifier(name string) string { return backtickIdentifier(name) }

func (ClickHouse) QuoteString(s string) string { return backslashString(s) }

func (ClickHouse) BooleanLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (ClickHouse) DateLiteral(t time.Time) string {
	return "toDate('" + t.UTC().Format(DateLayout) + "')"
}

func (ClickHouse) TimestampLiteral(t time.Time) string {
	return "toDateTime64('" + t.UTC().Format(TimestampLayout) + "', 3)"
}

var clickhouseTrunc = map[domain.TimeInterval]string{
	domain.IntervalMillisecond: "toStartOfMillisecond",
	domain.IntervalSecond:      "toStartOfSecond",
	domain.IntervalMinute:      "toStartOfMinute",
	domain.IntervalHour:        "toStartOfHour",
	domain.IntervalDay:         "toStartOfDay",
	domain.IntervalMonth:       "toStartOfMonth",
	domain.IntervalQuarter:     "toStartOfQuarter",
	domain.IntervalYear:        "toStartOfYear",
}

func (ClickHouse) DateTrunc(interval domain.TimeInterval, _ domain.DimensionType, expr string) string {
	if interval == domain.IntervalWeek {
		return fmt.Sprintf("toStartOfWeek(%s, 1)", expr)
	}
	fn, ok := clickhouseTrunc[interval]
	if !ok {
		return expr
	}
	return fmt.Sprintf("%s(%s)", fn, expr)
}

func (ClickHouse) Concat(parts ...string) string {
	return "concat(" + strings.Join(parts, ", ") + ")"
}

func (ClickHouse) EscapeLike(s string) string { return backslashLikeEscaper.Replace(s) }

func (ClickHouse) Like(expr, pattern string) string {
	return fmt.Sprintf("%s LIKE %s", expr, pattern)
}

func (ClickHouse) CaseInsensitiveLike(expr, pattern string) string {
	return fmt.Sprintf("%s ILIKE %s", expr, pattern)
}

func (ClickHouse) Percentile(expr string, fraction float64) (string, error) {
	return fmt.Sprintf("quantile(%s)(%s)", formatFraction(fraction), expr), nil
}

// SQLServer is the Microsoft SQL Server dialect.
type SQLServer struct{ ansi }

func (SQLServer) Name() domain.WarehouseType { return domain.WarehouseSQLServer }

// QuoteIdentifier wraps name in brackets, doubling embedded closing brackets.
func (SQLServer) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (SQLServer) BooleanLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (SQLServer) DateLiteral(t time.Time) string {
	return "CAST('" + t.UTC().Format(DateLayout) + "' AS DATE)"
}

func (SQLServer) TimestampLiteral(t time.Time) string {
	return "CAST('" + t.UTC().Format(TimestampLayout) + "' AS DATETIME2)"
}

func (SQLServer) DateTrunc(interval domain.TimeInterval, _ domain.DimensionType, expr string) string {
	if interval == "" || interval == domain.IntervalRaw {
		return expr
	}
	return fmt.Sprintf("DATETRUNC(%s, %s)", strings.ToLower(string(interval)), expr)
}

var sqlServerLikeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_", "[", "![")

// EscapeLike also escapes [ since SQL Server reads [...] as a character class.
func (SQLServer) EscapeLike(s string) string {
	return sqlServerLikeEscaper.Replace(s)
}

func (SQLServer) Concat(parts ...string) string {
	return "CONCAT(" + strings.Join(parts, ", ") + ")"
}

// Percentile is rejected: SQL Server only offers PERCENTILE_CONT as a window function.
func (SQLServer) Percentile(string, float64) (string, error) {
	return "", domain.ErrValidation("percentile aggregation is not supported by %s", domain.WarehouseSQLServer)
}

func (SQLServer) LimitStyle() LimitStyle { return LimitTop }
