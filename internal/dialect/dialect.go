// Package dialect isolates warehouse-specific SQL generation rules.
package dialect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"metricql/internal/domain"
)

// LimitStyle selects how a row limit is written.
type LimitStyle int

// Limit styles.
const (
	// LimitClause appends LIMIT n to the statement.
	LimitClause LimitStyle = iota
	// LimitTop writes SELECT TOP n.
	LimitTop
)

// Dialect generates the warehouse-specific pieces of a SQL statement.
type Dialect interface {
	Name() domain.WarehouseType
	QuoteIdentifier(name string) string
	// QuoteString returns s as a string literal.
	QuoteString(s string) string
	BooleanLiteral(b bool) string
	DateLiteral(t time.Time) string
	TimestampLiteral(t time.Time) string
	// DateTrunc truncates expr, a date or timestamp column of type typ, to
	// interval.
	DateTrunc(interval domain.TimeInterval, typ domain.DimensionType, expr string) string
	Concat(parts ...string) string
	// EscapeLike escapes the wildcard characters of s so it matches literally
	// inside a LIKE pattern.
	EscapeLike(s string) string
	// Like and CaseInsensitiveLike compare expr against an already quoted
	// pattern built from EscapeLike output.
	Like(expr, pattern string) string
	CaseInsensitiveLike(expr, pattern string) string
	Percentile(expr string, fraction float64) (string, error)
	LimitStyle() LimitStyle
}

// Literal layouts shared by most dialects.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05.000"
)

var registry = map[domain.WarehouseType]Dialect{
	domain.WarehousePostgres:   Postgres{},
	domain.WarehouseRedshift:   Redshift{},
	domain.WarehouseBigQuery:   BigQuery{},
	domain.WarehouseSnowflake:  Snowflake{},
	domain.WarehouseDatabricks: Databricks{},
	domain.WarehouseTrino:      Trino{},
	domain.WarehouseDuckDB:     DuckDB{},
	domain.WarehouseClickHouse: ClickHouse{},
	domain.WarehouseSQLServer:  SQLServer{},
}

// For returns the dialect registered for a warehouse type.
func For(t domain.WarehouseType) (Dialect, error) {
	d, ok := registry[domain.WarehouseType(strings.ToLower(string(t)))]
	if !ok {
		return nil, domain.ErrUnsupportedDialect(string(t))
	}
	return d, nil
}

// Names returns every registered warehouse type, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// identifierRe matches identifiers that need no quoting in any dialect.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsPlainIdentifier reports whether name is a bare [a-zA-Z_][a-zA-Z0-9_]* identifier.
func IsPlainIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// ansi carries the standard SQL behaviour the concrete dialects embed.
type ansi struct{}

// QuoteIdentifier wraps name in double quotes, doubling embedded quotes.
func (ansi) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString wraps s in single quotes, doubling embedded quotes.
func (ansi) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (ansi) BooleanLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (ansi) DateLiteral(t time.Time) string {
	return "DATE '" + t.UTC().Format(DateLayout) + "'"
}

func (ansi) TimestampLiteral(t time.Time) string {
	return "TIMESTAMP '" + t.UTC().Format(TimestampLayout) + "'"
}

func (ansi) DateTrunc(interval domain.TimeInterval, _ domain.DimensionType, expr string) string {
	if interval == "" || interval == domain.IntervalRaw {
		return expr
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", strings.ToLower(string(interval)), expr)
}

func (ansi) Concat(parts ...string) string {
	return "(" + strings.Join(parts, " || ") + ")"
}

// likeEscapeChar is the LIKE escape character of dialects with an ESCAPE
// clause. It needs no escaping in any string literal syntax.
const likeEscapeChar = "!"

var ansiLikeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (ansi) EscapeLike(s string) string {
	return ansiLikeEscaper.Replace(s)
}

func (ansi) Like(expr, pattern string) string {
	return fmt.Sprintf("%s LIKE %s ESCAPE '%s'", expr, pattern, likeEscapeChar)
}

func (ansi) CaseInsensitiveLike(expr, pattern string) string {
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s) ESCAPE '%s'", expr, pattern, likeEscapeChar)
}

// ilike is the CaseInsensitiveLike of dialects with an ILIKE operator.
func ilike(expr, pattern string) string {
	return fmt.Sprintf("%s ILIKE %s ESCAPE '%s'", expr, pattern, likeEscapeChar)
}

// backslashLikeEscaper escapes wildcards for dialects whose LIKE has a fixed
// backslash escape and no ESCAPE clause.
var backslashLikeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (ansi) Percentile(expr string, fraction float64) (string, error) {
	return fmt.Sprintf("PERCENTILE_CONT(%s) WITHIN GROUP (ORDER BY %s)", formatFraction(fraction), expr), nil
}

func (ansi) LimitStyle() LimitStyle { return LimitClause }

func formatFraction(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}

// backslashString quotes s for dialects that escape with backslashes.
func backslashString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

func backtickIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
