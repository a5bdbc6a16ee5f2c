package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"metricql/internal/domain"
)

var _ domain.WarehouseClient = (*SQLClient)(nil)

// SQLClient runs queries through database/sql. It serves DuckDB and
// ClickHouse connections.
type SQLClient struct {
	db      *sql.DB
	typ     domain.WarehouseType
	timeout time.Duration
	logger  *slog.Logger
}

// NewSQLClient wraps db.
func NewSQLClient(db *sql.DB, typ domain.WarehouseType, timeout time.Duration, logger *slog.Logger) *SQLClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLClient{db: db, typ: typ, timeout: timeout, logger: logger.With("component", "warehouse", "type", string(typ))}
}

// Type implements domain.WarehouseClient.
func (c *SQLClient) Type() domain.WarehouseType { return c.typ }

// RunQuery executes query and returns every row.
func (c *SQLClient) RunQuery(ctx context.Context, query string) (*domain.WarehouseResults, error) {
	return collect(ctx, c, query)
}

// StreamQuery executes query and hands its rows to fn.
func (c *SQLClient) StreamQuery(ctx context.Context, query string, fn func([]domain.WarehouseColumn, iter.Seq2[domain.Row, error]) error) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	types, err := rows.ColumnTypes()
	if err != nil {
		return fmt.Errorf("read column types: %w", err)
	}
	columns := make([]domain.WarehouseColumn, len(types))
	for i, ct := range types {
		columns[i] = domain.WarehouseColumn{
			Name:         ct.Name(),
			Type:         MapDatabaseType(ct.DatabaseTypeName()),
			DatabaseType: ct.DatabaseTypeName(),
		}
	}

	count := 0
	seq := func(yield func(domain.Row, error) bool) {
		for rows.Next() {
			vals := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(nil, fmt.Errorf("scan row: %w", err))
				return
			}
			row := make(domain.Row, len(columns))
			for i, col := range columns {
				row[col.Name] = normalizeValue(vals[i])
			}
			count++
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate rows: %w", err))
		}
	}

	if err := fn(columns, seq); err != nil {
		return err
	}
	c.logger.Debug("query finished", "rows", count, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Close closes the underlying database.
func (c *SQLClient) Close() error {
	return c.db.Close()
}
