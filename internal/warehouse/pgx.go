package warehouse

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"metricql/internal/domain"
)

var _ domain.WarehouseClient = (*PgxClient)(nil)

// PgxClient runs queries on a Postgres-compatible warehouse through a pgx pool.
type PgxClient struct {
	pool    *pgxpool.Pool
	typ     domain.WarehouseType
	timeout time.Duration
	logger  *slog.Logger
}

// NewPgxClient wraps pool.
func NewPgxClient(pool *pgxpool.Pool, typ domain.WarehouseType, timeout time.Duration, logger *slog.Logger) *PgxClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgxClient{pool: pool, typ: typ, timeout: timeout, logger: logger.With("component", "warehouse", "type", string(typ))}
}

// Type implements domain.WarehouseClient.
func (c *PgxClient) Type() domain.WarehouseType { return c.typ }

// RunQuery executes query and returns every row.
func (c *PgxClient) RunQuery(ctx context.Context, query string) (*domain.WarehouseResults, error) {
	return collect(ctx, c, query)
}

// StreamQuery executes query and hands its rows to fn.
func (c *PgxClient) StreamQuery(ctx context.Context, query string, fn func([]domain.WarehouseColumn, iter.Seq2[domain.Row, error]) error) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	typeMap := rows.Conn().TypeMap()
	fds := rows.FieldDescriptions()
	columns := make([]domain.WarehouseColumn, len(fds))
	for i, fd := range fds {
		dbType := "TEXT"
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			dbType = t.Name
		}
		columns[i] = domain.WarehouseColumn{
			Name:         fd.Name,
			Type:         MapDatabaseType(dbType),
			DatabaseType: dbType,
		}
	}

	count := 0
	seq := func(yield func(domain.Row, error) bool) {
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
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

// Close closes the pool.
func (c *PgxClient) Close() error {
	c.pool.Close()
	return nil
}
