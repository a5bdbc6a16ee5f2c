// Package warehouse runs compiled SQL against DuckDB, ClickHouse and
// Postgres-compatible warehouses.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jackc/pgx/v5/pgxpool"

	"metricql/internal/domain"
)

// Config describes a warehouse connection.
type Config struct {
	Type         domain.WarehouseType
	DSN          string
	MaxOpenConns int
	// QueryTimeout bounds every query when positive.
	QueryTimeout time.Duration
}

// Open connects to the warehouse described by cfg.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (domain.WarehouseClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case domain.WarehouseDuckDB:
		db, err := sql.Open("duckdb", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		return newPingedSQLClient(ctx, db, cfg, logger)

	case domain.WarehouseClickHouse:
		opts, err := clickhouse.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
		}
		return newPingedSQLClient(ctx, clickhouse.OpenDB(opts), cfg, logger)

	case domain.WarehousePostgres, domain.WarehouseRedshift:
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return NewPgxClient(pool, cfg.Type, cfg.QueryTimeout, logger), nil

	default:
		return nil, domain.ErrUnsupportedDialect(string(cfg.Type))
	}
}

func newPingedSQLClient(ctx context.Context, db *sql.DB, cfg Config, logger *slog.Logger) (*SQLClient, error) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}
	return NewSQLClient(db, cfg.Type, cfg.QueryTimeout, logger), nil
}

// collect drains a streamed query into memory.
func collect(ctx context.Context, client domain.WarehouseClient, query string) (*domain.WarehouseResults, error) {
	results := &domain.WarehouseResults{Rows: []domain.Row{}}
	err := client.StreamQuery(ctx, query, func(columns []domain.WarehouseColumn, rows iter.Seq2[domain.Row, error]) error {
		results.Columns = columns
		for row, err := range rows {
			if err != nil {
				return err
			}
			results.Rows = append(results.Rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
