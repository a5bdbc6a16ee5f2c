package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"metricql/internal/dialect"
	"metricql/internal/domain"
	"metricql/internal/service/semantic"
	"metricql/internal/warehouse"
)

// localQuery holds the flags shared by the commands that compile a query from
// files without a server.
type localQuery struct {
	explorePath          string
	queryPath            string
	dashboardFiltersPath string
	tileID               string
	dialect              string
	attributes           []string
}

func (l *localQuery) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&l.explorePath, "explore", "e", "", "Compiled explore file (YAML or JSON)")
	cmd.Flags().StringVarP(&l.queryPath, "query", "f", "", "Metric query file (YAML or JSON, - for stdin)")
	cmd.Flags().StringVar(&l.dashboardFiltersPath, "dashboard-filters", "", "Dashboard filters file to overlay")
	cmd.Flags().StringVar(&l.tileID, "tile", "", "Dashboard tile id the filters are applied for")
	cmd.Flags().StringVar(&l.dialect, "dialect", "", "Override the explore target database")
	cmd.Flags().StringArrayVar(&l.attributes, "attr", nil, "User attribute as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("explore")
	_ = cmd.MarkFlagRequired("query")
}

// compile loads the inputs, applies access filtering and dashboard filters,
// and compiles the query.
func (l *localQuery) compile(cmd *cobra.Command) (*semantic.CompiledMetricQuery, error) {
	var explore domain.Explore
	if err := readDocument(l.explorePath, cmd.InOrStdin(), &explore); err != nil {
		return nil, err
	}
	var query domain.MetricQuery
	if err := readDocument(l.queryPath, cmd.InOrStdin(), &query); err != nil {
		return nil, err
	}
	if query.ExploreName == "" {
		query.ExploreName = explore.Name
	}

	attrs, err := parseAttributes(l.attributes)
	if err != nil {
		return nil, err
	}
	target := &explore
	if semantic.ExploreHasFilteredAttribute(target) {
		target = semantic.FilterExplore(target, attrs)
	}

	if l.dashboardFiltersPath != "" {
		var filters domain.DashboardFilters
		if err := readDocument(l.dashboardFiltersPath, cmd.InOrStdin(), &filters); err != nil {
			return nil, err
		}
		query = semantic.ApplyDashboardFilters(target, query, filters, l.tileID)
	}

	opts := semantic.CompileOptions{UserAttributes: attrs}
	if l.dialect != "" {
		d, err := dialect.For(domain.WarehouseType(l.dialect))
		if err != nil {
			return nil, err
		}
		opts.Dialect = d
	}
	return semantic.NewCompiler().Compile(target, query, opts)
}

// warehouseFlags select the warehouse a local command runs against. Unset
// flags fall back to METRICQL_WAREHOUSE_TYPE / METRICQL_WAREHOUSE_DSN, then to
// the active profile, then to DuckDB.
type warehouseFlags struct {
	typ string
	dsn string
}

func (w *warehouseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.typ, "warehouse", "", "Warehouse type (duckdb, clickhouse, postgres, redshift)")
	cmd.Flags().StringVar(&w.dsn, "dsn", "", "Warehouse connection string")
}

func (w *warehouseFlags) open(cmd *cobra.Command) (domain.WarehouseClient, error) {
	profileName, _ := cmd.Root().PersistentFlags().GetString("profile")
	p := loadOrEmptyConfig().ActiveProfile(profileName)
	cfg := warehouse.Config{
		Type: domain.WarehouseType(firstNonEmpty(w.typ, os.Getenv("METRICQL_WAREHOUSE_TYPE"), p.Warehouse, string(domain.WarehouseDuckDB))),
		DSN:  firstNonEmpty(w.dsn, os.Getenv("METRICQL_WAREHOUSE_DSN"), p.DSN),
	}
	client, err := warehouse.Open(cmd.Context(), cfg, cliLogger())
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	return client, nil
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
