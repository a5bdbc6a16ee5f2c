// Package api exposes the metric query engine over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"metricql/internal/domain"
	"metricql/internal/service/export"
	"metricql/internal/service/format"
	"metricql/internal/service/semantic"
)

// semanticService is the subset of semantic.Service the handlers use.
type semanticService interface {
	SaveExplore(ctx context.Context, projectID string, explore *domain.Explore) error
	GetExplore(ctx context.Context, userID, projectID, name string) (*domain.Explore, error)
	ListExplores(ctx context.Context, projectID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error)
	DeleteExplore(ctx context.Context, projectID, name string) error
	CompileQuery(ctx context.Context, userID string, req semantic.QueryRequest) (*semantic.CompiledMetricQuery, error)
	RunQuery(ctx context.Context, userID string, req semantic.QueryRequest, page domain.PageRequest, opts format.Options) (*semantic.QueryResult, error)
	RunQueryRows(ctx context.Context, userID string, req semantic.QueryRequest) (*semantic.QueryRows, error)
}

// exportService is the subset of export.Service the handlers use.
type exportService interface {
	Export(ctx context.Context, rows []domain.Row, fields map[string]domain.Item, opts export.CSVOptions) (*domain.CSVFile, error)
	ExportSQL(ctx context.Context, client domain.WarehouseClient, sql string, opts export.CSVOptions) (*domain.CSVFile, error)
	OpenLocal(fileID string) (*os.File, error)
}

// Handler serves the HTTP API.
type Handler struct {
	semantic   semanticService
	exports    exportService
	attributes domain.UserAttributeRepository
	warehouse  domain.WarehouseClient
	logger     *slog.Logger
}

// NewHandler creates a Handler. The warehouse client is used by raw SQL
// exports and may be nil, in which case those requests fail.
func NewHandler(
	semantics semanticService,
	exports exportService,
	attributes domain.UserAttributeRepository,
	warehouse domain.WarehouseClient,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		semantic:   semantics,
		exports:    exports,
		attributes: attributes,
		warehouse:  warehouse,
		logger:     logger.With("component", "api"),
	}
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
