package app

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricql/internal/config"
	internaldb "metricql/internal/db"
	"metricql/internal/domain"
	"metricql/internal/warehouse"
)

func ordersExplore() *domain.Explore {
	return &domain.Explore{
		Name:           "orders",
		BaseTable:      "orders",
		TargetDatabase: domain.WarehouseDuckDB,
		Tables: map[string]*domain.CompiledTable{
			"orders": {
				Name:     "orders",
				Label:    "Orders",
				SQLTable: "orders",
				Dimensions: map[string]*domain.CompiledDimension{
					"status": {Name: "status", Table: "orders", Label: "Status", Type: domain.DimensionString, SQL: "${TABLE}.status"},
				},
				Metrics: map[string]*domain.CompiledMetric{
					"count": {Name: "count", Table: "orders", Label: "Count", Type: domain.MetricCount, SQL: "${TABLE}.id"},
				},
			},
		},
	}
}

func setupApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	return setupAppWithLogger(t, slog.New(slog.DiscardHandler))
}

func setupAppWithLogger(t *testing.T, logger *slog.Logger) (*App, *httptest.Server) {
	t.Helper()

	duck, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	_, err = duck.Exec(`CREATE TABLE orders AS SELECT * FROM (VALUES (1, 'paid'), (2, 'paid'), (3, 'open')) t(id, status)`)
	require.NoError(t, err)

	writeDB, readDB := internaldb.OpenTestSQLite(t)
	cfg := &config.Config{
		UserIDHeader: "X-User-ID",
		Export:       config.ExportConfig{LocalDir: t.TempDir()},
	}

	a, err := New(t.Context(), Deps{
		Cfg:       cfg,
		WriteDB:   writeDB,
		ReadDB:    readDB,
		Warehouse: warehouse.NewSQLClient(duck, domain.WarehouseDuckDB, 0, logger),
		Logger:    logger,
	})
	require.NoError(t, err)
	require.NoError(t, a.Start())
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Router(t.Context()))
	t.Cleanup(srv.Close)
	return a, srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestApp_QueryAndExportOverHTTP(t *testing.T) {
	a, srv := setupApp(t)
	assert.False(t, a.Export.LocalDir() == "")

	resp := call(t, srv, http.MethodPut, "/api/v1/projects/p1/explores/orders", ordersExplore())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	query := map[string]any{
		"query": map[string]any{
			"dimensions": []string{"orders.status"},
			"metrics":    []string{"orders.count"},
			"filters":    map[string]any{},
			"sorts":      []map[string]any{{"fieldId": "orders.status"}},
		},
	}

	resp = call(t, srv, http.MethodPost, "/api/v1/projects/p1/explores/orders/run", query)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		SQL          string             `json:"query"`
		Rows         []domain.ResultRow `json:"rows"`
		TotalResults int                `json:"totalResults"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 2, page.TotalResults)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "open", page.Rows[0]["orders.status"].Value.Raw)
	assert.Equal(t, "paid", page.Rows[1]["orders.status"].Value.Raw)

	resp = call(t, srv, http.MethodPost, "/api/v1/projects/p1/explores/orders/export", query)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var file domain.CSVFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&file))
	assert.False(t, file.Truncated)
	require.True(t, strings.HasPrefix(file.Path, "/api/v1/csv/csv-orders-"), file.Path)

	resp = call(t, srv, http.MethodGet, file.Path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Status,Count", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "open,"))
	assert.True(t, strings.HasPrefix(lines[2], "paid,"))
}

func TestApp_SQLExportStreamsFromWarehouse(t *testing.T) {
	_, srv := setupApp(t)

	resp := call(t, srv, http.MethodPost, "/api/v1/sql/export", map[string]any{
		"sql":  "SELECT id, status FROM orders ORDER BY id",
		"name": "all orders",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var file domain.CSVFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&file))
	require.True(t, strings.HasPrefix(file.Filename, "csv-all_orders-"), file.Filename)

	resp = call(t, srv, http.MethodGet, file.Path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "id,status\n1,paid\n2,paid\n3,open\n", string(body))
}

func TestApp_UnknownWarehouseType(t *testing.T) {
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	_, err := New(t.Context(), Deps{
		Cfg:     &config.Config{Warehouse: config.WarehouseConfig{Type: "oracle"}},
		WriteDB: writeDB,
		ReadDB:  readDB,
	})
	var unsupported *domain.UnsupportedDialectError
	require.ErrorAs(t, err, &unsupported)
}

// lockedBuffer collects log output written from server goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestApp_LogLinesCarryOneComponent(t *testing.T) {
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, srv := setupAppWithLogger(t, logger)

	resp := call(t, srv, http.MethodPost, "/api/v1/sql/export", map[string]any{
		"sql":  "SELECT id, status FROM orders ORDER BY id",
		"name": "all orders",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	components := map[string]bool{}
	for _, line := range logs.Lines() {
		if line == "" {
			continue
		}
		require.LessOrEqual(t, strings.Count(line, `"component":`), 1, line)
		var entry struct {
			Component string `json:"component"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		components[entry.Component] = true
	}
	assert.True(t, components["export"], "export service logs %v", components)
}
