package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricql/internal/domain"
	"metricql/internal/service/export"
	"metricql/internal/service/format"
	"metricql/internal/service/semantic"
)

type testServer struct {
	semantic   *mockSemanticService
	exports    *mockExportService
	attributes *memoryAttributes
	warehouse  domain.WarehouseClient
}

func newTestServer() *testServer {
	return &testServer{
		semantic:   &mockSemanticService{},
		exports:    &mockExportService{},
		attributes: newMemoryAttributes(),
		warehouse:  stubWarehouse{},
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(s.semantic, s.exports, s.attributes, s.warehouse, slog.New(slog.DiscardHandler))
	router := NewRouter(t.Context(), h, RouterConfig{})

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth_NoIdentityRequired(t *testing.T) {
	h := NewHandler(&mockSemanticService{}, &mockExportService{}, newMemoryAttributes(), nil, nil)
	router := NewRouter(t.Context(), h, RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_RequiresUserHeader(t *testing.T) {
	h := NewHandler(&mockSemanticService{}, &mockExportService{}, newMemoryAttributes(), nil, nil)
	router := NewRouter(t.Context(), h, RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects/p1/explores", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListExplores_PassesPagination(t *testing.T) {
	srv := newTestServer()
	srv.semantic.listExploresFn = func(_ context.Context, projectID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error) {
		assert.Equal(t, "p1", projectID)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 10, page.PageSize)
		return []domain.ExploreSummary{{ID: "e1", ProjectID: "p1", Name: "orders"}}, 11, nil
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/projects/p1/explores?page=2&pageSize=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[listExploresResponse](t, rec)
	assert.Equal(t, int64(11), resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 10, resp.PageSize)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "orders", resp.Data[0].Name)
}

func TestListExplores_InvalidPage(t *testing.T) {
	srv := newTestServer()
	rec := srv.do(t, http.MethodGet, "/api/v1/projects/p1/explores?page=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, http.StatusBadRequest, body.Code)
	assert.Contains(t, body.Message, "page")
}

func TestSaveExplore(t *testing.T) {
	t.Run("name defaults to path", func(t *testing.T) {
		srv := newTestServer()
		var saved *domain.Explore
		srv.semantic.saveExploreFn = func(_ context.Context, projectID string, explore *domain.Explore) error {
			assert.Equal(t, "p1", projectID)
			saved = explore
			return nil
		}

		rec := srv.do(t, http.MethodPut, "/api/v1/projects/p1/explores/orders",
			`{"baseTable":"orders","tables":{"orders":{"name":"orders","sqlTable":"public.orders"}},"targetDatabase":"postgres"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotNil(t, saved)
		assert.Equal(t, "orders", saved.Name)
		assert.Equal(t, domain.WarehousePostgres, saved.TargetDatabase)
	})

	t.Run("name mismatch", func(t *testing.T) {
		srv := newTestServer()
		rec := srv.do(t, http.MethodPut, "/api/v1/projects/p1/explores/orders", `{"name":"customers"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		srv := newTestServer()
		rec := srv.do(t, http.MethodPut, "/api/v1/projects/p1/explores/orders", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody[errorBody](t, rec).Message, "required")
	})

	t.Run("validation error from service", func(t *testing.T) {
		srv := newTestServer()
		srv.semantic.saveExploreFn = func(context.Context, string, *domain.Explore) error {
			return domain.ErrValidation("explore %q has no base table", "orders")
		}
		rec := srv.do(t, http.MethodPut, "/api/v1/projects/p1/explores/orders", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetExplore_UsesRequestingUser(t *testing.T) {
	srv := newTestServer()
	srv.semantic.getExploreFn = func(_ context.Context, userID, projectID, name string) (*domain.Explore, error) {
		assert.Equal(t, "alice", userID)
		assert.Equal(t, "p1", projectID)
		assert.Equal(t, "orders", name)
		return &domain.Explore{Name: "orders", BaseTable: "orders"}, nil
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/projects/p1/explores/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "orders", decodeBody[domain.Explore](t, rec).BaseTable)
}

func TestGetExplore_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", domain.ErrNotFound("explore %q not found", "orders"), http.StatusNotFound},
		{"access denied", domain.ErrAccessDenied("no access"), http.StatusForbidden},
		{"internal", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer()
			srv.semantic.getExploreFn = func(context.Context, string, string, string) (*domain.Explore, error) {
				return nil, tt.err
			}
			rec := srv.do(t, http.MethodGet, "/api/v1/projects/p1/explores/orders", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, decodeBody[errorBody](t, rec).Code)
		})
	}
}

func TestDeleteExplore(t *testing.T) {
	srv := newTestServer()
	called := false
	srv.semantic.deleteExploreFn = func(_ context.Context, projectID, name string) error {
		called = true
		assert.Equal(t, "p1", projectID)
		assert.Equal(t, "orders", name)
		return nil
	}
	rec := srv.do(t, http.MethodDelete, "/api/v1/projects/p1/explores/orders", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, called)
}

func TestCompileQuery_BuildsRequestFromPath(t *testing.T) {
	srv := newTestServer()
	srv.semantic.compileQueryFn = func(_ context.Context, userID string, req semantic.QueryRequest) (*semantic.CompiledMetricQuery, error) {
		assert.Equal(t, "alice", userID)
		assert.Equal(t, "p1", req.ProjectID)
		assert.Equal(t, "orders", req.Query.ExploreName)
		assert.Equal(t, []string{"orders.status"}, req.Query.Dimensions)
		assert.Equal(t, "tile-1", req.TileID)
		require.NotNil(t, req.Query.Filters.Dimensions)
		require.Len(t, req.Query.Filters.Dimensions.Rules(), 1)
		assert.Equal(t, domain.OpEquals, req.Query.Filters.Dimensions.Rules()[0].Operator)
		return &semantic.CompiledMetricQuery{SQL: "SELECT 1", Columns: []string{"orders.status"}}, nil
	}

	rec := srv.do(t, http.MethodPost, "/api/v1/projects/p1/explores/orders/compile", `{
		"query": {
			"exploreName": "ignored",
			"dimensions": ["orders.status"],
			"metrics": [],
			"filters": {"dimensions": {"id": "g", "and": [
				{"id": "r", "target": {"fieldId": "orders.status"}, "operator": "equals", "values": ["paid"]}
			]}}
		},
		"tileId": "tile-1"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SELECT 1", decodeBody[semantic.CompiledMetricQuery](t, rec).SQL)
}

func TestCompileQuery_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		fieldID string
	}{
		{"unknown field", domain.ErrUnknownField("orders.nope"), http.StatusBadRequest, "orders.nope"},
		{"unsupported operator", domain.ErrUnsupportedOperator(domain.OpInThePast, "not on strings"), http.StatusBadRequest, ""},
		{"missing join", domain.ErrMissingJoin("users", "table %q is not joined", "users"), http.StatusUnprocessableEntity, ""},
		{"unsupported dialect", domain.ErrUnsupportedDialect("oracle"), http.StatusUnprocessableEntity, ""},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer()
			srv.semantic.compileQueryFn = func(context.Context, string, semantic.QueryRequest) (*semantic.CompiledMetricQuery, error) {
				return nil, tt.err
			}
			rec := srv.do(t, http.MethodPost, "/api/v1/projects/p1/explores/orders/compile", `{"query":{}}`)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody[errorBody](t, rec)
			assert.Equal(t, tt.fieldID, body.FieldID)
			assert.Equal(t, tt.err.Error(), body.Message)
		})
	}
}

func TestCompileQuery_InvalidFilterJSON(t *testing.T) {
	srv := newTestServer()
	rec := srv.do(t, http.MethodPost, "/api/v1/projects/p1/explores/orders/compile",
		`{"query":{"filters":{"dimensions":{"id":"g"}}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Message, "and/or")
}

func TestRunQuery_PassesPageAndFormat(t *testing.T) {
	srv := newTestServer()
	srv.semantic.runQueryFn = func(_ context.Context, _ string, req semantic.QueryRequest, page domain.PageRequest, opts format.Options) (*semantic.QueryResult, error) {
		assert.Equal(t, "orders", req.Query.ExploreName)
		assert.Equal(t, domain.PageRequest{Page: 3, PageSize: 25}, page)
		assert.True(t, opts.OnlyRaw)
		return &semantic.QueryResult{
			SQL: "SELECT 1",
			ResultsPage: domain.ResultsPage{
				Rows:           []domain.ResultRow{{"orders.status": {Value: domain.ResultValue{Raw: "paid", Formatted: "paid"}}}},
				Page:           3,
				PageSize:       25,
				TotalResults:   51,
				TotalPageCount: 3,
			},
		}, nil
	}

	rec := srv.do(t, http.MethodPost, "/api/v1/projects/p1/explores/orders/run?page=3&pageSize=25", `{"query":{},"onlyRaw":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SELECT 1", resp["query"])
	assert.EqualValues(t, 51, resp["totalResults"])
	assert.EqualValues(t, 3, resp["totalPageCount"])
}

func TestExportQuery_DefaultsColumnsAndName(t *testing.T) {
	srv := newTestServer()
	fields := map[string]domain.Item{"orders.status": {ID: "orders.status", Label: "Status"}}
	rows := []domain.Row{{"orders.status": "paid"}}
	srv.semantic.runQueryRowsFn = func(context.Context, string, semantic.QueryRequest) (*semantic.QueryRows, error) {
		return &semantic.QueryRows{
			Compiled: &semantic.CompiledMetricQuery{Columns: []string{"orders.status"}, Fields: fields},
			Rows:     rows,
		}, nil
	}
	srv.exports.exportFn = func(_ context.Context, gotRows []domain.Row, gotFields map[string]domain.Item, opts export.CSVOptions) (*domain.CSVFile, error) {
		assert.Equal(t, rows, gotRows)
		assert.Equal(t, fields, gotFields)
		assert.Equal(t, []string{"orders.status"}, opts.Columns)
		assert.Equal(t, "orders", opts.Name)
		assert.True(t, opts.ShowTableNames)
		return &domain.CSVFile{Path: "/api/v1/csv/csv-orders.csv", Filename: "csv-orders.csv"}, nil
	}

	rec := srv.do(t, http.MethodPost, "/api/v1/projects/p1/explores/orders/export", `{"query":{},"csv":{"showTableNames":true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "csv-orders.csv", decodeBody[domain.CSVFile](t, rec).Filename)
}

func TestExportQuery_KeepsRequestedColumns(t *testing.T) {
	srv := newTestServer()
	srv.semantic.runQueryRowsFn = func(context.Context, string, semantic.QueryRequest) (*semantic.QueryRows, error) {
		return &semantic.QueryRows{Compiled: &semantic.CompiledMetricQuery{Columns: []string{"a", "b"}}}, nil
	}
	srv.exports.exportFn = func(_ context.Context, _ []domain.Row, _ map[string]domain.Item, opts export.CSVOptions) (*domain.CSVFile, error) {
		assert.Equal(t, []string{"b"}, opts.Columns)
		assert.Equal(t, "My chart", opts.Name)
		return &domain.CSVFile{}, nil
	}

	rec := srv.do(t, http.MethodPost, "/api/v1/projects/p1/explores/orders/export", `{"query":{},"csv":{"name":"My chart","columns":["b"]}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportSQL(t *testing.T) {
	t.Run("streams through the warehouse", func(t *testing.T) {
		srv := newTestServer()
		srv.exports.exportSQLFn = func(_ context.Context, client domain.WarehouseClient, sql string, opts export.CSVOptions) (*domain.CSVFile, error) {
			assert.Equal(t, srv.warehouse, client)
			assert.Equal(t, "SELECT * FROM orders", sql)
			assert.Equal(t, "sql_query", opts.Name)
			return &domain.CSVFile{Filename: "csv-sql_query.csv"}, nil
		}
		rec := srv.do(t, http.MethodPost, "/api/v1/sql/export", `{"sql":"SELECT * FROM orders"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "csv-sql_query.csv", decodeBody[domain.CSVFile](t, rec).Filename)
	})

	t.Run("sql required", func(t *testing.T) {
		srv := newTestServer()
		rec := srv.do(t, http.MethodPost, "/api/v1/sql/export", `{"sql":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no warehouse", func(t *testing.T) {
		srv := newTestServer()
		srv.warehouse = nil
		rec := srv.do(t, http.MethodPost, "/api/v1/sql/export", `{"sql":"SELECT 1"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal error", decodeBody[errorBody](t, rec).Message)
	})
}

func TestDownloadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csv-orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("Status\npaid\n"), 0o600))

	srv := newTestServer()
	srv.exports.openLocalFn = func(fileID string) (*os.File, error) {
		if fileID != "csv-orders.csv" {
			return nil, domain.ErrNotFound("csv file %q not found", fileID)
		}
		return os.Open(path)
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/csv/csv-orders.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="csv-orders.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Status\npaid\n", rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/v1/csv/csv-missing.csv", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserAttributes_Lifecycle(t *testing.T) {
	srv := newTestServer()

	rec := srv.do(t, http.MethodGet, "/api/v1/users/bob/attributes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = srv.do(t, http.MethodPut, "/api/v1/users/bob/attributes/region", `{"value":"EU"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/users/bob/attributes", "")
	assert.JSONEq(t, `{"region":"EU"}`, rec.Body.String())

	rec = srv.do(t, http.MethodPut, "/api/v1/users/bob/attributes/region", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/v1/users/bob/attributes/region", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/v1/users/bob/attributes/region", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
