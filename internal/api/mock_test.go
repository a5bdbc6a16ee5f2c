package api

import (
	"context"
	"os"

	"metricql/internal/domain"
	"metricql/internal/service/export"
	"metricql/internal/service/format"
	"metricql/internal/service/semantic"
)

type mockSemanticService struct {
	saveExploreFn   func(ctx context.Context, projectID string, explore *domain.Explore) error
	getExploreFn    func(ctx context.Context, userID, projectID, name string) (*domain.Explore, error)
	listExploresFn  func(ctx context.Context, projectID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error)
	deleteExploreFn func(ctx context.Context, projectID, name string) error
	compileQueryFn  func(ctx context.Context, userID string, req semantic.QueryRequest) (*semantic.CompiledMetricQuery, error)
	runQueryFn      func(ctx context.Context, userID string, req semantic.QueryRequest, page domain.PageRequest, opts format.Options) (*semantic.QueryResult, error)
	runQueryRowsFn  func(ctx context.Context, userID string, req semantic.QueryRequest) (*semantic.QueryRows, error)
}

func (m *mockSemanticService) SaveExplore(ctx context.Context, projectID string, explore *domain.Explore) error {
	if m.saveExploreFn != nil {
		return m.saveExploreFn(ctx, projectID, explore)
	}
	panic("SaveExplore not implemented")
}

func (m *mockSemanticService) GetExplore(ctx context.Context, userID, projectID, name string) (*domain.Explore, error) {
	if m.getExploreFn != nil {
		return m.getExploreFn(ctx, userID, projectID, name)
	}
	panic("GetExplore not implemented")
}

func (m *mockSemanticService) ListExplores(ctx context.Context, projectID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error) {
	if m.listExploresFn != nil {
		return m.listExploresFn(ctx, projectID, page)
	}
	panic("ListExplores not implemented")
}

func (m *mockSemanticService) DeleteExplore(ctx context.Context, projectID, name string) error {
	if m.deleteExploreFn != nil {
		return m.deleteExploreFn(ctx, projectID, name)
	}
	panic("DeleteExplore not implemented")
}

func (m *mockSemanticService) CompileQuery(ctx context.Context, userID string, req semantic.QueryRequest) (*semantic.CompiledMetricQuery, error) {
	if m.compileQueryFn != nil {
		return m.compileQueryFn(ctx, userID, req)
	}
	panic("CompileQuery not implemented")
}

func (m *mockSemanticService) RunQuery(ctx context.Context, userID string, req semantic.QueryRequest, page domain.PageRequest, opts format.Options) (*semantic.QueryResult, error) {
	if m.runQueryFn != nil {
		return m.runQueryFn(ctx, userID, req, page, opts)
	}
	panic("RunQuery not implemented")
}

func (m *mockSemanticService) RunQueryRows(ctx context.Context, userID string, req semantic.QueryRequest) (*semantic.QueryRows, error) {
	if m.runQueryRowsFn != nil {
		return m.runQueryRowsFn(ctx, userID, req)
	}
	panic("RunQueryRows not implemented")
}

type mockExportService struct {
	exportFn    func(ctx context.Context, rows []domain.Row, fields map[string]domain.Item, opts export.CSVOptions) (*domain.CSVFile, error)
	exportSQLFn func(ctx context.Context, client domain.WarehouseClient, sql string, opts export.CSVOptions) (*domain.CSVFile, error)
	openLocalFn func(fileID string) (*os.File, error)
}

func (m *mockExportService) Export(ctx context.Context, rows []domain.Row, fields map[string]domain.Item, opts export.CSVOptions) (*domain.CSVFile, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, rows, fields, opts)
	}
	panic("Export not implemented")
}

func (m *mockExportService) ExportSQL(ctx context.Context, client domain.WarehouseClient, sql string, opts export.CSVOptions) (*domain.CSVFile, error) {
	if m.exportSQLFn != nil {
		return m.exportSQLFn(ctx, client, sql, opts)
	}
	panic("ExportSQL not implemented")
}

func (m *mockExportService) OpenLocal(fileID string) (*os.File, error) {
	if m.openLocalFn != nil {
		return m.openLocalFn(fileID)
	}
	panic("OpenLocal not implemented")
}

// memoryAttributes is an in-memory UserAttributeRepository.
type memoryAttributes struct {
	values map[string]domain.UserAttributeValueMap
}

func newMemoryAttributes() *memoryAttributes {
	return &memoryAttributes{values: map[string]domain.UserAttributeValueMap{}}
}

func (m *memoryAttributes) GetUserAttributes(_ context.Context, userID string) (domain.UserAttributeValueMap, error) {
	return m.values[userID], nil
}

func (m *memoryAttributes) SetUserAttribute(_ context.Context, userID, name, value string) error {
	if m.values[userID] == nil {
		m.values[userID] = domain.UserAttributeValueMap{}
	}
	m.values[userID][name] = value
	return nil
}

func (m *memoryAttributes) DeleteUserAttribute(_ context.Context, userID, name string) error {
	if _, ok := m.values[userID][name]; !ok {
		return domain.ErrNotFound("attribute %q not found for user %q", name, userID)
	}
	delete(m.values[userID], name)
	return nil
}

// stubWarehouse satisfies domain.WarehouseClient for handlers that only pass
// the client through.
type stubWarehouse struct {
	domain.WarehouseClient
}
