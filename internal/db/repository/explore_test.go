package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "metricql/internal/db"
	"metricql/internal/domain"
)

func testExplore(name string) *domain.Explore {
	return &domain.Explore{
		Name:           name,
		Label:          "Orders",
		BaseTable:      "orders",
		TargetDatabase: domain.WarehousePostgres,
		Tables: map[string]*domain.CompiledTable{
			"orders": {
				Name:     "orders",
				SQLTable: "public.orders",
				SQLWhere: "${TABLE}.region = ${attributes.region}",
				Dimensions: map[string]*domain.CompiledDimension{
					"status": {Name: "status", Table: "orders", Type: domain.DimensionString, SQL: "${TABLE}.status",
						RequiredAttributes: map[string]string{"tier": "gold"}},
				},
				Metrics: map[string]*domain.CompiledMetric{
					"count": {Name: "count", Table: "orders", Type: domain.MetricCount, SQL: "${TABLE}.id"},
				},
			},
		},
	}
}

func TestExploreRepo_SaveAndGet(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := NewExploreRepo(writeDB)
	ctx := context.Background()

	want := testExplore("orders")
	require.NoError(t, repo.SaveExplore(ctx, "p1", want))

	got, err := repo.GetExplore(ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = repo.GetExplore(ctx, "p2", "orders")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestExploreRepo_SaveReplaces(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := NewExploreRepo(writeDB)
	ctx := context.Background()

	require.NoError(t, repo.SaveExplore(ctx, "p1", testExplore("orders")))
	updated := testExplore("orders")
	updated.Label = "All orders"
	updated.TargetDatabase = domain.WarehouseDuckDB
	require.NoError(t, repo.SaveExplore(ctx, "p1", updated))

	got, err := repo.GetExplore(ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, "All orders", got.Label)

	list, total, err := repo.ListExplores(ctx, "p1", domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, domain.WarehouseDuckDB, list[0].TargetDatabase)
	assert.False(t, list[0].UpdatedAt.IsZero())
}

func TestExploreRepo_ListPaginates(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := NewExploreRepo(writeDB)
	ctx := context.Background()

	for i := 5; i >= 1; i-- {
		require.NoError(t, repo.SaveExplore(ctx, "p1", testExplore(fmt.Sprintf("explore_%d", i))))
	}
	require.NoError(t, repo.SaveExplore(ctx, "p2", testExplore("other")))

	page, total, err := repo.ListExplores(ctx, "p1", domain.PageRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "explore_3", page[0].Name)
	assert.Equal(t, "explore_4", page[1].Name)
	assert.Equal(t, "p1", page[0].ProjectID)
	assert.NotEmpty(t, page[0].ID)

	empty, total, err := repo.ListExplores(ctx, "missing", domain.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestExploreRepo_Delete(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := NewExploreRepo(writeDB)
	ctx := context.Background()

	require.NoError(t, repo.SaveExplore(ctx, "p1", testExplore("orders")))
	require.NoError(t, repo.DeleteExplore(ctx, "p1", "orders"))

	var notFound *domain.NotFoundError
	_, err := repo.GetExplore(ctx, "p1", "orders")
	require.ErrorAs(t, err, &notFound)
	require.ErrorAs(t, repo.DeleteExplore(ctx, "p1", "orders"), &notFound)
}
