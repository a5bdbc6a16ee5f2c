package semantic

import (
	"time"

	"metricql/internal/domain"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

func dim(table, name string, typ domain.DimensionType, sql string) *domain.CompiledDimension {
	return &domain.CompiledDimension{Name: name, Table: table, Type: typ, SQL: sql}
}

func metric(table, name string, typ domain.MetricType, sql string) *domain.CompiledMetric {
	return &domain.CompiledMetric{Name: name, Table: table, Type: typ, SQL: sql}
}

// ordersExplore is orders joined to customers, and customers joined to regions.
func ordersExplore() *domain.Explore {
	secret := dim("customers", "email", domain.DimensionString, "${TABLE}.email")
	secret.RequiredAttributes = map[string]string{"tier": "gold"}

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
					"id":          dim("orders", "id", domain.DimensionNumber, "${TABLE}.id"),
					"status":      dim("orders", "status", domain.DimensionString, "${TABLE}.status"),
					"customer_id": dim("orders", "customer_id", domain.DimensionNumber, "${TABLE}.customer_id"),
					"amount":      dim("orders", "amount", domain.DimensionNumber, "${TABLE}.amount"),
					"created":     dim("orders", "created", domain.DimensionTimestamp, "${TABLE}.created"),
					"shipped":     dim("orders", "shipped", domain.DimensionDate, "${TABLE}.shipped"),
					"is_gift":     dim("orders", "is_gift", domain.DimensionBoolean, "${TABLE}.is_gift"),
					"created_month": {
						Name: "created_month", Table: "orders", Type: domain.DimensionTimestamp,
						SQL: "${TABLE}.created", TimeInterval: domain.IntervalMonth,
					},
				},
				Metrics: map[string]*domain.CompiledMetric{
					"count":        metric("orders", "count", domain.MetricCount, "${TABLE}.id"),
					"total_amount": metric("orders", "total_amount", domain.MetricSum, "${amount}"),
					"avg_amount":   metric("orders", "avg_amount", domain.MetricNumber, "${total_amount} / NULLIF(${count}, 0)"),
				},
			},
			"customers": {
				Name:     "customers",
				Label:    "Customers",
				SQLTable: "customers",
				Dimensions: map[string]*domain.CompiledDimension{
					"id":        dim("customers", "id", domain.DimensionNumber, "${TABLE}.id"),
					"country":   dim("customers", "country", domain.DimensionString, "${TABLE}.country"),
					"region_id": dim("customers", "region_id", domain.DimensionNumber, "${TABLE}.region_id"),
					"email":     secret,
				},
				Metrics: map[string]*domain.CompiledMetric{
					"unique_customers": metric("customers", "unique_customers", domain.MetricCountDistinct, "${TABLE}.id"),
				},
			},
			"regions": {
				Name:     "regions",
				SQLTable: "regions",
				Dimensions: map[string]*domain.CompiledDimension{
					"id":   dim("regions", "id", domain.DimensionNumber, "${TABLE}.id"),
					"name": dim("regions", "name", domain.DimensionString, "${TABLE}.name"),
				},
				Metrics: map[string]*domain.CompiledMetric{},
			},
		},
		JoinedTables: []domain.CompiledExploreJoin{
			{Table: "customers", SQLOn: "${orders.customer_id} = ${customers.id}"},
			{Table: "regions", SQLOn: "${customers.region_id} = ${regions.id}"},
		},
	}
}

func rule(id, field string, op domain.ConditionalOperator, values ...any) *domain.FilterRule {
	return &domain.FilterRule{ID: id, Target: domain.FilterTarget{FieldID: field}, Operator: op, Values: values}
}

func disabled(r *domain.FilterRule) *domain.FilterRule {
	r.Disabled = true
	return r
}

func compileOpts() CompileOptions {
	return CompileOptions{Now: testNow}
}
