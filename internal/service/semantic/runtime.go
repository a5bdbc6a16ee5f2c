package semantic

import (
	"context"
	"fmt"
	"strings"

	"metricql/internal/domain"
	"metricql/internal/service/format"
)

// SetWarehouse wires the warehouse client queries run against.
func (s *Service) SetWarehouse(client domain.WarehouseClient) {
	s.warehouse = client
}

// RunQueryRows compiles and executes a query. Rows are re-keyed from column
// aliases to field ids.
func (s *Service) RunQueryRows(ctx context.Context, userID string, req QueryRequest) (*QueryRows, error) {
	if s.warehouse == nil {
		return nil, fmt.Errorf("semantic warehouse client is not configured")
	}
	compiled, err := s.CompileQuery(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	results, err := s.warehouse.RunQuery(ctx, compiled.SQL)
	if err != nil {
		s.logger.Warn("metric query failed", "explore", req.Query.ExploreName, "error", err)
		return nil, fmt.Errorf("run metric query: %w", err)
	}
	return &QueryRows{Compiled: compiled, Rows: RekeyRows(results.Rows, compiled.Aliases)}, nil
}

// RunQuery executes a query and returns one formatted page of results.
func (s *Service) RunQuery(ctx context.Context, userID string, req QueryRequest, page domain.PageRequest, opts format.Options) (*QueryResult, error) {
	rows, err := s.RunQueryRows(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	formatted := format.FormatRows(rows.Rows, rows.Compiled.Fields, opts)
	return &QueryResult{
		SQL:         rows.Compiled.SQL,
		Fields:      rows.Compiled.Fields,
		ResultsPage: Paginate(formatted, page),
	}, nil
}

// RekeyRows maps warehouse rows keyed by column alias to rows keyed by field
// id. Aliases are matched case-insensitively when the exact key is missing.
func RekeyRows(rows []domain.Row, aliases map[string]string) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, raw := range rows {
		row := make(domain.Row, len(aliases))
		for id, alias := range aliases {
			if v, ok := raw[alias]; ok {
				row[id] = v
				continue
			}
			for k, v := range raw {
				if strings.EqualFold(k, alias) {
					row[id] = v
					break
				}
			}
		}
		out[i] = row
	}
	return out
}
