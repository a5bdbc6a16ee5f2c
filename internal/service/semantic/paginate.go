package semantic

import "metricql/internal/domain"

// Paginate returns one page of rows.
func Paginate(rows []domain.ResultRow, page domain.PageRequest) domain.ResultsPage {
	size := page.Limit()
	out := domain.ResultsPage{
		Rows:           []domain.ResultRow{},
		Page:           page.Number(),
		PageSize:       size,
		TotalResults:   len(rows),
		TotalPageCount: domain.PageCount(len(rows), size),
	}
	start := page.Offset()
	if start >= len(rows) {
		return out
	}
	end := min(start+size, len(rows))
	out.Rows = rows[start:end]
	return out
}
