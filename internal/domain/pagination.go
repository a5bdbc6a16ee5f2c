package domain

// DefaultPageSize is the page size when none is specified.
const DefaultPageSize = 500

// MaxPageSize is the largest allowed page size.
const MaxPageSize = 5000

// PageRequest holds 1-based page-number pagination parameters.
type PageRequest struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`
}

// Limit returns the effective page size, clamped to [1, MaxPageSize].
func (p PageRequest) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// Number returns the effective page number; pages below 1 are treated as 1.
func (p PageRequest) Number() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

// Offset returns the index of the first item of the page.
func (p PageRequest) Offset() int {
	return (p.Number() - 1) * p.Limit()
}

// PageCount returns how many pages of the given size hold total items.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ResultsPage is one page of formatted rows.
type ResultsPage struct {
	Rows           []ResultRow `json:"rows"`
	Page           int         `json:"page"`
	PageSize       int         `json:"pageSize"`
	TotalResults   int         `json:"totalResults"`
	TotalPageCount int         `json:"totalPageCount"`
}
