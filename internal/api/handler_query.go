package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"metricql/internal/domain"
	"metricql/internal/middleware"
	"metricql/internal/service/export"
	"metricql/internal/service/format"
	"metricql/internal/service/semantic"
)

// queryBody is the request body of the compile, run and export endpoints.
// The explore name and project come from the path.
type queryBody struct {
	Query            domain.MetricQuery       `json:"query"`
	DashboardFilters *domain.DashboardFilters `json:"dashboardFilters,omitempty"`
	TileID           string                   `json:"tileId,omitempty"`
	OnlyRaw          bool                     `json:"onlyRaw,omitempty"`
	CSV              export.CSVOptions        `json:"csv"`
}

func (b queryBody) request(r *http.Request) semantic.QueryRequest {
	q := b.Query
	q.ExploreName = chi.URLParam(r, "exploreName")
	return semantic.QueryRequest{
		ProjectID:        chi.URLParam(r, "projectId"),
		Query:            q,
		DashboardFilters: b.DashboardFilters,
		TileID:           b.TileID,
	}
}

func (h *Handler) readQuery(w http.ResponseWriter, r *http.Request) (string, queryBody, bool) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var body queryBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return "", body, false
	}
	return userID, body, true
}

// CompileQuery handles POST /projects/{projectId}/explores/{exploreName}/compile.
func (h *Handler) CompileQuery(w http.ResponseWriter, r *http.Request) {
	userID, body, ok := h.readQuery(w, r)
	if !ok {
		return
	}
	compiled, err := h.semantic.CompileQuery(r.Context(), userID, body.request(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compiled)
}

// RunQuery handles POST /projects/{projectId}/explores/{exploreName}/run.
// Pagination comes from the page and pageSize query parameters.
func (h *Handler) RunQuery(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	userID, body, ok := h.readQuery(w, r)
	if !ok {
		return
	}
	result, err := h.semantic.RunQuery(r.Context(), userID, body.request(r), page, format.Options{OnlyRaw: body.OnlyRaw})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
