package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"metricql/internal/domain"
	"metricql/internal/middleware"
)

type listExploresResponse struct {
	Data     []domain.ExploreSummary `json:"data"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
	Total    int64                   `json:"total"`
}

// ListExplores handles GET /projects/{projectId}/explores.
func (h *Handler) ListExplores(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.semantic.ListExplores(r.Context(), chi.URLParam(r, "projectId"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.ExploreSummary{}
	}
	writeJSON(w, http.StatusOK, listExploresResponse{
		Data:     items,
		Page:     page.Number(),
		PageSize: page.Limit(),
		Total:    total,
	})
}

// SaveExplore handles PUT /projects/{projectId}/explores/{exploreName}.
func (h *Handler) SaveExplore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "exploreName")
	var explore domain.Explore
	if err := decodeJSON(r, &explore); err != nil {
		h.writeError(w, r, err)
		return
	}
	if explore.Name == "" {
		explore.Name = name
	}
	if explore.Name != name {
		h.writeError(w, r, domain.ErrValidation("explore name %q does not match path %q", explore.Name, name))
		return
	}
	if err := h.semantic.SaveExplore(r.Context(), chi.URLParam(r, "projectId"), &explore); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &explore)
}

// GetExplore handles GET /projects/{projectId}/explores/{exploreName}. Tables
// the user may not see are removed.
func (h *Handler) GetExplore(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	explore, err := h.semantic.GetExplore(r.Context(), userID, chi.URLParam(r, "projectId"), chi.URLParam(r, "exploreName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explore)
}

// DeleteExplore handles DELETE /projects/{projectId}/explores/{exploreName}.
func (h *Handler) DeleteExplore(w http.ResponseWriter, r *http.Request) {
	if err := h.semantic.DeleteExplore(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "exploreName")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
