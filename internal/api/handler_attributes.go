package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"metricql/internal/domain"
)

// GetUserAttributes handles GET /users/{userId}/attributes.
func (h *Handler) GetUserAttributes(w http.ResponseWriter, r *http.Request) {
	attrs, err := h.attributes.GetUserAttributes(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if attrs == nil {
		attrs = domain.UserAttributeValueMap{}
	}
	writeJSON(w, http.StatusOK, attrs)
}

type attributeBody struct {
	Value *string `json:"value"`
}

// SetUserAttribute handles PUT /users/{userId}/attributes/{name}.
func (h *Handler) SetUserAttribute(w http.ResponseWriter, r *http.Request) {
	var body attributeBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Value == nil {
		h.writeError(w, r, domain.ErrValidation("value is required"))
		return
	}
	userID, name := chi.URLParam(r, "userId"), chi.URLParam(r, "name")
	if err := h.attributes.SetUserAttribute(r.Context(), userID, name, *body.Value); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUserAttribute handles DELETE /users/{userId}/attributes/{name}.
func (h *Handler) DeleteUserAttribute(w http.ResponseWriter, r *http.Request) {
	if err := h.attributes.DeleteUserAttribute(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
