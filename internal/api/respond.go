package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"metricql/internal/domain"
	"metricql/internal/middleware"
)

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes the JSON error body.
// Internal errors are logged and their message is not exposed.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.With(middleware.LogAttrs(r.Context())...).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBodyFor(status, err))
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrValidation("request body is required")
		}
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// pageRequest reads the page and pageSize query parameters.
func pageRequest(r *http.Request) (domain.PageRequest, error) {
	var page domain.PageRequest
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page, domain.ErrValidation("page must be a positive integer")
		}
		page.Page = n
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page, domain.ErrValidation("pageSize must be a positive integer")
		}
		page.PageSize = n
	}
	return page, nil
}
