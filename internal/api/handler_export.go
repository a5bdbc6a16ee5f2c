package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"metricql/internal/domain"
	"metricql/internal/middleware"
	"metricql/internal/service/export"
)

// ExportQuery handles POST /projects/{projectId}/explores/{exploreName}/export.
// The query runs in full and its rows are written to a CSV file.
func (h *Handler) ExportQuery(w http.ResponseWriter, r *http.Request) {
	userID, body, ok := h.readQuery(w, r)
	if !ok {
		return
	}
	req := body.request(r)
	rows, err := h.semantic.RunQueryRows(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	opts := body.CSV
	if len(opts.Columns) == 0 {
		opts.Columns = rows.Compiled.Columns
	}
	if opts.Name == "" {
		opts.Name = req.Query.ExploreName
	}
	file, err := h.exports.Export(r.Context(), rows.Rows, rows.Compiled.Fields, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.With(middleware.LogAttrs(r.Context())...).Info("csv exported", "explore", req.Query.ExploreName,
		"rows", len(rows.Rows), "file", file.Filename, "truncated", file.Truncated)
	writeJSON(w, http.StatusOK, file)
}

type sqlExportBody struct {
	SQL     string `json:"sql"`
	Name    string `json:"name,omitempty"`
	OnlyRaw bool   `json:"onlyRaw,omitempty"`
}

// ExportSQL handles POST /sql/export. The SQL is streamed from the warehouse
// straight into a CSV file.
func (h *Handler) ExportSQL(w http.ResponseWriter, r *http.Request) {
	var body sqlExportBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.SQL == "" {
		h.writeError(w, r, domain.ErrValidation("sql is required"))
		return
	}
	if h.warehouse == nil {
		h.writeError(w, r, fmt.Errorf("warehouse client is not configured"))
		return
	}
	name := body.Name
	if name == "" {
		name = "sql_query"
	}
	file, err := h.exports.ExportSQL(r.Context(), h.warehouse, body.SQL, export.CSVOptions{Name: name, OnlyRaw: body.OnlyRaw})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.With(middleware.LogAttrs(r.Context())...).Info("sql csv exported", "file", file.Filename, "truncated", file.Truncated)
	writeJSON(w, http.StatusOK, file)
}

// DownloadCSV handles GET /csv/{fileId} for exports kept on local disk.
func (h *Handler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	f, err := h.exports.OpenLocal(fileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileID))
	http.ServeContent(w, r, fileID, info.ModTime(), f)
}
