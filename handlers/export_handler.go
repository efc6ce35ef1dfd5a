package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/elo-arena/services"
)

type ExportHandler struct {
	exportService services.ExportService
	errorReporter
}

func NewExportHandler(es services.ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exportService: es,
		errorReporter: newErrorReporter(logger),
	}
}

// ExportHandler обрабатывает GET /projects/{projectID}/export
func (h *ExportHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	entries, err := h.exportService.ExportRankings(r.Context(), ownerID, projectID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	headers := http.Header{}
	if r.URL.Query().Get("download") != "" {
		headers.Set("Content-Disposition", `attachment; filename="rankings.json"`)
	}
	if err := writeJSON(w, http.StatusOK, entries, headers); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// ArchiveHandler обрабатывает POST /projects/{projectID}/export/archive
func (h *ExportHandler) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	archive, err := h.exportService.ArchiveRankings(r.Context(), ownerID, projectID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"archive": archive}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// DeleteArchiveHandler обрабатывает DELETE /projects/{projectID}/export/archive/{archiveName}
func (h *ExportHandler) DeleteArchiveHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	name, err := getIDFromURL(r, "archiveName")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.exportService.DeleteArchive(r.Context(), ownerID, projectID, name); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
