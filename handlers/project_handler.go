package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/elo-arena/services"
)

type ProjectHandler struct {
	projectService services.ProjectService
	errorReporter
}

func NewProjectHandler(ps services.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: ps,
		errorReporter:  newErrorReporter(logger),
	}
}

// CreateHandler обрабатывает POST /projects
func (h *ProjectHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var input services.CreateProjectInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	project, err := h.projectService.CreateProject(r.Context(), ownerID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"project": project}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /projects
func (h *ProjectHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	projects, err := h.projectService.ListProjects(r.Context(), ownerID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"projects": projects}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// GetHandler обрабатывает GET /projects/{projectID}
func (h *ProjectHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	project, err := h.projectService.GetProject(r.Context(), ownerID, projectID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"project": project}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// UpdateHandler обрабатывает PATCH /projects/{projectID}
func (h *ProjectHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	var input services.UpdateProjectInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	project, err := h.projectService.UpdateProject(r.Context(), ownerID, projectID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"project": project}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// DeleteHandler обрабатывает DELETE /projects/{projectID}
func (h *ProjectHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(r.Context(), ownerID, projectID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItemsHandler обрабатывает POST /projects/{projectID}/items
func (h *ProjectHandler) AddItemsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	var input services.AddItemsInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	result, err := h.projectService.AddItems(r.Context(), ownerID, projectID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// ListItemsHandler обрабатывает GET /projects/{projectID}/items
func (h *ProjectHandler) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	items, err := h.projectService.ListItems(r.Context(), ownerID, projectID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"items": items}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// GetItemHandler обрабатывает GET /projects/{projectID}/items/{itemID} и .../history
func (h *ProjectHandler) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	itemID, err := getIDFromURL(r, "itemID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	item, err := h.projectService.GetItem(r.Context(), ownerID, projectID, itemID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	resp := jsonResponse{"item": item, "rating_history": item.RatingHistory}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// RenameItemHandler обрабатывает PATCH /projects/{projectID}/items/{itemID}
func (h *ProjectHandler) RenameItemHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	itemID, err := getIDFromURL(r, "itemID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	item, err := h.projectService.RenameItem(r.Context(), ownerID, projectID, itemID, input.Name)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"item": item}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// RemoveItemHandler обрабатывает DELETE /projects/{projectID}/items/{itemID}
func (h *ProjectHandler) RemoveItemHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	itemID, err := getIDFromURL(r, "itemID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.projectService.RemoveItem(r.Context(), ownerID, projectID, itemID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RankingsHandler обрабатывает GET /projects/{projectID}/rankings?limit=&offset=
func (h *ProjectHandler) RankingsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	limit, offset, err := readPagination(r)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	rankings, err := h.projectService.GetRankings(r.Context(), ownerID, projectID, limit, offset)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rankings": rankings}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// HistoryHandler обрабатывает GET /projects/{projectID}/history?limit=&offset=
func (h *ProjectHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	limit, offset, err := readPagination(r)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	battles, err := h.projectService.GetHistory(r.Context(), ownerID, projectID, limit, offset)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"battles": battles}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// StatsHandler обрабатывает GET /projects/{projectID}/stats
func (h *ProjectHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	stats, err := h.projectService.GetStats(r.Context(), ownerID, projectID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// projectScope resolves the caller and the {projectID} URL parameter.
func (e errorReporter) projectScope(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	ownerID, ok := e.ownerID(w, r)
	if !ok {
		return "", "", false
	}
	projectID, err := getIDFromURL(r, "projectID")
	if err != nil {
		e.badRequestResponse(w, r, errors.New("missing project id"))
		return "", "", false
	}
	return ownerID, projectID, true
}
