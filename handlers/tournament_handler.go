package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/elo-arena/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	errorReporter
}

func NewTournamentHandler(ts services.TournamentService, logger *slog.Logger) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		errorReporter:     newErrorReporter(logger),
	}
}

// CreateHandler обрабатывает POST /projects/{projectID}/tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), ownerID, projectID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /projects/{projectID}/tournaments
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), ownerID, projectID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /projects/{projectID}/tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, tournamentID, ok := h.tournamentScope(w, r)
	if !ok {
		return
	}

	tournament, err := h.tournamentService.GetTournament(r.Context(), ownerID, projectID, tournamentID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// BracketHandler обрабатывает GET /projects/{projectID}/tournaments/{tournamentID}/bracket
func (h *TournamentHandler) BracketHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, tournamentID, ok := h.tournamentScope(w, r)
	if !ok {
		return
	}

	view, err := h.tournamentService.GetBracketView(r.Context(), ownerID, projectID, tournamentID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": view}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// NextMatchHandler обрабатывает GET /projects/{projectID}/tournaments/{tournamentID}/next
// Завершенный турнир отдает "match": null.
func (h *TournamentHandler) NextMatchHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, tournamentID, ok := h.tournamentScope(w, r)
	if !ok {
		return
	}

	match, err := h.tournamentService.GetNextMatch(r.Context(), ownerID, projectID, tournamentID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// SubmitMatchHandler обрабатывает POST /projects/{projectID}/tournaments/{tournamentID}/matches
func (h *TournamentHandler) SubmitMatchHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, tournamentID, ok := h.tournamentScope(w, r)
	if !ok {
		return
	}

	var input services.SubmitMatchInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.MatchID == "" || input.WinnerID == "" {
		h.badRequestResponse(w, r, errors.New("match_id and winner_id are required"))
		return
	}

	result, err := h.tournamentService.SubmitTournamentMatch(r.Context(), ownerID, projectID, tournamentID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) tournamentScope(w http.ResponseWriter, r *http.Request) (string, string, string, bool) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return "", "", "", false
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return "", "", "", false
	}
	return ownerID, projectID, tournamentID, true
}
