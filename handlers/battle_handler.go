package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/elo-arena/matchmaking"
	"github.com/Dosada05/elo-arena/services"
)

type BattleHandler struct {
	battleService services.BattleService
	errorReporter
}

func NewBattleHandler(bs services.BattleService, logger *slog.Logger) *BattleHandler {
	return &BattleHandler{
		battleService: bs,
		errorReporter: newErrorReporter(logger),
	}
}

// PairHandler обрабатывает GET /projects/{projectID}/pair?strategy=
func (h *BattleHandler) PairHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	strategy, err := matchmaking.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	pair, err := h.battleService.GetPair(r.Context(), ownerID, projectID, strategy)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, pair, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// ReplacementHandler обрабатывает GET /projects/{projectID}/pair/replacement?exclude=&strategy=
func (h *BattleHandler) ReplacementHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	excludeID := query.Get("exclude")
	if excludeID == "" {
		h.badRequestResponse(w, r, errors.New("exclude query parameter is required"))
		return
	}
	strategy, err := matchmaking.ParseStrategy(query.Get("strategy"))
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	item, err := h.battleService.GetReplacement(r.Context(), ownerID, projectID, strategy, excludeID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"item": item}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// SubmitHandler обрабатывает POST /projects/{projectID}/battles
func (h *BattleHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	var input services.SubmitBattleInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.ItemAID == "" || input.ItemBID == "" || input.WinnerID == "" {
		h.badRequestResponse(w, r, errors.New("item_a_id, item_b_id and winner_id are required"))
		return
	}

	result, err := h.battleService.SubmitBattle(r.Context(), ownerID, projectID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
