package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/guessduel-go/internal/api/request"
	"github.com/mcoot/guessduel-go/internal/api/response"
	"github.com/mcoot/guessduel-go/internal/model"
	"github.com/mcoot/guessduel-go/internal/services/rules"
)

// RulesHandler handles game rule endpoints
type RulesHandler struct {
	rulesService *rules.Service
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(rulesService *rules.Service) *RulesHandler {
	return &RulesHandler{
		rulesService: rulesService,
	}
}

// StartGame handles POST /api/v1/games
func (h *RulesHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req request.StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	players := make([]model.UserID, len(req.PlayerIDs))
	for i, id := range req.PlayerIDs {
		players[i] = model.UserID(id)
	}

	start, err := h.rulesService.StartGame(r.Context(), model.RoomID(req.RoomID), players)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameStartFromModel(start))
}

// GetGame handles GET /api/v1/games/{roomId}
func (h *RulesHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.rulesService.GetGame(r.Context(), model.RoomID(mux.Vars(r)["roomId"]))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(game))
}

// Guess handles POST /api/v1/games/{roomId}/guess
func (h *RulesHandler) Guess(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["roomId"])

	var req request.GuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, model.ErrInvalidGuess)
		return
	}

	if req.PlayerID == "" {
		WriteError(w, NewInvalidRequestError("playerId is required"))
		return
	}
	if req.Guess == nil {
		WriteError(w, model.ErrInvalidGuess)
		return
	}

	outcome, err := h.rulesService.Guess(r.Context(), roomID, model.UserID(req.PlayerID), *req.Guess)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GuessOutcomeFromModel(outcome))
}

// Forfeit handles POST /api/v1/games/{roomId}/forfeit
func (h *RulesHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["roomId"])

	var req request.ForfeitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.PlayerID == "" {
		WriteError(w, NewInvalidRequestError("playerId is required"))
		return
	}

	outcome, err := h.rulesService.Forfeit(r.Context(), roomID, model.UserID(req.PlayerID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ForfeitOutcomeFromModel(outcome))
}
