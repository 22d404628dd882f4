package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/guessduel-go/internal/api/request"
	"github.com/mcoot/guessduel-go/internal/api/response"
	"github.com/mcoot/guessduel-go/internal/collab"
	"github.com/mcoot/guessduel-go/internal/model"
	"github.com/mcoot/guessduel-go/internal/services/room"
)

// RoomHandler handles the room service's HTTP endpoints
type RoomHandler struct {
	rooms    *room.Manager
	identity collab.Identity
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(rooms *room.Manager, identity collab.Identity) *RoomHandler {
	return &RoomHandler{
		rooms:    rooms,
		identity: identity,
	}
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.UserID == "" {
		WriteError(w, NewInvalidRequestError("userId is required"))
		return
	}

	userID := model.UserID(req.UserID)
	valid, err := h.identity.Validate(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !valid {
		WriteError(w, model.ErrUserNotFound)
		return
	}

	rm, err := h.rooms.CreateRoom(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.CreateRoomResponse{RoomID: string(rm.ID)})
}

// Get handles GET /api/v1/rooms/{roomId}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["roomId"])

	rm, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomFromModel(rm))
}
