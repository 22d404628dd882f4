package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/guessduel-go/internal/api/request"
	"github.com/mcoot/guessduel-go/internal/api/response"
	"github.com/mcoot/guessduel-go/internal/model"
	"github.com/mcoot/guessduel-go/internal/services/identity"
)

// IdentityHandler handles user registration endpoints
type IdentityHandler struct {
	identityService *identity.Service
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identityService *identity.Service) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
	}
}

// Register handles POST /api/v1/users/register
func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	user, err := h.identityService.Register(r.Context(), req.Username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// Validate handles POST /api/v1/users/validate
func (h *IdentityHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req request.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.UserID == "" {
		WriteError(w, NewInvalidRequestError("userId is required"))
		return
	}

	valid, err := h.identityService.Validate(r.Context(), model.UserID(req.UserID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ValidateResponse{Valid: valid})
}
