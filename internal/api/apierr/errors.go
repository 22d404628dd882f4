package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/guessduel-go/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidUsername     = "INVALID_USERNAME"
	CodeInvalidPlayers      = "INVALID_PLAYERS"
	CodeInvalidGuess        = "INVALID_GUESS"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeGameNotFound        = "GAME_NOT_FOUND"
	CodeRoomFull            = "ROOM_FULL"
	CodeAlreadyInRoom       = "ALREADY_IN_ROOM"
	CodeRoomClosed          = "ROOM_CLOSED"
	CodeGameNotActive       = "GAME_NOT_ACTIVE"
	CodeGameFinished        = "GAME_FINISHED"
	CodeNotYourTurn         = "NOT_YOUR_TURN"
	CodeNotInGame           = "NOT_IN_GAME"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// mapping ties a model sentinel to its wire status and code
type mapping struct {
	err    error
	status int
	code   string
}

// mappings is consulted in order; the first errors.Is match wins
var mappings = []mapping{
	{model.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidUsername},
	{model.ErrInvalidPlayers, http.StatusBadRequest, CodeInvalidPlayers},
	{model.ErrInvalidGuess, http.StatusBadRequest, CodeInvalidGuess},
	{model.ErrGuessOutOfRange, http.StatusBadRequest, CodeInvalidGuess},
	{model.ErrUserNotFound, http.StatusNotFound, CodeUserNotFound},
	{model.ErrRoomNotFound, http.StatusNotFound, CodeRoomNotFound},
	{model.ErrGameNotFound, http.StatusNotFound, CodeGameNotFound},
	{model.ErrRoomFull, http.StatusConflict, CodeRoomFull},
	{model.ErrAlreadyInRoom, http.StatusConflict, CodeAlreadyInRoom},
	{model.ErrRoomClosed, http.StatusConflict, CodeRoomClosed},
	{model.ErrNotPlaying, http.StatusConflict, CodeGameNotActive},
	{model.ErrGameFinished, http.StatusConflict, CodeGameFinished},
	{model.ErrNotYourTurn, http.StatusForbidden, CodeNotYourTurn},
	{model.ErrNotInRoom, http.StatusForbidden, CodeNotInGame},
	{model.ErrUpstreamUnavailable, http.StatusServiceUnavailable, CodeUpstreamUnavailable},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return &httpError{m.status, APIError{m.code, m.err.Error()}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// Sentinel returns the model error a wire code stands for, or nil if the
// code is not one of ours. Clients use it to turn error replies back into
// errors.Is-comparable values.
func Sentinel(code string) error {
	for _, m := range mappings {
		if m.code == code {
			return m.err
		}
	}
	return nil
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
