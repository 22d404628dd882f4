package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrAuthRequired    = errors.New("please login first")
	ErrSessionReplaced = errors.New("session taken over by another login")

	// User errors
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidUsername = errors.New("username must be 1-36 characters")

	// Room errors
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrAlreadyInRoom   = errors.New("already in this room")
	ErrRoomClosed      = errors.New("room is no longer accepting players")
	ErrNotPlaying      = errors.New("game not active")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrNotInRoom       = errors.New("not a member of this room")
	ErrGuessOutOfRange = errors.New("guess is outside the secret range")
	ErrRoomManagerDone = errors.New("room manager is shut down")

	// Game errors (rules service)
	ErrGameNotFound       = errors.New("game not found")
	ErrGameFinished       = errors.New("game already finished")
	ErrInvalidPlayers     = errors.New("roomId and 2 distinct playerIds required")
	ErrInvalidGuessResult = errors.New("rules service returned an invalid outcome")

	// Protocol errors
	ErrMalformedMessage = errors.New("invalid JSON")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrUnknownType      = errors.New("unknown event type")
	ErrInvalidGuess     = errors.New("guess must be a number")
	ErrMissingRoomID    = errors.New("roomId is required")
	ErrRateLimited      = errors.New("too many messages, slow down")

	// Collaborator errors
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)
