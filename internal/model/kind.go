package model

import "errors"

// ErrorKind is the coarse category an error falls into. Every error that
// reaches a client is reported with one of these codes.
type ErrorKind string

const (
	KindAuthRequired        ErrorKind = "AUTH_REQUIRED"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindStateConflict       ErrorKind = "STATE_CONFLICT"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
	KindMalformedInput      ErrorKind = "MALFORMED_INPUT"
	KindRateLimited         ErrorKind = "RATE_LIMITED"
	KindInternal            ErrorKind = "INTERNAL"
)

var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{KindAuthRequired, []error{ErrAuthRequired, ErrSessionReplaced}},
	{KindNotFound, []error{ErrRoomNotFound, ErrUserNotFound, ErrGameNotFound}},
	{KindStateConflict, []error{
		ErrRoomFull, ErrAlreadyInRoom, ErrRoomClosed, ErrNotPlaying,
		ErrNotYourTurn, ErrNotInRoom, ErrGameFinished,
	}},
	{KindUpstreamUnavailable, []error{ErrUpstreamUnavailable, ErrInvalidGuessResult}},
	{KindMalformedInput, []error{
		ErrMalformedMessage, ErrMessageTooLarge, ErrUnknownType, ErrInvalidGuess, ErrMissingRoomID,
		ErrInvalidUsername, ErrInvalidPlayers, ErrGuessOutOfRange,
	}},
	{KindRateLimited, []error{ErrRateLimited}},
}

// Kind classifies err. Unknown errors are internal.
func Kind(err error) ErrorKind {
	for _, entry := range kindTable {
		for _, target := range entry.errs {
			if errors.Is(err, target) {
				return entry.kind
			}
		}
	}
	return KindInternal
}

// Message returns the client-facing text for err: the message of the
// sentinel it wraps, without any wrapping context.
func Message(err error) string {
	for _, entry := range kindTable {
		for _, target := range entry.errs {
			if errors.Is(err, target) {
				return target.Error()
			}
		}
	}
	return "internal error"
}
