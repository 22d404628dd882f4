package model

import "time"

// Secret range handed out by the rules service
const (
	SecretMin = 1
	SecretMax = 100
)

// GameStatus is the rules service's authoritative game state
type GameStatus string

const (
	GameStatusPlaying  GameStatus = "playing"
	GameStatusFinished GameStatus = "finished"
)

// GuessResult compares a guess against the secret
type GuessResult string

const (
	GuessTooLow  GuessResult = "too_low"
	GuessTooHigh GuessResult = "too_high"
	GuessCorrect GuessResult = "correct"
)

// Valid reports whether r is one of the known results
func (r GuessResult) Valid() bool {
	switch r {
	case GuessTooLow, GuessTooHigh, GuessCorrect:
		return true
	default:
		return false
	}
}

// Game is the rules service's record for a room. Only the rules service
// ever sees Secret.
type Game struct {
	RoomID      RoomID
	Players     [2]UserID
	Secret      int
	CurrentTurn UserID
	Status      GameStatus
	Winner      UserID
	Range       [2]int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPlayer returns true if the user plays in this game
func (g *Game) HasPlayer(userID UserID) bool {
	return g.Players[0] == userID || g.Players[1] == userID
}

// OtherPlayer returns the player that is not userID
func (g *Game) OtherPlayer(userID UserID) UserID {
	if g.Players[0] == userID {
		return g.Players[1]
	}
	return g.Players[0]
}

// GameStart is what the rules service reports when a game begins
type GameStart struct {
	RoomID      RoomID
	Players     []UserID
	CurrentTurn UserID
	SecretRange [2]int
	Status      GameStatus
}

// GuessOutcome is what the rules service reports for a single guess
type GuessOutcome struct {
	RoomID   RoomID
	PlayerID UserID
	Guess    int
	Result   GuessResult
	NextTurn UserID
	Winner   UserID
	Status   GameStatus
}

// ForfeitOutcome is what the rules service reports when a player forfeits
type ForfeitOutcome struct {
	RoomID RoomID
	Winner UserID
	Status GameStatus
}
