package response

import (
	"time"

	"github.com/mcoot/guessduel-go/internal/model"
)

// User represents a user in API responses
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		UserID:   string(u.ID),
		Username: u.Username,
	}
}

// ValidateResponse reports whether a user ID is known
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// GameStart is the response for starting a game
type GameStart struct {
	RoomID            string   `json:"roomId"`
	PlayerIDs         []string `json:"playerIds"`
	CurrentTurnUserID string   `json:"currentTurnUserId"`
	Status            string   `json:"status"`
	SecretRange       [2]int   `json:"secretRange"`
}

// GameStartFromModel converts a model.GameStart
func GameStartFromModel(s *model.GameStart) GameStart {
	return GameStart{
		RoomID:            string(s.RoomID),
		PlayerIDs:         userIDStrings(s.Players),
		CurrentTurnUserID: string(s.CurrentTurn),
		Status:            string(s.Status),
		SecretRange:       s.SecretRange,
	}
}

// ToModel converts back into a model.GameStart
func (s GameStart) ToModel() *model.GameStart {
	return &model.GameStart{
		RoomID:      model.RoomID(s.RoomID),
		Players:     userIDs(s.PlayerIDs),
		CurrentTurn: model.UserID(s.CurrentTurnUserID),
		SecretRange: s.SecretRange,
		Status:      model.GameStatus(s.Status),
	}
}

// GuessOutcome is the response for a guess
type GuessOutcome struct {
	RoomID         string `json:"roomId"`
	PlayerID       string `json:"playerId"`
	Guess          int    `json:"guess"`
	Result         string `json:"result"`
	NextTurnUserID string `json:"nextTurnUserId,omitempty"`
	WinnerUserID   string `json:"winnerUserId,omitempty"`
	Status         string `json:"status"`
}

// GuessOutcomeFromModel converts a model.GuessOutcome
func GuessOutcomeFromModel(o *model.GuessOutcome) GuessOutcome {
	return GuessOutcome{
		RoomID:         string(o.RoomID),
		PlayerID:       string(o.PlayerID),
		Guess:          o.Guess,
		Result:         string(o.Result),
		NextTurnUserID: string(o.NextTurn),
		WinnerUserID:   string(o.Winner),
		Status:         string(o.Status),
	}
}

// ToModel converts back into a model.GuessOutcome
func (o GuessOutcome) ToModel() *model.GuessOutcome {
	return &model.GuessOutcome{
		RoomID:   model.RoomID(o.RoomID),
		PlayerID: model.UserID(o.PlayerID),
		Guess:    o.Guess,
		Result:   model.GuessResult(o.Result),
		NextTurn: model.UserID(o.NextTurnUserID),
		Winner:   model.UserID(o.WinnerUserID),
		Status:   model.GameStatus(o.Status),
	}
}

// ForfeitOutcome is the response for a forfeit
type ForfeitOutcome struct {
	RoomID       string `json:"roomId"`
	WinnerUserID string `json:"winnerUserId"`
	Status       string `json:"status"`
}

// ForfeitOutcomeFromModel converts a model.ForfeitOutcome
func ForfeitOutcomeFromModel(o *model.ForfeitOutcome) ForfeitOutcome {
	return ForfeitOutcome{
		RoomID:       string(o.RoomID),
		WinnerUserID: string(o.Winner),
		Status:       string(o.Status),
	}
}

// ToModel converts back into a model.ForfeitOutcome
func (o ForfeitOutcome) ToModel() *model.ForfeitOutcome {
	return &model.ForfeitOutcome{
		RoomID: model.RoomID(o.RoomID),
		Winner: model.UserID(o.WinnerUserID),
		Status: model.GameStatus(o.Status),
	}
}

// Member represents a room member
type Member struct {
	UserID string `json:"userId"`
	State  string `json:"state"`
}

// Room represents the room service's view of a room
type Room struct {
	RoomID            string    `json:"roomId"`
	Members           []Member  `json:"members"`
	Status            string    `json:"status"`
	CurrentTurnUserID string    `json:"currentTurnUserId,omitempty"`
	WinnerUserID      string    `json:"winnerUserId,omitempty"`
	FinishReason      string    `json:"finishReason,omitempty"`
	SecretRange       [2]int    `json:"secretRange"`
	CreatedAt         time.Time `json:"createdAt"`
}

// RoomFromModel converts a model.Room
func RoomFromModel(r *model.Room) Room {
	members := make([]Member, len(r.Members))
	for i, m := range r.Members {
		members[i] = Member{UserID: string(m.UserID), State: string(m.State)}
	}
	return Room{
		RoomID:            string(r.ID),
		Members:           members,
		Status:            string(r.Status),
		CurrentTurnUserID: string(r.CurrentTurn),
		WinnerUserID:      string(r.Winner),
		FinishReason:      string(r.FinishReason),
		SecretRange:       r.SecretRange,
		CreatedAt:         r.CreatedAt,
	}
}

// CreateRoomResponse is the response for creating a room over HTTP
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// HealthResponse is the response for health checks
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func userIDStrings(ids []model.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func userIDs(ids []string) []model.UserID {
	out := make([]model.UserID, len(ids))
	for i, id := range ids {
		out[i] = model.UserID(id)
	}
	return out
}

// Game is the public view of a rules service game. The secret is only
// revealed once the game is finished.
type Game struct {
	RoomID            string   `json:"roomId"`
	PlayerIDs         []string `json:"playerIds"`
	CurrentTurnUserID string   `json:"currentTurnUserId,omitempty"`
	Status            string   `json:"status"`
	WinnerUserID      string   `json:"winnerUserId,omitempty"`
	SecretRange       [2]int   `json:"secretRange"`
	Secret            *int     `json:"secret,omitempty"`
}

// GameFromModel converts a model.Game
func GameFromModel(g *model.Game) Game {
	out := Game{
		RoomID:            string(g.RoomID),
		PlayerIDs:         userIDStrings(g.Players[:]),
		CurrentTurnUserID: string(g.CurrentTurn),
		Status:            string(g.Status),
		WinnerUserID:      string(g.Winner),
		SecretRange:       g.Range,
	}
	if g.Status == model.GameStatusFinished {
		secret := g.Secret
		out.Secret = &secret
		out.CurrentTurnUserID = ""
	}
	return out
}
