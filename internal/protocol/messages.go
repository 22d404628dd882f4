package protocol

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/mcoot/guessduel-go/internal/model"
)

// Inbound message types
const (
	TypeLogin      = "login"
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeGuess      = "guess"
)

// Outbound message types
const (
	TypeLoginSuccess  = "login_success"
	TypeRoomJoined    = "room_joined"
	TypeGameStarted   = "game_started"
	TypeGuessResult   = "guess_result"
	TypeGameForfeited = "game_forfeited"
	TypeRoomAbandoned = "room_abandoned"
	TypeError         = "error"
)

// RoomID is a room identifier that accepts either a JSON string or number
type RoomID string

// UnmarshalJSON accepts "12" and 12 alike
func (r *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RoomID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RoomID(n.String())
	return nil
}

// Inbound is any client message. Fields not used by Type are ignored.
type Inbound struct {
	Type     string          `json:"type"`
	Username string          `json:"username,omitempty"`
	RoomID   RoomID          `json:"roomId,omitempty"`
	Guess    json.RawMessage `json:"guess,omitempty"`
}

// MaxMessageSize is the largest client message Parse accepts
const MaxMessageSize = 4096

// Parse decodes one client message
func Parse(data []byte) (*Inbound, error) {
	if len(data) > MaxMessageSize {
		return nil, model.ErrMessageTooLarge
	}
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, model.ErrMalformedMessage
	}
	return &msg, nil
}

// GuessValue extracts an integer guess. Numeric strings are accepted.
func (m *Inbound) GuessValue() (int, error) {
	raw := bytes.TrimSpace(m.Guess)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, model.ErrInvalidGuess
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, model.ErrInvalidGuess
		}
		text = strings.TrimSpace(text)
	} else {
		text = string(raw)
	}

	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, model.ErrInvalidGuess
	}
	return int(f), nil
}

// LoginSuccess confirms a login
type LoginSuccess struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// RoomJoined lists the members of a room after a create or join
type RoomJoined struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"roomId"`
	Players []string `json:"players"`
}

// GameStarted announces the start of a game
type GameStarted struct {
	Type              string   `json:"type"`
	RoomID            string   `json:"roomId"`
	Players           []string `json:"players"`
	CurrentTurnUserID string   `json:"currentTurnUserId"`
	SecretRange       [2]int   `json:"secretRange"`
	Status            string   `json:"status"`
}

// GuessResult reports a guess to every member. Every key is always sent;
// winnerUserId is null until someone wins.
type GuessResult struct {
	Type           string  `json:"type"`
	RoomID         string  `json:"roomId"`
	PlayerID       string  `json:"playerId"`
	Guess          int     `json:"guess"`
	Result         string  `json:"result"`
	NextTurnUserID string  `json:"nextTurnUserId"`
	WinnerUserID   *string `json:"winnerUserId"`
	Status         string  `json:"status"`
}

// GameForfeited reports that a player left mid-game
type GameForfeited struct {
	Type         string `json:"type"`
	RoomID       string `json:"roomId"`
	PlayerID     string `json:"playerId"`
	WinnerUserID string `json:"winnerUserId"`
	Status       string `json:"status"`
}

// RoomAbandoned reports that a waiting room was closed by its creator leaving
type RoomAbandoned struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Status string `json:"status"`
}

// Error is a non-fatal error reply
type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewLoginSuccess builds a login_success message
func NewLoginSuccess(u *model.User) LoginSuccess {
	return LoginSuccess{Type: TypeLoginSuccess, UserID: string(u.ID), Username: u.Username}
}

// NewRoomJoined builds a room_joined message
func NewRoomJoined(r *model.Room) RoomJoined {
	return RoomJoined{Type: TypeRoomJoined, RoomID: string(r.ID), Players: userIDs(r.PlayerIDs())}
}

// NewGameStarted builds a game_started message
func NewGameStarted(r *model.Room) GameStarted {
	return GameStarted{
		Type:              TypeGameStarted,
		RoomID:            string(r.ID),
		Players:           userIDs(r.PlayerIDs()),
		CurrentTurnUserID: string(r.CurrentTurn),
		SecretRange:       r.SecretRange,
		Status:            string(r.Status),
	}
}

// NewGuessResult builds a guess_result message. Once the game is won the
// turn stays with the winner.
func NewGuessResult(o *model.GuessOutcome) GuessResult {
	msg := GuessResult{
		Type:           TypeGuessResult,
		RoomID:         string(o.RoomID),
		PlayerID:       string(o.PlayerID),
		Guess:          o.Guess,
		Result:         string(o.Result),
		NextTurnUserID: string(o.NextTurn),
		Status:         string(o.Status),
	}
	if o.Winner != "" {
		winner := string(o.Winner)
		msg.WinnerUserID = &winner
		if msg.NextTurnUserID == "" {
			msg.NextTurnUserID = winner
		}
	}
	return msg
}

// NewGameForfeited builds a game_forfeited message
func NewGameForfeited(r *model.Room, leaver model.UserID) GameForfeited {
	return GameForfeited{
		Type:         TypeGameForfeited,
		RoomID:       string(r.ID),
		PlayerID:     string(leaver),
		WinnerUserID: string(r.Winner),
		Status:       string(r.Status),
	}
}

// NewRoomAbandoned builds a room_abandoned message
func NewRoomAbandoned(r *model.Room) RoomAbandoned {
	return RoomAbandoned{Type: TypeRoomAbandoned, RoomID: string(r.ID), Status: string(r.Status)}
}

// NewError builds an error reply with the given message and kind
func NewError(message string, kind model.ErrorKind) Error {
	return Error{Type: TypeError, Error: message, Code: string(kind)}
}

func userIDs(ids []model.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
