package request

// RegisterRequest is the request body for registering a username
type RegisterRequest struct {
	Username string `json:"username"`
}

// ValidateRequest is the request body for validating a user ID
type ValidateRequest struct {
	UserID string `json:"userId"`
}

// StartGameRequest is the request body for starting a game
type StartGameRequest struct {
	RoomID    string   `json:"roomId"`
	PlayerIDs []string `json:"playerIds"`
}

// GuessRequest is the request body for submitting a guess.
// Guess is a pointer so a missing value can be told apart from zero.
type GuessRequest struct {
	PlayerID string `json:"playerId"`
	Guess    *int   `json:"guess"`
}

// ForfeitRequest is the request body for forfeiting a game
type ForfeitRequest struct {
	PlayerID string `json:"playerId"`
}

// CreateRoomRequest is the request body for creating a room over HTTP
type CreateRoomRequest struct {
	UserID string `json:"userId"`
}
