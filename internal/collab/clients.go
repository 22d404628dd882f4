package collab

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mcoot/guessduel-go/internal/api/request"
	"github.com/mcoot/guessduel-go/internal/api/response"
	"github.com/mcoot/guessduel-go/internal/metrics"
	"github.com/mcoot/guessduel-go/internal/model"
)

// Identity resolves usernames to user IDs
type Identity interface {
	Register(ctx context.Context, username string) (*model.User, error)
	Validate(ctx context.Context, userID model.UserID) (bool, error)
}

// Rules owns the secret and the turn order of each game
type Rules interface {
	StartGame(ctx context.Context, roomID model.RoomID, players []model.UserID) (*model.GameStart, error)
	Guess(ctx context.Context, roomID model.RoomID, playerID model.UserID, guess int) (*model.GuessOutcome, error)
	Forfeit(ctx context.Context, roomID model.RoomID, playerID model.UserID) (*model.ForfeitOutcome, error)
}

// IdentityClient calls the identity service over HTTP
type IdentityClient struct {
	caller *caller
}

// RulesClient calls the rules service over HTTP
type RulesClient struct {
	caller *caller
}

var (
	_ Identity = (*IdentityClient)(nil)
	_ Rules    = (*RulesClient)(nil)
)

// NewIdentityClient creates an identity client. m may be nil.
func NewIdentityClient(cfg Config, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *IdentityClient {
	l := logger.With(slog.String("component", "identity-client"))
	return &IdentityClient{caller: newCaller("identity", cfg.IdentityURL, cfg, httpClient, m, l)}
}

// NewRulesClient creates a rules client. m may be nil.
func NewRulesClient(cfg Config, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *RulesClient {
	l := logger.With(slog.String("component", "rules-client"))
	return &RulesClient{caller: newCaller("rules", cfg.RulesURL, cfg, httpClient, m, l)}
}

// Register returns the user for username, creating it if needed
func (c *IdentityClient) Register(ctx context.Context, username string) (*model.User, error) {
	var resp response.User
	err := c.caller.call(ctx, "register", "/api/v1/users/register", request.RegisterRequest{Username: username}, &resp, true)
	if err != nil {
		return nil, err
	}
	if resp.UserID == "" {
		return nil, fmt.Errorf("identity register: %w", model.ErrUpstreamUnavailable)
	}
	return &model.User{ID: model.UserID(resp.UserID), Username: resp.Username}, nil
}

// Validate reports whether userID is a registered user
func (c *IdentityClient) Validate(ctx context.Context, userID model.UserID) (bool, error) {
	var resp response.ValidateResponse
	err := c.caller.call(ctx, "validate", "/api/v1/users/validate", request.ValidateRequest{UserID: string(userID)}, &resp, true)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// StartGame asks the rules service to begin a game for the room
func (c *RulesClient) StartGame(ctx context.Context, roomID model.RoomID, players []model.UserID) (*model.GameStart, error) {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = string(p)
	}
	var resp response.GameStart
	err := c.caller.call(ctx, "start_game", "/api/v1/games", request.StartGameRequest{RoomID: string(roomID), PlayerIDs: ids}, &resp, true)
	if err != nil {
		return nil, err
	}
	return resp.ToModel(), nil
}

// Guess submits a guess. It is never retried since the rules service
// would apply it twice.
func (c *RulesClient) Guess(ctx context.Context, roomID model.RoomID, playerID model.UserID, guess int) (*model.GuessOutcome, error) {
	var resp response.GuessOutcome
	path := fmt.Sprintf("/api/v1/games/%s/guess", url.PathEscape(string(roomID)))
	err := c.caller.call(ctx, "guess", path, request.GuessRequest{PlayerID: string(playerID), Guess: &guess}, &resp, false)
	if err != nil {
		return nil, err
	}
	return resp.ToModel(), nil
}

// Forfeit ends the game in favour of the other player
func (c *RulesClient) Forfeit(ctx context.Context, roomID model.RoomID, playerID model.UserID) (*model.ForfeitOutcome, error) {
	var resp response.ForfeitOutcome
	path := fmt.Sprintf("/api/v1/games/%s/forfeit", url.PathEscape(string(roomID)))
	err := c.caller.call(ctx, "forfeit", path, request.ForfeitRequest{PlayerID: string(playerID)}, &resp, false)
	if err != nil {
		return nil, err
	}
	return resp.ToModel(), nil
}
