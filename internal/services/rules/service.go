package rules

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/guessduel-go/internal/dependencies/clock"
	"github.com/mcoot/guessduel-go/internal/dependencies/random"
	"github.com/mcoot/guessduel-go/internal/model"
	"github.com/mcoot/guessduel-go/internal/storage"
)

// Service owns the secret and the authoritative turn order of every game
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	// Serializes read-modify-write on games
	mu sync.Mutex
}

// New creates a new rules Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "rules-service")),
	}
}

// StartGame picks a secret and a starting player for the room.
// Any earlier game for the same room is replaced.
func (s *Service) StartGame(ctx context.Context, roomID model.RoomID, players []model.UserID) (*model.GameStart, error) {
	if roomID == "" || len(players) != 2 || players[0] == "" || players[1] == "" || players[0] == players[1] {
		return nil, model.ErrInvalidPlayers
	}

	now := s.clock.Now()
	game := &model.Game{
		RoomID:      roomID,
		Players:     [2]model.UserID{players[0], players[1]},
		Secret:      random.Between(s.random, model.SecretMin, model.SecretMax),
		CurrentTurn: players[s.random.Intn(2)],
		Status:      model.GameStatusPlaying,
		Range:       [2]int{model.SecretMin, model.SecretMax},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.SaveGame(ctx, game); err != nil {
		s.logger.Error("failed to save game",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("game started",
		slog.String("room_id", string(roomID)),
		slog.String("current_turn", string(game.CurrentTurn)),
	)

	return &model.GameStart{
		RoomID:      roomID,
		Players:     []model.UserID{game.Players[0], game.Players[1]},
		CurrentTurn: game.CurrentTurn,
		SecretRange: game.Range,
		Status:      game.Status,
	}, nil
}

// Guess checks value against the secret and advances the turn
func (s *Service) Guess(ctx context.Context, roomID model.RoomID, playerID model.UserID, value int) (*model.GuessOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, err := s.storage.GetGame(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// Validate game state
	if game.Status == model.GameStatusFinished {
		return nil, model.ErrGameFinished
	}
	if game.CurrentTurn != playerID {
		return nil, model.ErrNotYourTurn
	}

	outcome := &model.GuessOutcome{
		RoomID:   roomID,
		PlayerID: playerID,
		Guess:    value,
	}

	switch {
	case value < game.Secret:
		outcome.Result = model.GuessTooLow
	case value > game.Secret:
		outcome.Result = model.GuessTooHigh
	default:
		outcome.Result = model.GuessCorrect
	}

	if outcome.Result == model.GuessCorrect {
		game.Status = model.GameStatusFinished
		game.Winner = playerID
		game.CurrentTurn = ""
	} else {
		game.CurrentTurn = game.OtherPlayer(playerID)
	}
	game.UpdatedAt = s.clock.Now()

	if err := s.storage.SaveGame(ctx, game); err != nil {
		return nil, err
	}

	outcome.NextTurn = game.CurrentTurn
	outcome.Winner = game.Winner
	outcome.Status = game.Status

	if game.Status == model.GameStatusFinished {
		s.logger.Info("game won",
			slog.String("room_id", string(roomID)),
			slog.String("winner", string(playerID)),
		)
	}

	return outcome, nil
}

// Forfeit ends the game with the other player as winner
func (s *Service) Forfeit(ctx context.Context, roomID model.RoomID, playerID model.UserID) (*model.ForfeitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, err := s.storage.GetGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !game.HasPlayer(playerID) {
		return nil, model.ErrNotInRoom
	}
	if game.Status == model.GameStatusFinished {
		return nil, model.ErrGameFinished
	}

	game.Status = model.GameStatusFinished
	game.Winner = game.OtherPlayer(playerID)
	game.CurrentTurn = ""
	game.UpdatedAt = s.clock.Now()

	if err := s.storage.SaveGame(ctx, game); err != nil {
		return nil, err
	}

	s.logger.Info("game forfeited",
		slog.String("room_id", string(roomID)),
		slog.String("player_id", string(playerID)),
		slog.String("winner", string(game.Winner)),
	)

	return &model.ForfeitOutcome{
		RoomID: roomID,
		Winner: game.Winner,
		Status: game.Status,
	}, nil
}

// GetGame returns the game for a room
func (s *Service) GetGame(ctx context.Context, roomID model.RoomID) (*model.Game, error) {
	return s.storage.GetGame(ctx, roomID)
}
