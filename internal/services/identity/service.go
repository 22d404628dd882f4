package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/guessduel-go/internal/model"
	"github.com/mcoot/guessduel-go/internal/storage"
)

// Service resolves usernames to stable user IDs
type Service struct {
	storage storage.Storage
	logger  *slog.Logger
}

// New creates a new identity Service
func New(storage storage.Storage, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger.With(slog.String("component", "identity-service")),
	}
}

// Register returns the user for username, creating it on first use.
// Registering the same username again yields the same user.
func (s *Service) Register(ctx context.Context, username string) (*model.User, error) {
	name, err := model.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	existing, err := s.storage.GetUserByUsername(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	id, err := s.storage.NextUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, created, err := s.storage.CreateUserIfAbsent(ctx, &model.User{ID: id, Username: name})
	if err != nil {
		s.logger.Error("failed to create user",
			slog.String("username", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if created {
		s.logger.Info("user registered",
			slog.String("user_id", string(user.ID)),
			slog.String("username", user.Username),
		)
	}
	return user, nil
}

// Validate reports whether userID belongs to a registered user
func (s *Service) Validate(ctx context.Context, userID model.UserID) (bool, error) {
	if userID == "" {
		return false, nil
	}
	_, err := s.storage.GetUser(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetUser returns the user with the given ID
func (s *Service) GetUser(ctx context.Context, userID model.UserID) (*model.User, error) {
	return s.storage.GetUser(ctx, userID)
}
