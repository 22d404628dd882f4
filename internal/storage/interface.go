package storage

import (
	"context"

	"github.com/mcoot/guessduel-go/internal/model"
)

// Storage defines the interface for collaborator state persistence.
// Room state held by the room service is never stored here.
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// CreateUserIfAbsent stores user unless its username is already taken.
	// It returns the stored user for that username and whether it was created.
	CreateUserIfAbsent(ctx context.Context, user *model.User) (*model.User, bool, error)

	// NextUserID allocates the next sequential user ID ("1", "2", ...)
	NextUserID(ctx context.Context) (model.UserID, error)

	// Game operations
	SaveGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, roomID model.RoomID) (*model.Game, error)
	DeleteGame(ctx context.Context, roomID model.RoomID) error
}
