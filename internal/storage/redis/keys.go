package redis

import (
	"fmt"

	"github.com/mcoot/guessduel-go/internal/model"
)

// Key prefix for all guessduel data
const keyPrefix = "guessduel"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// userIDCounterKey returns the Redis key of the user ID sequence
func userIDCounterKey() string {
	return fmt.Sprintf("%s:seq:user_id", keyPrefix)
}

// gameKey returns the Redis key for the Game of a room
func gameKey(roomID model.RoomID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, roomID)
}
