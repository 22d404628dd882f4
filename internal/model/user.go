package model

import "strings"

// UserID uniquely identifies a user across the system
type UserID string

// MaxUsernameLength is the longest username the identity service accepts
const MaxUsernameLength = 36

// User is a registered participant. Created once by the identity service
// and never mutated afterwards.
type User struct {
	ID       UserID `json:"userId"`
	Username string `json:"username"`
}

// NormalizeUsername trims surrounding whitespace and validates length
func NormalizeUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" || len(name) > MaxUsernameLength {
		return "", ErrInvalidUsername
	}
	return name, nil
}
