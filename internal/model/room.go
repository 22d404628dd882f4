package model

import (
	"slices"
	"time"
)

// RoomID identifies a room. Allocated from a single increasing counter.
type RoomID string

// RoomCapacity is the number of players a room holds
const RoomCapacity = 2

// RoomStatus is the lifecycle state of a room. It only ever moves forward:
// waiting -> playing -> finished.
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"  // One member, waiting for an opponent
	RoomStatusPlaying  RoomStatus = "playing"  // Two members, turn assigned
	RoomStatusFinished RoomStatus = "finished" // Terminal
)

// rank orders statuses so transitions can be checked
func (s RoomStatus) rank() int {
	switch s {
	case RoomStatusWaiting:
		return 0
	case RoomStatusPlaying:
		return 1
	case RoomStatusFinished:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next keeps the status moving forward
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	return next.rank() > s.rank() && s.rank() >= 0
}

// MemberState tracks whether a member still has a live connection
type MemberState string

const (
	MemberActive       MemberState = "active"
	MemberDisconnected MemberState = "disconnected"
)

// FinishReason explains how a room reached the finished state
type FinishReason string

const (
	FinishWon       FinishReason = "won"       // A player guessed the secret
	FinishForfeit   FinishReason = "forfeit"   // A player disconnected mid-game
	FinishAbandoned FinishReason = "abandoned" // The creator left before an opponent joined
)

// Member is a user's seat in a room
type Member struct {
	UserID UserID
	State  MemberState
}

// Room is the orchestrator's view of a game session. The secret is never
// part of it; CurrentTurn, Winner and SecretRange are the cached projection
// of the rules service's authoritative state.
type Room struct {
	ID           RoomID
	Members      []Member
	Status       RoomStatus
	CurrentTurn  UserID // Only meaningful while playing
	Winner       UserID // Only set when finished
	FinishReason FinishReason
	SecretRange  [2]int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   time.Time
}

// IsFull returns true if the room has no free seat
func (r *Room) IsFull() bool {
	return len(r.Members) >= RoomCapacity
}

// HasMember returns true if the user holds a seat in the room
func (r *Room) HasMember(userID UserID) bool {
	return r.GetMember(userID) != nil
}

// GetMember returns the member with the given user ID, or nil if not found
func (r *Room) GetMember(userID UserID) *Member {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

// PlayerIDs returns member user IDs in join order
func (r *Room) PlayerIDs() []UserID {
	ids := make([]UserID, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.UserID
	}
	return ids
}

// Opponent returns the other member's ID, or empty if there is none
func (r *Room) Opponent(userID UserID) UserID {
	for _, m := range r.Members {
		if m.UserID != userID {
			return m.UserID
		}
	}
	return ""
}

// Clone returns a deep copy safe to hand outside the room's owner
func (r *Room) Clone() *Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	return &c
}
