package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/guessduel-go/internal/model"
)

// Send errors reported by connections
var (
	ErrSendBufferFull = errors.New("connection send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

// Conn is a live client connection. Send must not block.
type Conn interface {
	ID() string
	Send(data []byte) error
}

// binding is what the registry knows about one connection
type binding struct {
	conn   Conn
	userID model.UserID
	roomID model.RoomID
}

// Registry maps live connections to users and rooms. A user is bound to at
// most one connection at a time; the most recent login wins.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*binding
	users  map[model.UserID]string
	logger *slog.Logger
}

// New creates an empty Registry
func New(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*binding),
		users:  make(map[model.UserID]string),
		logger: logger.With(slog.String("component", "registry")),
	}
}

// Add tracks a freshly opened connection that has not logged in yet
func (r *Registry) Add(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID()]; !ok {
		r.conns[conn.ID()] = &binding{conn: conn}
	}
}

// Registration reports what a login changed besides binding the new user
type Registration struct {
	// Previous is the connection the user was taken over from
	Previous Conn
	// Released is the user conn was logged in as before, when it differs,
	// and ReleasedRoom the room that user was bound to. Nobody is left to
	// play for them.
	Released     model.UserID
	ReleasedRoom model.RoomID
}

// Register binds conn to userID. A connection already holding the user is
// displaced and hands its room binding over to conn. If conn was logged in
// as someone else, that user is released along with its room.
func (r *Registry) Register(conn Conn, userID model.UserID) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reg Registration

	b, ok := r.conns[conn.ID()]
	if !ok {
		b = &binding{conn: conn}
		r.conns[conn.ID()] = b
	}

	if b.userID != "" && b.userID != userID {
		if r.users[b.userID] == conn.ID() {
			delete(r.users, b.userID)
		}
		reg.Released = b.userID
		reg.ReleasedRoom = b.roomID
		b.roomID = ""
	}

	if prevID, ok := r.users[userID]; ok && prevID != conn.ID() {
		if prev, ok := r.conns[prevID]; ok {
			reg.Previous = prev.conn
			if b.roomID == "" {
				b.roomID = prev.roomID
			}
			prev.userID = ""
			prev.roomID = ""
		}
	}

	b.userID = userID
	r.users[userID] = conn.ID()

	if reg.Previous != nil {
		r.logger.Info("session taken over",
			slog.String("user_id", string(userID)),
			slog.String("previous_conn", reg.Previous.ID()),
			slog.String("conn", conn.ID()),
		)
	}
	if reg.Released != "" {
		r.logger.Info("connection switched user",
			slog.String("conn", conn.ID()),
			slog.String("released_user_id", string(reg.Released)),
			slog.String("user_id", string(userID)),
		)
	}
	return reg
}

// Lookup returns the connection currently bound to userID
func (r *Registry) Lookup(userID model.UserID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	b, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return b.conn, true
}

// BindRoom records the room conn's user is playing in
func (r *Registry) BindRoom(conn Conn, roomID model.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.conns[conn.ID()]
	if !ok || b.userID == "" {
		return model.ErrAuthRequired
	}
	b.roomID = roomID
	return nil
}

// UserOf returns the user bound to conn
func (r *Registry) UserOf(conn Conn) (model.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[conn.ID()]
	if !ok || b.userID == "" {
		return "", false
	}
	return b.userID, true
}

// RoomOf returns the room bound to conn
func (r *Registry) RoomOf(conn Conn) (model.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[conn.ID()]
	if !ok || b.roomID == "" {
		return "", false
	}
	return b.roomID, true
}

// Unregister forgets conn. owned reports whether conn still held its user
// binding; a displaced connection closing reports false and leaves the new
// owner untouched.
func (r *Registry) Unregister(conn Conn) (userID model.UserID, roomID model.RoomID, owned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.conns[conn.ID()]
	if !ok {
		return "", "", false
	}
	delete(r.conns, conn.ID())

	if b.userID == "" {
		return "", "", false
	}
	if r.users[b.userID] != conn.ID() {
		return b.userID, b.roomID, false
	}
	delete(r.users, b.userID)
	return b.userID, b.roomID, true
}

// Count returns the number of tracked connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// UserCount returns the number of logged-in users
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
