package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/guessduel-go/internal/collab"
	"github.com/mcoot/guessduel-go/internal/metrics"
	"github.com/mcoot/guessduel-go/internal/model"
	"github.com/mcoot/guessduel-go/internal/protocol"
	"github.com/mcoot/guessduel-go/internal/registry"
	"github.com/mcoot/guessduel-go/internal/services/room"
)

// Config holds message handling limits
type Config struct {
	// RateLimit is the sustained messages per second allowed per connection
	RateLimit rate.Limit
	// RateBurst is the number of messages a connection may send at once
	RateBurst int
	// MessageTimeout bounds the handling of a single message
	MessageTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the router
func DefaultConfig() Config {
	return Config{
		RateLimit:      10,
		RateBurst:      20,
		MessageTimeout: 15 * time.Second,
	}
}

// Router turns client messages into room operations and fans results out
// to room members
type Router struct {
	registry *registry.Registry
	rooms    *room.Manager
	identity collab.Identity
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Router. m may be nil.
func New(reg *registry.Registry, rooms *room.Manager, identity collab.Identity, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Router {
	defaults := DefaultConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaults.RateBurst
	}
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = defaults.MessageTimeout
	}
	return &Router{
		registry: reg,
		rooms:    rooms,
		identity: identity,
		metrics:  m,
		logger:   logger.With(slog.String("component", "router")),
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Connect starts tracking a new connection
func (r *Router) Connect(conn registry.Conn) {
	r.registry.Add(conn)
	r.mu.Lock()
	r.limiters[conn.ID()] = rate.NewLimiter(r.cfg.RateLimit, r.cfg.RateBurst)
	r.mu.Unlock()
	r.metrics.ConnectionOpened()
	r.logger.Debug("connection opened", slog.String("conn", conn.ID()))
}

// Handle processes one message from conn. Callers must not call Handle
// concurrently for the same connection.
func (r *Router) Handle(ctx context.Context, conn registry.Conn, data []byte) {
	if !r.allow(conn) {
		r.metrics.MessageHandled("unknown", "rate_limited")
		r.replyError(conn, model.ErrRateLimited)
		return
	}

	msg, err := protocol.Parse(data)
	if err != nil {
		r.metrics.MessageHandled("unknown", "malformed")
		r.replyError(conn, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.MessageTimeout)
	defer cancel()

	switch msg.Type {
	case protocol.TypeLogin:
		err = r.handleLogin(ctx, conn, msg)
	case protocol.TypeCreateRoom:
		err = r.handleCreateRoom(ctx, conn)
	case protocol.TypeJoinRoom:
		err = r.handleJoinRoom(ctx, conn, msg)
	case protocol.TypeGuess:
		err = r.handleGuess(ctx, conn, msg)
	default:
		r.metrics.MessageHandled("unknown", "unknown_type")
		r.replyError(conn, model.ErrUnknownType)
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = string(model.Kind(err))
		r.logger.Debug("message rejected",
			slog.String("conn", conn.ID()),
			slog.String("type", msg.Type),
			slog.String("error", err.Error()),
		)
		r.replyError(conn, err)
	}
	r.metrics.MessageHandled(msg.Type, outcome)
}

// OnDisconnect forgets conn and applies the leave policy to its room
func (r *Router) OnDisconnect(ctx context.Context, conn registry.Conn) {
	r.mu.Lock()
	delete(r.limiters, conn.ID())
	r.mu.Unlock()
	r.metrics.ConnectionClosed()

	userID, roomID, owned := r.registry.Unregister(conn)
	r.logger.Debug("connection closed",
		slog.String("conn", conn.ID()),
		slog.String("user_id", string(userID)),
		slog.Bool("owned", owned),
	)
	if !owned || roomID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.MessageTimeout)
	defer cancel()
	r.leaveRoom(ctx, roomID, userID)
}

// Broadcast sends payload to every member's current connection. Members
// without a connection or with a full buffer are skipped.
func (r *Router) Broadcast(roomID model.RoomID, members []model.UserID, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal broadcast",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		return 0
	}

	delivered := 0
	for _, userID := range members {
		conn, ok := r.registry.Lookup(userID)
		if !ok {
			r.metrics.DeliveryDropped()
			continue
		}
		if err := conn.Send(data); err != nil {
			r.metrics.DeliveryDropped()
			r.logger.Warn("broadcast delivery dropped",
				slog.String("room_id", string(roomID)),
				slog.String("user_id", string(userID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Router) handleLogin(ctx context.Context, conn registry.Conn, msg *protocol.Inbound) error {
	user, err := r.identity.Register(ctx, msg.Username)
	if err != nil {
		return err
	}

	reg := r.registry.Register(conn, user.ID)
	if reg.Previous != nil {
		r.replyError(reg.Previous, model.ErrSessionReplaced)
	}
	if reg.ReleasedRoom != "" {
		r.leaveRoom(ctx, reg.ReleasedRoom, reg.Released)
	}
	r.adoptRoom(conn, user.ID)

	r.logger.Info("user logged in",
		slog.String("conn", conn.ID()),
		slog.String("user_id", string(user.ID)),
		slog.String("username", user.Username),
	)
	r.reply(conn, protocol.NewLoginSuccess(user))
	return nil
}

// adoptRoom binds conn to a room the user joined without a connection,
// such as one created over HTTP, so that disconnecting still applies the
// leave policy to it
func (r *Router) adoptRoom(conn registry.Conn, userID model.UserID) {
	if _, ok := r.registry.RoomOf(conn); ok {
		return
	}
	roomID, ok := r.rooms.OpenRoomOf(userID)
	if !ok {
		return
	}
	if err := r.registry.BindRoom(conn, roomID); err != nil {
		r.logger.Warn("failed to bind room",
			slog.String("conn", conn.ID()),
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Debug("bound existing room on login",
		slog.String("conn", conn.ID()),
		slog.String("room_id", string(roomID)),
	)
}

func (r *Router) handleCreateRoom(ctx context.Context, conn registry.Conn) error {
	userID, err := r.requireUser(conn)
	if err != nil {
		return err
	}

	rm, err := r.rooms.CreateRoom(ctx, userID)
	if err != nil {
		return err
	}
	r.switchRoom(ctx, conn, userID, rm.ID)

	r.reply(conn, protocol.NewRoomJoined(rm))
	return nil
}

func (r *Router) handleJoinRoom(ctx context.Context, conn registry.Conn, msg *protocol.Inbound) error {
	userID, err := r.requireUser(conn)
	if err != nil {
		return err
	}
	if msg.RoomID == "" {
		return model.ErrMissingRoomID
	}

	result, err := r.rooms.JoinRoom(ctx, model.RoomID(msg.RoomID), userID)
	if err != nil {
		return err
	}

	if result.StartErr != nil {
		r.Broadcast(result.Room.ID, result.Notify, protocol.NewError(
			"failed to start game: "+r.errorMessage(result.StartErr), model.Kind(result.StartErr)))
		return nil
	}

	r.switchRoom(ctx, conn, userID, result.Room.ID)

	members := result.Room.PlayerIDs()
	r.Broadcast(result.Room.ID, members, protocol.NewRoomJoined(result.Room))
	if result.Started != nil {
		r.Broadcast(result.Room.ID, members, protocol.NewGameStarted(result.Room))
	}
	return nil
}

func (r *Router) handleGuess(ctx context.Context, conn registry.Conn, msg *protocol.Inbound) error {
	userID, err := r.requireUser(conn)
	if err != nil {
		return err
	}

	roomID := model.RoomID(msg.RoomID)
	if roomID == "" {
		bound, ok := r.registry.RoomOf(conn)
		if !ok {
			return model.ErrMissingRoomID
		}
		roomID = bound
	}

	value, err := msg.GuessValue()
	if err != nil {
		return err
	}

	result, err := r.rooms.Guess(ctx, roomID, userID, value)
	if err != nil {
		return err
	}

	r.Broadcast(roomID, result.Room.PlayerIDs(), protocol.NewGuessResult(result.GuessOutcome))
	return nil
}

// switchRoom binds conn to roomID, leaving whatever room it was in before
func (r *Router) switchRoom(ctx context.Context, conn registry.Conn, userID model.UserID, roomID model.RoomID) {
	if previous, ok := r.registry.RoomOf(conn); ok && previous != roomID {
		r.leaveRoom(ctx, previous, userID)
	}
	if err := r.registry.BindRoom(conn, roomID); err != nil {
		r.logger.Warn("failed to bind room",
			slog.String("conn", conn.ID()),
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
	}
}

// leaveRoom applies the disconnect policy and tells whoever is left
func (r *Router) leaveRoom(ctx context.Context, roomID model.RoomID, userID model.UserID) {
	result, err := r.rooms.Disconnect(ctx, roomID, userID)
	if err != nil {
		if !errors.Is(err, model.ErrRoomNotFound) && !errors.Is(err, model.ErrNotInRoom) {
			r.logger.Warn("failed to apply leave policy",
				slog.String("room_id", string(roomID)),
				slog.String("user_id", string(userID)),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	members := result.Room.PlayerIDs()
	switch result.Outcome {
	case model.FinishForfeit:
		r.Broadcast(roomID, members, protocol.NewGameForfeited(result.Room, userID))
	case model.FinishAbandoned:
		r.Broadcast(roomID, members, protocol.NewRoomAbandoned(result.Room))
	}
}

func (r *Router) requireUser(conn registry.Conn) (model.UserID, error) {
	userID, ok := r.registry.UserOf(conn)
	if !ok {
		return "", model.ErrAuthRequired
	}
	return userID, nil
}

func (r *Router) allow(conn registry.Conn) bool {
	r.mu.Lock()
	lim, ok := r.limiters[conn.ID()]
	if !ok {
		lim = rate.NewLimiter(r.cfg.RateLimit, r.cfg.RateBurst)
		r.limiters[conn.ID()] = lim
	}
	r.mu.Unlock()
	return lim.Allow()
}

func (r *Router) reply(conn registry.Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal reply", slog.String("error", err.Error()))
		return
	}
	if err := conn.Send(data); err != nil {
		r.logger.Warn("reply dropped",
			slog.String("conn", conn.ID()),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Router) replyError(conn registry.Conn, err error) {
	kind := model.Kind(err)
	if kind == model.KindInternal {
		r.logger.Error("internal error handling message",
			slog.String("conn", conn.ID()),
			slog.String("error", err.Error()),
		)
	}
	r.reply(conn, protocol.NewError(r.errorMessage(err), kind))
}

// errorMessage prefers the collaborator's own wording for its rejections
func (r *Router) errorMessage(err error) string {
	var se *collab.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return model.Message(err)
}
