package room

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/guessduel-go/internal/collab"
	"github.com/mcoot/guessduel-go/internal/dependencies/clock"
	"github.com/mcoot/guessduel-go/internal/metrics"
	"github.com/mcoot/guessduel-go/internal/model"
)

// Config holds room manager settings
type Config struct {
	// Retention is how long a finished room stays queryable
	Retention time.Duration
	// ReapInterval is how often Run looks for expired rooms
	ReapInterval time.Duration
	// QueueSize is the per-room operation buffer
	QueueSize int
}

// DefaultConfig returns sensible defaults for the room manager
func DefaultConfig() Config {
	return Config{
		Retention:    10 * time.Minute,
		ReapInterval: time.Minute,
		QueueSize:    16,
	}
}

// JoinResult describes the outcome of a join.
// When the join filled the room, Started holds the rules service's start
// projection. If starting failed, the join was rolled back and StartErr is
// set; Notify lists everyone who should hear about it.
type JoinResult struct {
	Room     *model.Room
	Started  *model.GameStart
	StartErr error
	Notify   []model.UserID
}

// GuessResult is the rules service's verdict plus the room it was applied to
type GuessResult struct {
	*model.GuessOutcome
	Room *model.Room
}

// DisconnectResult describes what a member leaving did to the room
type DisconnectResult struct {
	Room    *model.Room
	Outcome model.FinishReason // empty when the room was already finished
	Winner  model.UserID
}

// Stats summarises the rooms currently held
type Stats struct {
	Waiting  int
	Playing  int
	Finished int
}

// Manager owns every room and serialises operations per room
type Manager struct {
	rules   collab.Rules
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config

	// Single allocator shared by every entry point that creates rooms
	lastID atomic.Int64

	mu     sync.RWMutex
	rooms  map[model.RoomID]*actor
	closed bool
}

// NewManager creates a room Manager. m may be nil.
func NewManager(rules collab.Rules, clock clock.Clock, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Manager {
	defaults := DefaultConfig()
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = defaults.ReapInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	return &Manager{
		rules:   rules,
		clock:   clock,
		metrics: m,
		logger:  logger.With(slog.String("component", "room-manager")),
		cfg:     cfg,
		rooms:   make(map[model.RoomID]*actor),
	}
}

// CreateRoom opens a waiting room with userID as its only member
func (m *Manager) CreateRoom(ctx context.Context, userID model.UserID) (*model.Room, error) {
	if userID == "" {
		return nil, model.ErrAuthRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, model.ErrRoomManagerDone
	}

	now := m.clock.Now()
	room := &model.Room{
		ID:          model.RoomID(strconv.FormatInt(m.lastID.Add(1), 10)),
		Members:     []model.Member{{UserID: userID, State: model.MemberActive}},
		Status:      model.RoomStatusWaiting,
		SecretRange: [2]int{model.SecretMin, model.SecretMax},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	a := newActor(room, m.cfg.QueueSize)
	m.rooms[room.ID] = a
	go a.run()

	m.metrics.RoomCreated()
	m.logger.Info("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("user_id", string(userID)),
	)
	return room.Clone(), nil
}

// JoinRoom seats userID in a waiting room. Filling the room starts the game.
func (m *Manager) JoinRoom(ctx context.Context, roomID model.RoomID, userID model.UserID) (*JoinResult, error) {
	a, err := m.lookup(roomID)
	if err != nil {
		return nil, err
	}

	return do(ctx, a, func(r *model.Room) (*JoinResult, error) {
		switch {
		case r.HasMember(userID):
			return nil, model.ErrAlreadyInRoom
		case r.IsFull():
			return nil, model.ErrRoomFull
		case r.Status != model.RoomStatusWaiting:
			return nil, model.ErrRoomClosed
		}

		r.Members = append(r.Members, model.Member{UserID: userID, State: model.MemberActive})
		r.UpdatedAt = m.clock.Now()

		if !r.IsFull() {
			return &JoinResult{Room: r.Clone()}, nil
		}

		players := r.PlayerIDs()
		start, err := m.rules.StartGame(ctx, r.ID, players)
		if err == nil {
			err = validateStart(r, start)
		}
		if err != nil {
			// Roll back to the creator alone so the room can be joined again
			r.Members = r.Members[:len(r.Members)-1]
			m.logger.Warn("failed to start game, join rolled back",
				slog.String("room_id", string(r.ID)),
				slog.String("user_id", string(userID)),
				slog.String("error", err.Error()),
			)
			return &JoinResult{Room: r.Clone(), StartErr: err, Notify: players}, nil
		}

		r.Status = model.RoomStatusPlaying
		r.CurrentTurn = start.CurrentTurn
		if start.SecretRange[0] < start.SecretRange[1] {
			r.SecretRange = start.SecretRange
		}

		m.logger.Info("game started",
			slog.String("room_id", string(r.ID)),
			slog.String("current_turn", string(r.CurrentTurn)),
		)
		return &JoinResult{Room: r.Clone(), Started: start, Notify: players}, nil
	})
}

// Guess forwards a guess from the player whose turn it is and applies the
// rules service's verdict. A rejected guess leaves the room untouched.
func (m *Manager) Guess(ctx context.Context, roomID model.RoomID, userID model.UserID, value int) (*GuessResult, error) {
	a, err := m.lookup(roomID)
	if err != nil {
		return nil, err
	}

	return do(ctx, a, func(r *model.Room) (*GuessResult, error) {
		switch {
		case r.Status != model.RoomStatusPlaying:
			return nil, model.ErrNotPlaying
		case !r.HasMember(userID):
			return nil, model.ErrNotInRoom
		case r.CurrentTurn != userID:
			return nil, model.ErrNotYourTurn
		case value < r.SecretRange[0] || value > r.SecretRange[1]:
			return nil, model.ErrGuessOutOfRange
		}

		outcome, err := m.rules.Guess(ctx, r.ID, userID, value)
		if err != nil {
			return nil, err
		}
		if err := validateOutcome(r, userID, outcome); err != nil {
			m.logger.Error("rules service returned an inconsistent outcome",
				slog.String("room_id", string(r.ID)),
				slog.String("result", string(outcome.Result)),
				slog.String("next_turn", string(outcome.NextTurn)),
			)
			return nil, err
		}

		now := m.clock.Now()
		r.UpdatedAt = now
		if outcome.Result == model.GuessCorrect {
			m.finish(r, model.FinishWon, userID, now)
		} else {
			r.CurrentTurn = outcome.NextTurn
		}

		outcome.RoomID = r.ID
		outcome.PlayerID = userID
		outcome.Guess = value
		return &GuessResult{GuessOutcome: outcome, Room: r.Clone()}, nil
	})
}

// Disconnect marks userID as gone. A playing room is forfeited to the other
// member; a waiting room is abandoned.
func (m *Manager) Disconnect(ctx context.Context, roomID model.RoomID, userID model.UserID) (*DisconnectResult, error) {
	a, err := m.lookup(roomID)
	if err != nil {
		return nil, err
	}

	return do(ctx, a, func(r *model.Room) (*DisconnectResult, error) {
		member := r.GetMember(userID)
		if member == nil {
			return nil, model.ErrNotInRoom
		}
		member.State = model.MemberDisconnected
		now := m.clock.Now()
		r.UpdatedAt = now

		switch r.Status {
		case model.RoomStatusWaiting:
			m.finish(r, model.FinishAbandoned, "", now)
		case model.RoomStatusPlaying:
			winner := r.Opponent(userID)
			if _, err := m.rules.Forfeit(ctx, r.ID, userID); err != nil {
				m.logger.Warn("rules forfeit failed, finishing room locally",
					slog.String("room_id", string(r.ID)),
					slog.String("error", err.Error()),
				)
			}
			m.finish(r, model.FinishForfeit, winner, now)
		default:
			return &DisconnectResult{Room: r.Clone()}, nil
		}

		return &DisconnectResult{Room: r.Clone(), Outcome: r.FinishReason, Winner: r.Winner}, nil
	})
}

// GetRoom returns a snapshot of the room
func (m *Manager) GetRoom(ctx context.Context, roomID model.RoomID) (*model.Room, error) {
	a, err := m.lookup(roomID)
	if err != nil {
		return nil, err
	}
	return do(ctx, a, func(r *model.Room) (*model.Room, error) {
		return r.Clone(), nil
	})
}

// OpenRoomOf returns the newest unfinished room userID is still an active
// member of
func (m *Manager) OpenRoomOf(userID model.UserID) (model.RoomID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		found   model.RoomID
		created time.Time
	)
	for id, a := range m.rooms {
		if a.currentStatus() == model.RoomStatusFinished || !a.isActiveMember(userID) {
			continue
		}
		if found == "" || a.createdAt.After(created) {
			found, created = id, a.createdAt
		}
	}
	return found, found != ""
}

// ReapFinished drops rooms that finished longer than the retention period
// ago and returns how many were removed
func (m *Manager) ReapFinished() int {
	cutoff := clock.Before(m.clock, m.cfg.Retention).UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for id, a := range m.rooms {
		finishedAt := a.finishedAt.Load()
		if finishedAt == 0 || finishedAt > cutoff {
			continue
		}
		delete(m.rooms, id)
		close(a.quit)
		reaped++
	}

	if reaped > 0 {
		m.logger.Info("reaped finished rooms",
			slog.Int("count", reaped),
			slog.Int("remaining", len(m.rooms)),
		)
	}
	return reaped
}

// Run reaps finished rooms periodically until ctx ends
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.ReapFinished()
		}
	}
}

// Stats counts rooms by status
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Stats
	for _, a := range m.rooms {
		switch a.currentStatus() {
		case model.RoomStatusWaiting:
			s.Waiting++
		case model.RoomStatusPlaying:
			s.Playing++
		case model.RoomStatusFinished:
			s.Finished++
		}
	}
	return s
}

// StatsByStatus is Stats keyed by status name
func (m *Manager) StatsByStatus() map[string]int {
	s := m.Stats()
	return map[string]int{
		string(model.RoomStatusWaiting):  s.Waiting,
		string(model.RoomStatusPlaying):  s.Playing,
		string(model.RoomStatusFinished): s.Finished,
	}
}

// Close stops every room actor. Further operations fail.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, a := range m.rooms {
		close(a.quit)
		delete(m.rooms, id)
	}
	m.logger.Info("room manager closed")
}

func (m *Manager) lookup(roomID model.RoomID) (*actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, model.ErrRoomManagerDone
	}
	a, ok := m.rooms[roomID]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return a, nil
}

// finish moves r to finished. Must run on r's actor.
func (m *Manager) finish(r *model.Room, reason model.FinishReason, winner model.UserID, now time.Time) {
	if !r.Status.CanTransitionTo(model.RoomStatusFinished) {
		return
	}
	r.Status = model.RoomStatusFinished
	r.CurrentTurn = ""
	r.Winner = winner
	r.FinishReason = reason
	r.FinishedAt = now
	m.metrics.RoomFinished(string(reason))

	m.logger.Info("room finished",
		slog.String("room_id", string(r.ID)),
		slog.String("reason", string(reason)),
		slog.String("winner", string(winner)),
	)
}

func validateStart(r *model.Room, start *model.GameStart) error {
	if start == nil || !r.HasMember(start.CurrentTurn) {
		return fmt.Errorf("start game: %w", model.ErrInvalidGuessResult)
	}
	return nil
}

func validateOutcome(r *model.Room, userID model.UserID, o *model.GuessOutcome) error {
	if o == nil || !o.Result.Valid() {
		return fmt.Errorf("guess: %w", model.ErrInvalidGuessResult)
	}
	if o.Result == model.GuessCorrect {
		if o.Status != model.GameStatusFinished || o.Winner != userID {
			return fmt.Errorf("guess: %w", model.ErrInvalidGuessResult)
		}
		return nil
	}
	if o.Status != model.GameStatusPlaying || !r.HasMember(o.NextTurn) {
		return fmt.Errorf("guess: %w", model.ErrInvalidGuessResult)
	}
	return nil
}
