package room

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/mcoot/guessduel-go/internal/model"
)

// actor owns one room. Every read-check-write on the room runs on the
// actor's goroutine, so operations on the same room never interleave.
type actor struct {
	room *model.Room
	ops  chan func()
	quit chan struct{}

	createdAt time.Time

	// Published after each operation, before its caller hears back, for
	// lock-free reads by the reaper and room lookups
	status     atomic.Value // model.RoomStatus
	finishedAt atomic.Int64 // unix nanos, zero until finished
	active     atomic.Value // []model.UserID of members still connected
}

func newActor(room *model.Room, queueSize int) *actor {
	a := &actor{
		room:      room,
		ops:       make(chan func(), queueSize),
		quit:      make(chan struct{}),
		createdAt: room.CreatedAt,
	}
	a.publish()
	return a
}

// run drains operations until quit is closed
func (a *actor) run() {
	for {
		select {
		case op := <-a.ops:
			op()
		case <-a.quit:
			return
		}
	}
}

func (a *actor) publish() {
	a.status.Store(a.room.Status)
	if !a.room.FinishedAt.IsZero() {
		a.finishedAt.Store(a.room.FinishedAt.UnixNano())
	}
	active := make([]model.UserID, 0, len(a.room.Members))
	for _, member := range a.room.Members {
		if member.State == model.MemberActive {
			active = append(active, member.UserID)
		}
	}
	a.active.Store(active)
}

// isActiveMember reports whether userID was a connected member as of the
// last published operation
func (a *actor) isActiveMember(userID model.UserID) bool {
	active, _ := a.active.Load().([]model.UserID)
	return slices.Contains(active, userID)
}

func (a *actor) currentStatus() model.RoomStatus {
	s, _ := a.status.Load().(model.RoomStatus)
	return s
}

// do runs fn on the actor's goroutine and waits for it to finish or for
// ctx to end. fn may still run after ctx ends if it was already queued.
func do[T any](ctx context.Context, a *actor, fn func(r *model.Room) (T, error)) (T, error) {
	var zero T
	type result struct {
		val T
		err error
	}
	res := make(chan result, 1)

	op := func() {
		v, err := fn(a.room)
		a.publish()
		res <- result{v, err}
	}

	select {
	case a.ops <- op:
	case <-a.quit:
		return zero, model.ErrRoomNotFound
	case <-ctx.Done():
		return zero, timedOut(ctx)
	}

	select {
	case r := <-res:
		return r.val, r.err
	case <-ctx.Done():
		return zero, timedOut(ctx)
	case <-a.quit:
		select {
		case r := <-res:
			return r.val, r.err
		default:
			return zero, model.ErrRoomNotFound
		}
	}
}

// timedOut reports a room that did not answer in time. A busy room is
// usually waiting on the rules service.
func timedOut(ctx context.Context) error {
	return fmt.Errorf("%w: room busy: %w", model.ErrUpstreamUnavailable, ctx.Err())
}
