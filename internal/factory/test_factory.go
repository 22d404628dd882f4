package factory

import (
	"time"

	"github.com/mcoot/guessduel-go/internal/dependencies/mocks"
	"github.com/mcoot/guessduel-go/internal/router"
	"github.com/mcoot/guessduel-go/internal/services/room"
	"github.com/mcoot/guessduel-go/internal/storage/memory"
	"github.com/mcoot/guessduel-go/internal/testutil"
)

// TestApp wires the collaborators and the room service together in process
type TestApp struct {
	*App
	Rooms *RoomsApp

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates a TestApp with mocked clock and random. The room
// service calls the collaborator services directly instead of over HTTP.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	logger := testutil.NopLogger()

	app := newWithDependencies(store, mockClock, mockRandom, logger)
	rooms := newRoomsWithDependencies(app.IdentityService, app.RulesService, mockClock, nil,
		room.DefaultConfig(), router.DefaultConfig(), logger)

	return &TestApp{
		App:        app,
		Rooms:      rooms,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// QueueGame makes the next started game use secret, with the player at
// index starter taking the first turn
func (t *TestApp) QueueGame(secret, starter int) {
	t.MockRandom.QueueIntn(secret-1, starter)
}

// Close stops the room service
func (t *TestApp) Close() {
	t.Rooms.Close()
}
