package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"

	"github.com/mcoot/guessduel-go/internal/collab"
	"github.com/mcoot/guessduel-go/internal/dependencies/mocks"
	"github.com/mcoot/guessduel-go/internal/model"
	"github.com/mcoot/guessduel-go/internal/protocol"
	"github.com/mcoot/guessduel-go/internal/registry"
	"github.com/mcoot/guessduel-go/internal/services/identity"
	"github.com/mcoot/guessduel-go/internal/services/room"
	"github.com/mcoot/guessduel-go/internal/services/rules"
	"github.com/mcoot/guessduel-go/internal/storage/memory"
	"github.com/mcoot/guessduel-go/internal/testutil"
)

type mockConn struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	broken bool
}

func (c *mockConn) ID() string { return c.id }

func (c *mockConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return registry.ErrSendBufferFull
	}
	c.sent = append(c.sent, data)
	return nil
}

// messages decodes everything sent so far and clears the buffer
func (c *mockConn) messages() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.sent))
	for _, data := range c.sent {
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err == nil {
			out = append(out, msg)
		}
	}
	c.sent = nil
	return out
}

func types(msgs []map[string]any) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i], _ = m["type"].(string)
	}
	return out
}

// failingRules rejects every StartGame and delegates the rest
type failingRules struct {
	collab.Rules
	err error
}

func (f *failingRules) StartGame(ctx context.Context, roomID model.RoomID, players []model.UserID) (*model.GameStart, error) {
	return nil, f.err
}

type RouterSuite struct {
	suite.Suite
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	rules    collab.Rules
	registry *registry.Registry
	rooms    *room.Manager
	router   *Router
	ctx      context.Context
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.rules = rules.New(memory.New(), s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
	s.build(DefaultConfig())
}

func (s *RouterSuite) TearDownTest() {
	s.rooms.Close()
}

func (s *RouterSuite) build(cfg Config) {
	if s.rooms != nil {
		s.rooms.Close()
	}
	ident := identity.New(memory.New(), testutil.NopLogger())
	s.registry = registry.New(testutil.NopLogger())
	s.rooms = room.NewManager(s.rules, s.clock, nil, room.DefaultConfig(), testutil.NopLogger())
	s.router = New(s.registry, s.rooms, ident, nil, cfg, testutil.NopLogger())
}

func (s *RouterSuite) send(conn *mockConn, format string, args ...any) {
	s.router.Handle(s.ctx, conn, []byte(fmt.Sprintf(format, args...)))
}

func (s *RouterSuite) connect(id, username string) *mockConn {
	conn := &mockConn{id: id}
	s.router.Connect(conn)
	s.send(conn, `{"type":"login","username":%q}`, username)
	msgs := conn.messages()
	s.Require().Len(msgs, 1)
	s.Require().Equal("login_success", msgs[0]["type"])
	return conn
}

// startGame logs in two players, creates and fills a room and drains the
// announcements. The first player is alice ("1").
func (s *RouterSuite) startGame(secret, starter int) (*mockConn, *mockConn) {
	alice := s.connect("a", "alice")
	bob := s.connect("b", "bob")
	s.random.QueueIntn(secret-model.SecretMin, starter)

	s.send(alice, `{"type":"create_room"}`)
	s.send(bob, `{"type":"join_room","roomId":"1"}`)
	alice.messages()
	bob.messages()
	return alice, bob
}

func (s *RouterSuite) requireError(conn *mockConn, code string) map[string]any {
	msgs := conn.messages()
	s.Require().Len(msgs, 1)
	s.Require().Equal("error", msgs[0]["type"])
	s.Require().Equal(code, msgs[0]["code"])
	return msgs[0]
}

// Login tests

func (s *RouterSuite) TestLoginReturnsUser() {
	conn := &mockConn{id: "a"}
	s.router.Connect(conn)
	s.send(conn, `{"type":"login","username":"  alice "}`)

	msgs := conn.messages()
	s.Require().Len(msgs, 1)
	s.Equal("login_success", msgs[0]["type"])
	s.Equal("1", msgs[0]["userId"])
	s.Equal("alice", msgs[0]["username"])
}

func (s *RouterSuite) TestLoginWithInvalidUsername() {
	conn := &mockConn{id: "a"}
	s.router.Connect(conn)
	s.send(conn, `{"type":"login","username":"   "}`)

	s.requireError(conn, "MALFORMED_INPUT")
}

func (s *RouterSuite) TestActionsBeforeLogin() {
	conn := &mockConn{id: "a"}
	s.router.Connect(conn)

	for _, msg := range []string{
		`{"type":"create_room"}`,
		`{"type":"join_room","roomId":"1"}`,
		`{"type":"guess","roomId":"1","guess":5}`,
	} {
		s.router.Handle(s.ctx, conn, []byte(msg))
		errMsg := s.requireError(conn, "AUTH_REQUIRED")
		s.Equal("please login first", errMsg["error"])
	}
}

func (s *RouterSuite) TestMalformedAndUnknownMessages() {
	conn := s.connect("a", "alice")

	s.send(conn, `{not json`)
	errMsg := s.requireError(conn, "MALFORMED_INPUT")
	s.Equal("invalid JSON", errMsg["error"])

	s.send(conn, `{"type":"dance"}`)
	s.requireError(conn, "MALFORMED_INPUT")
}

func (s *RouterSuite) TestOversizedMessageIsRejected() {
	conn := s.connect("a", "alice")

	s.send(conn, `{"type":"create_room","pad":%q}`, strings.Repeat("x", protocol.MaxMessageSize))
	errMsg := s.requireError(conn, "MALFORMED_INPUT")
	s.Equal("message too large", errMsg["error"])

	// The connection keeps working
	s.send(conn, `{"type":"create_room"}`)
	s.Equal([]string{"room_joined"}, types(conn.messages()))
}

func (s *RouterSuite) TestLoginTakeover() {
	first := s.connect("a", "alice")
	second := s.connect("b", "alice")

	s.requireError(first, "AUTH_REQUIRED")

	// The displaced connection is logged out
	s.send(first, `{"type":"create_room"}`)
	s.requireError(first, "AUTH_REQUIRED")

	s.send(second, `{"type":"create_room"}`)
	s.Equal([]string{"room_joined"}, types(second.messages()))
}

// Room tests

func (s *RouterSuite) TestCreateRoom() {
	conn := s.connect("a", "alice")
	s.send(conn, `{"type":"create_room"}`)

	msgs := conn.messages()
	s.Require().Len(msgs, 1)
	s.Equal("room_joined", msgs[0]["type"])
	s.Equal("1", msgs[0]["roomId"])
	s.Equal([]any{"1"}, msgs[0]["players"])

	roomID, ok := s.registry.RoomOf(conn)
	s.True(ok)
	s.Equal(model.RoomID("1"), roomID)
}

func (s *RouterSuite) TestJoinAnnouncesAndStartsGame() {
	alice := s.connect("a", "alice")
	bob := s.connect("b", "bob")
	s.random.QueueIntn(41, 0)

	s.send(alice, `{"type":"create_room"}`)
	alice.messages()
	s.send(bob, `{"type":"join_room","roomId":1}`)

	for _, conn := range []*mockConn{alice, bob} {
		msgs := conn.messages()
		s.Require().Equal([]string{"room_joined", "game_started"}, types(msgs))
		s.Equal([]any{"1", "2"}, msgs[0]["players"])
		s.Equal("1", msgs[1]["currentTurnUserId"])
		s.Equal("playing", msgs[1]["status"])
		s.Equal([]any{float64(1), float64(100)}, msgs[1]["secretRange"])
		s.NotContains(msgs[1], "secret")
	}
}

func (s *RouterSuite) TestJoinRequiresRoomID() {
	conn := s.connect("a", "alice")
	s.send(conn, `{"type":"join_room"}`)

	errMsg := s.requireError(conn, "MALFORMED_INPUT")
	s.Equal("roomId is required", errMsg["error"])
}

func (s *RouterSuite) TestJoinErrors() {
	alice, bob := s.startGame(50, 0)
	carol := s.connect("c", "carol")

	s.send(carol, `{"type":"join_room","roomId":"1"}`)
	s.requireError(carol, "STATE_CONFLICT")

	s.send(carol, `{"type":"join_room","roomId":"99"}`)
	s.requireError(carol, "NOT_FOUND")

	s.Empty(alice.messages())
	s.Empty(bob.messages())
}

func (s *RouterSuite) TestStartFailureNotifiesBothPlayers() {
	s.rules = &failingRules{Rules: s.rules, err: fmt.Errorf("rules start: %w", model.ErrUpstreamUnavailable)}
	s.build(DefaultConfig())

	alice := s.connect("a", "alice")
	bob := s.connect("b", "bob")
	s.send(alice, `{"type":"create_room"}`)
	alice.messages()
	s.send(bob, `{"type":"join_room","roomId":"1"}`)

	for _, conn := range []*mockConn{alice, bob} {
		errMsg := s.requireError(conn, "UPSTREAM_UNAVAILABLE")
		s.Contains(errMsg["error"], "failed to start game")
	}

	room, err := s.rooms.GetRoom(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(model.RoomStatusWaiting, room.Status)
	_, bound := s.registry.RoomOf(bob)
	s.False(bound)
}

// Guess tests

func (s *RouterSuite) TestGuessBroadcastsToBothPlayers() {
	alice, bob := s.startGame(42, 0)

	s.send(alice, `{"type":"guess","roomId":"1","guess":50}`)
	for _, conn := range []*mockConn{alice, bob} {
		msgs := conn.messages()
		s.Require().Len(msgs, 1)
		s.Equal("guess_result", msgs[0]["type"])
		s.Equal("too_high", msgs[0]["result"])
		s.Equal("1", msgs[0]["playerId"])
		s.Equal("2", msgs[0]["nextTurnUserId"])
		s.Contains(msgs[0], "winnerUserId")
		s.Nil(msgs[0]["winnerUserId"])
		s.Equal(float64(50), msgs[0]["guess"])
	}

	s.send(bob, `{"type":"guess","guess":"42"}`)
	for _, conn := range []*mockConn{alice, bob} {
		msgs := conn.messages()
		s.Require().Len(msgs, 1)
		s.Equal("correct", msgs[0]["result"])
		s.Equal("2", msgs[0]["winnerUserId"])
		s.Equal("2", msgs[0]["nextTurnUserId"])
		s.Equal("finished", msgs[0]["status"])
	}
}

func (s *RouterSuite) TestGuessOutOfTurnOnlyTellsSender() {
	alice, bob := s.startGame(42, 0)

	s.send(bob, `{"type":"guess","roomId":"1","guess":10}`)
	errMsg := s.requireError(bob, "STATE_CONFLICT")
	s.Equal("not your turn", errMsg["error"])
	s.Empty(alice.messages())
}

func (s *RouterSuite) TestGuessValidation() {
	alice, _ := s.startGame(42, 0)

	s.send(alice, `{"type":"guess","roomId":"1","guess":"abc"}`)
	s.requireError(alice, "MALFORMED_INPUT")

	s.send(alice, `{"type":"guess","roomId":"1"}`)
	s.requireError(alice, "MALFORMED_INPUT")

	s.send(alice, `{"type":"guess","roomId":"1","guess":500}`)
	s.requireError(alice, "MALFORMED_INPUT")
}

// Disconnect tests

func (s *RouterSuite) TestDisconnectMidGameForfeits() {
	alice, bob := s.startGame(42, 0)

	s.router.OnDisconnect(s.ctx, alice)

	msgs := bob.messages()
	s.Require().Len(msgs, 1)
	s.Equal("game_forfeited", msgs[0]["type"])
	s.Equal("1", msgs[0]["playerId"])
	s.Equal("2", msgs[0]["winnerUserId"])

	room, err := s.rooms.GetRoom(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(model.RoomStatusFinished, room.Status)
}

func (s *RouterSuite) TestDisconnectWhileWaitingAbandons() {
	alice := s.connect("a", "alice")
	s.send(alice, `{"type":"create_room"}`)
	alice.messages()

	s.router.OnDisconnect(s.ctx, alice)

	room, err := s.rooms.GetRoom(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(model.RoomStatusFinished, room.Status)
	s.Equal(model.FinishAbandoned, room.FinishReason)
	s.Equal(0, s.registry.Count())
}

func (s *RouterSuite) TestDisplacedConnectionCloseDoesNotForfeit() {
	alice, bob := s.startGame(42, 0)
	replacement := s.connect("a2", "alice")
	alice.messages()

	s.router.OnDisconnect(s.ctx, alice)
	s.Empty(bob.messages())

	// The room follows the user to the new connection
	s.send(replacement, `{"type":"guess","guess":10}`)
	msgs := bob.messages()
	s.Require().Len(msgs, 1)
	s.Equal("guess_result", msgs[0]["type"])
}

func (s *RouterSuite) TestCreatingAnotherRoomLeavesTheFirst() {
	alice := s.connect("a", "alice")
	s.send(alice, `{"type":"create_room"}`)
	s.send(alice, `{"type":"create_room"}`)
	alice.messages()

	first, err := s.rooms.GetRoom(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(model.FinishAbandoned, first.FinishReason)

	roomID, _ := s.registry.RoomOf(alice)
	s.Equal(model.RoomID("2"), roomID)
}

func (s *RouterSuite) TestReloginAsAnotherUserForfeitsGame() {
	alice, bob := s.startGame(42, 0)

	s.send(alice, `{"type":"login","username":"carol"}`)
	msgs := alice.messages()
	s.Require().Len(msgs, 1)
	s.Equal("login_success", msgs[0]["type"])

	msgs = bob.messages()
	s.Require().Len(msgs, 1)
	s.Equal("game_forfeited", msgs[0]["type"])
	s.Equal("1", msgs[0]["playerId"])
	s.Equal("2", msgs[0]["winnerUserId"])

	room, err := s.rooms.GetRoom(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(model.RoomStatusFinished, room.Status)
	s.Equal(model.FinishForfeit, room.FinishReason)

	_, ok := s.registry.RoomOf(alice)
	s.False(ok)
	_, ok = s.registry.Lookup("1")
	s.False(ok)

	// Closing the connection later has nothing left to apply
	s.router.OnDisconnect(s.ctx, alice)
	s.Empty(bob.messages())
}

func (s *RouterSuite) TestReloginAsAnotherUserAbandonsWaitingRoom() {
	alice := s.connect("a", "alice")
	s.send(alice, `{"type":"create_room"}`)
	alice.messages()

	s.send(alice, `{"type":"login","username":"carol"}`)

	room, err := s.rooms.GetRoom(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(model.FinishAbandoned, room.FinishReason)
	s.Equal([]string{"login_success"}, types(alice.messages()))
}

func (s *RouterSuite) TestReloginAsSameUserKeepsRoom() {
	alice, bob := s.startGame(42, 0)

	s.send(alice, `{"type":"login","username":"alice"}`)
	alice.messages()
	s.Empty(bob.messages())

	roomID, ok := s.registry.RoomOf(alice)
	s.True(ok)
	s.Equal(model.RoomID("1"), roomID)
}

func (s *RouterSuite) TestLoginAdoptsRoomCreatedWithoutConnection() {
	// As the HTTP create endpoint does: the room exists before its creator
	// has a connection
	created, err := s.rooms.CreateRoom(s.ctx, "1")
	s.Require().NoError(err)

	alice := s.connect("a", "alice")
	roomID, ok := s.registry.RoomOf(alice)
	s.Require().True(ok)
	s.Equal(created.ID, roomID)

	bob := s.connect("b", "bob")
	s.random.QueueIntn(41, 0)
	s.send(bob, `{"type":"join_room","roomId":%q}`, created.ID)
	s.Equal([]string{"room_joined", "game_started"}, types(alice.messages()))
	bob.messages()

	s.router.OnDisconnect(s.ctx, alice)

	msgs := bob.messages()
	s.Require().Len(msgs, 1)
	s.Equal("game_forfeited", msgs[0]["type"])

	room, err := s.rooms.GetRoom(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(model.FinishForfeit, room.FinishReason)
}

func (s *RouterSuite) TestLoginWithoutOpenRoomBindsNothing() {
	abandoned, err := s.rooms.CreateRoom(s.ctx, "1")
	s.Require().NoError(err)
	_, err = s.rooms.Disconnect(s.ctx, abandoned.ID, "1")
	s.Require().NoError(err)

	alice := s.connect("a", "alice")
	_, ok := s.registry.RoomOf(alice)
	s.False(ok)
}

// Delivery tests

func (s *RouterSuite) TestBroadcastSkipsFullBuffers() {
	alice, bob := s.startGame(42, 0)
	bob.mu.Lock()
	bob.broken = true
	bob.mu.Unlock()

	s.send(alice, `{"type":"guess","roomId":"1","guess":50}`)
	s.Equal([]string{"guess_result"}, types(alice.messages()))

	delivered := s.router.Broadcast("1", []model.UserID{"1", "2", "99"}, map[string]string{"type": "ping"})
	s.Equal(1, delivered)
}

func (s *RouterSuite) TestRateLimit() {
	s.build(Config{RateLimit: rate.Limit(0.001), RateBurst: 2})
	conn := &mockConn{id: "a"}
	s.router.Connect(conn)

	s.send(conn, `{"type":"login","username":"alice"}`)
	s.send(conn, `{"type":"create_room"}`)
	s.Equal([]string{"login_success", "room_joined"}, types(conn.messages()))

	s.send(conn, `{"type":"create_room"}`)
	s.requireError(conn, "RATE_LIMITED")
}
