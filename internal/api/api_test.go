package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/guessduel-go/internal/api"
	"github.com/mcoot/guessduel-go/internal/api/apierr"
	"github.com/mcoot/guessduel-go/internal/api/middleware"
	"github.com/mcoot/guessduel-go/internal/api/response"
	"github.com/mcoot/guessduel-go/internal/dependencies/mocks"
	"github.com/mcoot/guessduel-go/internal/metrics"
	"github.com/mcoot/guessduel-go/internal/services/identity"
	"github.com/mcoot/guessduel-go/internal/services/room"
	"github.com/mcoot/guessduel-go/internal/services/rules"
	"github.com/mcoot/guessduel-go/internal/storage/memory"
	"github.com/mcoot/guessduel-go/internal/testutil"
)

// testServer holds the three routers wired to in-memory services
type testServer struct {
	rooms    http.Handler
	identity http.Handler
	rules    http.Handler
	random   *mocks.MockRandom
	users    *identity.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := testutil.NopLogger()
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	random := mocks.NewMockRandom()

	identityService := identity.New(memory.New(), logger)
	rulesService := rules.New(memory.New(), clock, random, logger)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	manager := room.NewManager(rulesService, clock, m, room.DefaultConfig(), logger)
	t.Cleanup(manager.Close)
	m.RegisterRoomGauges(reg, manager.StatsByStatus)

	return &testServer{
		rooms: api.NewRoomsRouter(api.RoomsRouterConfig{
			Logger:   logger,
			Rooms:    manager,
			Identity: identityService,
			Gatherer: reg,
		}),
		identity: api.NewIdentityRouter(api.IdentityRouterConfig{
			Logger:          logger,
			IdentityService: identityService,
		}),
		rules: api.NewRulesRouter(api.RulesRouterConfig{
			Logger:       logger,
			RulesService: rulesService,
		}),
		random: random,
		users:  identityService,
	}
}

func request(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code)
	resp := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, code, resp.Error.Code)
}

func TestHealthChecks(t *testing.T) {
	ts := newTestServer(t)

	for name, h := range map[string]http.Handler{
		api.ServiceRooms:    ts.rooms,
		api.ServiceIdentity: ts.identity,
		api.ServiceRules:    ts.rules,
	} {
		rr := request(h, http.MethodGet, "/api/v1/health", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decode[response.HealthResponse](t, rr)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, name, resp.Service)
	}
}

// Identity tests

func TestRegisterUser(t *testing.T) {
	ts := newTestServer(t)

	rr := request(ts.identity, http.MethodPost, "/api/v1/users/register", map[string]string{"username": " alice "})
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode[response.User](t, rr)
	assert.Equal(t, "1", user.UserID)
	assert.Equal(t, "alice", user.Username)

	rr = request(ts.identity, http.MethodPost, "/api/v1/users/register", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", decode[response.User](t, rr).UserID)

	rr = request(ts.identity, http.MethodPost, "/api/v1/users/register", map[string]string{"username": "bob"})
	assert.Equal(t, "2", decode[response.User](t, rr).UserID)
}

func TestRegisterUserErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := request(ts.identity, http.MethodPost, "/api/v1/users/register", map[string]string{"username": "  "})
	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidUsername)

	rr = request(ts.identity, http.MethodPost, "/api/v1/users/register", "{not json")
	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidRequest)
}

func TestValidateUser(t *testing.T) {
	ts := newTestServer(t)
	request(ts.identity, http.MethodPost, "/api/v1/users/register", map[string]string{"username": "alice"})

	rr := request(ts.identity, http.MethodPost, "/api/v1/users/validate", map[string]string{"userId": "1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[response.ValidateResponse](t, rr).Valid)

	rr = request(ts.identity, http.MethodPost, "/api/v1/users/validate", map[string]string{"userId": "7"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[response.ValidateResponse](t, rr).Valid)

	rr = request(ts.identity, http.MethodPost, "/api/v1/users/validate", map[string]string{})
	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidRequest)
}

// Rules tests

func startGame(t *testing.T, ts *testServer, secret, starter int) {
	t.Helper()
	ts.random.QueueIntn(secret-1, starter)
	rr := request(ts.rules, http.MethodPost, "/api/v1/games", map[string]any{
		"roomId":    "1",
		"playerIds": []string{"1", "2"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestStartGameHidesSecret(t *testing.T) {
	ts := newTestServer(t)
	ts.random.QueueIntn(41, 1)

	rr := request(ts.rules, http.MethodPost, "/api/v1/games", map[string]any{
		"roomId":    "1",
		"playerIds": []string{"1", "2"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret\"")
	assert.NotContains(t, rr.Body.String(), "42")

	start := decode[response.GameStart](t, rr)
	assert.Equal(t, "2", start.CurrentTurnUserID)
	assert.Equal(t, "playing", start.Status)
	assert.Equal(t, [2]int{1, 100}, start.SecretRange)
	assert.Equal(t, []string{"1", "2"}, start.PlayerIDs)
}

func TestStartGameRejectsBadPlayers(t *testing.T) {
	ts := newTestServer(t)

	rr := request(ts.rules, http.MethodPost, "/api/v1/games", map[string]any{
		"roomId":    "1",
		"playerIds": []string{"1", "1"},
	})
	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidPlayers)
}

func TestGuessFlow(t *testing.T) {
	ts := newTestServer(t)
	startGame(t, ts, 42, 0)

	rr := request(ts.rules, http.MethodPost, "/api/v1/games/1/guess", map[string]any{"playerId": "2", "guess": 10})
	assertError(t, rr, http.StatusForbidden, apierr.CodeNotYourTurn)

	rr = request(ts.rules, http.MethodPost, "/api/v1/games/1/guess", map[string]any{"playerId": "1", "guess": 10})
	require.Equal(t, http.StatusOK, rr.Code)
	outcome := decode[response.GuessOutcome](t, rr)
	assert.Equal(t, "too_low", outcome.Result)
	assert.Equal(t, "2", outcome.NextTurnUserID)

	rr = request(ts.rules, http.MethodPost, "/api/v1/games/1/guess", map[string]any{"playerId": "2", "guess": 42})
	require.Equal(t, http.StatusOK, rr.Code)
	outcome = decode[response.GuessOutcome](t, rr)
	assert.Equal(t, "correct", outcome.Result)
	assert.Equal(t, "2", outcome.WinnerUserID)
	assert.Equal(t, "finished", outcome.Status)

	rr = request(ts.rules, http.MethodPost, "/api/v1/games/1/guess", map[string]any{"playerId": "1", "guess": 42})
	assertError(t, rr, http.StatusConflict, apierr.CodeGameFinished)

	rr = request(ts.rules, http.MethodGet, "/api/v1/games/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	game := decode[response.Game](t, rr)
	assert.Equal(t, "finished", game.Status)
	assert.Equal(t, "2", game.WinnerUserID)
	require.NotNil(t, game.Secret)
	assert.Equal(t, 42, *game.Secret)
}

func TestGetGameHidesSecretWhilePlaying(t *testing.T) {
	ts := newTestServer(t)
	startGame(t, ts, 42, 0)

	rr := request(ts.rules, http.MethodGet, "/api/v1/games/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret\"")

	game := decode[response.Game](t, rr)
	assert.Equal(t, "playing", game.Status)
	assert.Equal(t, "1", game.CurrentTurnUserID)
	assert.Equal(t, []string{"1", "2"}, game.PlayerIDs)

	rr = request(ts.rules, http.MethodGet, "/api/v1/games/9", nil)
	assertError(t, rr, http.StatusNotFound, apierr.CodeGameNotFound)
}

func TestGuessErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := request(ts.rules, http.MethodPost, "/api/v1/games/9/guess", map[string]any{"playerId": "1", "guess": 10})
	assertError(t, rr, http.StatusNotFound, apierr.CodeGameNotFound)

	rr = request(ts.rules, http.MethodPost, "/api/v1/games/9/guess", map[string]any{"playerId": "1"})
	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidGuess)

	rr = request(ts.rules, http.MethodPost, "/api/v1/games/9/guess", map[string]any{"playerId": "1", "guess": "ten"})
	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidGuess)
}

func TestForfeit(t *testing.T) {
	ts := newTestServer(t)
	startGame(t, ts, 42, 0)

	rr := request(ts.rules, http.MethodPost, "/api/v1/games/1/forfeit", map[string]any{"playerId": "1"})
	require.Equal(t, http.StatusOK, rr.Code)
	outcome := decode[response.ForfeitOutcome](t, rr)
	assert.Equal(t, "2", outcome.WinnerUserID)
	assert.Equal(t, "finished", outcome.Status)

	rr = request(ts.rules, http.MethodPost, "/api/v1/games/1/forfeit", map[string]any{"playerId": "2"})
	assertError(t, rr, http.StatusConflict, apierr.CodeGameFinished)
}

// Room service tests

func TestCreateRoom(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.users.Register(context.Background(), "alice")
	require.NoError(t, err)

	rr := request(ts.rooms, http.MethodPost, "/api/v1/rooms", map[string]string{"userId": "1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "1", decode[response.CreateRoomResponse](t, rr).RoomID)

	rr = request(ts.rooms, http.MethodGet, "/api/v1/rooms/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rm := decode[response.Room](t, rr)
	assert.Equal(t, "waiting", rm.Status)
	require.Len(t, rm.Members, 1)
	assert.Equal(t, "1", rm.Members[0].UserID)
}

func TestCreateRoomErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := request(ts.rooms, http.MethodPost, "/api/v1/rooms", map[string]string{"userId": "42"})
	assertError(t, rr, http.StatusNotFound, apierr.CodeUserNotFound)

	rr = request(ts.rooms, http.MethodPost, "/api/v1/rooms", map[string]string{})
	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidRequest)

	rr = request(ts.rooms, http.MethodGet, "/api/v1/rooms/5", nil)
	assertError(t, rr, http.StatusNotFound, apierr.CodeRoomNotFound)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.users.Register(context.Background(), "alice")
	require.NoError(t, err)
	request(ts.rooms, http.MethodPost, "/api/v1/rooms", map[string]string{"userId": "1"})

	rr := request(ts.rooms, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "guessduel_rooms_created_total 1")
	assert.Contains(t, rr.Body.String(), `guessduel_rooms{status="waiting"} 1`)
}

func TestRecoveryReturnsJSON(t *testing.T) {
	h := middleware.Recovery(testutil.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := request(h, http.MethodGet, "/", nil)
	assertError(t, rr, http.StatusInternalServerError, apierr.CodeInternalError)
}
