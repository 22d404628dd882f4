package factory

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mcoot/guessduel-go/internal/collab"
	"github.com/mcoot/guessduel-go/internal/dependencies/clock"
	"github.com/mcoot/guessduel-go/internal/dependencies/random"
	"github.com/mcoot/guessduel-go/internal/metrics"
	"github.com/mcoot/guessduel-go/internal/registry"
	"github.com/mcoot/guessduel-go/internal/router"
	"github.com/mcoot/guessduel-go/internal/services/identity"
	"github.com/mcoot/guessduel-go/internal/services/room"
	"github.com/mcoot/guessduel-go/internal/services/rules"
	"github.com/mcoot/guessduel-go/internal/storage"
	"github.com/mcoot/guessduel-go/internal/storage/memory"
	redisstorage "github.com/mcoot/guessduel-go/internal/storage/redis"
	"github.com/mcoot/guessduel-go/internal/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains the collaborator services: identity and rules
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	IdentityService *identity.Service
	RulesService    *rules.Service
}

// Config holds configuration for the collaborator services
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates the collaborator services with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := orNop(cfg.Logger)

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	return newWithDependencies(store, clock.New(), random.New(), logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, logger *slog.Logger) *App {
	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		IdentityService: identity.New(store, logger),
		RulesService:    rules.New(store, clk, rnd, logger),
	}
}

// Close releases the storage backend if it holds connections
func (a *App) Close() error {
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RoomsApp contains the room service: the orchestrator that owns rooms and
// client connections and reaches the collaborators through Identity and Rules
type RoomsApp struct {
	Clock clock.Clock

	// Collaborators
	Identity collab.Identity
	Rules    collab.Rules

	// Observability
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// Orchestration
	Connections *registry.Registry
	Rooms       *room.Manager
	Router      *router.Router
	WebSocket   *ws.Handler
}

// RoomsConfig holds configuration for the room service
type RoomsConfig struct {
	// Logger is the application logger (optional)
	Logger *slog.Logger
	// Collab locates the collaborators and sets call policy.
	// If zero value, defaults to collab.DefaultConfig()
	Collab collab.Config
	// Room and Router tune the orchestrator. Zero values use defaults.
	Room   room.Config
	Router router.Config
	// HTTPClient is used for collaborator calls (optional)
	HTTPClient *http.Client
}

// NewRooms creates the room service talking to collaborators over HTTP
func NewRooms(cfg RoomsConfig) (*RoomsApp, error) {
	logger := orNop(cfg.Logger)

	collabCfg := cfg.Collab
	if collabCfg.IdentityURL == "" && collabCfg.RulesURL == "" {
		collabCfg = collab.DefaultConfig()
	}
	if err := collabCfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	identityClient := collab.NewIdentityClient(collabCfg, httpClient, m, logger)
	rulesClient := collab.NewRulesClient(collabCfg, httpClient, m, logger)

	app := newRoomsWithDependencies(identityClient, rulesClient, clock.New(), m, cfg.Room, cfg.Router, logger)
	m.RegisterRoomGauges(reg, app.Rooms.StatsByStatus)
	app.Gatherer = reg
	return app, nil
}

// newRoomsWithDependencies wires the orchestrator around the given
// collaborators (useful for testing)
func newRoomsWithDependencies(ident collab.Identity, rls collab.Rules, clk clock.Clock, m *metrics.Metrics, roomCfg room.Config, routerCfg router.Config, logger *slog.Logger) *RoomsApp {
	connections := registry.New(logger)
	rooms := room.NewManager(rls, clk, m, roomCfg, logger)
	msgRouter := router.New(connections, rooms, ident, m, routerCfg, logger)

	return &RoomsApp{
		Clock:       clk,
		Identity:    ident,
		Rules:       rls,
		Metrics:     m,
		Connections: connections,
		Rooms:       rooms,
		Router:      msgRouter,
		WebSocket:   ws.NewHandler(msgRouter, logger),
	}
}

// Close stops every room
func (a *RoomsApp) Close() {
	a.Rooms.Close()
}

func orNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return logger
}
