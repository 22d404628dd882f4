package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/guessduel-go/internal/api/handler"
	"github.com/mcoot/guessduel-go/internal/api/middleware"
	"github.com/mcoot/guessduel-go/internal/collab"
	"github.com/mcoot/guessduel-go/internal/services/identity"
	"github.com/mcoot/guessduel-go/internal/services/room"
	"github.com/mcoot/guessduel-go/internal/services/rules"
)

// Service names reported by health checks
const (
	ServiceRooms    = "rooms"
	ServiceIdentity = "identity"
	ServiceRules    = "rules"
)

// RoomsRouterConfig holds configuration for the room service router
type RoomsRouterConfig struct {
	Logger   *slog.Logger
	Rooms    *room.Manager
	Identity collab.Identity
	// WebSocket serves client connections on /ws
	WebSocket http.Handler
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRoomsRouter creates the room service router
func NewRoomsRouter(cfg RoomsRouterConfig) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(cfg.Rooms, cfg.Identity)

	api := newAPISubrouter(r, cfg.Logger)
	api.HandleFunc("/rooms", roomHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{roomId}", roomHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/health", handler.Health(ServiceRooms)).Methods(http.MethodGet)

	// The websocket endpoint sits outside the API middleware; the upgraded
	// connection outlives the request.
	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

// IdentityRouterConfig holds configuration for the identity service router
type IdentityRouterConfig struct {
	Logger          *slog.Logger
	IdentityService *identity.Service
}

// NewIdentityRouter creates the identity service router
func NewIdentityRouter(cfg IdentityRouterConfig) http.Handler {
	r := mux.NewRouter()

	identityHandler := handler.NewIdentityHandler(cfg.IdentityService)

	api := newAPISubrouter(r, cfg.Logger)
	api.HandleFunc("/users/register", identityHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/validate", identityHandler.Validate).Methods(http.MethodPost)
	api.HandleFunc("/health", handler.Health(ServiceIdentity)).Methods(http.MethodGet)

	return r
}

// RulesRouterConfig holds configuration for the rules service router
type RulesRouterConfig struct {
	Logger       *slog.Logger
	RulesService *rules.Service
}

// NewRulesRouter creates the rules service router
func NewRulesRouter(cfg RulesRouterConfig) http.Handler {
	r := mux.NewRouter()

	rulesHandler := handler.NewRulesHandler(cfg.RulesService)

	api := newAPISubrouter(r, cfg.Logger)
	api.HandleFunc("/games", rulesHandler.StartGame).Methods(http.MethodPost)
	api.HandleFunc("/games/{roomId}", rulesHandler.GetGame).Methods(http.MethodGet)
	api.HandleFunc("/games/{roomId}/guess", rulesHandler.Guess).Methods(http.MethodPost)
	api.HandleFunc("/games/{roomId}/forfeit", rulesHandler.Forfeit).Methods(http.MethodPost)
	api.HandleFunc("/health", handler.Health(ServiceRules)).Methods(http.MethodGet)

	return r
}

// newAPISubrouter mounts /api/v1 with the common middleware
func newAPISubrouter(r *mux.Router, logger *slog.Logger) *mux.Router {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(logger))
	api.Use(middleware.Logging(logger))
	return api
}
