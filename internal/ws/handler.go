package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/guessduel-go/internal/middleware"
	"github.com/mcoot/guessduel-go/internal/registry"
)

// MessageHandler receives the lifecycle of every client connection
type MessageHandler interface {
	Connect(conn registry.Conn)
	Handle(ctx context.Context, conn registry.Conn, data []byte)
	OnDisconnect(ctx context.Context, conn registry.Conn)
}

// Handler upgrades HTTP requests to websocket client connections
type Handler struct {
	handler  MessageHandler
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a websocket handler
func NewHandler(handler MessageHandler, logger *slog.Logger) *Handler {
	return &Handler{
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "ws")),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
// Messages from one connection are handled in arrival order.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.logger.Debug("upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := newConn(socket, h.logger)
	h.handler.Connect(conn)
	go conn.writePump()

	// The request context is cancelled once the handler returns, so message
	// handling runs detached from it.
	ctx := context.WithoutCancel(r.Context())
	conn.readPump(func(data []byte) {
		if middleware.Protect(h.logger, func() { h.handler.Handle(ctx, conn, data) },
			slog.String("conn_id", conn.ID()),
		) {
			// The connection state is unknown after a panic
			conn.Close()
		}
	})

	conn.Close()
	h.handler.OnDisconnect(ctx, conn)
}
