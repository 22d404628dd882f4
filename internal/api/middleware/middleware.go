package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/guessduel-go/internal/api/apierr"
	"github.com/mcoot/guessduel-go/internal/middleware"
)

// Logging logs every API request under the "http" component
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(httpLogger(logger))
}

// Recovery turns a handler panic into the JSON internal error envelope
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(httpLogger(logger), func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}

func httpLogger(logger *slog.Logger) *slog.Logger {
	return logger.With(slog.String("component", "http"))
}
