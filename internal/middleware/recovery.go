package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicHandler is a function that handles panics and writes an error response
type PanicHandler func(w http.ResponseWriter, r *http.Request, err any)

// Recovery creates panic recovery middleware with a custom panic handler
func Recovery(logger *slog.Logger, handler PanicHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logPanic(logger, err,
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
					handler(w, r, err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Protect runs fn and reports whether it panicked. Used where there is no
// HTTP response to fail, such as a single websocket message.
func Protect(logger *slog.Logger, fn func(), attrs ...slog.Attr) (panicked bool) {
	defer func() {
		if err := recover(); err != nil {
			logPanic(logger, err, attrs...)
			panicked = true
		}
	}()

	fn()
	return false
}

func logPanic(logger *slog.Logger, err any, attrs ...slog.Attr) {
	args := []any{
		slog.Any("error", err),
		slog.String("stack", string(debug.Stack())),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Error("panic recovered", args...)
}
