package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// requestIDLength keeps ids short enough for log lines.
const requestIDLength = 12

// withRequestID attaches a generated request id to the context and response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := gonanoid.New(requestIDLength)
		if err != nil {
			// Randomness failure; carry on without an id.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), ctxKeyRequestID, id),
		))
	})
}

// RequestID returns the request id from ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// withLogging logs every request with its duration and request id.
func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", RequestID(r.Context())),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// chainMiddlewares applies middlewares in order.
func chainMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}
