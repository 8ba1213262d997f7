package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"go.viam.com/sceneaid/logging"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-Id"

type loggerKey struct{}

func loggerFromContext(ctx context.Context, fallback logging.Logger) logging.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(logging.Logger); ok {
		return logger
	}
	return fallback
}

// requestID tags every request with an id, echoes it in the response and attaches a
// logger carrying it to the request context.
func requestID(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			reqLogger := logger.Sublogger("request").WithFields("id", id)
			start := time.Now()
			ctx := context.WithValue(r.Context(), loggerKey{}, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
			reqLogger.Debugw("handled", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
		})
	}
}

// rateLimit rejects requests with 429 once the shared token bucket is empty.
func rateLimit(limiter *rate.Limiter, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				loggerFromContext(r.Context(), logger).Warnw("rate limited", "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
