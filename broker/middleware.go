package broker

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/idbroker/broker/internal/config"
)

// Middleware follows the teacher's chaining shape: a plain function
// wrapping a handler, composed outside-in by ChainMiddleware.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// ChainMiddleware applies mw to handler in reverse order so the first
// entry in mw runs first on a request.
func ChainMiddleware(handler http.HandlerFunc, mw ...Middleware) http.HandlerFunc {
	chained := handler
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

type requestIDKey struct{}

// RequestIDMiddleware tags each request with a UUID for log correlation.
// The broker's session ids are raw 16-byte hex per spec.md §3, so uuid
// is used here instead, purely for request tracing.
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next(w, r.WithContext(ctx))
	}
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingMiddleware logs method, path, status, and latency for every
// request via zerolog.
func LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next(sw, r)

		log.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// RecoverMiddleware turns a panicking handler into a 500 instead of a
// crashed process, logging the stack the way cmd/broker's top-level
// recovery does for goroutines outside the request path.
func RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Str("request_id", requestIDFrom(r.Context())).
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered in handler")
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// CorsMiddleware allows any origin to call /auth: this broker has no RP
// registry to check an Origin header against (see DESIGN.md, Open
// Question 2), so the response mirrors whatever Origin the caller sent.
func CorsMiddleware(anyOrigin config.AnyOrigin) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", anyOrigin.GetAllowedMethods())
				w.Header().Set("Access-Control-Allow-Headers", anyOrigin.GetAllowedHeaders())
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next(w, r)
		}
	}
}
