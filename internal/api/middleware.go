package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"
)

type ctxKey int

const callerKey ctxKey = iota

type caller struct {
	id   int
	role models.Role
}

func callerFrom(ctx context.Context) (int, models.Role, bool) {
	c, ok := ctx.Value(callerKey).(caller)
	return c.id, c.role, ok
}

// Authenticate verifies the bearer token and stores the caller's identity in
// the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			h.writeError(w, apperr.Unauthorized("authorization header required"))
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		id, role, err := h.Auth.UserFromToken(token)
		if err != nil {
			h.writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller{id: id, role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per completed request, tagged with a request
// id that is also echoed back to the client.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rid := uuid.NewString()
			w.Header().Set("X-Request-Id", rid)
			next.ServeHTTP(w, r)
			log.Info("request",
				"request_id", rid,
				"method", r.Method,
				"path", r.URL.Path,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
