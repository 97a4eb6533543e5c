package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"coinledger/internal/model"
)

// Trusted headers set by the authenticating proxy in front of this
// service. The proxy has already verified the session.
const (
	headerPrincipal = "X-Principal"
	headerRole      = "X-Role"
)

type contextKey string

const identityKey contextKey = "identity"

// identityMiddleware resolves the caller's identity from the trusted
// headers. Requests without a principal are rejected.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := r.Header.Get(headerPrincipal)
		if principal == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
			return
		}

		role := model.Role(r.Header.Get(headerRole))
		switch role {
		case model.RoleAdmin, model.RoleUser, model.RoleGuest:
		default:
			role = model.RoleUser
		}

		id := model.Identity{Principal: principal, Role: role}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerIdentity returns the identity resolved by identityMiddleware.
func callerIdentity(r *http.Request) model.Identity {
	id, _ := r.Context().Value(identityKey).(model.Identity)
	return id
}

// requestLogger logs each request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
