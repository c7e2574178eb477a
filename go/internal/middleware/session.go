// Package middleware holds the HTTP middleware shared by the API services.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/internal/httpx"
	"github.com/mcdev12/chainwatch/go/internal/models"
)

type contextKey int

const userKey contextKey = iota

// SessionLookup resolves a session token to its user.
// A nil user with a nil error means the token is unknown.
type SessionLookup interface {
	FindUserBySession(ctx context.Context, token string) (*models.User, error)
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by RequireSession
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// RequireSession rejects requests without a valid "Authorization: Bearer <token>" header.
// Every authenticated request marks the user active on tracker, which may be nil.
func RequireSession(lookup SessionLookup, tracker *ActivityTracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httpx.Error(w, http.StatusUnauthorized, "Missing or invalid authorization header")
				return
			}

			user, err := lookup.FindUserBySession(r.Context(), token)
			if err != nil {
				log.Error().Err(err).Msg("session lookup failed")
				httpx.Error(w, http.StatusInternalServerError, "internal error")
				return
			}
			if user == nil {
				httpx.Error(w, http.StatusUnauthorized, "Invalid session token")
				return
			}

			if tracker != nil {
				tracker.Touch(user.ID)
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
