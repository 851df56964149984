package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"trendpulse/internal/models"
	"trendpulse/internal/security"
	"trendpulse/internal/store"
)

type contextKey string

const userContextKey contextKey = "trendpulse.user"

var errUnauthorized = errors.New("authentication required")

// requireUser validates the bearer access token and resolves the user it
// names. Deactivated or vanished accounts are rejected even while their
// tokens are cryptographically valid.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		claims, err := a.codec.Verify(token, security.TokenAccess)
		if err != nil {
			respondError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respondError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		user, err := a.store.UserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusUnauthorized, errUnauthorized)
				return
			}
			a.log.Error().Err(err).Msg("resolve bearer user")
			respondError(w, http.StatusInternalServerError, errors.New("internal error"))
			return
		}
		if !user.IsActive {
			respondError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the user resolved by requireUser. Calling it outside a
// protected route is a programming error.
func currentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}
