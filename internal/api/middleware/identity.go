package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/api/shared"
)

// IdentityHeader carries the caller's user id, set by the platform gateway
// after it authenticates the request. This service trusts the header and
// does no authentication of its own.
const IdentityHeader = "X-Neuink-User-ID"

// RequireIdentity parses the gateway identity header into the request
// context and rejects requests that lack a usable caller id.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdentityHeader)
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity required")
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid caller identity")
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the caller id placed in the context by RequireIdentity.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}
