package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/handlers"
	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/models"
)

const sessionCookieName = "session_token"

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*models.User, error)
}

type PresenceTracker interface {
	Touch(ctx context.Context, userID uuid.UUID) error
}

type AuthMiddleware struct {
	authService SessionValidator
	presence    PresenceTracker
}

func NewAuthMiddleware(authService SessionValidator, presence PresenceTracker) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		presence:    presence,
	}
}

// Authenticate resolves the session cookie into a user. Requests without a
// valid session pass through anonymously; handlers decide whether that is
// allowed.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.authService.ValidateSession(r.Context(), cookie.Value)
		if err != nil || user == nil {
			next.ServeHTTP(w, r)
			return
		}

		if m.presence != nil {
			if err := m.presence.Touch(r.Context(), user.ID); err != nil {
				logging.Warn("Failed to update presence", map[string]interface{}{
					"user_id": user.ID.String(),
					"error":   err.Error(),
				})
			}
		}

		next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
	})
}

// RequireAuth rejects anonymous requests.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
