package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/admingate/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
)

// SessionChecker reports the live session of a tab, if any
type SessionChecker interface {
	ActiveSession(ctx context.Context, browserID, tabID string) (*models.SessionRecord, bool)
}

// RequireSession validates the bearer session token and checks that the
// gatekeeper it was issued by still holds the same session. A token outlives
// a logout or lockout only until the next request.
func RequireSession(tm *TokenManager, sessions SessionChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			if tabID := r.Header.Get(TabIDHeader); tabID != "" && tabID != claims.TabID {
				http.Error(w, "token was issued to another tab", http.StatusUnauthorized)
				return
			}

			session, ok := sessions.ActiveSession(r.Context(), claims.BrowserID, claims.TabID)
			if !ok || session.ID != claims.SessionID {
				http.Error(w, "session has ended", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
