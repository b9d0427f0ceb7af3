package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/blogbackend/backend/internal/auth/policy"
	requestlog "github.com/blogbackend/backend/internal/middleware"
)

type contextKey string

const identityKey contextKey = "identity"

// SessionCookieName is the cookie that carries the session token
const SessionCookieName = "jwt"

// TokenValidator validates a session token and returns the identity it carries
type TokenValidator interface {
	Validate(token string) (*policy.Identity, error)
}

// AuthMiddleware validates the session token and puts the caller identity into the request context
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)

			// If no token found, return 401
			if token == "" {
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			identity, err := tokens.Validate(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			requestlog.SetUserID(r.Context(), identity.UserID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequirePolicy rejects callers whose identity may not perform op.
// It must be mounted after AuthMiddleware.
func RequirePolicy(op policy.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !policy.Evaluate(identity, op, 0) {
				respondError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ExtractToken reads the session token from the Authorization header or the session cookie
func ExtractToken(r *http.Request) string {
	// Expected format: "Bearer <token>"
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1]
		}
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil {
		return cookie.Value
	}
	return ""
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity *policy.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the caller identity from context
func GetIdentity(ctx context.Context) (*policy.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*policy.Identity)
	return identity, ok && identity != nil
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
