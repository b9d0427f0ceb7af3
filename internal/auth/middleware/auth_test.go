package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blogbackend/backend/internal/auth/policy"
	requestlog "github.com/blogbackend/backend/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockTokenValidator accepts exactly one token
type mockTokenValidator struct {
	token    string
	identity *policy.Identity
}

func (m *mockTokenValidator) Validate(token string) (*policy.Identity, error) {
	if token != m.token {
		return nil, errors.New("invalid token")
	}
	return m.identity, nil
}

func TestAuthMiddleware(t *testing.T) {
	user := &policy.Identity{UserID: 5, Email: "user@example.com", Roles: []policy.Role{policy.RoleUser}}
	validator := &mockTokenValidator{token: "good-token", identity: user}

	tests := []struct {
		name           string
		setupRequest   func(*http.Request)
		expectedStatus int
		expectIdentity bool
	}{
		{
			name: "bearer header",
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer good-token")
			},
			expectedStatus: http.StatusOK,
			expectIdentity: true,
		},
		{
			name: "lowercase bearer scheme",
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer good-token")
			},
			expectedStatus: http.StatusOK,
			expectIdentity: true,
		},
		{
			name: "session cookie",
			setupRequest: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-token"})
			},
			expectedStatus: http.StatusOK,
			expectIdentity: true,
		},
		{
			name: "malformed header falls back to cookie",
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Token good-token")
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-token"})
			},
			expectedStatus: http.StatusOK,
			expectIdentity: true,
		},
		{
			name:           "no credential",
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "invalid token",
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer bad-token")
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdentity *policy.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIdentity, _ = GetIdentity(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setupRequest(req)
			w := httptest.NewRecorder()

			AuthMiddleware(validator)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectIdentity {
				require.NotNil(t, gotIdentity)
				assert.Equal(t, user.UserID, gotIdentity.UserID)
			} else {
				assert.Nil(t, gotIdentity)
				assert.Contains(t, w.Body.String(), "error")
			}
		})
	}
}

func TestAuthMiddleware_AccessLogUserID(t *testing.T) {
	validator := &mockTokenValidator{token: "good-token", identity: &policy.Identity{UserID: 42}}

	tests := []struct {
		name       string
		header     string
		wantUserID bool
	}{
		{name: "authenticated", header: "Bearer good-token", wantUserID: true},
		{name: "rejected", header: "Bearer bad-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			handler := requestlog.LoggerMiddleware(zap.New(core))(AuthMiddleware(validator)(next))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.Header.Set("Authorization", tt.header)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, 1, logs.Len())
			fields := logs.All()[0].ContextMap()
			if tt.wantUserID {
				assert.Equal(t, int64(42), fields["user_id"])
			} else {
				assert.NotContains(t, fields, "user_id")
			}
		})
	}
}

func TestRequirePolicy(t *testing.T) {
	tests := []struct {
		name           string
		identity       *policy.Identity
		op             policy.Operation
		expectedStatus int
	}{
		{
			name:           "admin passes admin policy",
			identity:       &policy.Identity{UserID: 1, Roles: []policy.Role{policy.RoleUser, policy.RoleAdmin}},
			op:             policy.OpDeleteAnyPost,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "user rejected by admin policy",
			identity:       &policy.Identity{UserID: 2, Roles: []policy.Role{policy.RoleUser}},
			op:             policy.OpDeleteAnyPost,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "elevated marker alone is not enough",
			identity:       &policy.Identity{UserID: 3, Roles: []policy.Role{policy.RoleUser}, Elevated: true},
			op:             policy.OpUpdateAnyPost,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "owner role grants roles",
			identity:       &policy.Identity{UserID: 4, Roles: []policy.Role{policy.RoleOwner}},
			op:             policy.OpGrantRole,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing identity",
			identity:       nil,
			op:             policy.OpCreatePost,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodDelete, "/", nil)
			if tt.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.identity))
			}
			w := httptest.NewRecorder()

			RequirePolicy(tt.op)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
