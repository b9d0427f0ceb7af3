package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the payload of a session token
type SessionClaims struct {
	UserID   int      `json:"uid"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	Elevated bool     `json:"elevated,omitempty"`
	jwt.RegisteredClaims
}

// TokenService handles session token issuance and validation
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(secret, issuer, audience string, expiry time.Duration) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// Expiry returns the lifetime of issued tokens
func (ts *TokenService) Expiry() time.Duration {
	return ts.expiry
}

// Issue signs a session token carrying the identity and its role claims.
// An elevated identity must hold the ADMIN role.
func (ts *TokenService) Issue(identity policy.Identity) (string, error) {
	if identity.Elevated && !identity.HasRole(policy.RoleAdmin) {
		return "", fmt.Errorf("elevated session requires %s role", policy.RoleAdmin)
	}

	roles := make([]string, 0, len(identity.Roles))
	for _, role := range identity.Roles {
		roles = append(roles, string(role))
	}

	now := time.Now()
	claims := SessionClaims{
		UserID:   identity.UserID,
		Email:    identity.Email,
		Roles:    roles,
		Elevated: identity.Elevated,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(identity.UserID),
			Issuer:    ts.issuer,
			Audience:  jwt.ClaimStrings{ts.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate checks signature, issuer, audience and expiry and returns the identity from the claims
func (ts *TokenService) Validate(tokenString string) (*policy.Identity, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return ts.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ts.issuer),
		jwt.WithAudience(ts.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	if claims.UserID <= 0 {
		return nil, fmt.Errorf("uid not found in token")
	}

	identity := &policy.Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Roles:    policy.ParseRoles(claims.Roles),
		Elevated: claims.Elevated,
	}
	// The elevated marker is only meaningful together with the role it was issued for
	if identity.Elevated && !identity.HasRole(policy.RoleAdmin) {
		return nil, fmt.Errorf("elevated token without %s role", policy.RoleAdmin)
	}

	return identity, nil
}
