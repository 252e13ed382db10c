// Package auth verifies caller identity. Tokens are HS256 JWTs carrying the
// user, the tenant and an optional admin role; every request is scoped to
// the tenant its token names.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Identity is the verified caller.
type Identity struct {
	UserID string
	OrgID  string
	Admin  bool
}

// Authenticator signs and verifies access tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthenticator creates an authenticator. ttl <= 0 defaults to 7 days.
func NewAuthenticator(secret string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl}, nil
}

// Sign issues a token for the given identity.
func (a *Authenticator) Sign(identity Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   identity.UserID,
		"org":   identity.OrgID,
		"admin": identity.Admin,
		"iat":   now.Unix(),
		"exp":   now.Add(a.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a token, returning the caller identity.
func (a *Authenticator) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, errors.New("missing subject claim")
	}
	orgID, ok := claims["org"].(string)
	if !ok || orgID == "" {
		return nil, errors.New("missing org claim")
	}
	admin, _ := claims["admin"].(bool)

	return &Identity{UserID: userID, OrgID: orgID, Admin: admin}, nil
}

type contextKey string

const identityKey contextKey = "auth.identity"

// WithIdentity attaches a verified identity to the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the verified identity, if present.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok
}
