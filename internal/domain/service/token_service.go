package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenExpired is returned for a well-formed, correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenMalformed is returned for anything else that fails verification.
	ErrTokenMalformed = errors.New("token is malformed or has an invalid signature")
)

// Claims defines the custom claims for the JWT tokens. The permission set is never embedded.
type Claims struct {
	UserID uuid.UUID `json:"userId"`
	Type   string    `json:"type"`
	jwt.RegisteredClaims
}

// JTI returns the token lineage id.
func (c *Claims) JTI() string {
	return c.ID
}

// Expiry returns the expiry claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}

	return c.ExpiresAt.Time
}

// TokenPair is an access/refresh pair bound to the same (userID, jti).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	JTI              string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenService mints and verifies signed tokens with independent secrets and expiries.
type TokenService interface {
	// NewJTI returns a fresh, unique token lineage id.
	NewJTI() string

	// IssuePair mints an access and a refresh token bound to (userID, jti).
	IssuePair(userID uuid.UUID, jti string, now time.Time) (*TokenPair, error)

	// IssueAccess mints a new access token for an existing lineage.
	IssueAccess(userID uuid.UUID, jti string, now time.Time) (string, error)

	// VerifyAccess verifies an access token. Fails with ErrTokenExpired or ErrTokenMalformed.
	VerifyAccess(token string) (*Claims, error)

	// VerifyRefresh verifies a refresh token. Fails with ErrTokenExpired or ErrTokenMalformed.
	VerifyRefresh(token string) (*Claims, error)

	// HashToken returns the digest stored in place of a raw refresh token.
	HashToken(token string) string
}
