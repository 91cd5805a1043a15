package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session tracks one refresh-token lineage so it can be listed and revoked.
type Session struct {
	ID               uuid.UUID  // Unique identifier of the session row.
	UserID           uuid.UUID  // Owning user.
	JTI              string     // Token lineage id shared by the access and refresh tokens. Unique per user.
	RefreshTokenHash string     // SHA-256 hex digest of the refresh token. The raw token is never stored.
	IP               string     // Client IP at login.
	UserAgent        string     // Client user agent at login.
	ExpiresAt        time.Time  // Taken from the refresh token's own expiry claim.
	RevokedAt        *time.Time // Nil while the session has not been revoked.
	CreatedAt        time.Time  // Login time.
}

// IsLive reports whether the session is unrevoked and unexpired at now.
func (s *Session) IsLive(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
