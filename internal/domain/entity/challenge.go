package entity

import (
	"time"

	"github.com/google/uuid"
)

// Challenge is a pending two-factor verification. Only the hash of the code is kept.
type Challenge struct {
	ID        uuid.UUID  // Opaque challenge id handed to the client.
	UserID    uuid.UUID  // User that passed the password step.
	CodeHash  string     // One-way hash of the numeric code.
	ExpiresAt time.Time  // After this instant the challenge cannot be satisfied.
	UsedAt    *time.Time // Set when satisfied, superseded or burned.
	Attempts  int        // Failed verification attempts so far.
	CreatedAt time.Time
}

// IsPending reports whether the challenge can still be verified at now.
func (c *Challenge) IsPending(now time.Time) bool {
	return c.UsedAt == nil && c.ExpiresAt.After(now)
}
