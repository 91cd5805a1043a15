package repository

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrChallengeNotFound is returned when no challenge has the id.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeNotPending is returned when a conditional write finds the challenge used or expired.
	ErrChallengeNotPending = errors.New("challenge is not pending")
)

// ChallengeRepository stores two-factor challenges. Writes are guarded by "used_at IS NULL".
type ChallengeRepository interface {
	// Create persists a new challenge.
	Create(ctx context.Context, challenge *entity.Challenge) error

	// FindByID retrieves a challenge whatever its state.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error)

	// InvalidatePending marks every pending challenge of the user as used and returns how many.
	InvalidatePending(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)

	// RecordFailure atomically increments attempts on a pending challenge and burns it
	// when attempts reach maxAttempts. It returns the updated challenge or ErrChallengeNotPending.
	RecordFailure(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (*entity.Challenge, error)

	// Consume marks a pending challenge used. A concurrent consumer loses with ErrChallengeNotPending.
	Consume(ctx context.Context, id uuid.UUID, now time.Time) error

	// DeleteStale removes challenges that expired or were used before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
