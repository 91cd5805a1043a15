package repository

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when no live session matched a lookup or a conditional revoke.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when (user, jti) is already taken.
	ErrSessionExists = errors.New("session already exists")
)

// SessionRepository is the session ledger. Every mutation is a conditional write
// guarded by "revoked_at IS NULL", and every read checks expiry against now.
type SessionRepository interface {
	// Create opens a session row.
	Create(ctx context.Context, session *entity.Session) error

	// FindLive returns the session for (userID, jti) when it is unrevoked and unexpired at now.
	FindLive(ctx context.Context, userID uuid.UUID, jti string, now time.Time) (*entity.Session, error)

	// Revoke ends one live session owned by userID. Missing, foreign, revoked or
	// expired sessions yield ErrSessionNotFound.
	Revoke(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) error

	// RevokeByJTI ends the live session (userID, jti), with the same failure semantics as Revoke.
	RevokeByJTI(ctx context.Context, userID uuid.UUID, jti string, now time.Time) error

	// RevokeAllByUserID ends every live session of the user and returns how many were ended.
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)

	// ListLive returns a page of live sessions, newest first, plus the total live count.
	ListLive(ctx context.Context, userID uuid.UUID, now time.Time, offset, limit int) ([]*entity.Session, int64, error)

	// DeleteStale removes sessions expired before now or revoked before revokedBefore.
	DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error)
}
