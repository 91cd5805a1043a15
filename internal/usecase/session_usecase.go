package usecase

import (
	"context"
	"time"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

// SessionView is a live session as shown to its owner.
type SessionView struct {
	Session *entity.Session
	Current bool // The session behind the request's own access token.
}

// SessionPage is one page of live sessions, newest first.
type SessionPage struct {
	Items []SessionView
	Total int64
	Page  int
	Limit int
}

// ReapResult counts the rows removed by one sweep.
type ReapResult struct {
	Sessions   int64
	Challenges int64
}

// SessionUsecase defines the interface for session management operations.
type SessionUsecase interface {
	ListSessions(ctx context.Context, userID uuid.UUID, currentJTI string, page, limit int) (*SessionPage, error)
	RevokeSession(ctx context.Context, userID, sessionID uuid.UUID, client ClientInfo) error

	// Reap deletes dead sessions and challenges. It is advisory; liveness never depends on it.
	Reap(ctx context.Context, now time.Time, revokedRetention time.Duration) (*ReapResult, error)
}
