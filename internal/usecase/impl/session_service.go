package impl

import (
	"context"
	"log/slog"
	"time"

	"backoffice/config"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/constants"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/errors"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	defaultSessionPageLimit = 20
	maxSessionPageLimit     = 100
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	sessionRepo   repository.SessionRepository
	challengeRepo repository.ChallengeRepository
	audit         service.AuditRecorder
	timeout       time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// SessionServiceParams holds dependencies for SessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	SessionRepo   repository.SessionRepository
	ChallengeRepo repository.ChallengeRepository
	Audit         service.AuditRecorder
	Config        *config.Config
	Logger        *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		sessionRepo:   params.SessionRepo,
		challengeRepo: params.ChallengeRepo,
		audit:         params.Audit,
		timeout:       datastoreTimeout(params.Config),
		now:           time.Now,
		logger:        params.Logger,
	}
}

func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ListSessions returns a page of the user's live sessions and flags the one behind currentJTI.
func (srv *sessionService) ListSessions(ctx context.Context, userID uuid.UUID, currentJTI string, page, limit int) (*usecase.SessionPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = defaultSessionPageLimit
	case limit > maxSessionPageLimit:
		limit = maxSessionPageLimit
	}

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	sessions, total, err := srv.sessionRepo.ListLive(dbCtx, userID, srv.now(), (page-1)*limit, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	items := make([]usecase.SessionView, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, usecase.SessionView{Session: session, Current: session.JTI == currentJTI})
	}

	return &usecase.SessionPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// RevokeSession ends one live session owned by the user.
func (srv *sessionService) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID, client usecase.ClientInfo) error {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	err := srv.sessionRepo.Revoke(dbCtx, sessionID, userID, srv.now())
	if errors.Is(err, repository.ErrSessionNotFound) {
		err = domainerrors.ErrSessionNotFound
	} else if err != nil {
		err = errors.Wrap(err, "failed to revoke session")
	}

	srv.audit.Record(ctx, newAuditEntry(constants.ActionDelete, constants.ResourceSession, uuidPtr(userID), sessionID.String(), client, err))
	if err != nil {
		return err
	}

	srv.log(ctx).Info("Session revoked", slog.Any("userID", userID), slog.Any("sessionID", sessionID))

	return nil
}

// Reap deletes expired sessions, sessions revoked longer than the retention ago and stale challenges.
func (srv *sessionService) Reap(ctx context.Context, now time.Time, revokedRetention time.Duration) (*usecase.ReapResult, error) {
	cutoff := now.Add(-revokedRetention)

	sessions, err := srv.sessionRepo.DeleteStale(ctx, now, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reap sessions")
	}

	challenges, err := srv.challengeRepo.DeleteStale(ctx, cutoff)
	if err != nil {
		return &usecase.ReapResult{Sessions: sessions}, errors.Wrap(err, "failed to reap challenges")
	}

	return &usecase.ReapResult{Sessions: sessions, Challenges: challenges}, nil
}
