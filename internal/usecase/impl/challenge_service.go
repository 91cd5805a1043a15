package impl

import (
	"context"
	"log/slog"
	"time"

	"backoffice/config"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/errors"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	defaultChallengeTTL         = 5 * time.Minute
	defaultChallengeMaxAttempts = 5
)

// challengeService implements the ChallengeUsecase interface.
type challengeService struct {
	txManager     repository.TransactionManager
	challengeRepo repository.ChallengeRepository
	codeHasher    service.CodeHasher
	generator     service.CodeGenerator
	notifier      service.Notifier
	ttl           time.Duration
	maxAttempts   int
	timeout       time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// ChallengeServiceParams holds dependencies for ChallengeService, injected by Fx.
type ChallengeServiceParams struct {
	fx.In

	TxManager     repository.TransactionManager
	ChallengeRepo repository.ChallengeRepository
	CodeHasher    service.CodeHasher
	Generator     service.CodeGenerator
	Notifier      service.Notifier
	Config        *config.Config
	Logger        *slog.Logger
}

// NewChallengeService is the constructor for challengeService.
func NewChallengeService(params ChallengeServiceParams) usecase.ChallengeUsecase {
	ttl := defaultChallengeTTL
	maxAttempts := defaultChallengeMaxAttempts
	if tf := params.Config.TwoFactor; tf != nil {
		if tf.CodeTTL > 0 {
			ttl = tf.CodeTTL
		}
		if tf.MaxAttempts > 0 {
			maxAttempts = tf.MaxAttempts
		}
	}

	return &challengeService{
		txManager:     params.TxManager,
		challengeRepo: params.ChallengeRepo,
		codeHasher:    params.CodeHasher,
		generator:     params.Generator,
		notifier:      params.Notifier,
		ttl:           ttl,
		maxAttempts:   maxAttempts,
		timeout:       datastoreTimeout(params.Config),
		now:           time.Now,
		logger:        params.Logger,
	}
}

func (srv *challengeService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Create supersedes every pending challenge of the user, stores a fresh one and dispatches its code.
// A delivery failure is logged and swallowed: the challenge exists either way.
func (srv *challengeService) Create(ctx context.Context, user *entity.User) (uuid.UUID, error) {
	code, err := srv.generator.Generate()
	if err != nil {
		return uuid.Nil, errors.Wrap(domainerrors.ErrInternalError, err.Error())
	}

	codeHash, err := srv.codeHasher.Hash(code)
	if err != nil {
		return uuid.Nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	now := srv.now()
	challenge := &entity.Challenge{
		ID:        uuid.New(),
		UserID:    user.ID,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(srv.ttl),
		CreatedAt: now,
	}

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	err = srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
		challengeRepo := repoFactory.ChallengeRepo()

		superseded, err := challengeRepo.InvalidatePending(dbCtx, user.ID, now)
		if err != nil {
			return errors.Wrap(err, "failed to invalidate pending challenges")
		}
		if superseded > 0 {
			srv.log(ctx).Debug("Superseded pending challenges", slog.Any("userID", user.ID), slog.Int64("count", superseded))
		}

		return errors.Wrap(challengeRepo.Create(dbCtx, challenge), "failed to create challenge")
	})
	if err != nil {
		srv.log(ctx).Error("Failed to create challenge", slog.Any("userID", user.ID), slog.Any("error", err))

		return uuid.Nil, err
	}

	if err := srv.notifier.Send(ctx, user.Email, code, srv.ttl); err != nil {
		srv.log(ctx).Warn("Two-factor code delivery failed",
			slog.Any("userID", user.ID),
			slog.Any("challengeID", challenge.ID),
			slog.Any("error", err),
		)
	}

	return challenge.ID, nil
}

// Verify checks code against a pending challenge. A mismatch counts an attempt and
// burns the challenge once the attempts reach the maximum.
func (srv *challengeService) Verify(ctx context.Context, challengeID uuid.UUID, code string) (uuid.UUID, error) {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	now := srv.now()

	challenge, err := srv.challengeRepo.FindByID(dbCtx, challengeID)
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return uuid.Nil, domainerrors.ErrChallengeNotFound
	}
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to find challenge")
	}

	if challenge.UsedAt != nil {
		return uuid.Nil, domainerrors.ErrChallengeAlreadyUsed
	}
	if !challenge.ExpiresAt.After(now) {
		return uuid.Nil, domainerrors.ErrChallengeExpired
	}

	if !srv.codeHasher.Check(code, challenge.CodeHash) {
		updated, err := srv.challengeRepo.RecordFailure(dbCtx, challengeID, srv.maxAttempts, now)
		if errors.Is(err, repository.ErrChallengeNotPending) {
			return uuid.Nil, domainerrors.ErrChallengeAlreadyUsed
		}
		if err != nil {
			return uuid.Nil, errors.Wrap(err, "failed to record challenge failure")
		}
		if updated.UsedAt != nil {
			srv.log(ctx).Warn("Challenge burned after max attempts", slog.Any("challengeID", challengeID), slog.Any("userID", challenge.UserID))
		}

		return uuid.Nil, domainerrors.ErrCodeMismatch
	}

	if err := srv.challengeRepo.Consume(dbCtx, challengeID, now); err != nil {
		if errors.Is(err, repository.ErrChallengeNotPending) {
			return uuid.Nil, domainerrors.ErrChallengeAlreadyUsed
		}

		return uuid.Nil, errors.Wrap(err, "failed to consume challenge")
	}

	return challenge.UserID, nil
}
