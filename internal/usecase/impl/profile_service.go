package impl

import (
	"context"
	"log/slog"
	"time"

	"backoffice/config"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/errors"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

type profileService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	hasher    service.PasswordHasher
	audit     service.AuditRecorder
	timeout   time.Duration
	logger    *slog.Logger
}

// ProfileServiceParams holds dependencies for ProfileService, injected by Fx.
type ProfileServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Hasher    service.PasswordHasher
	Audit     service.AuditRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

func NewProfileService(params ProfileServiceParams) usecase.ProfileUsecase {
	return &profileService{
		txManager: params.TxManager,
		userRepo:  params.UserRepo,
		hasher:    params.Hasher,
		audit:     params.Audit,
		timeout:   datastoreTimeout(params.Config),
		logger:    params.Logger,
	}
}

func (srv *profileService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *profileService) record(ctx context.Context, action string, actor usecase.Actor, err error) {
	srv.audit.Record(ctx, newAuditEntry(action, constants.ResourceUser, uuidPtr(actor.UserID), actor.UserID.String(), actor.Client, err))
}

// GetProfile returns the caller's own identity.
func (srv *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	user, err := srv.findActive(dbCtx, userID)
	if err != nil {
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (srv *profileService) findActive(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindActiveByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrInactiveOrMissingUser
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	return user, nil
}

// UpdateProfile changes the caller's names under a row lock.
func (srv *profileService) UpdateProfile(ctx context.Context, actor usecase.Actor, input usecase.UpdateProfileInput) (*entity.User, error) {
	var updated *entity.User

	err := func() error {
		dbCtx, cancel := boundedContext(ctx, srv.timeout)
		defer cancel()

		return srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
			userRepo := repoFactory.UserRepo()

			user, err := userRepo.FindByIDForUpdate(dbCtx, actor.UserID)
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrInactiveOrMissingUser
			}
			if err != nil {
				return errors.Wrap(err, "failed to find user")
			}
			if !user.IsActive {
				return domainerrors.ErrInactiveOrMissingUser
			}

			if input.FirstName != nil {
				user.FirstName = *input.FirstName
			}
			if input.LastName != nil {
				user.LastName = *input.LastName
			}
			if err := userRepo.UpdateNames(dbCtx, user); err != nil {
				return mapUserWriteError(err)
			}
			updated = user

			return nil
		})
	}()

	srv.record(ctx, constants.ProfileActionUpdate, actor, err)
	if err != nil {
		srv.log(ctx).Warn("Failed to update profile", slog.Any("userID", actor.UserID), slog.Any("error", err))

		return nil, err
	}

	return sanitizeUser(updated), nil
}

// ChangePassword checks the current password, rejects an unchanged one and stores the
// new hash. The write only lands if the stored hash is still the one that was checked.
func (srv *profileService) ChangePassword(ctx context.Context, actor usecase.Actor, input usecase.ChangePasswordInput) error {
	err := srv.changePassword(ctx, actor.UserID, input)

	srv.record(ctx, constants.ProfileActionPasswordChange, actor, err)
	if err != nil {
		srv.log(ctx).Warn("Password change failed", slog.Any("userID", actor.UserID), slog.String("reason", errorCode(err)))

		return err
	}

	srv.log(ctx).Info("Password changed", slog.Any("userID", actor.UserID))

	return nil
}

func (srv *profileService) changePassword(ctx context.Context, userID uuid.UUID, input usecase.ChangePasswordInput) error {
	readCtx, cancelRead := boundedContext(ctx, srv.timeout)
	user, err := srv.findActive(readCtx, userID)
	cancelRead()
	if err != nil {
		return err
	}

	if !srv.hasher.Check(input.CurrentPassword, user.PasswordHash) {
		return domainerrors.ErrCurrentPasswordMismatch
	}
	if srv.hasher.Check(input.NewPassword, user.PasswordHash) {
		return domainerrors.ErrSamePassword
	}

	newHash, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	return srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		locked, err := userRepo.FindByIDForUpdate(dbCtx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return domainerrors.ErrInactiveOrMissingUser
		}
		if err != nil {
			return errors.Wrap(err, "failed to find user")
		}
		if !locked.IsActive {
			return domainerrors.ErrInactiveOrMissingUser
		}
		if locked.PasswordHash != user.PasswordHash {
			return domainerrors.ErrConflict.WrapMessage("password changed concurrently")
		}

		return mapUserWriteError(userRepo.UpdatePasswordHash(dbCtx, userID, newHash))
	})
}
