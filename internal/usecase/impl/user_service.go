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

// userService implements the UserUsecase interface.
type userService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	hasher    service.PasswordHasher
	audit     service.AuditRecorder
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// UserServiceParams holds dependencies for UserService, injected by Fx.
type UserServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Hasher    service.PasswordHasher
	Audit     service.AuditRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

// NewUserService is the constructor for userService. It receives all dependencies as interfaces.
func NewUserService(params UserServiceParams) usecase.UserUsecase {
	return &userService{
		txManager: params.TxManager,
		userRepo:  params.UserRepo,
		hasher:    params.Hasher,
		audit:     params.Audit,
		timeout:   datastoreTimeout(params.Config),
		now:       time.Now,
		logger:    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *userService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *userService) record(ctx context.Context, action string, actor usecase.Actor, targetID uuid.UUID, err error, metadata map[string]any) {
	entry := newAuditEntry(action, constants.ResourceUser, uuidPtr(actor.UserID), targetID.String(), actor.Client, err)
	if len(metadata) > 0 {
		if entry.Metadata == nil {
			entry.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			entry.Metadata[k] = v
		}
	}
	srv.audit.Record(ctx, entry)
}

// CreateUser creates an active user holding exactly the named roles.
func (srv *userService) CreateUser(ctx context.Context, actor usecase.Actor, input usecase.CreateUserInput) (*entity.User, error) {
	user, err := srv.createUser(ctx, input)
	var targetID uuid.UUID
	if user != nil {
		targetID = user.ID
	}
	srv.record(ctx, constants.ActionCreate, actor, targetID, err, nil)
	if err != nil {
		srv.log(ctx).Warn("Failed to create user", slog.Any("actorID", actor.UserID), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("User created", slog.Any("actorID", actor.UserID), slog.Any("userID", user.ID))

	return sanitizeUser(user), nil
}

func (srv *userService) createUser(ctx context.Context, input usecase.CreateUserInput) (*entity.User, error) {
	if len(input.Roles) == 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("at least one role is required")
	}

	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	now := srv.now()
	user := &entity.User{
		ID:           uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        entity.NormalizeEmail(input.Email),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	err = srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		exists, err := userRepo.ExistsByEmail(dbCtx, user.Email)
		if err != nil {
			return errors.Wrap(err, "failed to check email")
		}
		if exists {
			return domainerrors.ErrUserAlreadyExists
		}

		roles, err := findRoles(dbCtx, repoFactory.RoleRepo(), input.Roles)
		if err != nil {
			return err
		}
		user.Roles = roles

		return mapUserWriteError(userRepo.Create(dbCtx, user))
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser returns a user with its role graph, active or not.
func (srv *userService) GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	user, err := srv.userRepo.FindByID(dbCtx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	return sanitizeUser(user), nil
}

// UpdateUser applies the provided changes under a row lock. The active flag is only
// touched when the input names it, and an active -> inactive transition revokes every
// live session of the user inside the same transaction.
func (srv *userService) UpdateUser(ctx context.Context, actor usecase.Actor, id uuid.UUID, input usecase.UpdateUserInput) (*entity.User, error) {
	var (
		updated *entity.User
		revoked int64
	)

	err := func() error {
		if input.IsActive != nil && !*input.IsActive && id == actor.UserID {
			return domainerrors.ErrSelfModification
		}

		dbCtx, cancel := boundedContext(ctx, srv.timeout)
		defer cancel()

		return srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
			userRepo := repoFactory.UserRepo()

			user, err := userRepo.FindByIDForUpdate(dbCtx, id)
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}
			if err != nil {
				return errors.Wrap(err, "failed to find user")
			}

			if input.FirstName != nil || input.LastName != nil {
				if input.FirstName != nil {
					user.FirstName = *input.FirstName
				}
				if input.LastName != nil {
					user.LastName = *input.LastName
				}
				if err := userRepo.UpdateNames(dbCtx, user); err != nil {
					return mapUserWriteError(err)
				}
			}

			if input.Roles != nil {
				roles, err := findRoles(dbCtx, repoFactory.RoleRepo(), input.Roles)
				if err != nil {
					return err
				}
				if err := userRepo.ReplaceRoles(dbCtx, user.ID, roles); err != nil {
					return mapUserWriteError(err)
				}
				user.Roles = roles
			}

			if input.IsActive != nil {
				if *input.IsActive {
					if _, err := userRepo.Activate(dbCtx, user.ID); err != nil {
						return errors.Wrap(err, "failed to activate user")
					}
				} else {
					revoked, err = deactivate(dbCtx, repoFactory, user.ID, srv.now())
					if err != nil {
						return err
					}
				}
				user.IsActive = *input.IsActive
			}

			user.UpdatedAt = srv.now()
			updated = user

			return nil
		})
	}()

	srv.record(ctx, constants.ActionUpdate, actor, id, err, map[string]any{"revoked_sessions": revoked})
	if err != nil {
		srv.log(ctx).Warn("Failed to update user", slog.Any("actorID", actor.UserID), slog.Any("userID", id), slog.Any("error", err))

		return nil, err
	}

	if revoked > 0 {
		srv.log(ctx).Info("User deactivated", slog.Any("userID", id), slog.Int64("revokedSessions", revoked))
	}

	return sanitizeUser(updated), nil
}

// deactivate flips the active flag and revokes every live session. Only the caller that
// made the transition revokes; a concurrent deactivation finds nothing left to do.
func deactivate(ctx context.Context, repoFactory repository.RepositoryFactory, userID uuid.UUID, now time.Time) (int64, error) {
	changed, err := repoFactory.UserRepo().Deactivate(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to deactivate user")
	}
	if !changed {
		return 0, nil
	}

	revoked, err := repoFactory.SessionRepo().RevokeAllByUserID(ctx, userID, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to revoke sessions of deactivated user")
	}

	return revoked, nil
}

// DeleteUser revokes the user's live sessions and removes the user in one transaction.
func (srv *userService) DeleteUser(ctx context.Context, actor usecase.Actor, id uuid.UUID) error {
	var revoked int64

	err := func() error {
		if id == actor.UserID {
			return domainerrors.ErrSelfModification
		}

		dbCtx, cancel := boundedContext(ctx, srv.timeout)
		defer cancel()

		return srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
			userRepo := repoFactory.UserRepo()

			if _, err := userRepo.FindByID(dbCtx, id); err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return domainerrors.ErrUserNotFound
				}

				return errors.Wrap(err, "failed to find user")
			}

			var err error
			revoked, err = repoFactory.SessionRepo().RevokeAllByUserID(dbCtx, id, srv.now())
			if err != nil {
				return errors.Wrap(err, "failed to revoke sessions")
			}

			return mapUserWriteError(userRepo.Delete(dbCtx, id))
		})
	}()

	srv.record(ctx, constants.ActionDelete, actor, id, err, map[string]any{"revoked_sessions": revoked})
	if err != nil {
		srv.log(ctx).Warn("Failed to delete user", slog.Any("actorID", actor.UserID), slog.Any("userID", id), slog.Any("error", err))

		return err
	}

	srv.log(ctx).Info("User deleted", slog.Any("actorID", actor.UserID), slog.Any("userID", id), slog.Int64("revokedSessions", revoked))

	return nil
}

func findRoles(ctx context.Context, roleRepo repository.RoleRepository, names []string) ([]*entity.Role, error) {
	roles, err := roleRepo.FindByNames(ctx, names)
	if errors.Is(err, repository.ErrRoleNotFound) {
		return nil, domainerrors.ErrRoleNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load roles")
	}

	return roles, nil
}
