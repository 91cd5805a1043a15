package impl

import (
	"context"
	"log/slog"
	"time"

	"backoffice/config"
	deliverycontext "backoffice/internal/delivery/context"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/errors"
	"backoffice/internal/usecase"

	"go.uber.org/fx"
)

// accessService implements the AccessUsecase interface.
type accessService struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	tokenService service.TokenService
	timeout      time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// AccessServiceParams holds dependencies for AccessService, injected by Fx.
type AccessServiceParams struct {
	fx.In

	UserRepo     repository.UserRepository
	SessionRepo  repository.SessionRepository
	TokenService service.TokenService
	Config       *config.Config
	Logger       *slog.Logger
}

// NewAccessService is the constructor for accessService.
func NewAccessService(params AccessServiceParams) usecase.AccessUsecase {
	return &accessService{
		userRepo:     params.UserRepo,
		sessionRepo:  params.SessionRepo,
		tokenService: params.TokenService,
		timeout:      datastoreTimeout(params.Config),
		now:          time.Now,
		logger:       params.Logger,
	}
}

func (srv *accessService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Authenticate runs the three guard checks in order: token, identity, session liveness.
// The permission graph is always reloaded; nothing is trusted from the token beyond (userId, jti).
func (srv *accessService) Authenticate(ctx context.Context, accessToken string) (*usecase.Principal, error) {
	if accessToken == "" {
		return nil, domainerrors.ErrUnauthorized
	}

	claims, err := srv.tokenService.VerifyAccess(accessToken)
	if err != nil {
		return nil, domainerrors.ErrUnauthorized.WrapMessage(err.Error())
	}

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	user, err := srv.userRepo.FindActiveByID(dbCtx, claims.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			srv.log(ctx).Error("Identity lookup failed", slog.Any("userID", claims.UserID), slog.Any("error", err))
		}

		return nil, domainerrors.ErrUnauthorized.WrapMessage("identity unavailable")
	}

	if _, err := srv.sessionRepo.FindLive(dbCtx, claims.UserID, claims.JTI(), srv.now()); err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			srv.log(ctx).Error("Session lookup failed", slog.Any("userID", claims.UserID), slog.Any("error", err))
		}

		return nil, domainerrors.ErrUnauthorized.WrapMessage("session is not live")
	}

	return &usecase.Principal{
		User:        sanitizeUser(user),
		JTI:         claims.JTI(),
		Permissions: user.Permissions(),
	}, nil
}

// Authorize is a pure set lookup over the principal's already-loaded permissions.
func (srv *accessService) Authorize(principal *usecase.Principal, permission string) error {
	if principal == nil || principal.User == nil {
		return domainerrors.ErrUnauthorized
	}
	if !principal.Permissions.Has(permission) {
		return domainerrors.ErrForbidden.WrapMessage("missing permission " + permission)
	}

	return nil
}
