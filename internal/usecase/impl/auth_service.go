package impl

import (
	"context"
	"crypto/subtle"
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

// dummyPassword is hashed at construction and compared on the unknown-email path so
// both login failure branches pay for exactly one bcrypt comparison and no hashing.
const dummyPassword = "backoffice-dummy-password"

// authService implements the AuthUsecase interface.
type authService struct {
	txManager        repository.TransactionManager
	userRepo         repository.UserRepository
	sessionRepo      repository.SessionRepository
	hasher           service.PasswordHasher
	tokenService     service.TokenService
	challenges       usecase.ChallengeUsecase
	audit            service.AuditRecorder
	defaultRole      string
	twoFactorEnabled bool
	timeout          time.Duration
	now              func() time.Time
	dummyHash        string
	logger           *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	UserRepo     repository.UserRepository
	SessionRepo  repository.SessionRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	Challenges   usecase.ChallengeUsecase
	Audit        service.AuditRecorder
	Config       *config.Config
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService. It fails when the dummy hash for
// the unknown-email path cannot be computed.
func NewAuthService(params AuthServiceParams) (usecase.AuthUsecase, error) {
	defaultRole := constants.RoleUser
	if params.Config.Auth != nil && params.Config.Auth.DefaultRole != "" {
		defaultRole = params.Config.Auth.DefaultRole
	}

	hasher := params.Hasher
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash dummy password")
	}

	return &authService{
		txManager:        params.TxManager,
		userRepo:         params.UserRepo,
		sessionRepo:      params.SessionRepo,
		hasher:           hasher,
		tokenService:     params.TokenService,
		challenges:       params.Challenges,
		audit:            params.Audit,
		defaultRole:      defaultRole,
		twoFactorEnabled: params.Config.TwoFactor != nil && params.Config.TwoFactor.Enabled,
		timeout:          datastoreTimeout(params.Config),
		now:              time.Now,
		dummyHash:        dummyHash,
		logger:           params.Logger,
	}, nil
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *authService) record(ctx context.Context, action string, actorID uuid.UUID, client usecase.ClientInfo, err error) {
	srv.audit.Record(ctx, newAuditEntry(action, constants.ResourceAuth, uuidPtr(actorID), "", client, err))
}

// Register creates an active user holding the default role.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*entity.User, error) {
	email := entity.NormalizeEmail(input.Email)
	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	user, err := srv.register(ctx, email, input)
	var actorID uuid.UUID
	if user != nil {
		actorID = user.ID
	}
	srv.record(ctx, constants.AuthActionRegister, actorID, input.Client, err)
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("email", email), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("Registration completed", slog.Any("userID", user.ID))

	return sanitizeUser(user), nil
}

func (srv *authService) register(ctx context.Context, email string, input usecase.RegisterInput) (*entity.User, error) {
	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	now := srv.now()
	user := &entity.User{
		ID:           uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	err = srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		exists, err := userRepo.ExistsByEmail(dbCtx, email)
		if err != nil {
			return errors.Wrap(err, "failed to check email")
		}
		if exists {
			return domainerrors.ErrUserAlreadyExists
		}

		role, err := repoFactory.RoleRepo().FindByName(dbCtx, srv.defaultRole)
		if errors.Is(err, repository.ErrRoleNotFound) {
			return domainerrors.ErrRoleNotFound.WrapMessage("default role is not seeded")
		}
		if err != nil {
			return errors.Wrap(err, "failed to load default role")
		}
		user.Roles = []*entity.Role{role}

		return mapUserWriteError(userRepo.Create(dbCtx, user))
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Login checks credentials and either opens a session or starts the two-factor step.
// Unknown emails and wrong passwords fail identically.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	email := entity.NormalizeEmail(input.Email)

	user, err := srv.checkCredentials(ctx, email, input.Password)
	if err != nil {
		srv.record(ctx, constants.AuthActionLogin, uuid.Nil, input.Client, err)
		srv.log(ctx).Info("Login rejected", slog.Any("error", err))

		return nil, err
	}

	if srv.twoFactorEnabled {
		challengeID, err := srv.challenges.Create(ctx, user)
		srv.record(ctx, constants.AuthActionLogin, user.ID, input.Client, err)
		if err != nil {
			return nil, err
		}

		srv.log(ctx).Info("Two-factor challenge issued", slog.Any("userID", user.ID))

		return &usecase.LoginOutput{TwoFactorRequired: true, ChallengeID: challengeID}, nil
	}

	output, err := srv.establishSession(ctx, user, input.Client)
	srv.record(ctx, constants.AuthActionLogin, user.ID, input.Client, err)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Login succeeded", slog.Any("userID", user.ID), slog.String("jti", output.Tokens.JTI))

	return output, nil
}

func (srv *authService) checkCredentials(ctx context.Context, email, password string) (*entity.User, error) {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	user, err := srv.userRepo.FindActiveByEmail(dbCtx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.hasher.Check(password, srv.dummyHash)

		return nil, domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	if !srv.hasher.Check(password, user.PasswordHash) {
		return nil, domainerrors.ErrInvalidCredentials
	}

	return user, nil
}

// establishSession mints a fresh lineage, persists its session row and stamps lastLogin.
func (srv *authService) establishSession(ctx context.Context, user *entity.User, client usecase.ClientInfo) (*usecase.LoginOutput, error) {
	now := srv.now()
	jti := srv.tokenService.NewJTI()

	pair, err := srv.tokenService.IssuePair(user.ID, jti, now)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrTokenIssueFailed, err.Error())
	}

	session := &entity.Session{
		ID:               uuid.New(),
		UserID:           user.ID,
		JTI:              jti,
		RefreshTokenHash: srv.tokenService.HashToken(pair.RefreshToken),
		IP:               client.IP,
		UserAgent:        client.UserAgent,
		ExpiresAt:        pair.RefreshExpiresAt,
		CreatedAt:        now,
	}

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	err = srv.txManager.Execute(dbCtx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.SessionRepo().Create(dbCtx, session); err != nil {
			if errors.Is(err, repository.ErrSessionExists) {
				return domainerrors.ErrConflict.WrapMessage("session lineage already exists")
			}

			return errors.Wrap(err, "failed to create session")
		}

		return errors.Wrap(repoFactory.UserRepo().TouchLastLogin(dbCtx, user.ID, now), "failed to stamp last login")
	})
	if err != nil {
		srv.log(ctx).Error("Failed to establish session", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, err
	}

	established := sanitizeUser(user)
	established.LastLogin = &now

	return &usecase.LoginOutput{User: established, Tokens: pair}, nil
}

// VerifyTwoFactor answers a pending challenge and opens the session on success.
func (srv *authService) VerifyTwoFactor(ctx context.Context, input usecase.VerifyTwoFactorInput) (*usecase.LoginOutput, error) {
	if !srv.twoFactorEnabled {
		return nil, domainerrors.ErrTwoFactorDisabled
	}

	userID, err := srv.challenges.Verify(ctx, input.ChallengeID, input.Code)
	if err != nil {
		srv.record(ctx, constants.AuthActionTFAVerify, uuid.Nil, input.Client, err)
		srv.log(ctx).Info("Two-factor verification rejected", slog.Any("challengeID", input.ChallengeID), slog.Any("error", err))

		return nil, err
	}

	output, err := srv.verifiedLogin(ctx, userID, input.Client)
	srv.record(ctx, constants.AuthActionTFAVerify, userID, input.Client, err)
	if err != nil {
		return nil, err
	}

	return output, nil
}

func (srv *authService) verifiedLogin(ctx context.Context, userID uuid.UUID, client usecase.ClientInfo) (*usecase.LoginOutput, error) {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	user, err := srv.userRepo.FindActiveByID(dbCtx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrInactiveOrMissingUser
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	return srv.establishSession(ctx, user, client)
}

// Refresh mints a new access token for a live session. The session, its jti and
// its stored refresh token hash are left untouched.
func (srv *authService) Refresh(ctx context.Context, refreshToken string, client usecase.ClientInfo) (*usecase.RefreshOutput, error) {
	output, userID, err := srv.refresh(ctx, refreshToken)
	srv.record(ctx, constants.AuthActionRefresh, userID, client, err)
	if err != nil {
		srv.log(ctx).Info("Refresh rejected", slog.Any("error", err))

		return nil, err
	}

	return output, nil
}

func (srv *authService) refresh(ctx context.Context, refreshToken string) (*usecase.RefreshOutput, uuid.UUID, error) {
	claims, err := srv.tokenService.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, uuid.Nil, domainerrors.ErrInvalidSession.WrapMessage(err.Error())
	}

	now := srv.now()

	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	session, err := srv.sessionRepo.FindLive(dbCtx, claims.UserID, claims.JTI(), now)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, claims.UserID, domainerrors.ErrInvalidSession
	}
	if err != nil {
		return nil, claims.UserID, errors.Wrap(err, "failed to find session")
	}

	presented := srv.tokenService.HashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(session.RefreshTokenHash)) != 1 {
		return nil, claims.UserID, domainerrors.ErrInvalidSession.WrapMessage("refresh token does not match session")
	}

	if _, err := srv.userRepo.FindActiveByID(dbCtx, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, claims.UserID, domainerrors.ErrInactiveOrMissingUser
		}

		return nil, claims.UserID, errors.Wrap(err, "failed to find user")
	}

	accessToken, err := srv.tokenService.IssueAccess(claims.UserID, claims.JTI(), now)
	if err != nil {
		return nil, claims.UserID, errors.Wrap(domainerrors.ErrTokenIssueFailed, err.Error())
	}

	return &usecase.RefreshOutput{AccessToken: accessToken, JTI: claims.JTI()}, claims.UserID, nil
}

// Logout revokes exactly the caller's own session.
func (srv *authService) Logout(ctx context.Context, userID uuid.UUID, jti string, client usecase.ClientInfo) error {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	err := srv.sessionRepo.RevokeByJTI(dbCtx, userID, jti, srv.now())
	if errors.Is(err, repository.ErrSessionNotFound) {
		err = domainerrors.ErrSessionNotFound
	} else if err != nil {
		err = errors.Wrap(err, "failed to revoke session")
	}

	srv.record(ctx, constants.AuthActionLogout, userID, client, err)
	if err != nil {
		srv.log(ctx).Info("Logout failed", slog.Any("userID", userID), slog.Any("error", err))

		return err
	}

	srv.log(ctx).Info("Logged out", slog.Any("userID", userID), slog.String("jti", jti))

	return nil
}

// LogoutAll revokes every live session of the user.
func (srv *authService) LogoutAll(ctx context.Context, userID uuid.UUID, client usecase.ClientInfo) (int64, error) {
	dbCtx, cancel := boundedContext(ctx, srv.timeout)
	defer cancel()

	revoked, err := srv.sessionRepo.RevokeAllByUserID(dbCtx, userID, srv.now())
	if err != nil {
		err = errors.Wrap(err, "failed to revoke sessions")
	} else if revoked == 0 {
		err = domainerrors.ErrNoActiveSessions
	}

	srv.record(ctx, constants.AuthActionLogoutAll, userID, client, err)
	if err != nil {
		return 0, err
	}

	srv.log(ctx).Info("Logged out everywhere", slog.Any("userID", userID), slog.Int64("revoked", revoked))

	return revoked, nil
}

// mapUserWriteError translates repository sentinels from user writes into application errors.
func mapUserWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserEmailTaken):
		return domainerrors.ErrUserAlreadyExists
	case errors.Is(err, repository.ErrRoleNotFound):
		return domainerrors.ErrRoleNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return domainerrors.ErrUserNotFound
	default:
		return errors.Wrap(err, "failed to write user")
	}
}
