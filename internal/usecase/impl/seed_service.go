package impl

import (
	"context"
	"log/slog"
	"slices"
	"time"

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

// seedService implements the SeedUsecase interface.
type seedService struct {
	txManager repository.TransactionManager
	hasher    service.PasswordHasher
	now       func() time.Time
	logger    *slog.Logger
}

// SeedServiceParams holds dependencies for SeedService, injected by Fx.
type SeedServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Hasher    service.PasswordHasher
	Logger    *slog.Logger
}

// NewSeedService is the constructor for seedService.
func NewSeedService(params SeedServiceParams) usecase.SeedUsecase {
	return &seedService{
		txManager: params.TxManager,
		hasher:    params.Hasher,
		now:       time.Now,
		logger:    params.Logger,
	}
}

const minSeedPasswordLength = 8

type roleDefinition struct {
	name        string
	displayName string
	description string
	grants      func(*entity.Permission) bool
}

// systemRoles lists the seeded roles. Grants are evaluated against the full permission catalogue.
func systemRoles() []roleDefinition {
	adminDenied := []string{
		entity.PermissionName(constants.ResourcePermission, constants.ActionCreate),
		entity.PermissionName(constants.ResourcePermission, constants.ActionUpdate),
		entity.PermissionName(constants.ResourcePermission, constants.ActionDelete),
		entity.PermissionName(constants.ResourceRole, constants.ActionDelete),
	}

	return []roleDefinition{
		{
			name:        constants.RoleSuperAdmin,
			displayName: "Super Admin",
			description: "Full access to every resource",
			grants:      func(*entity.Permission) bool { return true },
		},
		{
			name:        constants.RoleAdmin,
			displayName: "Admin",
			description: "Manages users and content but not the permission catalogue",
			grants:      func(p *entity.Permission) bool { return !slices.Contains(adminDenied, p.Name) },
		},
		{
			name:        constants.RoleModerator,
			displayName: "Moderator",
			description: "Read-only access to every resource",
			grants:      func(p *entity.Permission) bool { return p.Action == constants.ActionRead },
		},
		{
			name:        constants.RoleUser,
			displayName: "User",
			description: "Default role for self-registered users",
			grants: func(p *entity.Permission) bool {
				return p.Name == entity.PermissionName(constants.ResourceUser, constants.ActionRead)
			},
		},
	}
}

// Seed upserts every resource x action permission, the system roles and, when requested,
// a bootstrap super admin. Running it twice changes nothing.
func (srv *seedService) Seed(ctx context.Context, input usecase.SeedInput) (*usecase.SeedOutput, error) {
	output := &usecase.SeedOutput{}

	var adminHash string
	if input.AdminEmail != "" {
		if len(input.AdminPassword) < minSeedPasswordLength {
			return nil, domainerrors.ErrValidationFailed.WithDetails("admin password must be at least 8 characters")
		}
		hash, err := srv.hasher.Hash(input.AdminPassword)
		if err != nil {
			return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
		}
		adminHash = hash
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		roleRepo := repoFactory.RoleRepo()

		permissions := make([]*entity.Permission, 0, len(constants.Resources())*len(constants.Actions()))
		for _, resource := range constants.Resources() {
			for _, action := range constants.Actions() {
				permission := entity.NewPermission(resource, action, action+" "+resource, true)
				if err := roleRepo.UpsertPermission(ctx, permission); err != nil {
					return errors.Wrapf(err, "failed to seed permission %s", permission.Name)
				}
				permissions = append(permissions, permission)
			}
		}
		output.Permissions = len(permissions)

		for _, def := range systemRoles() {
			role := &entity.Role{
				Name:        def.name,
				DisplayName: def.displayName,
				Description: def.description,
				IsSystem:    true,
			}
			for _, permission := range permissions {
				if def.grants(permission) {
					role.Permissions = append(role.Permissions, permission)
				}
			}
			if err := roleRepo.UpsertRole(ctx, role); err != nil {
				return errors.Wrapf(err, "failed to seed role %s", def.name)
			}
			output.Roles++
		}

		if input.AdminEmail == "" {
			return nil
		}

		created, err := srv.seedAdmin(ctx, repoFactory, input, adminHash)
		output.AdminCreated = created

		return err
	})
	if err != nil {
		srv.logger.Error("Seed failed", slog.Any("error", err))

		return nil, err
	}

	srv.logger.Info("Seed completed",
		slog.Int("permissions", output.Permissions),
		slog.Int("roles", output.Roles),
		slog.Bool("adminCreated", output.AdminCreated),
	)

	return output, nil
}

func (srv *seedService) seedAdmin(ctx context.Context, repoFactory repository.RepositoryFactory, input usecase.SeedInput, passwordHash string) (bool, error) {
	userRepo := repoFactory.UserRepo()
	email := entity.NormalizeEmail(input.AdminEmail)

	exists, err := userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, errors.Wrap(err, "failed to check admin email")
	}
	if exists {
		return false, nil
	}

	role, err := repoFactory.RoleRepo().FindByName(ctx, constants.RoleSuperAdmin)
	if err != nil {
		return false, errors.Wrap(err, "failed to load super admin role")
	}

	now := srv.now()
	admin := &entity.User{
		ID:           uuid.New(),
		FirstName:    input.AdminFirstName,
		LastName:     input.AdminLastName,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        []*entity.Role{role},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return true, mapUserWriteError(userRepo.Create(ctx, admin))
}
