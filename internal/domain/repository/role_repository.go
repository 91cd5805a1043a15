package repository

import (
	"context"
	"errors"

	"backoffice/internal/domain/entity"
)

// ErrRoleNotFound is returned when a role name does not resolve.
var ErrRoleNotFound = errors.New("role not found")

// RoleRepository reads roles and maintains the system role and permission catalogue.
type RoleRepository interface {
	// FindByName retrieves a role with its permissions.
	FindByName(ctx context.Context, name string) (*entity.Role, error)

	// FindByNames retrieves every named role. Missing names yield ErrRoleNotFound.
	FindByNames(ctx context.Context, names []string) ([]*entity.Role, error)

	// UpsertPermission creates the permission or refreshes its description, keyed by name.
	UpsertPermission(ctx context.Context, permission *entity.Permission) error

	// UpsertRole creates the role or refreshes it, keyed by name, and replaces its permissions.
	UpsertRole(ctx context.Context, role *entity.Role) error
}
