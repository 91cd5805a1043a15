package postgres

import (
	"context"
	"slices"

	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// roleRepository implements repository.RoleRepository using GORM.
type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository returns a role repository bound to db, which may be a transaction.
func NewRoleRepository(db *gorm.DB) repository.RoleRepository {
	return &roleRepository{db: db}
}

func (repo *roleRepository) FindByName(ctx context.Context, name string) (*entity.Role, error) {
	var roleM model.RoleModel
	if err := repo.db.WithContext(ctx).
		Preload("Permissions").
		Where("name = ?", name).
		First(&roleM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoleNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find role by name")
	}

	return toRoleDomain(&roleM), nil
}

func (repo *roleRepository) FindByNames(ctx context.Context, names []string) ([]*entity.Role, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(names)))
	if len(unique) == 0 {
		return nil, nil
	}

	var roleMs []*model.RoleModel
	if err := repo.db.WithContext(ctx).
		Preload("Permissions").
		Where("name IN ?", unique).
		Order("name").
		Find(&roleMs).Error; err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find roles by name")
	}

	if len(roleMs) != len(unique) {
		return nil, repository.ErrRoleNotFound
	}

	roles := make([]*entity.Role, 0, len(roleMs))
	for _, roleM := range roleMs {
		roles = append(roles, toRoleDomain(roleM))
	}

	return roles, nil
}

// UpsertPermission inserts the permission or refreshes it in place. The stored id is written back.
func (repo *roleRepository) UpsertPermission(ctx context.Context, permission *entity.Permission) error {
	permM := fromPermissionDomain(permission)

	if err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "is_system", "updated_at"}),
		}).
		Create(permM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to upsert permission")
	}

	permission.ID = permM.ID
	permission.CreatedAt = permM.CreatedAt
	permission.UpdatedAt = permM.UpdatedAt

	return nil
}

// UpsertRole inserts the role or refreshes it in place, then replaces its permission links.
// Every permission must already carry its stored id.
func (repo *roleRepository) UpsertRole(ctx context.Context, role *entity.Role) error {
	db := repo.db.WithContext(ctx)
	roleM := &model.RoleModel{
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Description: role.Description,
		IsSystem:    role.IsSystem,
	}

	if err := db.Omit("Permissions").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "description", "is_system", "updated_at"}),
		}).
		Create(roleM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to upsert role")
	}

	role.ID = roleM.ID

	if err := db.Where("role_id = ?", roleM.ID).Delete(&model.RolePermissionModel{}).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to clear role permissions")
	}

	if len(role.Permissions) == 0 {
		return nil
	}

	links := make([]*model.RolePermissionModel, 0, len(role.Permissions))
	for _, permission := range role.Permissions {
		links = append(links, &model.RolePermissionModel{RoleID: roleM.ID, PermissionID: permission.ID})
	}

	if err := db.Create(&links).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to link role permissions")
	}

	return nil
}

// --- Mapper Functions ---

func toRoleDomain(data *model.RoleModel) *entity.Role {
	if data == nil {
		return nil
	}

	permissions := make([]*entity.Permission, 0, len(data.Permissions))
	for _, permM := range data.Permissions {
		permissions = append(permissions, toPermissionDomain(permM))
	}

	return &entity.Role{
		ID:          data.ID,
		Name:        data.Name,
		DisplayName: data.DisplayName,
		Description: data.Description,
		IsSystem:    data.IsSystem,
		Permissions: permissions,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
}

func toPermissionDomain(data *model.PermissionModel) *entity.Permission {
	if data == nil {
		return nil
	}

	return &entity.Permission{
		ID:          data.ID,
		Resource:    data.Resource,
		Action:      data.Action,
		Name:        data.Name,
		Description: data.Description,
		IsSystem:    data.IsSystem,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
}

func fromPermissionDomain(data *entity.Permission) *model.PermissionModel {
	return &model.PermissionModel{
		ID:          data.ID,
		Resource:    data.Resource,
		Action:      data.Action,
		Name:        entity.PermissionName(data.Resource, data.Action),
		Description: data.Description,
		IsSystem:    data.IsSystem,
	}
}
