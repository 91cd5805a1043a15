package entity

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named bundle of permissions. System roles are immutable and undeletable.
type Role struct {
	ID          uuid.UUID     // Unique identifier of the role.
	Name        string        // Unique role name, e.g. "super_admin".
	DisplayName string        // Human readable name.
	Description string        // Free text description.
	IsSystem    bool          // Seeded by the service and protected from edits.
	Permissions []*Permission // Permissions granted by this role.
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic (resource, action) grant named "<resource>:<action>".
type Permission struct {
	ID          uuid.UUID // Unique identifier of the permission.
	Resource    string    // Guarded resource, e.g. "user".
	Action      string    // Action on the resource, e.g. "read".
	Name        string    // Derived unique name "<resource>:<action>".
	Description string    // Free text description.
	IsSystem    bool      // Seeded by the service and protected from edits.
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionName derives the unique permission name of a (resource, action) pair.
func PermissionName(resource, action string) string {
	return resource + ":" + action
}

// NewPermission builds a permission with its derived name.
func NewPermission(resource, action, description string, system bool) *Permission {
	return &Permission{
		Resource:    resource,
		Action:      action,
		Name:        PermissionName(resource, action),
		Description: description,
		IsSystem:    system,
	}
}
