// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an administrative identity: a login credential plus the roles that grant it permissions.
type User struct {
	ID           uuid.UUID  // The Global Unique Identifier (GUID) for the user.
	FirstName    string     // Given name shown in the back office.
	LastName     string     // Family name shown in the back office.
	Email        string     // Login identifier, stored trimmed and lower-cased.
	PasswordHash string     // One-way password hash. Never serialized outward.
	Roles        []*Role    // Assigned roles, each carrying its permissions when loaded as a graph.
	IsActive     bool       // Inactive users cannot log in and lose every live session.
	LastLogin    *time.Time // Time of the last session establishment, nil before the first login.
	CreatedAt    time.Time  // Timestamp of when this user account was created.
	UpdatedAt    time.Time  // Timestamp of the last modification to this user's data.
}

// NormalizeEmail returns the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RoleNames returns the names of the assigned roles in assignment order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		if role != nil {
			names = append(names, role.Name)
		}
	}

	return names
}

// Permissions flattens the loaded role graph into a permission set.
func (u *User) Permissions() PermissionSet {
	return ResolvePermissions(u.Roles)
}
