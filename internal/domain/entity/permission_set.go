package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// PermissionSet is the flattened union of "resource:action" names granted by a set of roles.
type PermissionSet map[string]struct{}

// ResolvePermissions flattens the roles' permissions into a set.
// It works on already-loaded data and never touches a datastore.
func ResolvePermissions(roles []*Role) PermissionSet {
	set := make(PermissionSet)
	for _, role := range roles {
		if role == nil {
			continue
		}
		for _, perm := range role.Permissions {
			if perm == nil {
				continue
			}
			name := perm.Name
			if name == "" {
				name = PermissionName(perm.Resource, perm.Action)
			}
			set[name] = struct{}{}
		}
	}

	return set
}

// Has reports whether the set grants the permission.
func (s PermissionSet) Has(permission string) bool {
	_, ok := s[permission]

	return ok
}

// Names returns the sorted permission names.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Version is a stable digest of the set, used by clients to detect permission changes.
func (s PermissionSet) Version() string {
	sum := sha256.Sum256([]byte(strings.Join(s.Names(), "\n")))

	return hex.EncodeToString(sum[:])
}
