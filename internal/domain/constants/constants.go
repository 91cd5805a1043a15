// Package constants holds the identifiers shared across layers.
package constants

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Notifier providers
const (
	NotifierProviderLog    = "log"
	NotifierProviderLocal  = "local"
	NotifierProviderGoogle = "google"
	NotifierProviderNATS   = "nats"
)

// Rate limit backends
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// System roles
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleModerator  = "moderator"
	RoleUser       = "user"
)

// Resources guarded by permissions
const (
	ResourceAuth       = "auth"
	ResourceUser       = "user"
	ResourceRole       = "role"
	ResourcePermission = "permission"
	ResourceSession    = "session"
	ResourceAudit      = "audit"
	ResourceCategory   = "category"
	ResourceStat       = "stat"
	ResourceCustomer   = "customer"
)

// CRUD actions
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Audited auth actions
const (
	AuthActionLogin     = "login"
	AuthActionLogout    = "logout"
	AuthActionLogoutAll = "logout_all"
	AuthActionRegister  = "register"
	AuthActionRefresh   = "refresh"
	AuthActionTFAVerify = "tfa_verify"
)

// Audited self-service actions
const (
	ProfileActionUpdate         = "profile_update"
	ProfileActionPasswordChange = "password_change"
)

// Resources lists every permission resource in seed order.
func Resources() []string {
	return []string{
		ResourceAuth,
		ResourceUser,
		ResourceRole,
		ResourcePermission,
		ResourceSession,
		ResourceAudit,
		ResourceCategory,
		ResourceStat,
		ResourceCustomer,
	}
}

// Actions lists the CRUD actions in seed order.
func Actions() []string {
	return []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
}
