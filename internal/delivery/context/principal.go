package context

import (
	"backoffice/internal/usecase"

	"github.com/labstack/echo/v4"
)

// KeyPrincipal is the echo.Context key holding the authenticated principal.
const KeyPrincipal ContextKey = "principal"

// HeaderPermissionsVersion carries the digest of the caller's permission set on authenticated responses.
const HeaderPermissionsVersion = "X-Permissions-Version"

// SetPrincipal stores the principal resolved by the access guard.
func SetPrincipal(c echo.Context, principal *usecase.Principal) {
	c.Set(string(KeyPrincipal), principal)
}

// GetPrincipal returns the principal resolved by the access guard, if any.
func GetPrincipal(c echo.Context) (*usecase.Principal, bool) {
	principal, ok := c.Get(string(KeyPrincipal)).(*usecase.Principal)

	return principal, ok && principal != nil
}

// ClientInfo extracts the caller's address and user agent.
func ClientInfo(c echo.Context) usecase.ClientInfo {
	return usecase.ClientInfo{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
