package middleware

import (
	"log/slog"
	"strings"

	deliverycontext "backoffice/internal/delivery/context"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const bearerPrefix = "Bearer "

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx
type AuthMiddlewareParams struct {
	fx.In

	Access usecase.AccessUsecase
}

// AuthMiddleware runs the access guard in front of protected routes.
type AuthMiddleware struct {
	access usecase.AccessUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{access: params.Access}
}

// Authenticate resolves the bearer token into a principal. Any failure is a generic 401.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return domainerrors.ErrUnauthorized.WrapMessage("missing bearer token")
		}

		ctx := c.Request().Context()
		principal, err := m.access.Authenticate(ctx, token)
		if err != nil {
			return err
		}

		deliverycontext.SetPrincipal(c, principal)
		c.Response().Header().Set(deliverycontext.HeaderPermissionsVersion, principal.Permissions.Version())

		if logger := deliverycontext.GetLogger(ctx); logger != nil {
			ctx = deliverycontext.WithLogger(ctx, logger.With(slog.String("user_id", principal.UserID().String())))
			c.SetRequest(c.Request().WithContext(ctx))
		}

		return next(c)
	}
}

// RequirePermission is a middleware factory that checks if the principal holds permission.
// It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, _ := deliverycontext.GetPrincipal(c)
			if err := m.access.Authorize(principal, permission); err != nil {
				return err
			}

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])

	return token, token != ""
}
