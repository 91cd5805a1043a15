// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"backoffice/config"
	"backoffice/internal/delivery/api/middleware"
	"backoffice/internal/delivery/api/router/handler"
	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/entity"
	"backoffice/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler         *handler.AuthHandler
	SessionHandler      *handler.SessionHandler
	ProfileHandler      *handler.ProfileHandler
	UserHandler         *handler.UserHandler
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
	Metrics             *metrics.Metrics `optional:"true"`
	Config              *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	sessionHandler *handler.SessionHandler
	profileHandler *handler.ProfileHandler
	userHandler    *handler.UserHandler
	auth           *middleware.AuthMiddleware
	rateLimit      *middleware.RateLimitMiddleware
	metrics        *metrics.Metrics
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		sessionHandler: params.SessionHandler,
		profileHandler: params.ProfileHandler,
		userHandler:    params.UserHandler,
		auth:           params.AuthMiddleware,
		rateLimit:      params.RateLimitMiddleware,
		metrics:        params.Metrics,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	if r.metrics != nil && r.config.Metrics != nil && r.config.Metrics.Enabled {
		e.GET(r.config.Metrics.Path, echo.WrapHandler(r.metrics.Handler()))
	}

	// Every POST under /auth shares the per-IP window
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register, r.rateLimit.Limit)
		authGroup.POST("/login", r.authHandler.Login, r.rateLimit.Limit)
		authGroup.POST("/refresh", r.authHandler.Refresh, r.rateLimit.Limit)
		authGroup.POST("/tfa/verify", r.authHandler.VerifyTwoFactor, r.rateLimit.Limit)
		authGroup.POST("/logout", r.authHandler.Logout, r.rateLimit.Limit, r.auth.Authenticate)
		authGroup.POST("/logout-all", r.authHandler.LogoutAll, r.rateLimit.Limit, r.auth.Authenticate)
		authGroup.GET("/me", r.authHandler.Me, r.auth.Authenticate)
	}

	// Session routes only ever touch the caller's own sessions, so authentication is enough
	sessionsGroup := e.Group("/sessions")
	sessionsGroup.Use(r.auth.Authenticate)
	{
		sessionsGroup.GET("", r.sessionHandler.ListSessions)
		sessionsGroup.DELETE("/:id", r.sessionHandler.RevokeSession)
		sessionsGroup.DELETE("", r.sessionHandler.RevokeAllSessions)
	}

	profileGroup := e.Group("/profile")
	profileGroup.Use(r.auth.Authenticate)
	{
		profileGroup.GET("", r.profileHandler.GetProfile)
		profileGroup.PATCH("", r.profileHandler.UpdateProfile)
		profileGroup.POST("/password", r.profileHandler.ChangePassword, r.rateLimit.Limit)
	}

	usersGroup := e.Group("/users")
	usersGroup.Use(r.auth.Authenticate)
	{
		usersGroup.POST("", r.userHandler.CreateUser, r.require(constants.ResourceUser, constants.ActionCreate))
		usersGroup.GET("/:id", r.userHandler.GetUser, r.require(constants.ResourceUser, constants.ActionRead))
		usersGroup.PATCH("/:id", r.userHandler.UpdateUser, r.require(constants.ResourceUser, constants.ActionUpdate))
		usersGroup.DELETE("/:id", r.userHandler.DeleteUser, r.require(constants.ResourceUser, constants.ActionDelete))
	}
}

func (r *router) require(resource, action string) echo.MiddlewareFunc {
	return r.auth.RequirePermission(entity.PermissionName(resource, action))
}
