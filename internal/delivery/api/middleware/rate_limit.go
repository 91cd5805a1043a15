package middleware

import (
	"log/slog"
	"math"
	"strconv"

	deliverycontext "backoffice/internal/delivery/context"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/service"
	"backoffice/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const rateLimitKeyPrefix = "auth:"

// RateLimitMiddlewareParams holds dependencies for RateLimitMiddleware, injected by Fx
type RateLimitMiddlewareParams struct {
	fx.In

	Limiter service.RateLimiter
	Metrics *metrics.Metrics `optional:"true"`
	Logger  *slog.Logger
}

// RateLimitMiddleware applies the per-IP window to the auth endpoints.
type RateLimitMiddleware struct {
	limiter service.RateLimiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(params RateLimitMiddlewareParams) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: params.Limiter,
		metrics: params.Metrics,
		logger:  params.Logger,
	}
}

// Limit rejects the request with 429 once the caller's address has used up its window.
// A limiter backend failure lets the request through.
func (m *RateLimitMiddleware) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		decision, err := m.limiter.Allow(ctx, rateLimitKeyPrefix+c.RealIP())
		if err != nil {
			deliverycontext.GetLoggerOrDefault(ctx, m.logger).Warn("Rate limiter unavailable, allowing request",
				slog.Any("error", err),
			)

			return next(c)
		}

		header := c.Response().Header()
		header.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			header.Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			if m.metrics != nil {
				m.metrics.RateLimited(c.Path())
			}

			return domainerrors.ErrRateLimited
		}

		return next(c)
	}
}
