// Package ratelimit implements the per-IP window guarding the auth endpoints.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"backoffice/config"
	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const sweepInterval = time.Minute

// allowAll is used when rate limiting is disabled.
type allowAll struct{}

func (allowAll) Allow(context.Context, string) (service.RateDecision, error) {
	return service.RateDecision{Allowed: true}, nil
}

// Params holds dependencies for the RateLimiter, injected by Fx
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
	Redis  *redis.Client `optional:"true"`
}

// NewRateLimiter selects the backend from configuration.
func NewRateLimiter(params Params) (service.RateLimiter, error) {
	cfg := params.Config.RateLimit
	if cfg == nil || !cfg.Enabled {
		params.Logger.Info("Rate limiting disabled")

		return allowAll{}, nil
	}

	switch cfg.Backend {
	case constants.RateLimitBackendRedis:
		if params.Redis == nil {
			return nil, errors.New("redis backend selected but no redis client is available")
		}
		params.Logger.Info("Using Redis rate limiter",
			slog.Int("requests", cfg.Requests),
			slog.Duration("window", cfg.Window),
		)

		return NewRedisLimiter(params.Redis, cfg.Requests, cfg.Window), nil

	case constants.RateLimitBackendMemory:
		params.Logger.Info("Using in-memory rate limiter",
			slog.Int("requests", cfg.Requests),
			slog.Duration("window", cfg.Window),
		)

		limiter := NewMemoryLimiter(cfg.Requests, cfg.Window)
		sweepCtx, cancel := context.WithCancel(context.Background())
		params.Lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go limiter.Run(sweepCtx, sweepInterval)

				return nil
			},
			OnStop: func(context.Context) error {
				cancel()

				return nil
			},
		})

		return limiter, nil

	default:
		return nil, errors.Errorf("unknown rate limit backend: %s", cfg.Backend)
	}
}
