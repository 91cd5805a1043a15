// Package reaper periodically deletes dead sessions and two-factor challenges.
// Liveness checks never depend on it having run.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"backoffice/config"
	"backoffice/internal/delivery"
	"backoffice/internal/infra/metrics"
	"backoffice/internal/usecase"

	"go.uber.org/fx"
)

// Params holds dependencies for the reaper, injected by Fx
type Params struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	Logger   *slog.Logger
	Sessions usecase.SessionUsecase
	Metrics  *metrics.Metrics `optional:"true"`
}

type reaper struct {
	enabled   bool
	interval  time.Duration
	retention time.Duration
	sessions  usecase.SessionUsecase
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	stopped   context.Context
}

// New creates the reaper delivery. It idles when disabled.
func New(params Params) delivery.Delivery {
	stopped, stop := context.WithCancel(context.Background())
	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			stop()

			return nil
		},
	})

	cfg := params.Cfg.Reaper

	return &reaper{
		enabled:   cfg != nil && cfg.Enabled,
		interval:  reaperInterval(cfg),
		retention: reaperRetention(cfg),
		sessions:  params.Sessions,
		metrics:   params.Metrics,
		logger:    params.Logger,
		now:       time.Now,
		stopped:   stopped,
	}
}

func reaperInterval(cfg *config.ReaperConfig) time.Duration {
	if cfg == nil || cfg.Interval <= 0 {
		return 10 * time.Minute
	}

	return cfg.Interval
}

func reaperRetention(cfg *config.ReaperConfig) time.Duration {
	if cfg == nil || cfg.RevokedRetention <= 0 {
		return 24 * time.Hour
	}

	return cfg.RevokedRetention
}

// Serve sweeps once per interval until ctx is done or the app stops.
func (r *reaper) Serve(ctx context.Context) error {
	if !r.enabled {
		r.logger.Info("Session reaper disabled")

		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(r.stopped, cancel)()

	r.logger.Info("Starting session reaper",
		slog.Duration("interval", r.interval),
		slog.Duration("revoked_retention", r.retention),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep runs one pass. Failures are logged and retried on the next tick.
func (r *reaper) sweep(ctx context.Context) {
	result, err := r.sessions.Reap(ctx, r.now(), r.retention)
	if err != nil {
		r.logger.Warn("Session reap failed", slog.Any("error", err))

		return
	}

	if r.metrics != nil {
		r.metrics.Reaped("sessions", result.Sessions)
		r.metrics.Reaped("tfa_challenges", result.Challenges)
	}

	if result.Sessions > 0 || result.Challenges > 0 {
		r.logger.Info("Session reap completed",
			slog.Int64("sessions", result.Sessions),
			slog.Int64("challenges", result.Challenges),
		)
	}
}
