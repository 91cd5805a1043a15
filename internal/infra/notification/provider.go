package notification

import (
	"log/slog"

	"backoffice/config"
	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/service"

	"go.uber.org/fx"
)

// NotifierParams holds dependencies for the two-factor Notifier, injected by Fx
type NotifierParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	Publisher service.EventPublisher
}

// NewNotifier selects the log notifier or the publisher-backed notifier from configuration.
func NewNotifier(params NotifierParams) service.Notifier {
	cfg := params.Config

	if cfg.Notifier == nil || cfg.Notifier.Provider == "" || cfg.Notifier.Provider == constants.NotifierProviderLog {
		return NewLogNotifier(params.Logger, !cfg.IsProduction())
	}

	return NewPublisherNotifier(params.Publisher, cfg.TwoFactor.NotifierTimeout, params.Logger)
}
