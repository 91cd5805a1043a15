package notification

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/service"
)

// logNotifier writes code deliveries to the log. It never leaves the process.
type logNotifier struct {
	logger      *slog.Logger
	revealCodes bool
}

// NewLogNotifier returns a notifier for local development. The code itself is
// only logged, at debug level, when revealCodes is set.
func NewLogNotifier(logger *slog.Logger, revealCodes bool) service.Notifier {
	return &logNotifier{logger: logger, revealCodes: revealCodes}
}

func (n *logNotifier) Send(ctx context.Context, address, code string, ttl time.Duration) error {
	logger := deliverycontext.GetLoggerOrDefault(ctx, n.logger)

	logger.InfoContext(ctx, "Two-factor code issued",
		slog.String("address", maskAddress(address)),
		slog.Duration("ttl", ttl),
	)

	if n.revealCodes {
		logger.DebugContext(ctx, "Two-factor code",
			slog.String("address", address),
			slog.String("code", code),
		)
	}

	return nil
}
