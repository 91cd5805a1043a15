package notification

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// publisherNotifier hands codes to the mail worker through an EventPublisher.
type publisherNotifier struct {
	publisher service.EventPublisher
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublisherNotifier bounds every publish by timeout. Any failure wraps service.ErrDeliveryFailed.
func NewPublisherNotifier(publisher service.EventPublisher, timeout time.Duration, logger *slog.Logger) service.Notifier {
	return &publisherNotifier{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

func (n *publisherNotifier) Send(ctx context.Context, address, code string, ttl time.Duration) error {
	event := &service.TwoFactorCodeEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		EventID:    uuid.New().String(),
		Address:    address,
		Code:       code,
		TTLSeconds: int(ttl / time.Second),
		IssuedAt:   n.now().Unix(),
	}

	publishCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		publishCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	if err := n.publisher.PublishTwoFactorCode(publishCtx, event); err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, n.logger).WarnContext(ctx, "Failed to publish two-factor code",
			slog.String("event_id", event.EventID),
			slog.String("address", maskAddress(address)),
			slog.Any("error", err),
		)

		return errors.Wrap(service.ErrDeliveryFailed, err.Error())
	}

	return nil
}
