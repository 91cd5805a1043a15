package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"backoffice/config"
	"backoffice/internal/delivery"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/delivery/worker/handler"
	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/service"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultDurable = "mailworker"
	fetchBatch     = 10
	fetchWait      = 5 * time.Second
	redeliverDelay = 30 * time.Second
)

// natsConsumer pulls code events from a JetStream durable consumer.
type natsConsumer struct {
	cfg     *config.NotifierConfig
	logger  *slog.Logger
	mailer  *handler.CodeMailer
	stopped context.Context
}

// NATSConsumerParams holds dependencies for the JetStream consumer
type NATSConsumerParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    *config.Config
	Logger *slog.Logger
	Mailer *handler.CodeMailer
}

// NewNATSConsumer creates the JetStream consumer. It idles unless the nats notifier is configured.
func NewNATSConsumer(params NATSConsumerParams) delivery.Delivery {
	stopped, stop := context.WithCancel(context.Background())
	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			stop()

			return nil
		},
	})

	return &natsConsumer{
		cfg:     params.Cfg.Notifier,
		logger:  params.Logger,
		mailer:  params.Mailer,
		stopped: stopped,
	}
}

// Serve fetches until ctx is done or the app stops.
func (n *natsConsumer) Serve(ctx context.Context) error {
	if n.cfg == nil || n.cfg.Provider != constants.NotifierProviderNATS {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(n.stopped, cancel)()

	nc, err := nats.Connect(n.cfg.NATSURL, nats.Name(defaultDurable))
	if err != nil {
		return errors.Wrap(err, "connect nats")
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return errors.Wrap(err, "open jetstream context")
	}

	durable := n.cfg.NATSDurable
	if durable == "" {
		durable = defaultDurable
	}

	sub, err := js.PullSubscribe(n.cfg.NATSSubject, durable, nats.ManualAck())
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}
	defer func() {
		_ = sub.Drain()
	}()

	n.logger.Info("Consuming code events from NATS JetStream",
		slog.String("subject", n.cfg.NATSSubject),
		slog.String("durable", durable),
	)

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrSubscriptionClosed) {
				return nil
			}
			n.logger.Warn("[NATS] Fetch failed", slog.Any("error", err))

			continue
		}

		for _, msg := range msgs {
			n.handle(ctx, msg)
		}
	}

	return nil
}

func (n *natsConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event service.TwoFactorCodeEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		n.logger.Error("[NATS] Failed to parse code event", slog.Any("error", err))
		_ = msg.Term()

		return
	}

	requestID := event.RequestID
	if requestID == "" {
		requestID = msg.Header.Get("request_id")
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	reqLogger := n.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	if err := n.mailer.Deliver(ctx, &event); err != nil {
		reqLogger.Error("[NATS] Failed to deliver code event",
			slog.String("event_id", event.EventID),
			slog.Any("error", err),
		)
		if handler.IsRetryableError(err) {
			_ = msg.NakWithDelay(redeliverDelay)

			return
		}
		_ = msg.Term()

		return
	}

	_ = msg.Ack()
}
