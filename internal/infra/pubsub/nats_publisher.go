package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"backoffice/internal/domain/service"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// natsPublisher implements EventPublisher on a NATS JetStream subject.
type natsPublisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url and publishes every event to subject.
func NewNATSPublisher(url, subject string, logger *slog.Logger, opts ...nats.Option) (service.EventPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()

		return nil, errors.Wrap(err, "open jetstream context")
	}

	return &natsPublisher{conn: nc, js: js, subject: subject, logger: logger}, nil
}

func (p *natsPublisher) PublishTwoFactorCode(ctx context.Context, event *service.TwoFactorCodeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	for key, value := range eventAttributes(event) {
		msg.Header.Set(key, value)
	}
	// JetStream drops a duplicate publish of the same event id.
	msg.Header.Set(nats.MsgIdHdr, event.EventID)

	ack, err := p.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return errors.WithStack(err)
	}

	p.logger.InfoContext(ctx, "[NATS] Code event published",
		slog.String("event_id", event.EventID),
		slog.String("stream", ack.Stream),
		slog.Uint64("sequence", ack.Sequence),
	)

	return nil
}

// Close drains the connection, falling back to a hard close.
func (p *natsPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}

	return nil
}
