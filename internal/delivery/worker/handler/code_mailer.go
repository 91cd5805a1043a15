package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// retryableError wraps an error to indicate the transport should redeliver the event
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// newRetryableError wraps an error as retryable
func newRetryableError(err error) error {
	return &retryableError{err: err}
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

// CodeMailerParams holds dependencies for the CodeMailer
type CodeMailerParams struct {
	fx.In

	Mailer service.Notifier
	Logger *slog.Logger
}

// CodeMailer turns a two-factor code event into an e-mail. It is shared by every
// transport the worker consumes from.
type CodeMailer struct {
	mailer service.Notifier
	logger *slog.Logger
	now    func() time.Time
}

// NewCodeMailer creates a new CodeMailer
func NewCodeMailer(params CodeMailerParams) *CodeMailer {
	return &CodeMailer{
		mailer: params.Mailer,
		logger: params.Logger,
		now:    time.Now,
	}
}

// Deliver mails the code. Events that are malformed or already past their code's
// expiry are dropped without error; a failed send is retryable.
func (m *CodeMailer) Deliver(ctx context.Context, event *service.TwoFactorCodeEvent) error {
	logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger).With(slog.String("event_id", event.EventID))

	if strings.TrimSpace(event.Address) == "" || event.Code == "" {
		logger.Warn("[Worker] Dropping incomplete code event")

		return nil
	}

	ttl := time.Duration(event.TTLSeconds) * time.Second
	remaining := ttl
	if event.IssuedAt > 0 {
		remaining = time.Unix(event.IssuedAt, 0).Add(ttl).Sub(m.now())
	}
	if remaining <= 0 {
		logger.Info("[Worker] Dropping expired code event")

		return nil
	}

	if err := m.mailer.Send(ctx, event.Address, event.Code, remaining); err != nil {
		return newRetryableError(errors.WithStack(err))
	}

	logger.Info("[Worker] Code event delivered")

	return nil
}
