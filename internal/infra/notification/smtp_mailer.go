package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"backoffice/config"
	"backoffice/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

const smtpDialTimeout = 10 * time.Second

// sendFunc delivers a built message. The production one is Client.DialAndSendWithContext.
type sendFunc func(ctx context.Context, msg *mail.Msg) error

// smtpMailer is the mail worker's Notifier. It renders and sends the code e-mail.
type smtpMailer struct {
	from   string
	logger *slog.Logger
	send   sendFunc
}

// NewSMTPMailer builds a mailer from the smtp section. STARTTLS is used whenever the
// server offers it; credentials are only sent when a username is configured.
func NewSMTPMailer(cfg *config.Config, logger *slog.Logger) (service.Notifier, error) {
	smtpCfg := cfg.SMTP
	if smtpCfg == nil || smtpCfg.Host == "" || smtpCfg.From == "" {
		return nil, errors.New("smtp host and from address are required")
	}

	port := smtpCfg.Port
	if port == 0 {
		port = mail.DefaultPortTLS
	}

	options := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpDialTimeout),
	}
	if smtpCfg.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(smtpCfg.Username),
			mail.WithPassword(smtpCfg.Password),
		)
	}

	client, err := mail.NewClient(smtpCfg.Host, options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create smtp client")
	}

	return &smtpMailer{
		from:   smtpCfg.From,
		logger: logger,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

// Send blocks until the SMTP exchange finishes or ctx is done.
func (m *smtpMailer) Send(ctx context.Context, address, code string, ttl time.Duration) error {
	msg, err := m.render(address, code, ttl)
	if err != nil {
		return errors.Wrap(service.ErrDeliveryFailed, err.Error())
	}

	if err := m.send(ctx, msg); err != nil {
		return errors.Wrap(service.ErrDeliveryFailed, err.Error())
	}

	m.logger.InfoContext(ctx, "Two-factor code mailed", slog.String("address", maskAddress(address)))

	return nil
}

// render validates both addresses, so a recipient carrying extra headers never reaches the wire.
func (m *smtpMailer) render(to, code string, ttl time.Duration) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, errors.Wrap(err, "invalid sender address")
	}
	if err := msg.To(to); err != nil {
		return nil, errors.Wrap(err, "invalid recipient address")
	}

	minutes := max(int(ttl/time.Minute), 1)

	var body strings.Builder
	fmt.Fprintf(&body, "Your verification code is %s.\r\n", code)
	fmt.Fprintf(&body, "It expires in %d minute(s).\r\n", minutes)
	body.WriteString("If you did not try to sign in, ignore this message.\r\n")

	msg.Subject("Your verification code")
	msg.SetBodyString(mail.TypeTextPlain, body.String())

	return msg, nil
}

// maskAddress keeps the first character and the domain of an e-mail address.
func maskAddress(address string) string {
	local, domain, ok := strings.Cut(address, "@")
	if !ok || local == "" {
		return "***"
	}

	return local[:1] + "***@" + domain
}
