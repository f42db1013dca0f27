package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/onboarding-api/internal/config"
	"github.com/jwalitptl/onboarding-api/pkg/circuitbreaker"
)

// Sender delivers a rendered message to a set of recipients.
type Sender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
	cb     *gobreaker.CircuitBreaker
}

// NewSender returns an SMTP sender, or a sender that only logs when SMTP is disabled.
func NewSender(cfg config.SMTPConfig, logger zerolog.Logger) Sender {
	if !cfg.Enabled {
		return &logSender{logger: logger.With().Str("component", "email").Logger()}
	}
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		cb:     circuitbreaker.New(circuitbreaker.DefaultSettings("smtp"), logger),
	}
}

func (s *smtpSender) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := circuitbreaker.Execute(s.cb, func() error { return s.dialer.DialAndSend(m) }); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type logSender struct {
	logger zerolog.Logger
}

func (s *logSender) Send(_ context.Context, to []string, subject, _ string) error {
	s.logger.Info().
		Str("to", strings.Join(to, ",")).
		Str("subject", subject).
		Msg("smtp disabled, email not sent")
	return nil
}
