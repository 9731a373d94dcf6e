// internal/workers/notification_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/pkg/config"
)

// Mailer sends one message
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// NewMailer returns an SMTP mailer, or a logging mailer when no host is configured
func NewMailer(cfg config.MailConfig, logger *slog.Logger) Mailer {
	if cfg.Host == "" {
		return &LogMailer{logger: logger.With(slog.String("mailer", "log"))}
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer delivers through a plain-auth SMTP relay
type SMTPMailer struct {
	cfg config.MailConfig
}

// Send sends the message
func (m *SMTPMailer) Send(_ context.Context, to []string, subject, body string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, strings.Join(to, ", "), subject, body,
	))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(net.JoinHostPort(m.cfg.Host, m.cfg.Port), auth, m.cfg.From, to, msg)
}

// LogMailer writes messages to the log, for development
type LogMailer struct {
	logger *slog.Logger
}

// Send logs the message
func (m *LogMailer) Send(ctx context.Context, to []string, subject, body string) error {
	m.logger.InfoContext(ctx, "email would be sent",
		slog.String("to", strings.Join(to, ",")),
		slog.String("subject", subject),
		slog.String("body", body))
	return nil
}

// NotificationProcessor handles email notifications
type NotificationProcessor struct {
	mailer Mailer
	logger *slog.Logger
}

// NewNotificationProcessor creates a new notification processor
func NewNotificationProcessor(mailer Mailer, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		mailer: mailer,
		logger: logger.With(slog.String("processor", "notification")),
	}
}

// SendEmail sends email notifications
func (p *NotificationProcessor) SendEmail(ctx context.Context, t *asynq.Task) error {
	var payload EmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if len(payload.To) == 0 {
		return fmt.Errorf("email has no recipients: %w", asynq.SkipRetry)
	}

	if err := p.mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	p.logger.InfoContext(ctx, "email sent",
		slog.Int("recipients", len(payload.To)),
		slog.String("subject", payload.Subject))
	return nil
}
