package notification

import (
	"context"
	"log/slog"
	"time"
)

// LogMailer writes notifications to the log instead of sending them.
// It is used when no SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, name, code string) error {
	m.logger.InfoContext(ctx, "email not sent, smtp disabled", "kind", "verification", "to", to, "code", code)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, name, code string) error {
	m.logger.InfoContext(ctx, "email not sent, smtp disabled", "kind", "password_reset", "to", to, "code", code)
	return nil
}

func (m *LogMailer) SendPasswordChangedEmail(ctx context.Context, to, name string) error {
	m.logger.InfoContext(ctx, "email not sent, smtp disabled", "kind", "password_changed", "to", to)
	return nil
}

func (m *LogMailer) SendWelcomeEmail(ctx context.Context, to, name string) error {
	m.logger.InfoContext(ctx, "email not sent, smtp disabled", "kind", "welcome", "to", to)
	return nil
}

func (m *LogMailer) SendAccountLockedEmail(ctx context.Context, to, name string, lockout time.Duration) error {
	m.logger.InfoContext(ctx, "email not sent, smtp disabled", "kind", "account_locked", "to", to, "lockout", lockout.String())
	return nil
}
