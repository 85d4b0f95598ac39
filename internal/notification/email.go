package notification

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// BaseURL is the frontend address linked from notifications.
	BaseURL string
	// VerificationTTL and ResetTTL are quoted in the code emails.
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService delivers account notifications over SMTP.
type EmailService struct {
	config EmailConfig
	send   sendFunc
}

func NewEmailService(config EmailConfig) *EmailService {
	if config.VerificationTTL <= 0 {
		config.VerificationTTL = 24 * time.Hour
	}
	if config.ResetTTL <= 0 {
		config.ResetTTL = time.Hour
	}
	return &EmailService{config: config, send: smtp.SendMail}
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, to, name, code string) error {
	subject := "Verify Your Email Address"
	body := fmt.Sprintf(`<html><body>
		<h2>Verify Your Email Address</h2>
		<p>Hi %s,</p>
		<p>Thank you for registering! Use the following code to verify your email address:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>This code will expire in %s.</p>
		<p>If you did not create an account, please ignore this email.</p>
	</body></html>`, html.EscapeString(name), code, HumanDuration(s.config.VerificationTTL))
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) SendPasswordResetEmail(ctx context.Context, to, name, code string) error {
	subject := "Reset Your Password"
	body := fmt.Sprintf(`<html><body>
		<h2>Reset Your Password</h2>
		<p>Hi %s,</p>
		<p>A password reset has been requested for your account. Use the following code to reset your password:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>This code will expire in %s.</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`, html.EscapeString(name), code, HumanDuration(s.config.ResetTTL))
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) SendPasswordChangedEmail(ctx context.Context, to, name string) error {
	subject := "Password Changed Successfully"
	body := fmt.Sprintf(`<html><body>
		<h2>Your Password Was Changed</h2>
		<p>Hi %s,</p>
		<p>The password for %s was changed on %s.</p>
		<p>If you did not make this change, contact support immediately at <a href="%s/support">%s/support</a>.</p>
	</body></html>`, html.EscapeString(name), html.EscapeString(to), time.Now().UTC().Format("2006-01-02 15:04:05 MST"), s.config.BaseURL, s.config.BaseURL)
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, to, name string) error {
	subject := "Welcome to Simple Todo!"
	body := fmt.Sprintf(`<html><body>
		<h2>Welcome, %s!</h2>
		<p>Your email has been verified. You can now sign in and start managing your tasks.</p>
		<p><a href="%s">Get started</a></p>
	</body></html>`, html.EscapeString(name), s.config.BaseURL)
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) SendAccountLockedEmail(ctx context.Context, to, name string, lockout time.Duration) error {
	subject := "Account Temporarily Locked"
	body := fmt.Sprintf(`<html><body>
		<h2>Your Account Is Temporarily Locked</h2>
		<p>Hi %s,</p>
		<p>We locked your account after several failed sign-in attempts. You can try again in %s.</p>
		<p>If this was not you, reset your password once the lock expires.</p>
	</body></html>`, html.EscapeString(name), HumanDuration(lockout))
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) sendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	return nil
}

// HumanDuration renders whole hours or minutes, e.g. "24 hours", "30 minutes".
func HumanDuration(d time.Duration) string {
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d.Round(time.Minute)/time.Minute), "minute")
}
