// Package mailer delivers confirmation codes to users.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"review-service/internal/metrics"
)

// Sender delivers a confirmation code to an account's e-mail address.
type Sender interface {
	SendConfirmationCode(ctx context.Context, username, email, code string) error
}

const subject = "Your confirmation code"

// LogSender writes the code to the log instead of sending mail. It is meant
// for development, where no mail relay is available.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendConfirmationCode(ctx context.Context, username, email, code string) error {
	s.logger.InfoContext(ctx, "Confirmation code issued (log transport)",
		slog.String("username", username),
		slog.String("email", email),
		slog.String("confirmation_code", code))
	metrics.RecordMailDelivery("log", nil)
	return nil
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender sends plain-text mail through an SMTP relay, upgrading to TLS
// when the server offers STARTTLS.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

func (s *SMTPSender) SendConfirmationCode(ctx context.Context, username, email, code string) error {
	msg := buildMessage(s.cfg.From, email, username, code)
	err := s.send(ctx, email, msg)
	metrics.RecordMailDelivery("smtp", err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to send confirmation mail",
			slog.String("username", username), slog.String("error", err.Error()))
		return err
	}
	s.logger.InfoContext(ctx, "Confirmation mail sent", slog.String("username", username))
	return nil
}

func buildMessage(from, to, username, code string) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "Hello, %s!\r\n\r\n", username)
	fmt.Fprintf(&msg, "Your confirmation code is: %s\r\n\r\n", code)
	msg.WriteString("Exchange it together with your username for an access token.\r\n")
	return msg.String()
}

func (s *SMTPSender) send(ctx context.Context, to, msg string) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}
