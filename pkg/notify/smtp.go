package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers emails through an SMTP server.
type SMTPMailer struct {
	config SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *slog.Logger
}

// NewSMTPMailer creates a mailer for the given server. Port defaults to 587.
func NewSMTPMailer(logger *slog.Logger, config SMTPConfig) *SMTPMailer {
	if config.Port == 0 {
		config.Port = 587
	}

	if config.From == "" {
		config.From = config.Username
	}

	return &SMTPMailer{
		config: config,
		send:   smtp.SendMail,
		logger: logger.With("module", "notify"),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if email.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrTransport)
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))

	err := m.send(addr, auth, m.config.From, []string{email.To}, m.message(email))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	m.logger.InfoContext(ctx, "Email sent", "to", email.To)

	return nil
}

func (m *SMTPMailer) message(email Email) []byte {
	var b strings.Builder

	b.WriteString("From: " + m.config.From + "\r\n")
	b.WriteString("To: " + email.To + "\r\n")
	b.WriteString("Subject: " + email.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(email.Body, "\n", "\r\n"))

	return []byte(b.String())
}
