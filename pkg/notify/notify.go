// Package notify sends lead notifications by email and instant messaging.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrTransport indicates a notification could not be delivered.
var ErrTransport = errors.New("notification transport failure")

// Email is an outgoing plain-text email.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// Message is an outgoing instant message.
type Message struct {
	To   string
	Body string
}

// Messenger delivers instant messages.
type Messenger interface {
	Send(ctx context.Context, message Message) error
}

const (
	leadEmailSubject = "Thanks for your interest"
	leadEmailBody    = "Hello,\n\nThank you for getting in touch with us. " +
		"A member of our team will contact you shortly.\n\nBest regards,\nThe Sales Team\n"
	leadMessageBody = "Hello! Thanks for your interest, our team will contact you shortly."
)

// LeadEmail builds the fixed follow-up email sent to a new lead.
func LeadEmail(to string) Email {
	return Email{To: to, Subject: leadEmailSubject, Body: leadEmailBody}
}

// LeadMessage builds the fixed follow-up instant message sent to a new lead.
func LeadMessage(to string) Message {
	return Message{To: to, Body: leadMessageBody}
}

// LogMailer only logs emails. It is used when no SMTP server is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that logs instead of sending.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "notify")}
}

func (m *LogMailer) Send(ctx context.Context, email Email) error {
	m.logger.InfoContext(ctx, "Email not sent, no SMTP server configured", "to", email.To, "subject", email.Subject)

	return nil
}

// LogMessenger logs the intended recipient. There is no messaging transport yet.
type LogMessenger struct {
	logger *slog.Logger
}

// NewLogMessenger creates a messenger that logs instead of sending.
func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.With("module", "notify")}
}

func (m *LogMessenger) Send(ctx context.Context, message Message) error {
	m.logger.InfoContext(ctx, "Sending WhatsApp message", "to", message.To)

	return nil
}
