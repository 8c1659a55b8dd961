package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer_Send(t *testing.T) {
	mailer := NewSMTPMailer(slog.Default(), SMTPConfig{
		Host: "smtp.example.com", Username: "sales@example.com", Password: "secret",
	})

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)

	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)

		assert.NotNil(t, a)

		return nil
	}

	err := mailer.Send(context.Background(), LeadEmail("ada@example.com"))
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "sales@example.com", gotFrom)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Thanks for your interest\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "The Sales Team\r\n"))
}

func TestSMTPMailer_SendFailure(t *testing.T) {
	mailer := NewSMTPMailer(slog.Default(), SMTPConfig{Host: "smtp.example.com", Port: 25, From: "crm@example.com"})
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := mailer.Send(context.Background(), LeadEmail("ada@example.com"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "connection refused")

	err = mailer.Send(context.Background(), LeadEmail(""))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSMTPMailer_SendCancelled(t *testing.T) {
	mailer := NewSMTPMailer(slog.Default(), SMTPConfig{Host: "smtp.example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, mailer.Send(ctx, LeadEmail("ada@example.com")), context.Canceled)
}

func TestLogSenders(t *testing.T) {
	assert.NoError(t, NewLogMailer(slog.Default()).Send(context.Background(), LeadEmail("a@x.com")))
	assert.NoError(t, NewLogMessenger(slog.Default()).Send(context.Background(), LeadMessage("555")))
}
