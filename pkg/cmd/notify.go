package cmd

import (
	"log/slog"

	"github.com/dukex/leadflow/pkg/notify"
)

// NewMailer sends through SMTP when a host is configured and only logs otherwise.
func NewMailer(logger *slog.Logger, config notify.SMTPConfig) notify.Mailer {
	if config.Host == "" {
		logger.Warn("SMTP host not configured, emails will only be logged")

		return notify.NewLogMailer(logger)
	}

	return notify.NewSMTPMailer(logger, config)
}
