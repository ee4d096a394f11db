// Package email delivers transactional email via the Brevo HTTP API, with a
// direct SMTP fallback for installations that bring their own mail server.
package email

import (
	"context"

	"leadmarket_backend/platform/config"
)

// Sender is the transactional email surface the application uses.
type Sender interface {
	// SendWelcomeEmail greets a contractor after registration completes.
	SendWelcomeEmail(ctx context.Context, toEmail, contractorName string) error
	// SendLeadNotificationEmail tells a contractor a new lead was routed to them.
	SendLeadNotificationEmail(ctx context.Context, toEmail, leadName, leadPhone, leadZip string) error
	// SendBillingReceiptEmail confirms a successful per-lead charge.
	SendBillingReceiptEmail(ctx context.Context, toEmail string, leadCount int, amountCents int64) error
}

// NoopSender drops all email. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendWelcomeEmail(ctx context.Context, toEmail, contractorName string) error {
	return nil
}

func (NoopSender) SendLeadNotificationEmail(ctx context.Context, toEmail, leadName, leadPhone, leadZip string) error {
	return nil
}

func (NoopSender) SendBillingReceiptEmail(ctx context.Context, toEmail string, leadCount int, amountCents int64) error {
	return nil
}

// NewSender picks a sender from config: Brevo when an API key is set, SMTP
// when a host is set, noop otherwise.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() && cfg.GetSMTPHost() == "" {
		return NoopSender{}, nil
	}

	if cfg.GetBrevoAPIKey() != "" {
		return newBrevoSender(cfg), nil
	}

	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		), nil
	}

	return NoopSender{}, nil
}
