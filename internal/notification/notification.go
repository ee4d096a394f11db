// Package notification turns domain events into outbound email and SMS.
// It subscribes to the event bus and never blocks the publishing flow.
package notification

import (
	"context"
	"fmt"

	"leadmarket_backend/internal/email"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/platform/logger"
)

// SMSSender sends a text message. *twilio.Client satisfies this; a nil
// implementation is never registered.
type SMSSender interface {
	SendSMS(ctx context.Context, toNumber, body string) error
}

type Service struct {
	email email.Sender
	sms   SMSSender
	log   *logger.Logger
}

// New creates the notification service. sms may be nil when SMS is not
// configured; email falls back to the noop sender upstream.
func New(emailSender email.Sender, sms SMSSender, log *logger.Logger) *Service {
	return &Service{email: emailSender, sms: sms, log: log}
}

// Subscribe registers all event handlers on the bus.
func (s *Service) Subscribe(bus events.Bus) {
	bus.Subscribe(events.ContractorRegistered{}.EventName(), events.HandlerFunc(s.onContractorRegistered))
	bus.Subscribe(events.LeadRouted{}.EventName(), events.HandlerFunc(s.onLeadRouted))
	bus.Subscribe(events.ContractorCharged{}.EventName(), events.HandlerFunc(s.onContractorCharged))
}

func (s *Service) onContractorRegistered(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ContractorRegistered)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	return s.email.SendWelcomeEmail(ctx, e.Email, e.Name)
}

func (s *Service) onLeadRouted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadRouted)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	if err := s.email.SendLeadNotificationEmail(ctx, e.ContractorEmail, e.LeadName, e.LeadPhone, e.LeadZip); err != nil {
		s.log.UpstreamError("email", "lead_notification", err)
	}
	if s.sms != nil && e.ContractorPhone != "" {
		body := fmt.Sprintf("New lead: %s (%s) in %s. Check your dashboard for details.", e.LeadName, e.LeadPhone, e.LeadZip)
		if err := s.sms.SendSMS(ctx, e.ContractorPhone, body); err != nil {
			s.log.UpstreamError("twilio", "send_sms", err)
		}
	}
	return nil
}

func (s *Service) onContractorCharged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ContractorCharged)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	return s.email.SendBillingReceiptEmail(ctx, e.ContractorEmail, e.LeadCount, e.AmountCents)
}
