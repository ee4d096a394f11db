package notification

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/platform/logger"
)

type recordingEmailSender struct {
	mu       sync.Mutex
	welcomes []string
	leads    []string
	receipts []string
}

func (r *recordingEmailSender) SendWelcomeEmail(ctx context.Context, toEmail, contractorName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomes = append(r.welcomes, toEmail)
	return nil
}

func (r *recordingEmailSender) SendLeadNotificationEmail(ctx context.Context, toEmail, leadName, leadPhone, leadZip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, toEmail)
	return nil
}

func (r *recordingEmailSender) SendBillingReceiptEmail(ctx context.Context, toEmail string, leadCount int, amountCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, toEmail)
	return nil
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSMS) SendSMS(ctx context.Context, toNumber, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, toNumber)
	return nil
}

func TestNotificationsFollowDomainEvents(t *testing.T) {
	emailSender := &recordingEmailSender{}
	sms := &recordingSMS{}
	svc := New(emailSender, sms, logger.New("test"))

	bus := events.NewInMemoryBus(logger.New("test"))
	svc.Subscribe(bus)

	ctx := context.Background()
	contractorID := uuid.New()

	if err := bus.PublishSync(ctx, events.ContractorRegistered{
		BaseEvent:    events.NewBaseEvent(),
		ContractorID: contractorID,
		Email:        "new@contractor.test",
		Name:         "Jordan",
	}); err != nil {
		t.Fatalf("publish registered: %v", err)
	}

	if err := bus.PublishSync(ctx, events.LeadRouted{
		BaseEvent:       events.NewBaseEvent(),
		ContractorID:    contractorID,
		ContractorEmail: "new@contractor.test",
		ContractorPhone: "+14045550100",
		LeadID:          "lead-1",
		LeadName:        "Pat Doe",
		LeadPhone:       "+15551234567",
		LeadZip:         "30301",
	}); err != nil {
		t.Fatalf("publish routed: %v", err)
	}

	if err := bus.PublishSync(ctx, events.ContractorCharged{
		BaseEvent:       events.NewBaseEvent(),
		ContractorID:    contractorID,
		ContractorEmail: "new@contractor.test",
		LeadCount:       3,
		AmountCents:     75000,
		PaymentIntentID: "pi_1",
	}); err != nil {
		t.Fatalf("publish charged: %v", err)
	}

	if len(emailSender.welcomes) != 1 || emailSender.welcomes[0] != "new@contractor.test" {
		t.Errorf("welcomes = %v", emailSender.welcomes)
	}
	if len(emailSender.leads) != 1 {
		t.Errorf("lead notifications = %v", emailSender.leads)
	}
	if len(emailSender.receipts) != 1 {
		t.Errorf("receipts = %v", emailSender.receipts)
	}
	if len(sms.sent) != 1 || sms.sent[0] != "+14045550100" {
		t.Errorf("sms = %v", sms.sent)
	}
}

func TestNilSMSSenderIsSkipped(t *testing.T) {
	emailSender := &recordingEmailSender{}
	svc := New(emailSender, nil, logger.New("test"))

	err := svc.onLeadRouted(context.Background(), events.LeadRouted{
		BaseEvent:       events.NewBaseEvent(),
		ContractorEmail: "a@b.test",
		ContractorPhone: "+14045550100",
	})
	if err != nil {
		t.Fatalf("onLeadRouted with nil sms: %v", err)
	}
	if len(emailSender.leads) != 1 {
		t.Error("email not sent when sms disabled")
	}
}
