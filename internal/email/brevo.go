package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadmarket_backend/platform/config"
)

// BrevoSender delivers email through the Brevo transactional API.
type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

func newBrevoSender(cfg config.EmailConfig) *BrevoSender {
	return &BrevoSender{
		apiKey:    cfg.GetBrevoAPIKey(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *BrevoSender) SendWelcomeEmail(ctx context.Context, toEmail, contractorName string) error {
	content, err := renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData: baseEmailData{
			Title:   "Welcome",
			Heading: "Welcome aboard",
		},
		ContractorName: contractorName,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectWelcome, content)
}

func (b *BrevoSender) SendLeadNotificationEmail(ctx context.Context, toEmail, leadName, leadPhone, leadZip string) error {
	content, err := renderEmailTemplate("lead_notification.html", leadNotificationEmailData{
		baseEmailData: baseEmailData{
			Title:   "New lead",
			Heading: "New lead in your area",
		},
		LeadName:  leadName,
		LeadPhone: leadPhone,
		LeadZip:   leadZip,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectLeadNotification, content)
}

func (b *BrevoSender) SendBillingReceiptEmail(ctx context.Context, toEmail string, leadCount int, amountCents int64) error {
	content, err := renderEmailTemplate("billing_receipt.html", billingReceiptEmailData{
		baseEmailData: baseEmailData{
			Title:   "Billing receipt",
			Heading: "Billing receipt",
		},
		LeadCount:      leadCount,
		TotalFormatted: formatCurrencyUSD(amountCents),
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectBillingReceipt, content)
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.brevo.com/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}
