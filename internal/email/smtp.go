package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail. It renders the same HTML templates as BrevoSender.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) SendWelcomeEmail(ctx context.Context, toEmail, contractorName string) error {
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
	return s.send(ctx, toEmail, subjectWelcome, content)
}

func (s *SMTPSender) SendLeadNotificationEmail(ctx context.Context, toEmail, leadName, leadPhone, leadZip string) error {
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
	return s.send(ctx, toEmail, subjectLeadNotification, content)
}

func (s *SMTPSender) SendBillingReceiptEmail(ctx context.Context, toEmail string, leadCount int, amountCents int64) error {
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
	return s.send(ctx, toEmail, subjectBillingReceipt, content)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
