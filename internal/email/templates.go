package email

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	subjectWelcome          = "Welcome to LeadMarket"
	subjectLeadNotification = "You have a new lead"
	subjectBillingReceipt   = "Your lead billing receipt"
)

type baseEmailData struct {
	Title   string
	Heading string
}

type welcomeEmailData struct {
	baseEmailData
	ContractorName string
}

type leadNotificationEmailData struct {
	baseEmailData
	LeadName  string
	LeadPhone string
	LeadZip   string
}

type billingReceiptEmailData struct {
	baseEmailData
	LeadCount      int
	TotalFormatted string
}

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "layout_top"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; color: #1f2933; margin: 0; padding: 24px;">
<h2 style="color: #0f172a;">{{.Heading}}</h2>{{end}}

{{define "layout_bottom"}}
<p style="color: #64748b; font-size: 12px;">LeadMarket &middot; automated message, do not reply.</p>
</body>
</html>{{end}}

{{define "welcome.html"}}{{template "layout_top" .}}
<p>Hi {{.ContractorName}},</p>
<p>Your account is active. Leads matching your ZIP codes will be routed to you
and billed per lead at your configured price.</p>
{{template "layout_bottom" .}}{{end}}

{{define "lead_notification.html"}}{{template "layout_top" .}}
<p>A new lead was routed to you:</p>
<ul>
<li><strong>Name:</strong> {{.LeadName}}</li>
<li><strong>Phone:</strong> {{.LeadPhone}}</li>
<li><strong>ZIP:</strong> {{.LeadZip}}</li>
</ul>
{{template "layout_bottom" .}}{{end}}

{{define "billing_receipt.html"}}{{template "layout_top" .}}
<p>We charged your saved payment method for {{.LeadCount}} lead(s).</p>
<p><strong>Total: {{.TotalFormatted}}</strong></p>
{{template "layout_bottom" .}}{{end}}
`))

func renderEmailTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatCurrencyUSD(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
