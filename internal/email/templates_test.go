package email

import (
	"strings"
	"testing"
)

func TestRenderWelcomeTemplate(t *testing.T) {
	html, err := renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData:  baseEmailData{Title: subjectWelcome, Heading: "Welcome"},
		ContractorName: "Jordan",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Hi Jordan,") {
		t.Errorf("welcome email missing contractor name:\n%s", html)
	}
}

func TestRenderLeadNotificationTemplate(t *testing.T) {
	html, err := renderEmailTemplate("lead_notification.html", leadNotificationEmailData{
		baseEmailData: baseEmailData{Title: subjectLeadNotification, Heading: "New lead"},
		LeadName:      "Pat Doe",
		LeadPhone:     "+15551234567",
		LeadZip:       "30301",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Pat Doe", "+15551234567", "30301"} {
		if !strings.Contains(html, want) {
			t.Errorf("lead notification missing %q", want)
		}
	}
}

func TestRenderBillingReceiptTemplate(t *testing.T) {
	html, err := renderEmailTemplate("billing_receipt.html", billingReceiptEmailData{
		baseEmailData:  baseEmailData{Title: subjectBillingReceipt, Heading: "Receipt"},
		LeadCount:      3,
		TotalFormatted: formatCurrencyUSD(75000),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "$750.00") {
		t.Errorf("receipt missing formatted total:\n%s", html)
	}
	if !strings.Contains(html, "3 lead(s)") {
		t.Errorf("receipt missing lead count:\n%s", html)
	}
}

func TestFormatCurrencyUSD(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{75000, "$750.00"},
		{25000, "$250.00"},
		{99, "$0.99"},
		{0, "$0.00"},
		{101, "$1.01"},
	}
	for _, tc := range cases {
		if got := formatCurrencyUSD(tc.cents); got != tc.want {
			t.Errorf("formatCurrencyUSD(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
