// Package twilio implements the phone intelligence lookup and the optional
// SMS sender.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/phone"
)

const (
	lookupBaseURL = "https://lookups.twilio.com/v2"
	smsBaseURL    = "https://api.twilio.com/2010-04-01"
)

// Client talks to the lookup and messaging APIs with account-SID basic auth.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	smsEnabled bool
	http       *http.Client
	log        *logger.Logger
}

// New creates a twilio client, or nil when no credentials are configured.
// A nil client treats every lookup as invalid and skips SMS without error.
func New(cfg config.TwilioConfig, log *logger.Logger) *Client {
	if cfg.GetTwilioAccountSID() == "" || cfg.GetTwilioAuthToken() == "" {
		return nil
	}

	return &Client{
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  cfg.GetTwilioAuthToken(),
		fromNumber: cfg.GetTwilioFromNumber(),
		smsEnabled: cfg.IsSMSEnabled(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type lookupResponse struct {
	PhoneNumber          string `json:"phone_number"`
	CountryCode          string `json:"country_code"`
	Valid                bool   `json:"valid"`
	LineTypeIntelligence *struct {
		CarrierName string `json:"carrier_name"`
		Type        string `json:"type"`
	} `json:"line_type_intelligence"`
}

// ValidateUS reports whether the number is a carrier-verified US number.
// The number is normalized to E.164 and pre-checked locally before the
// lookup call; only numbers passing the local check are sent upstream.
func (c *Client) ValidateUS(ctx context.Context, phoneNumber string) (bool, error) {
	if c == nil {
		return false, nil
	}

	normalized := phone.NormalizeE164(phoneNumber)
	if !phone.IsValidUS(normalized) {
		return false, nil
	}

	endpoint := fmt.Sprintf("%s/PhoneNumbers/%s?Fields=line_type_intelligence", lookupBaseURL, url.PathEscape(normalized))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("phone lookup failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("phone lookup returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}

	if !result.Valid || result.CountryCode != "US" {
		return false, nil
	}
	return result.LineTypeIntelligence != nil && result.LineTypeIntelligence.CarrierName != "", nil
}

// SendSMS delivers a text message. Disabled or nil clients log and skip.
func (c *Client) SendSMS(ctx context.Context, toNumber, body string) error {
	if c == nil || !c.smsEnabled {
		return nil
	}

	form := url.Values{}
	form.Set("To", phone.NormalizeE164(toNumber))
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", smsBaseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if c.log != nil {
		c.log.Info("sms sent", "to", phone.NormalizeE164(toNumber))
	}
	return nil
}
