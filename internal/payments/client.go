// Package payments implements the Stripe payment processor client: customers,
// setup-mode checkout sessions, and confirmed off-session payment intents.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadmarket_backend/platform/config"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// IntentStatusSucceeded is the only terminal payment intent status treated as
// a successful charge.
const IntentStatusSucceeded = "succeeded"

// Client talks to the Stripe REST API with form-encoded requests.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// New creates a payments client from application config.
func New(cfg config.PaymentsConfig) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		secretKey: cfg.GetStripeSecretKey(),
		http:      &http.Client{Timeout: 20 * time.Second},
	}
}

// Customer is a payment processor customer record.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a hosted checkout session.
type Session struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	CustomerID    string `json:"customer"`
	SetupIntentID string `json:"setup_intent"`
}

// SetupIntent carries the saved payment method collected by a setup session.
type SetupIntent struct {
	ID              string `json:"id"`
	CustomerID      string `json:"customer"`
	PaymentMethodID string `json:"payment_method"`
	Status          string `json:"status"`
}

// PaymentIntent is the result of a charge attempt.
type PaymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

// CreateCustomer registers a customer with the processor.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) (Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("name", name)

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, "", &customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// CreateSetupSession creates a setup-mode checkout session that collects and
// saves a payment method for the customer. Used both for initial registration
// and for updating a saved payment method.
func (c *Client) CreateSetupSession(ctx context.Context, customerID, successURL, cancelURL string) (Session, error) {
	form := url.Values{}
	form.Set("mode", "setup")
	form.Set("customer", customerID)
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	var session Session
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, "", &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// GetSession retrieves a checkout session by id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodGet, "/checkout/sessions/"+sessionID, nil, "", &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// GetSetupIntent retrieves the setup intent holding the saved payment method.
func (c *Client) GetSetupIntent(ctx context.Context, setupIntentID string) (SetupIntent, error) {
	var intent SetupIntent
	if err := c.do(ctx, http.MethodGet, "/setup_intents/"+setupIntentID, nil, "", &intent); err != nil {
		return SetupIntent{}, err
	}
	return intent, nil
}

// ChargeParams describes a confirmed off-session charge.
type ChargeParams struct {
	CustomerID      string
	PaymentMethodID string
	AmountCents     int64
	Description     string
	// IdempotencyKey deduplicates the charge on the processor side; the same
	// key can be retried safely without creating a second payment.
	IdempotencyKey string
}

// CreatePaymentIntent creates and confirms an off-session payment intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, params ChargeParams) (PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", "usd")
	form.Set("customer", params.CustomerID)
	form.Set("payment_method", params.PaymentMethodID)
	form.Set("off_session", "true")
	form.Set("confirm", "true")
	if params.Description != "" {
		form.Set("description", params.Description)
	}

	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, params.IdempotencyKey, &intent); err != nil {
		return PaymentIntent{}, err
	}
	return intent, nil
}

// UpdateCustomerEmail changes the email on an existing customer.
func (c *Client) UpdateCustomerEmail(ctx context.Context, customerID, email string) error {
	form := url.Values{}
	form.Set("email", email)
	return c.do(ctx, http.MethodPost, "/customers/"+customerID, form, "", nil)
}

// DeleteCustomer removes the customer and their saved payment methods.
func (c *Client) DeleteCustomer(ctx context.Context, customerID string) error {
	return c.do(ctx, http.MethodDelete, "/customers/"+customerID, nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("payments request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payments returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
