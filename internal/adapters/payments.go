// Package adapters bridges provider clients to the narrow ports the domain
// services declare, keeping service packages free of provider types.
package adapters

import (
	"context"
	"errors"
	"fmt"

	contractorsvc "leadmarket_backend/internal/contractors/service"
	"leadmarket_backend/internal/payments"
	"leadmarket_backend/platform/config"
)

// PaymentsAdapter exposes the Stripe client through the contractor and
// billing ports.
type PaymentsAdapter struct {
	client     *payments.Client
	successURL string
	cancelURL  string
}

func NewPaymentsAdapter(client *payments.Client, cfg config.PaymentsConfig) *PaymentsAdapter {
	return &PaymentsAdapter{
		client:     client,
		successURL: cfg.GetCheckoutSuccessURL(),
		cancelURL:  cfg.GetCheckoutCancelURL(),
	}
}

func (a *PaymentsAdapter) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	customer, err := a.client.CreateCustomer(ctx, email, name)
	if err != nil {
		return "", err
	}
	return customer.ID, nil
}

func (a *PaymentsAdapter) CreateSetupSession(ctx context.Context, customerID string) (contractorsvc.CheckoutSession, error) {
	session, err := a.client.CreateSetupSession(ctx, customerID, a.successURL, a.cancelURL)
	if err != nil {
		return contractorsvc.CheckoutSession{}, err
	}
	return contractorsvc.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (a *PaymentsAdapter) UpdateCustomerEmail(ctx context.Context, customerID, email string) error {
	return a.client.UpdateCustomerEmail(ctx, customerID, email)
}

// SessionPaymentMethod resolves the customer and saved payment method behind
// a completed setup session.
func (a *PaymentsAdapter) SessionPaymentMethod(ctx context.Context, sessionID string) (string, string, error) {
	session, err := a.client.GetSession(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	if session.SetupIntentID == "" {
		return session.CustomerID, "", nil
	}
	intent, err := a.client.GetSetupIntent(ctx, session.SetupIntentID)
	if err != nil {
		return "", "", err
	}
	return session.CustomerID, intent.PaymentMethodID, nil
}

func (a *PaymentsAdapter) ChargeSetupFee(ctx context.Context, customerID, paymentMethodID string, amountCents int64, idempotencyKey string) error {
	intent, err := a.client.CreatePaymentIntent(ctx, payments.ChargeParams{
		CustomerID:      customerID,
		PaymentMethodID: paymentMethodID,
		AmountCents:     amountCents,
		Description:     "Account setup fee",
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		return err
	}
	if intent.Status != payments.IntentStatusSucceeded {
		return fmt.Errorf("setup fee intent %s in status %q", intent.ID, intent.Status)
	}
	return nil
}

func (a *PaymentsAdapter) DeleteCustomer(ctx context.Context, customerID string) error {
	return a.client.DeleteCustomer(ctx, customerID)
}

// ErrNoPaymentMethod is returned when a charge is requested for a session
// that never completed card setup.
var ErrNoPaymentMethod = errors.New("no saved payment method for session")

// Charge runs a confirmed off-session payment and reports the intent id.
// Satisfies the billing PaymentProcessor port.
func (a *PaymentsAdapter) Charge(ctx context.Context, sessionID string, amountCents int64, description, idempotencyKey string) (string, error) {
	customerID, paymentMethodID, err := a.SessionPaymentMethod(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if paymentMethodID == "" {
		return "", ErrNoPaymentMethod
	}
	intent, err := a.client.CreatePaymentIntent(ctx, payments.ChargeParams{
		CustomerID:      customerID,
		PaymentMethodID: paymentMethodID,
		AmountCents:     amountCents,
		Description:     description,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		return "", err
	}
	if intent.Status != payments.IntentStatusSucceeded {
		return intent.ID, fmt.Errorf("payment intent %s in status %q", intent.ID, intent.Status)
	}
	return intent.ID, nil
}
