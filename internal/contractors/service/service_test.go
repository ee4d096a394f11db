package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"
)

type fakeStore struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]repository.Contractor
	deleteCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[uuid.UUID]repository.Contractor)}
}

func (f *fakeStore) Create(ctx context.Context, params repository.CreateParams) (repository.Contractor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contractor := repository.Contractor{
		ID:                uuid.New(),
		Name:              params.Name,
		Company:           params.Company,
		Email:             params.Email,
		Phone:             params.Phone,
		PasswordHash:      params.PasswordHash,
		PaymentCustomerID: params.PaymentCustomerID,
		PaymentSessionID:  params.PaymentSessionID,
		PricePerLeadCents: params.PricePerLeadCents,
		ZipCodes:          params.ZipCodes,
	}
	f.byID[contractor.ID] = contractor
	return contractor, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (repository.Contractor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contractor, ok := f.byID[id]
	if !ok {
		return repository.Contractor{}, repository.ErrNotFound
	}
	return contractor, nil
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (repository.Contractor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, contractor := range f.byID {
		if contractor.Email == email {
			return contractor, nil
		}
	}
	return repository.Contractor{}, repository.ErrNotFound
}

func (f *fakeStore) Update(ctx context.Context, id uuid.UUID, params repository.UpdateParams) (repository.Contractor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contractor, ok := f.byID[id]
	if !ok {
		return repository.Contractor{}, repository.ErrNotFound
	}
	if params.ZipCodes != nil {
		contractor.ZipCodes = params.ZipCodes
	}
	f.byID[id] = contractor
	return contractor, nil
}

func (f *fakeStore) UpdatePaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	contractor, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	contractor.PaymentSessionID = sessionID
	f.byID[id] = contractor
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	delete(f.byID, id)
	return nil
}

type setupFeeCall struct {
	customerID     string
	amountCents    int64
	idempotencyKey string
}

type fakeSession struct {
	customerID      string
	paymentMethodID string
}

type fakePayments struct {
	sessions   map[string]fakeSession
	setupFees  []setupFeeCall
	deletedIDs []string
	deleteErr  error
}

func newFakePayments() *fakePayments {
	return &fakePayments{sessions: make(map[string]fakeSession)}
}

func (f *fakePayments) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	return "cus_new", nil
}

func (f *fakePayments) CreateSetupSession(ctx context.Context, customerID string) (CheckoutSession, error) {
	return CheckoutSession{ID: "cs_new", URL: "https://pay.test/cs_new"}, nil
}

func (f *fakePayments) UpdateCustomerEmail(ctx context.Context, customerID, email string) error {
	return nil
}

func (f *fakePayments) SessionPaymentMethod(ctx context.Context, sessionID string) (string, string, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return "", "", errors.New("no such session")
	}
	return session.customerID, session.paymentMethodID, nil
}

func (f *fakePayments) ChargeSetupFee(ctx context.Context, customerID, paymentMethodID string, amountCents int64, idempotencyKey string) error {
	f.setupFees = append(f.setupFees, setupFeeCall{
		customerID:     customerID,
		amountCents:    amountCents,
		idempotencyKey: idempotencyKey,
	})
	return nil
}

func (f *fakePayments) DeleteCustomer(ctx context.Context, customerID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, customerID)
	return nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeBus) Publish(ctx context.Context, event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	f.Publish(ctx, event)
	return nil
}

func (f *fakeBus) Subscribe(eventName string, handler events.Handler) {}

type fakeConfig struct{ setupFeeCents int64 }

func (f fakeConfig) GetStripeSetupFeeCents() int64 { return f.setupFeeCents }

func newTestService(store *fakeStore, payments *fakePayments, feeCents int64) (*Service, *fakeBus) {
	bus := &fakeBus{}
	return New(store, payments, fakeConfig{setupFeeCents: feeCents}, bus, logger.New("test")), bus
}

func registerParams(email, sessionID string) RegisterParams {
	return RegisterParams{
		Name:         "Casey Alvarez",
		Company:      "Alvarez Plumbing",
		Email:        email,
		Phone:        "5551234567",
		PasswordHash: "$2a$12$fakefakefakefakefakefakefakefakefakefakefakefakefake",
		SessionID:    sessionID,
		ZipCodes:     []string{"30301"},
	}
}

func TestRegisterChargesSetupFeeKeyedBySession(t *testing.T) {
	store := newFakeStore()
	payments := newFakePayments()
	payments.sessions["cs_reg_1"] = fakeSession{customerID: "cus_1", paymentMethodID: "pm_1"}
	svc, bus := newTestService(store, payments, 9900)

	contractor, err := svc.Register(context.Background(), registerParams("a@b.com", "cs_reg_1"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if len(payments.setupFees) != 1 {
		t.Fatalf("expected one setup fee charge, got %d", len(payments.setupFees))
	}
	fee := payments.setupFees[0]
	if fee.idempotencyKey != "setup:cs_reg_1" {
		t.Errorf("setup fee key = %q, want setup:cs_reg_1", fee.idempotencyKey)
	}
	if fee.amountCents != 9900 || fee.customerID != "cus_1" {
		t.Errorf("setup fee = %+v, want 9900 cents on cus_1", fee)
	}
	if contractor.Phone != "+15551234567" {
		t.Errorf("stored phone = %q, want +15551234567", contractor.Phone)
	}

	var registered int
	for _, event := range bus.events {
		if _, ok := event.(events.ContractorRegistered); ok {
			registered++
		}
	}
	if registered != 1 {
		t.Errorf("expected one ContractorRegistered event, got %d", registered)
	}
}

func TestRegisterDuplicateEmailCreatesNoSecondRow(t *testing.T) {
	store := newFakeStore()
	payments := newFakePayments()
	payments.sessions["cs_reg_2"] = fakeSession{customerID: "cus_2", paymentMethodID: "pm_2"}
	svc, _ := newTestService(store, payments, 9900)

	if _, err := svc.Register(context.Background(), registerParams("dup@b.com", "cs_reg_2")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(context.Background(), registerParams("dup@b.com", "cs_reg_2"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("repeated Register: got %v, want a conflict", err)
	}

	if len(store.byID) != 1 {
		t.Errorf("expected one contractor row, got %d", len(store.byID))
	}
	if len(payments.setupFees) != 1 {
		t.Errorf("repeated Register charged the setup fee again: %d charges", len(payments.setupFees))
	}
}

func TestRegisterRejectsIncompleteCardSetup(t *testing.T) {
	store := newFakeStore()
	payments := newFakePayments()
	payments.sessions["cs_reg_3"] = fakeSession{customerID: "cus_3", paymentMethodID: ""}
	svc, _ := newTestService(store, payments, 9900)

	_, err := svc.Register(context.Background(), registerParams("c@d.com", "cs_reg_3"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Register without a saved card: got %v, want a validation error", err)
	}
	if len(store.byID) != 0 {
		t.Error("contractor row created despite incomplete card setup")
	}
	if len(payments.setupFees) != 0 {
		t.Error("setup fee charged despite incomplete card setup")
	}
}

func TestDeleteRemovesProcessorCustomerBeforeRow(t *testing.T) {
	store := newFakeStore()
	payments := newFakePayments()
	payments.sessions["cs_del_1"] = fakeSession{customerID: "cus_del", paymentMethodID: "pm_del"}
	svc, _ := newTestService(store, payments, 0)

	contractor, err := svc.Register(context.Background(), registerParams("gone@b.com", "cs_del_1"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	payments.deleteErr = errors.New("processor unavailable")
	if err := svc.Delete(context.Background(), contractor.ID); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("Delete with failing processor: got %v, want an upstream error", err)
	}
	if store.deleteCalls != 0 {
		t.Fatal("datastore row deleted before the processor customer")
	}
	if _, err := store.GetByID(context.Background(), contractor.ID); err != nil {
		t.Fatal("contractor row removed despite processor failure")
	}

	payments.deleteErr = nil
	if err := svc.Delete(context.Background(), contractor.ID); err != nil {
		t.Fatalf("Delete retry: %v", err)
	}
	if store.deleteCalls != 1 {
		t.Errorf("row delete calls = %d, want 1", store.deleteCalls)
	}
	if len(payments.deletedIDs) != 1 || payments.deletedIDs[0] != "cus_del" {
		t.Errorf("processor deletions = %v, want [cus_del]", payments.deletedIDs)
	}
	if _, err := store.GetByID(context.Background(), contractor.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Error("contractor row still present after successful delete")
	}
}

func TestNormalizeZips(t *testing.T) {
	zips, err := normalizeZips([]string{"30301", "30301-1234", "98101"})
	if err != nil {
		t.Fatalf("normalizeZips: %v", err)
	}
	// ZIP+4 truncates to its 5-digit prefix and duplicates collapse.
	if len(zips) != 2 || zips[0] != "30301" || zips[1] != "98101" {
		t.Errorf("normalizeZips = %v, want [30301 98101]", zips)
	}
}

func TestNormalizeZipsRejectsBadInput(t *testing.T) {
	for _, bad := range []string{"3030", "abcde", "30 01", ""} {
		if _, err := normalizeZips([]string{bad}); err == nil {
			t.Errorf("normalizeZips accepted %q", bad)
		}
	}
}

func TestNormalizeZipTruncation(t *testing.T) {
	got, ok := normalizeZip("30301-1234")
	if !ok || got != "30301" {
		t.Errorf("normalizeZip(30301-1234) = %q, %v; want 30301, true", got, ok)
	}
	if _, ok := normalizeZip("1234"); ok {
		t.Error("normalizeZip accepted a 4-digit ZIP")
	}
}
