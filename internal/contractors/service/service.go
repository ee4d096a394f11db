package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/phone"
)

// CheckoutSession is the hosted page a contractor completes to save a card.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentProvider is the slice of the payment processor the contractor
// lifecycle needs: onboarding sessions, the one-time setup fee and teardown.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateSetupSession(ctx context.Context, customerID string) (CheckoutSession, error)
	UpdateCustomerEmail(ctx context.Context, customerID, email string) error
	SessionPaymentMethod(ctx context.Context, sessionID string) (customerID, paymentMethodID string, err error)
	ChargeSetupFee(ctx context.Context, customerID, paymentMethodID string, amountCents int64, idempotencyKey string) error
	DeleteCustomer(ctx context.Context, customerID string) error
}

type Config interface {
	GetStripeSetupFeeCents() int64
}

// ContractorStore is the slice of the contractor datastore the lifecycle
// service needs. Satisfied by *repository.Repository.
type ContractorStore interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.Contractor, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Contractor, error)
	GetByEmail(ctx context.Context, email string) (repository.Contractor, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateParams) (repository.Contractor, error)
	UpdatePaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo     ContractorStore
	payments PaymentProvider
	cfg      Config
	bus      events.Bus
	log      *logger.Logger
}

func New(repo ContractorStore, payments PaymentProvider, cfg Config, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, payments: payments, cfg: cfg, bus: bus, log: log}
}

// CreateCheckoutSession opens onboarding: creates a processor customer and a
// card-setup session the frontend redirects to.
func (s *Service) CreateCheckoutSession(ctx context.Context, email, name string) (CheckoutSession, error) {
	customerID, err := s.payments.CreateCustomer(ctx, email, name)
	if err != nil {
		s.log.UpstreamError("payments", "create_customer", err)
		return CheckoutSession{}, apperr.Upstream("could not start checkout", err)
	}
	session, err := s.payments.CreateSetupSession(ctx, customerID)
	if err != nil {
		s.log.UpstreamError("payments", "create_setup_session", err)
		return CheckoutSession{}, apperr.Upstream("could not start checkout", err)
	}
	return session, nil
}

// UpdateSessionEmail corrects the customer email on a session started with a
// typo, before registration completes.
func (s *Service) UpdateSessionEmail(ctx context.Context, sessionID, email string) error {
	customerID, _, err := s.payments.SessionPaymentMethod(ctx, sessionID)
	if err != nil {
		s.log.UpstreamError("payments", "get_session", err)
		return apperr.Upstream("checkout session not found", err)
	}
	if err := s.payments.UpdateCustomerEmail(ctx, customerID, email); err != nil {
		s.log.UpstreamError("payments", "update_customer", err)
		return apperr.Upstream("could not update email", err)
	}
	return nil
}

// CreateUpdateSession opens a card-setup session against the contractor's
// existing processor customer so they can replace the saved payment method.
// The new session id is stored immediately; billing resolves the payment
// method from it once checkout completes.
func (s *Service) CreateUpdateSession(ctx context.Context, contractorID uuid.UUID) (CheckoutSession, error) {
	contractor, err := s.repo.GetByID(ctx, contractorID)
	if errors.Is(err, repository.ErrNotFound) {
		return CheckoutSession{}, apperr.NotFound("contractor not found")
	}
	if err != nil {
		return CheckoutSession{}, apperr.Wrap(apperr.KindInternal, "could not load contractor", err)
	}
	if contractor.PaymentCustomerID == "" {
		return CheckoutSession{}, apperr.Conflict("no payment account on file")
	}

	session, err := s.payments.CreateSetupSession(ctx, contractor.PaymentCustomerID)
	if err != nil {
		s.log.UpstreamError("payments", "create_setup_session", err)
		return CheckoutSession{}, apperr.Upstream("could not start card update", err)
	}
	if err := s.repo.UpdatePaymentSession(ctx, contractorID, session.ID); err != nil {
		return CheckoutSession{}, apperr.Wrap(apperr.KindInternal, "could not store checkout session", err)
	}
	return session, nil
}

// RegisterParams is the validated registration payload. PasswordHash must
// already be a bcrypt hash; the service never sees a plaintext password.
type RegisterParams struct {
	Name         string
	Company      string
	Email        string
	Phone        string
	PasswordHash string
	SessionID    string
	ZipCodes     []string
}

// Register finalizes onboarding after checkout completed: verifies the saved
// card, charges the setup fee and persists the contractor.
func (s *Service) Register(ctx context.Context, params RegisterParams) (repository.Contractor, error) {
	if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
		return repository.Contractor{}, apperr.Conflict("an account with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return repository.Contractor{}, apperr.Wrap(apperr.KindInternal, "could not check existing accounts", err)
	}

	customerID, paymentMethodID, err := s.payments.SessionPaymentMethod(ctx, params.SessionID)
	if err != nil {
		s.log.UpstreamError("payments", "get_session", err)
		return repository.Contractor{}, apperr.Upstream("checkout session not completed", err)
	}
	if paymentMethodID == "" {
		return repository.Contractor{}, apperr.Validation("card setup was not completed")
	}

	zips, err := normalizeZips(params.ZipCodes)
	if err != nil {
		return repository.Contractor{}, err
	}

	setupFee := s.cfg.GetStripeSetupFeeCents()
	if setupFee > 0 {
		key := fmt.Sprintf("setup:%s", params.SessionID)
		if err := s.payments.ChargeSetupFee(ctx, customerID, paymentMethodID, setupFee, key); err != nil {
			s.log.UpstreamError("payments", "charge_setup_fee", err)
			return repository.Contractor{}, apperr.Upstream("setup fee payment failed", err)
		}
	}

	contractor, err := s.repo.Create(ctx, repository.CreateParams{
		Name:              params.Name,
		Company:           params.Company,
		Email:             params.Email,
		Phone:             phone.NormalizeE164(params.Phone),
		PasswordHash:      params.PasswordHash,
		PaymentCustomerID: customerID,
		PaymentSessionID:  params.SessionID,
		PricePerLeadCents: 0,
		ZipCodes:          zips,
	})
	if err != nil {
		return repository.Contractor{}, apperr.Wrap(apperr.KindInternal, "could not create contractor", err)
	}

	s.bus.Publish(ctx, events.ContractorRegistered{
		BaseEvent:    events.NewBaseEvent(),
		ContractorID: contractor.ID,
		Email:        contractor.Email,
		Name:         contractor.Name,
		Company:      contractor.Company,
	})
	return contractor, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Contractor, error) {
	contractor, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Contractor{}, apperr.NotFound("contractor not found")
	}
	if err != nil {
		return repository.Contractor{}, apperr.Wrap(apperr.KindInternal, "could not load contractor", err)
	}
	return contractor, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, params repository.UpdateParams) (repository.Contractor, error) {
	if params.ZipCodes != nil {
		zips, err := normalizeZips(params.ZipCodes)
		if err != nil {
			return repository.Contractor{}, err
		}
		params.ZipCodes = zips
	}
	if params.Phone != nil {
		normalized := phone.NormalizeE164(*params.Phone)
		params.Phone = &normalized
	}
	contractor, err := s.repo.Update(ctx, id, params)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Contractor{}, apperr.NotFound("contractor not found")
	}
	if err != nil {
		return repository.Contractor{}, apperr.Wrap(apperr.KindInternal, "could not update contractor", err)
	}
	return contractor, nil
}

// Delete removes the contractor. The processor customer is deleted first so a
// failure there leaves the account intact and retryable; the row is only gone
// once the processor side is.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	contractor, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("contractor not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not load contractor", err)
	}

	if contractor.PaymentCustomerID != "" {
		if err := s.payments.DeleteCustomer(ctx, contractor.PaymentCustomerID); err != nil {
			s.log.UpstreamError("payments", "delete_customer", err)
			return apperr.Upstream("could not remove payment account", err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not delete contractor", err)
	}
	return nil
}

func normalizeZips(raw []string) ([]string, error) {
	zips := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, z := range raw {
		normalized, ok := normalizeZip(z)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("invalid ZIP code %q", z))
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		zips = append(zips, normalized)
	}
	return zips, nil
}

// normalizeZip truncates ZIP+4 to the 5-digit prefix and rejects anything
// that is not 5 digits after truncation.
func normalizeZip(zip string) (string, bool) {
	if len(zip) > 5 {
		zip = zip[:5]
	}
	if len(zip) != 5 {
		return "", false
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return zip, true
}
