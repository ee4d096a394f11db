package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	contractorrepo "leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/logger"
)

type fakeLeadStore struct {
	mu        sync.Mutex
	byStatus  map[domain.Status][]domain.Lead
	searchErr error
	tagged    map[string]string
	connected []string
}

func (f *fakeLeadStore) SearchByStatus(ctx context.Context, status domain.Status) ([]domain.Lead, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.byStatus[status], nil
}

func (f *fakeLeadStore) TagCompany(ctx context.Context, leadID, company string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tagged == nil {
		f.tagged = make(map[string]string)
	}
	f.tagged[leadID] = company
	return nil
}

func (f *fakeLeadStore) UpdateStatuses(ctx context.Context, leadIDs []string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == domain.StatusConnected {
		f.connected = append(f.connected, leadIDs...)
	}
	return nil
}

type fakeDirectory struct {
	contractors []contractorrepo.Contractor
}

func (f *fakeDirectory) MatchZip(ctx context.Context, zip string) (contractorrepo.Contractor, error) {
	var match *contractorrepo.Contractor
	for i, contractor := range f.contractors {
		for _, covered := range contractor.ZipCodes {
			if covered == zip {
				if match == nil || contractor.CreatedAt.Before(match.CreatedAt) {
					match = &f.contractors[i]
				}
			}
		}
	}
	if match == nil {
		return contractorrepo.Contractor{}, contractorrepo.ErrNotFound
	}
	return *match, nil
}

func (f *fakeDirectory) GetByID(ctx context.Context, id uuid.UUID) (contractorrepo.Contractor, error) {
	for _, contractor := range f.contractors {
		if contractor.ID == id {
			return contractor, nil
		}
	}
	return contractorrepo.Contractor{}, contractorrepo.ErrNotFound
}

type fakeValidator struct {
	mu      sync.Mutex
	invalid map[string]bool
	err     error
	calls   int
}

func (f *fakeValidator) ValidateUS(ctx context.Context, phone string) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return !f.invalid[phone], nil
}

type chargeCall struct {
	sessionID      string
	amountCents    int64
	idempotencyKey string
}

type fakeProcessor struct {
	mu      sync.Mutex
	charges []chargeCall
	err     error
}

func (f *fakeProcessor) Charge(ctx context.Context, sessionID string, amountCents int64, description, idempotencyKey string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, chargeCall{sessionID: sessionID, amountCents: amountCents, idempotencyKey: idempotencyKey})
	return "pi_test_1", nil
}

type fakeRunStore struct {
	mu     sync.Mutex
	runs   map[string]*Run
	billed map[string]uuid.UUID
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[string]*Run), billed: make(map[string]uuid.UUID)}
}

func (f *fakeRunStore) CreateRun(ctx context.Context, contractorID uuid.UUID, runDate time.Time, key string, leadCount int, amountCents int64) (Run, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.runs[key]; ok {
		return *existing, false, nil
	}
	run := &Run{
		ID:             uuid.New(),
		ContractorID:   contractorID,
		RunDate:        runDate,
		IdempotencyKey: key,
		Status:         RunStatusPending,
		LeadCount:      leadCount,
		AmountCents:    amountCents,
	}
	f.runs[key] = run
	return *run, true, nil
}

func (f *fakeRunStore) MarkRunCharged(ctx context.Context, runID uuid.UUID, paymentIntentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.runs {
		if run.ID == runID {
			run.Status = RunStatusCharged
			run.PaymentIntentID = &paymentIntentID
		}
	}
	return nil
}

func (f *fakeRunStore) MarkRunFailed(ctx context.Context, runID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.runs {
		if run.ID == runID {
			run.Status = RunStatusFailed
			run.FailureReason = &reason
		}
	}
	return nil
}

func (f *fakeRunStore) PendingRuns(ctx context.Context) ([]Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []Run
	for _, run := range f.runs {
		if run.Status == RunStatusPending {
			pending = append(pending, *run)
		}
	}
	return pending, nil
}

func (f *fakeRunStore) RecordBilledLeads(ctx context.Context, runID, contractorID uuid.UUID, leadIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, leadID := range leadIDs {
		if _, taken := f.billed[leadID]; !taken {
			f.billed[leadID] = runID
		}
	}
	return nil
}

func (f *fakeRunStore) ReleaseBilledLeads(ctx context.Context, runID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for leadID, owner := range f.billed {
		if owner == runID {
			delete(f.billed, leadID)
		}
	}
	return nil
}

func (f *fakeRunStore) RunLeadIDs(ctx context.Context, runID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for leadID, owner := range f.billed {
		if owner == runID {
			ids = append(ids, leadID)
		}
	}
	return ids, nil
}

func (f *fakeRunStore) FilterBilled(ctx context.Context, leadIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	billed := make(map[string]bool)
	for _, leadID := range leadIDs {
		if _, ok := f.billed[leadID]; ok {
			billed[leadID] = true
		}
	}
	return billed, nil
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

type fakeBillingConfig struct {
	env string
}

func (f fakeBillingConfig) GetEnv() string {
	if f.env == "" {
		return "production"
	}
	return f.env
}
func (f fakeBillingConfig) GetBillingCallTimeout() time.Duration    { return 5 * time.Second }
func (f fakeBillingConfig) GetBillingRequestsPerSecond() float64    { return 10000 }
func (f fakeBillingConfig) GetBillingLookupConcurrency() int        { return 5 }

type fixture struct {
	svc       *Service
	store     *fakeLeadStore
	directory *fakeDirectory
	validator *fakeValidator
	processor *fakeProcessor
	runs      *fakeRunStore
	bus       *fakeBus
}

func newFixture(t *testing.T, cfg fakeBillingConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:     &fakeLeadStore{byStatus: make(map[domain.Status][]domain.Lead)},
		directory: &fakeDirectory{},
		validator: &fakeValidator{},
		processor: &fakeProcessor{},
		runs:      newFakeRunStore(),
		bus:       &fakeBus{},
	}
	f.svc = NewService(
		f.store, f.directory, f.validator, f.processor,
		nil, nil, f.runs, f.bus, cfg, logger.New("test"),
	)
	return f
}

func testContractor(zip string, priceCents int64) contractorrepo.Contractor {
	return contractorrepo.Contractor{
		ID:                uuid.New(),
		Name:              "Jordan Reyes",
		Company:           "Reyes Roofing",
		Email:             "jordan@reyesroofing.test",
		Phone:             "+14045550100",
		PaymentSessionID:  "cs_test_abc",
		PricePerLeadCents: priceCents,
		ZipCodes:          []string{zip},
		CreatedAt:         time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func openLead(id, zip string) domain.Lead {
	return domain.Lead{
		ID:        id,
		FirstName: "Pat",
		LastName:  "Lead " + id,
		Phone:     "+1404555" + id[len(id)-4:],
		Zip:       zip,
		Status:    domain.StatusOpen,
	}
}

var runDate = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func TestRunChargesPricePerValidLead(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 25000)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{
		openLead("1001", "30301"), openLead("1002", "30301"), openLead("1003", "30301"),
	}

	summary, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.processor.charges) != 1 {
		t.Fatalf("expected exactly one charge, got %d", len(f.processor.charges))
	}
	if got := f.processor.charges[0].amountCents; got != 75000 {
		t.Errorf("charge amount = %d, want 75000", got)
	}
	if summary.ContractorsCharged != 1 || summary.TotalAmountCents != 75000 {
		t.Errorf("summary = %+v, want 1 contractor charged for 75000", summary)
	}
	if len(f.store.connected) != 3 {
		t.Errorf("expected 3 leads marked CONNECTED, got %d", len(f.store.connected))
	}

	var charged int
	for _, event := range f.bus.events {
		if e, ok := event.(events.ContractorCharged); ok {
			charged++
			if e.AmountCents != 75000 || e.LeadCount != 3 {
				t.Errorf("charged event = %+v, want 3 leads / 75000 cents", e)
			}
		}
	}
	if charged != 1 {
		t.Errorf("expected one ContractorCharged event, got %d", charged)
	}
}

func TestRunIsIdempotentPerContractorAndDate(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 25000)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("2001", "30301")}

	if _, err := f.svc.Run(context.Background(), runDate, false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := f.svc.Run(context.Background(), runDate, false); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(f.processor.charges) != 1 {
		t.Fatalf("re-run charged again: %d charges", len(f.processor.charges))
	}
	if len(f.store.connected) != 1 {
		t.Errorf("expected 1 connected lead, got %d", len(f.store.connected))
	}
}

func TestIdempotencyKeyIsStable(t *testing.T) {
	id := uuid.New().String()
	a := IdempotencyKey(id, runDate)
	b := IdempotencyKey(id, runDate.Add(6*time.Hour))
	if a != b {
		t.Error("keys for the same contractor and calendar date differ")
	}
	if a == IdempotencyKey(id, runDate.AddDate(0, 0, 1)) {
		t.Error("keys for different dates collide")
	}
	if a == IdempotencyKey(uuid.New().String(), runDate) {
		t.Error("keys for different contractors collide")
	}
}

func TestZipTruncationMatchesCoverage(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 10000)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("3001", "30301-1234")}

	summary, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 1 {
		t.Errorf("ZIP+4 lead did not match 5-digit coverage: %+v", summary)
	}
	if len(f.processor.charges) != 1 {
		t.Fatalf("expected a charge for the truncated-ZIP lead")
	}
}

func TestUnmatchedLeadsAreDroppedSilently(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 10000)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{
		openLead("4001", "30301"),
		openLead("4002", "99999"),
	}

	summary, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Matched != 1 || summary.Unmatched != 1 {
		t.Errorf("summary = %+v, want 1 matched / 1 unmatched", summary)
	}
}

func TestInvalidPhonesAreFilteredNotBilled(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 25000)}
	leads := []domain.Lead{
		openLead("5001", "30301"), openLead("5002", "30301"), openLead("5003", "30301"),
	}
	f.store.byStatus[domain.StatusOpen] = leads
	f.validator.invalid = map[string]bool{leads[1].Phone: true}

	_, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.processor.charges) != 1 {
		t.Fatalf("expected one charge, got %d", len(f.processor.charges))
	}
	if got := f.processor.charges[0].amountCents; got != 50000 {
		t.Errorf("charge amount = %d, want 50000 for the 2 valid leads", got)
	}
	if f.validator.calls != 3 {
		t.Errorf("expected all 3 phones validated, got %d calls", f.validator.calls)
	}
}

func TestValidatorErrorAbortsContractorWithoutCharge(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 25000)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("6001", "30301")}
	f.validator.err = errors.New("lookup provider unreachable")

	summary, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.processor.charges) != 0 {
		t.Fatal("charged despite validator failure")
	}
	if summary.ContractorsFailed != 1 {
		t.Errorf("summary = %+v, want 1 failed contractor", summary)
	}
	if len(f.runs.billed) != 0 {
		t.Error("leads were reserved despite aborted batch")
	}
}

func TestChargeFailureReleasesLeadsForNextRun(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 25000)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("7001", "30301")}
	f.processor.err = errors.New("card declined")

	summary, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.ContractorsFailed != 1 {
		t.Errorf("summary = %+v, want 1 failed contractor", summary)
	}
	if len(f.store.connected) != 0 {
		t.Error("leads marked CONNECTED despite failed charge")
	}
	if len(f.runs.billed) != 0 {
		t.Error("failed run kept its lead reservations")
	}

	// Next day the charge works again and the lead is swept.
	f.processor.err = nil
	nextDay := runDate.AddDate(0, 0, 1)
	if _, err := f.svc.Run(context.Background(), nextDay, false); err != nil {
		t.Fatalf("next-day run: %v", err)
	}
	if len(f.processor.charges) != 1 {
		t.Fatalf("expected the released lead to be billed next day, got %d charges", len(f.processor.charges))
	}
}

func TestSameDayRetryAfterFailureUsesFreshKey(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	contractor := testContractor("30301", 25000)
	f.directory.contractors = []contractorrepo.Contractor{contractor}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{
		openLead("7101", "30301"), openLead("7102", "30301"),
	}
	f.processor.err = errors.New("card declined")

	if _, err := f.svc.Run(context.Background(), runDate, false); err != nil {
		t.Fatalf("failing run: %v", err)
	}

	// The batch shrinks before the retry; the stale key would carry the old
	// amount and be refused by the processor.
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("7101", "30301")}
	f.processor.err = nil
	summary, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}

	if len(f.processor.charges) != 1 {
		t.Fatalf("expected one successful charge, got %d", len(f.processor.charges))
	}
	base := IdempotencyKey(contractor.ID.String(), runDate)
	charge := f.processor.charges[0]
	if charge.idempotencyKey == base {
		t.Error("retry reused the failed attempt's idempotency key")
	}
	if charge.idempotencyKey != retryKey(base) {
		t.Error("retry key is not derived from the failed attempt's key")
	}
	if charge.amountCents != 25000 {
		t.Errorf("retry charged %d, want 25000 for the shrunk batch", charge.amountCents)
	}
	if summary.ContractorsCharged != 1 {
		t.Errorf("summary = %+v, want 1 charged contractor", summary)
	}
	if f.runs.runs[base].Status != RunStatusFailed {
		t.Errorf("first attempt status = %s, want FAILED", f.runs.runs[base].Status)
	}
	if f.runs.runs[retryKey(base)].Status != RunStatusCharged {
		t.Errorf("retry attempt status = %s, want CHARGED", f.runs.runs[retryKey(base)].Status)
	}
}

func TestSweepErrorAbortsRun(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.store.searchErr = errors.New("crm down")

	if _, err := f.svc.Run(context.Background(), runDate, false); err == nil {
		t.Fatal("expected run to abort when the CRM sweep fails")
	}
	if len(f.processor.charges) != 0 {
		t.Error("charged against a partial sweep")
	}
}

func TestProductionGuard(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{env: "development"})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 25000)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("8001", "30301")}

	if _, err := f.svc.Run(context.Background(), runDate, false); !errors.Is(err, ErrNotProduction) {
		t.Fatalf("unforced non-production run: got err %v, want ErrNotProduction", err)
	}
	if _, err := f.svc.Run(context.Background(), runDate, true); err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if len(f.processor.charges) != 1 {
		t.Errorf("forced run did not charge")
	}
}

func TestContractorWithoutPriceIsSkipped(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	f.directory.contractors = []contractorrepo.Contractor{testContractor("30301", 0)}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("9001", "30301")}

	if _, err := f.svc.Run(context.Background(), runDate, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.processor.charges) != 0 {
		t.Error("charged a contractor with no price set")
	}
	if len(f.runs.billed) != 0 {
		t.Error("reserved leads for an unpriced contractor")
	}
}

func TestPendingRunIsResumedUnderSameKey(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	contractor := testContractor("30301", 25000)
	f.directory.contractors = []contractorrepo.Contractor{contractor}

	key := IdempotencyKey(contractor.ID.String(), runDate.AddDate(0, 0, -1))
	run, _, err := f.runs.CreateRun(context.Background(), contractor.ID, runDate.AddDate(0, 0, -1), key, 2, 50000)
	if err != nil {
		t.Fatalf("seed pending run: %v", err)
	}
	if err := f.runs.RecordBilledLeads(context.Background(), run.ID, contractor.ID, []string{"old1", "old2"}); err != nil {
		t.Fatalf("seed billed leads: %v", err)
	}

	summary, err := f.svc.Run(context.Background(), runDate, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Resumed != 1 {
		t.Fatalf("summary = %+v, want 1 resumed run", summary)
	}
	if len(f.processor.charges) != 1 {
		t.Fatalf("expected the pending run's charge, got %d", len(f.processor.charges))
	}
	if f.processor.charges[0].idempotencyKey != key {
		t.Error("resumed charge did not reuse the stored idempotency key")
	}
	if f.runs.runs[key].Status != RunStatusCharged {
		t.Errorf("resumed run status = %s, want CHARGED", f.runs.runs[key].Status)
	}
	if len(f.store.connected) != 2 {
		t.Errorf("expected the resumed run's leads marked CONNECTED, got %d", len(f.store.connected))
	}
}

func TestEarliestRegisteredContractorWinsOverlap(t *testing.T) {
	f := newFixture(t, fakeBillingConfig{})
	first := testContractor("30301", 10000)
	second := testContractor("30301", 20000)
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	second.Email = "late@overlap.test"
	f.directory.contractors = []contractorrepo.Contractor{second, first}
	f.store.byStatus[domain.StatusOpen] = []domain.Lead{openLead("1101", "30301")}

	if _, err := f.svc.Run(context.Background(), runDate, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.processor.charges) != 1 {
		t.Fatalf("expected one charge, got %d", len(f.processor.charges))
	}
	if got := f.processor.charges[0].amountCents; got != 10000 {
		t.Errorf("overlap resolved to the wrong contractor: charged %d, want 10000", got)
	}
}
