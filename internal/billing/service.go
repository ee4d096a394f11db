// Package billing runs the daily reconciliation job: sweep unbilled CRM
// leads, match them to contractor ZIP coverage, route them out, validate
// phones and charge each contractor once per run date.
package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	contractorrepo "leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

// ErrNotProduction is returned when a scheduled run fires outside production
// and was not forced.
var ErrNotProduction = errors.New("billing runs only execute in production unless forced")

// Summary reports what one reconciliation sweep did.
type Summary struct {
	RunDate            time.Time
	Swept              int
	Matched            int
	Unmatched          int
	AlreadyBilled      int
	Routed             int
	Dropped            int
	Valid              int
	Invalid            int
	ContractorsCharged int
	ContractorsFailed  int
	TotalAmountCents   int64
	Resumed            int
}

type Service struct {
	store     LeadStore
	directory ContractorDirectory
	validator PhoneValidator
	processor PaymentProcessor
	pipeline  PipelineRouter
	mirrorFor MirrorFactory
	runs      RunStore
	bus       events.Bus
	cfg       config.BillingConfig
	log       *logger.Logger

	// limiter paces every outbound provider call in the run.
	limiter *rate.Limiter
}

func NewService(
	store LeadStore,
	directory ContractorDirectory,
	validator PhoneValidator,
	processor PaymentProcessor,
	pipeline PipelineRouter,
	mirrorFor MirrorFactory,
	runs RunStore,
	bus events.Bus,
	cfg config.BillingConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		store:     store,
		directory: directory,
		validator: validator,
		processor: processor,
		pipeline:  pipeline,
		mirrorFor: mirrorFor,
		runs:      runs,
		bus:       bus,
		cfg:       cfg,
		log:       log,
		limiter:   rate.NewLimiter(rate.Limit(cfg.GetBillingRequestsPerSecond()), 1),
	}
}

// IdempotencyKey derives the processor idempotency key for one contractor and
// run date. The same pair always yields the same key, so a re-run of a
// crashed or duplicated sweep cannot charge twice.
func IdempotencyKey(contractorID string, runDate time.Time) string {
	sum := sha256.Sum256([]byte(contractorID + runDate.Format("2006-01-02")))
	return hex.EncodeToString(sum[:])
}

// retryKey derives the key for the attempt after a failed one. The processor
// pins every key it has seen to its first outcome, so retrying a declined
// charge must present a fresh key; chaining keeps the sequence deterministic.
func retryKey(prev string) string {
	sum := sha256.Sum256([]byte(prev + ":retry"))
	return hex.EncodeToString(sum[:])
}

// Run executes one reconciliation sweep for runDate. Scheduled invocations
// pass force=false and are refused outside production; the admin endpoint
// forces.
func (s *Service) Run(ctx context.Context, runDate time.Time, force bool) (Summary, error) {
	if !force && s.cfg.GetEnv() != "production" {
		return Summary{}, ErrNotProduction
	}
	summary := Summary{RunDate: runDate}

	if err := s.resumePending(ctx, &summary); err != nil {
		return summary, err
	}

	leads, err := s.sweep(ctx)
	if err != nil {
		return summary, err
	}
	summary.Swept = len(leads)

	groups, err := s.match(ctx, leads, &summary)
	if err != nil {
		return summary, err
	}

	// Contractors are processed sequentially; concurrency lives inside the
	// per-contractor phone validation stage.
	for _, group := range groups {
		s.reconcileContractor(ctx, runDate, group, &summary)
	}

	s.log.Info("billing run complete",
		"run_date", runDate.Format("2006-01-02"),
		"swept", summary.Swept,
		"matched", summary.Matched,
		"unmatched", summary.Unmatched,
		"charged_contractors", summary.ContractorsCharged,
		"failed_contractors", summary.ContractorsFailed,
		"total_amount_cents", summary.TotalAmountCents,
	)
	return summary, nil
}

// sweep fetches every lead in the billable status buckets. Any fetch error
// aborts the run: billing against a partial view risks wrong charges.
func (s *Service) sweep(ctx context.Context) ([]domain.Lead, error) {
	var all []domain.Lead
	seen := make(map[string]struct{})
	for _, status := range domain.BillableStatuses {
		var leads []domain.Lead
		err := s.call(ctx, func(ctx context.Context) error {
			var err error
			leads, err = s.store.SearchByStatus(ctx, status)
			return err
		})
		if err != nil {
			s.log.UpstreamError("crm", "search_by_status", err)
			return nil, fmt.Errorf("sweep %s leads: %w", status, err)
		}
		for _, lead := range leads {
			if _, dup := seen[lead.ID]; dup {
				continue
			}
			seen[lead.ID] = struct{}{}
			all = append(all, lead)
		}
	}
	return all, nil
}

type contractorGroup struct {
	contractor contractorrepo.Contractor
	leads      []domain.Lead
}

// match assigns each swept lead to the contractor covering its ZIP. Leads
// with no coverage or already billed are dropped silently (counted, logged).
func (s *Service) match(ctx context.Context, leads []domain.Lead, summary *Summary) ([]contractorGroup, error) {
	ids := make([]string, 0, len(leads))
	for _, lead := range leads {
		ids = append(ids, lead.ID)
	}
	billed, err := s.runs.FilterBilled(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("filter billed leads: %w", err)
	}

	groupIndex := make(map[string]int)
	var groups []contractorGroup
	for _, lead := range leads {
		if billed[lead.ID] {
			summary.AlreadyBilled++
			continue
		}
		zip := domain.NormalizeZip(lead.Zip)
		contractor, err := s.directory.MatchZip(ctx, zip)
		if errors.Is(err, contractorrepo.ErrNotFound) {
			summary.Unmatched++
			s.log.Debug("lead has no coverage", "lead_id", lead.ID, "zip", zip)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("match zip %s: %w", zip, err)
		}

		summary.Matched++
		key := contractor.ID.String()
		idx, ok := groupIndex[key]
		if !ok {
			idx = len(groups)
			groupIndex[key] = idx
			groups = append(groups, contractorGroup{contractor: contractor})
		}
		groups[idx].leads = append(groups[idx].leads, lead)
	}
	return groups, nil
}

// reconcileContractor routes, validates and charges one contractor's batch.
// Failures are contained to the contractor so the rest of the run proceeds.
func (s *Service) reconcileContractor(ctx context.Context, runDate time.Time, group contractorGroup, summary *Summary) {
	contractor := group.contractor
	log := s.log.WithContractorID(contractor.ID.String())

	if contractor.PricePerLeadCents <= 0 {
		// No price set yet; leave the leads unbilled for a later run.
		log.Warn("contractor has no lead price, skipping", "leads", len(group.leads))
		return
	}

	routed := s.route(ctx, contractor, group.leads, summary)
	if len(routed) == 0 {
		return
	}

	valid, err := s.validatePhones(ctx, routed)
	if err != nil {
		log.UpstreamError("twilio", "lookup", err)
		summary.ContractorsFailed++
		return
	}
	summary.Valid += len(valid)
	summary.Invalid += len(routed) - len(valid)
	if len(valid) == 0 {
		log.Info("no billable leads after phone validation", "routed", len(routed))
		return
	}

	leadIDs := make([]string, 0, len(valid))
	for _, lead := range valid {
		leadIDs = append(leadIDs, lead.ID)
	}
	amount := contractor.PricePerLeadCents * int64(len(valid))
	key := IdempotencyKey(contractor.ID.String(), runDate)

	var run Run
	for {
		var created bool
		run, created, err = s.runs.CreateRun(ctx, contractor.ID, runDate, key, len(valid), amount)
		if err != nil {
			log.DatabaseError("create_billing_run", err)
			summary.ContractorsFailed++
			return
		}
		if created {
			break
		}
		if run.Status == RunStatusCharged {
			log.Info("contractor already charged for run date", "run_id", run.ID)
			return
		}
		if run.Status == RunStatusFailed {
			// Earlier attempt failed and released its leads; the batch may
			// have changed since, so the retry gets its own key and row.
			key = retryKey(key)
			continue
		}
		// A stray pending run belongs to the resume pass, not this sweep.
		log.Warn("unresolved pending run, deferring to resume", "run_id", run.ID)
		return
	}

	// Reserve the leads before charging; a crash between here and the charge
	// leaves a pending run the next sweep resumes under the same key.
	if err := s.runs.RecordBilledLeads(ctx, run.ID, contractor.ID, leadIDs); err != nil {
		log.DatabaseError("record_billed_leads", err)
		summary.ContractorsFailed++
		return
	}

	intentID, err := s.charge(ctx, contractor, amount, len(valid), key)
	if err != nil {
		log.UpstreamError("payments", "charge", err)
		if markErr := s.runs.MarkRunFailed(ctx, run.ID, err.Error()); markErr != nil {
			log.DatabaseError("mark_run_failed", markErr)
		}
		if relErr := s.runs.ReleaseBilledLeads(ctx, run.ID); relErr != nil {
			log.DatabaseError("release_billed_leads", relErr)
		}
		summary.ContractorsFailed++
		return
	}
	if err := s.runs.MarkRunCharged(ctx, run.ID, intentID); err != nil {
		log.DatabaseError("mark_run_charged", err)
	}

	s.markConnected(ctx, log, leadIDs)
	s.publishRouted(ctx, contractor, valid)
	s.bus.Publish(ctx, events.ContractorCharged{
		BaseEvent:       events.NewBaseEvent(),
		ContractorID:    contractor.ID,
		ContractorEmail: contractor.Email,
		LeadCount:       len(valid),
		AmountCents:     amount,
		PaymentIntentID: intentID,
	})

	summary.ContractorsCharged++
	summary.TotalAmountCents += amount
	log.BillingRunSummary(contractor.ID.String(), len(group.leads), len(routed), len(group.leads)-len(routed), len(valid), amount, RunStatusCharged)
}

// route delivers leads to the contractor's CRM mirror and sales pipeline.
// A pipeline opportunity failure drops the lead from this run; mirror and
// tagging failures are logged but do not block billing.
func (s *Service) route(ctx context.Context, contractor contractorrepo.Contractor, leads []domain.Lead, summary *Summary) []domain.Lead {
	log := s.log.WithContractorID(contractor.ID.String())

	var mirror LeadMirror
	if contractor.CRMAPIKey != nil && *contractor.CRMAPIKey != "" && s.mirrorFor != nil {
		mirror = s.mirrorFor(*contractor.CRMAPIKey)
	}

	routed := make([]domain.Lead, 0, len(leads))
	for _, lead := range leads {
		if mirror != nil {
			err := s.call(ctx, func(ctx context.Context) error {
				_, err := mirror.CreateContact(ctx, lead)
				return err
			})
			if err != nil {
				log.UpstreamError("crm_mirror", "create_contact", err)
			}
		}

		if err := s.call(ctx, func(ctx context.Context) error {
			return s.store.TagCompany(ctx, lead.ID, contractor.Company)
		}); err != nil {
			log.UpstreamError("crm", "tag_company", err)
		}

		if contractor.PipelineID != nil && contractor.PipelineLocationID != nil && s.pipeline != nil {
			var contactID string
			err := s.call(ctx, func(ctx context.Context) error {
				var err error
				contactID, err = s.pipeline.CreateContact(ctx, lead, *contractor.PipelineLocationID)
				return err
			})
			if err == nil {
				err = s.call(ctx, func(ctx context.Context) error {
					return s.pipeline.CreateOpportunity(ctx, *contractor.PipelineID, contactID, lead.Name())
				})
			}
			if err != nil {
				log.UpstreamError("pipeline", "route_lead", err)
				summary.Dropped++
				continue
			}
		}

		routed = append(routed, lead)
		summary.Routed++
	}
	return routed
}

// validatePhones checks every routed lead concurrently, then filters to the
// valid ones preserving input order. Lookup errors propagate; an unreachable
// validator must not silently bill or drop anyone.
func (s *Service) validatePhones(ctx context.Context, leads []domain.Lead) ([]domain.Lead, error) {
	results := make([]bool, len(leads))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.GetBillingLookupConcurrency())
	for i, lead := range leads {
		group.Go(func() error {
			return s.call(groupCtx, func(ctx context.Context) error {
				ok, err := s.validator.ValidateUS(ctx, lead.Phone)
				if err != nil {
					return err
				}
				results[i] = ok
				return nil
			})
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	valid := make([]domain.Lead, 0, len(leads))
	for i, lead := range leads {
		if results[i] {
			valid = append(valid, lead)
		}
	}
	return valid, nil
}

func (s *Service) charge(ctx context.Context, contractor contractorrepo.Contractor, amountCents int64, leadCount int, idempotencyKey string) (string, error) {
	description := fmt.Sprintf("%d leads delivered to %s", leadCount, contractor.Company)
	var intentID string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		intentID, err = s.processor.Charge(ctx, contractor.PaymentSessionID, amountCents, description, idempotencyKey)
		return err
	})
	return intentID, err
}

func (s *Service) markConnected(ctx context.Context, log *logger.Logger, leadIDs []string) {
	// Failure here is safe: the leads stay reserved in billed_leads, so they
	// can never be billed again even while still OPEN in the CRM.
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.store.UpdateStatuses(ctx, leadIDs, domain.StatusConnected)
	}); err != nil {
		log.UpstreamError("crm", "mark_connected", err)
	}
}

func (s *Service) publishRouted(ctx context.Context, contractor contractorrepo.Contractor, leads []domain.Lead) {
	for _, lead := range leads {
		s.bus.Publish(ctx, events.LeadRouted{
			BaseEvent:       events.NewBaseEvent(),
			ContractorID:    contractor.ID,
			ContractorEmail: contractor.Email,
			ContractorPhone: contractor.Phone,
			LeadID:          lead.ID,
			LeadName:        lead.Name(),
			LeadPhone:       lead.Phone,
			LeadZip:         domain.NormalizeZip(lead.Zip),
		})
	}
}

// resumePending retries charge attempts left pending by a crashed sweep. The
// stored idempotency key guarantees the retry cannot double-charge.
func (s *Service) resumePending(ctx context.Context, summary *Summary) error {
	pending, err := s.runs.PendingRuns(ctx)
	if err != nil {
		return fmt.Errorf("load pending runs: %w", err)
	}
	for _, run := range pending {
		log := s.log.WithContractorID(run.ContractorID.String())

		contractor, err := s.directory.GetByID(ctx, run.ContractorID)
		if errors.Is(err, contractorrepo.ErrNotFound) {
			// Contractor deleted since the run was created; nothing to charge.
			if markErr := s.runs.MarkRunFailed(ctx, run.ID, "contractor deleted"); markErr != nil {
				log.DatabaseError("mark_run_failed", markErr)
			}
			if relErr := s.runs.ReleaseBilledLeads(ctx, run.ID); relErr != nil {
				log.DatabaseError("release_billed_leads", relErr)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("load contractor for pending run: %w", err)
		}

		intentID, err := s.charge(ctx, contractor, run.AmountCents, run.LeadCount, run.IdempotencyKey)
		if err != nil {
			log.UpstreamError("payments", "resume_charge", err)
			if markErr := s.runs.MarkRunFailed(ctx, run.ID, err.Error()); markErr != nil {
				log.DatabaseError("mark_run_failed", markErr)
			}
			if relErr := s.runs.ReleaseBilledLeads(ctx, run.ID); relErr != nil {
				log.DatabaseError("release_billed_leads", relErr)
			}
			continue
		}
		if err := s.runs.MarkRunCharged(ctx, run.ID, intentID); err != nil {
			log.DatabaseError("mark_run_charged", err)
		}

		leadIDs, err := s.runs.RunLeadIDs(ctx, run.ID)
		if err == nil && len(leadIDs) > 0 {
			s.markConnected(ctx, log, leadIDs)
		}
		summary.Resumed++
		summary.TotalAmountCents += run.AmountCents
	}
	return nil
}

// call paces and bounds one outbound provider call.
func (s *Service) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GetBillingCallTimeout())
	defer cancel()
	return fn(callCtx)
}
