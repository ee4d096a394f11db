package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	contractorrepo "leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/phone"
)

// LeadStore is the canonical CRM holding all leads. Search paginates through
// every page before returning.
type LeadStore interface {
	SearchByStatus(ctx context.Context, status domain.Status) ([]domain.Lead, error)
	CreateContact(ctx context.Context, lead domain.Lead) (string, error)
	UpdateStatuses(ctx context.Context, leadIDs []string, status domain.Status) error
}

type Service struct {
	store       LeadStore
	contractors *contractorrepo.Repository
	bus         events.Bus
	log         *logger.Logger
}

func New(store LeadStore, contractors *contractorrepo.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, contractors: contractors, bus: bus, log: log}
}

// SubmitParams is a validated public lead submission.
type SubmitParams struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	Zip       string
}

// Submit records a new prospect as an OPEN contact in the CRM.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (domain.Lead, error) {
	lead := domain.Lead{
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     phone.NormalizeE164(params.Phone),
		Address:   params.Address,
		City:      params.City,
		Zip:       domain.NormalizeZip(params.Zip),
		Status:    domain.StatusOpen,
	}

	id, err := s.store.CreateContact(ctx, lead)
	if err != nil {
		s.log.UpstreamError("crm", "create_contact", err)
		return domain.Lead{}, apperr.Upstream("could not record lead", err)
	}
	lead.ID = id

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Zip:       lead.Zip,
		Email:     lead.Email,
		Phone:     lead.Phone,
	})
	return lead, nil
}

// ListForContractor returns the leads in the contractor's ZIP coverage,
// newest status first within each status sweep.
func (s *Service) ListForContractor(ctx context.Context, contractorID uuid.UUID, statuses []domain.Status) ([]domain.Lead, error) {
	contractor, err := s.contractors.GetByID(ctx, contractorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not load contractor", err)
	}

	covered := make(map[string]struct{}, len(contractor.ZipCodes))
	for _, zip := range contractor.ZipCodes {
		covered[zip] = struct{}{}
	}

	if len(statuses) == 0 {
		statuses = domain.AllStatuses
	}

	var matched []domain.Lead
	for _, status := range statuses {
		leads, err := s.store.SearchByStatus(ctx, status)
		if err != nil {
			s.log.UpstreamError("crm", "search_by_status", err)
			return nil, apperr.Upstream("could not load leads", err)
		}
		for _, lead := range leads {
			if _, ok := covered[domain.NormalizeZip(lead.Zip)]; ok {
				matched = append(matched, lead)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

// UpdateStatuses lets a contractor move their leads between statuses, e.g.
// marking a lead IN_PROGRESS after first contact.
func (s *Service) UpdateStatuses(ctx context.Context, contractorID uuid.UUID, leadIDs []string, status domain.Status) error {
	if !status.Valid() {
		return apperr.Validation("unknown lead status")
	}
	// Only leads inside the contractor's coverage may be touched.
	visible, err := s.ListForContractor(ctx, contractorID, domain.AllStatuses)
	if err != nil {
		return err
	}
	visibleIDs := make(map[string]struct{}, len(visible))
	for _, lead := range visible {
		visibleIDs[lead.ID] = struct{}{}
	}
	for _, id := range leadIDs {
		if _, ok := visibleIDs[id]; !ok {
			return apperr.Forbidden("lead outside your coverage")
		}
	}

	if err := s.store.UpdateStatuses(ctx, leadIDs, status); err != nil {
		s.log.UpstreamError("crm", "batch_update", err)
		return apperr.Upstream("could not update leads", err)
	}
	return nil
}
