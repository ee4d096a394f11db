package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	contractorrepo "leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/leads/domain"
)

// LeadStore is the canonical CRM the reconciliation job sweeps and updates.
type LeadStore interface {
	SearchByStatus(ctx context.Context, status domain.Status) ([]domain.Lead, error)
	TagCompany(ctx context.Context, leadID, company string) error
	UpdateStatuses(ctx context.Context, leadIDs []string, status domain.Status) error
}

// LeadMirror writes a copy of a routed lead into a contractor's own CRM
// account.
type LeadMirror interface {
	CreateContact(ctx context.Context, lead domain.Lead) (string, error)
}

// MirrorFactory builds a LeadMirror against a contractor-supplied API key.
type MirrorFactory func(apiKey string) LeadMirror

// PipelineRouter pushes routed leads into a contractor's sales pipeline.
type PipelineRouter interface {
	CreateContact(ctx context.Context, lead domain.Lead, locationID string) (string, error)
	CreateOpportunity(ctx context.Context, pipelineID, contactID, title string) error
}

// PhoneValidator decides whether a lead's phone is a reachable US number.
// A validation error is distinct from an invalid number and aborts the
// contractor's batch rather than silently dropping the lead.
type PhoneValidator interface {
	ValidateUS(ctx context.Context, phone string) (bool, error)
}

// PaymentProcessor executes the per-lead charge. The idempotency key makes
// retries of the same (contractor, run date) pair safe.
type PaymentProcessor interface {
	Charge(ctx context.Context, sessionID string, amountCents int64, description, idempotencyKey string) (string, error)
}

// ContractorDirectory resolves ZIP coverage to a contractor.
type ContractorDirectory interface {
	MatchZip(ctx context.Context, zip string) (contractorrepo.Contractor, error)
	GetByID(ctx context.Context, id uuid.UUID) (contractorrepo.Contractor, error)
}

// RunStore persists charge attempts and billed-lead reservations.
// *Repository is the Postgres implementation.
type RunStore interface {
	CreateRun(ctx context.Context, contractorID uuid.UUID, runDate time.Time, idempotencyKey string, leadCount int, amountCents int64) (Run, bool, error)
	MarkRunCharged(ctx context.Context, runID uuid.UUID, paymentIntentID string) error
	MarkRunFailed(ctx context.Context, runID uuid.UUID, reason string) error
	PendingRuns(ctx context.Context) ([]Run, error)
	RecordBilledLeads(ctx context.Context, runID, contractorID uuid.UUID, leadIDs []string) error
	ReleaseBilledLeads(ctx context.Context, runID uuid.UUID) error
	RunLeadIDs(ctx context.Context, runID uuid.UUID) ([]string, error)
	FilterBilled(ctx context.Context, leadIDs []string) (map[string]bool, error)
}
