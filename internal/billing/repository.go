package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses. A run is created pending before the charge is attempted so a
// crash mid-charge leaves a resumable record.
const (
	RunStatusPending = "PENDING"
	RunStatusCharged = "CHARGED"
	RunStatusFailed  = "FAILED"
)

var ErrRunNotFound = errors.New("billing run not found")

// Run is one (contractor, run date) charge attempt.
type Run struct {
	ID              uuid.UUID
	ContractorID    uuid.UUID
	RunDate         time.Time
	IdempotencyKey  string
	Status          string
	LeadCount       int
	AmountCents     int64
	PaymentIntentID *string
	FailureReason   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const runColumns = `
	id, contractor_id, run_date, idempotency_key, status,
	lead_count, amount_cents, payment_intent_id, failure_reason,
	created_at, updated_at
`

// CreateRun inserts a pending run, or returns the existing run when the
// idempotency key was already used. The bool reports whether a new row was
// created.
func (r *Repository) CreateRun(ctx context.Context, contractorID uuid.UUID, runDate time.Time, idempotencyKey string, leadCount int, amountCents int64) (Run, bool, error) {
	var run Run
	err := r.pool.QueryRow(ctx, `
		INSERT INTO billing_runs (contractor_id, run_date, idempotency_key, status, lead_count, amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING `+runColumns,
		contractorID, runDate, idempotencyKey, RunStatusPending, leadCount, amountCents,
	).Scan(runScanTargets(&run)...)
	if err == nil {
		return run, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Run{}, false, err
	}

	existing, err := r.GetRunByKey(ctx, idempotencyKey)
	if err != nil {
		return Run{}, false, err
	}
	return existing, false, nil
}

func (r *Repository) GetRunByKey(ctx context.Context, idempotencyKey string) (Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx, `
		SELECT `+runColumns+` FROM billing_runs WHERE idempotency_key = $1
	`, idempotencyKey).Scan(runScanTargets(&run)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (r *Repository) MarkRunCharged(ctx context.Context, runID uuid.UUID, paymentIntentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE billing_runs SET status = $2, payment_intent_id = $3, updated_at = now()
		WHERE id = $1
	`, runID, RunStatusCharged, paymentIntentID)
	return err
}

func (r *Repository) MarkRunFailed(ctx context.Context, runID uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE billing_runs SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1
	`, runID, RunStatusFailed, reason)
	return err
}

// PendingRuns returns unresolved runs from earlier sweeps, oldest first.
func (r *Repository) PendingRuns(ctx context.Context) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+` FROM billing_runs
		WHERE status = $1
		ORDER BY created_at ASC
	`, RunStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(runScanTargets(&run)...); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordBilledLeads marks leads as billed under a run. Recorded before the
// charge is attempted so a crash cannot double-bill; the unique lead_id
// constraint makes re-recording a no-op.
func (r *Repository) RecordBilledLeads(ctx context.Context, runID, contractorID uuid.UUID, leadIDs []string) error {
	batch := &pgx.Batch{}
	for _, leadID := range leadIDs {
		batch.Queue(`
			INSERT INTO billed_leads (run_id, contractor_id, lead_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (lead_id) DO NOTHING
		`, runID, contractorID, leadID)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range leadIDs {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseBilledLeads removes a failed run's lead reservations so the leads
// are swept again by a later run.
func (r *Repository) ReleaseBilledLeads(ctx context.Context, runID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM billed_leads WHERE run_id = $1`, runID)
	return err
}

// RunLeadIDs returns the leads reserved under a run.
func (r *Repository) RunLeadIDs(ctx context.Context, runID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT lead_id FROM billed_leads WHERE run_id = $1`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FilterBilled partitions leadIDs into those already billed and those not.
func (r *Repository) FilterBilled(ctx context.Context, leadIDs []string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT lead_id FROM billed_leads WHERE lead_id = ANY($1)`, leadIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	billed := make(map[string]bool, len(leadIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		billed[id] = true
	}
	return billed, rows.Err()
}

// ContractorTotals aggregates a contractor's charged runs.
type ContractorTotals struct {
	ContractorID uuid.UUID
	LeadCount    int64
	AmountCents  int64
}

func (r *Repository) TotalsForContractor(ctx context.Context, contractorID uuid.UUID) (ContractorTotals, error) {
	totals := ContractorTotals{ContractorID: contractorID}
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(lead_count), 0), COALESCE(SUM(amount_cents), 0)
		FROM billing_runs
		WHERE contractor_id = $1 AND status = $2
	`, contractorID, RunStatusCharged).Scan(&totals.LeadCount, &totals.AmountCents)
	if err != nil {
		return ContractorTotals{}, err
	}
	return totals, nil
}

func runScanTargets(run *Run) []interface{} {
	return []interface{}{
		&run.ID, &run.ContractorID, &run.RunDate, &run.IdempotencyKey, &run.Status,
		&run.LeadCount, &run.AmountCents, &run.PaymentIntentID, &run.FailureReason,
		&run.CreatedAt, &run.UpdatedAt,
	}
}
