package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

const contractorColumns = `
	id, name, company, email, phone, password_hash,
	payment_customer_id, payment_session_id, price_per_lead_cents,
	zip_codes, crm_api_key, pipeline_id, pipeline_location_id,
	is_verified, created_at, updated_at
`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Contractor is a registered contractor row.
type Contractor struct {
	ID                 uuid.UUID
	Name               string
	Company            string
	Email              string
	Phone              string
	PasswordHash       string
	PaymentCustomerID  string
	PaymentSessionID   string
	PricePerLeadCents  int64
	ZipCodes           []string
	CRMAPIKey          *string
	PipelineID         *string
	PipelineLocationID *string
	IsVerified         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CreateParams carries everything needed to insert a contractor.
type CreateParams struct {
	Name              string
	Company           string
	Email             string
	Phone             string
	PasswordHash      string
	PaymentCustomerID string
	PaymentSessionID  string
	PricePerLeadCents int64
	ZipCodes          []string
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Contractor, error) {
	var contractor Contractor
	err := r.pool.QueryRow(ctx, `
		INSERT INTO contractors (
			name, company, email, phone, password_hash,
			payment_customer_id, payment_session_id, price_per_lead_cents, zip_codes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+contractorColumns, params.Name, params.Company, params.Email, params.Phone,
		params.PasswordHash, params.PaymentCustomerID, params.PaymentSessionID,
		params.PricePerLeadCents, params.ZipCodes,
	).Scan(scanTargets(&contractor)...)
	if err != nil {
		return Contractor{}, err
	}
	return contractor, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Contractor, error) {
	return r.getOne(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE id = $1`, id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Contractor, error) {
	return r.getOne(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE email = $1`, email)
}

// MatchZip finds the contractor covering the given 5-digit ZIP.
// Overlapping coverage resolves to the earliest-registered contractor; the
// ordering makes the tie-break stable across runs.
func (r *Repository) MatchZip(ctx context.Context, zip string) (Contractor, error) {
	return r.getOne(ctx, `
		SELECT `+contractorColumns+`
		FROM contractors
		WHERE $1 = ANY(zip_codes)
		ORDER BY created_at ASC
		LIMIT 1
	`, zip)
}

func (r *Repository) List(ctx context.Context) ([]Contractor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contractorColumns+` FROM contractors ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contractors []Contractor
	for rows.Next() {
		var contractor Contractor
		if err := rows.Scan(scanTargets(&contractor)...); err != nil {
			return nil, err
		}
		contractors = append(contractors, contractor)
	}
	return contractors, rows.Err()
}

// UpdateParams carries the self-service editable fields. Nil means unchanged.
type UpdateParams struct {
	Name               *string
	Company            *string
	Phone              *string
	ZipCodes           []string
	CRMAPIKey          *string
	PipelineID         *string
	PipelineLocationID *string
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Contractor, error) {
	var contractor Contractor
	err := r.pool.QueryRow(ctx, `
		UPDATE contractors SET
			name = COALESCE($2, name),
			company = COALESCE($3, company),
			phone = COALESCE($4, phone),
			zip_codes = COALESCE($5, zip_codes),
			crm_api_key = COALESCE($6, crm_api_key),
			pipeline_id = COALESCE($7, pipeline_id),
			pipeline_location_id = COALESCE($8, pipeline_location_id),
			updated_at = now()
		WHERE id = $1
		RETURNING `+contractorColumns,
		id, params.Name, params.Company, params.Phone, params.ZipCodes,
		params.CRMAPIKey, params.PipelineID, params.PipelineLocationID,
	).Scan(scanTargets(&contractor)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contractor{}, ErrNotFound
	}
	if err != nil {
		return Contractor{}, err
	}
	return contractor, nil
}

func (r *Repository) UpdatePaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contractors SET payment_session_id = $2, updated_at = now()
		WHERE id = $1
	`, id, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdatePrice(ctx context.Context, id uuid.UUID, pricePerLeadCents int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contractors SET price_per_lead_cents = $2, updated_at = now()
		WHERE id = $1
	`, id, pricePerLeadCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contractors SET is_verified = true, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contractors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, query string, arg interface{}) (Contractor, error) {
	var contractor Contractor
	err := r.pool.QueryRow(ctx, query, arg).Scan(scanTargets(&contractor)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contractor{}, ErrNotFound
	}
	if err != nil {
		return Contractor{}, err
	}
	return contractor, nil
}

func scanTargets(c *Contractor) []interface{} {
	return []interface{}{
		&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.PasswordHash,
		&c.PaymentCustomerID, &c.PaymentSessionID, &c.PricePerLeadCents,
		&c.ZipCodes, &c.CRMAPIKey, &c.PipelineID, &c.PipelineLocationID,
		&c.IsVerified, &c.CreatedAt, &c.UpdatedAt,
	}
}
