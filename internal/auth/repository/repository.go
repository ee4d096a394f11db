package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("session not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Session is a long-lived refresh session. Only the SHA-256 digest of the
// opaque token is stored; lookups are an indexed equality match on the digest.
type Session struct {
	ID           uuid.UUID
	ContractorID uuid.UUID
	TokenHash    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	RevokedAt    *time.Time
}

func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

func (r *Repository) Create(ctx context.Context, contractorID uuid.UUID, tokenHash string, expiresAt time.Time) (Session, error) {
	var session Session
	err := r.pool.QueryRow(ctx, `
		INSERT INTO contractor_sessions (contractor_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, contractor_id, token_hash, expires_at, created_at, revoked_at
	`, contractorID, tokenHash, expiresAt).Scan(
		&session.ID, &session.ContractorID, &session.TokenHash,
		&session.ExpiresAt, &session.CreatedAt, &session.RevokedAt,
	)
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

func (r *Repository) GetByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	var session Session
	err := r.pool.QueryRow(ctx, `
		SELECT id, contractor_id, token_hash, expires_at, created_at, revoked_at
		FROM contractor_sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&session.ID, &session.ContractorID, &session.TokenHash,
		&session.ExpiresAt, &session.CreatedAt, &session.RevokedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contractor_sessions SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	return err
}

func (r *Repository) RevokeAllForContractor(ctx context.Context, contractorID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contractor_sessions SET revoked_at = now()
		WHERE contractor_id = $1 AND revoked_at IS NULL
	`, contractorID)
	return err
}

// DeleteExpired garbage-collects sessions past their expiry.
func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contractor_sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
