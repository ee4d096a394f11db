package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"leadmarket_backend/internal/auth/password"
	"leadmarket_backend/internal/auth/repository"
	"leadmarket_backend/internal/auth/token"
	contractorrepo "leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
)

type Service struct {
	sessions    *repository.Repository
	contractors *contractorrepo.Repository
	cfg         config.AuthServiceConfig
	jwtCfg      config.JWTConfig
	log         *logger.Logger
}

func New(sessions *repository.Repository, contractors *contractorrepo.Repository, cfg config.AuthServiceConfig, jwtCfg config.JWTConfig, log *logger.Logger) *Service {
	return &Service{sessions: sessions, contractors: contractors, cfg: cfg, jwtCfg: jwtCfg, log: log}
}

// TokenPair is a short-lived access JWT plus the opaque session token that
// refreshes it.
type TokenPair struct {
	AccessToken  string
	SessionToken string
	ContractorID uuid.UUID
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (TokenPair, error) {
	contractor, err := s.contractors.GetByEmail(ctx, email)
	if errors.Is(err, contractorrepo.ErrNotFound) {
		// Burn a bcrypt comparison so missing accounts cost the same as
		// wrong passwords.
		password.Verify("$2a$12$000000000000000000000uHhRZXeTT1d2u0YcLmTQwNVYfPCBuqaa", plainPassword)
		s.log.AuthEvent("login", email, false, "invalid credentials")
		return TokenPair{}, apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "could not load account", err)
	}
	if !password.Verify(contractor.PasswordHash, plainPassword) {
		s.log.AuthEvent("login", email, false, "invalid credentials")
		return TokenPair{}, apperr.Unauthorized("invalid email or password")
	}

	pair, err := s.openSession(ctx, contractor.ID)
	if err != nil {
		return TokenPair{}, err
	}
	s.log.AuthEvent("login", email, true, "")
	return pair, nil
}

// Refresh exchanges a valid session token for a fresh access JWT. The session
// token itself is rotated on every refresh.
func (s *Service) Refresh(ctx context.Context, sessionToken string) (TokenPair, error) {
	session, err := s.sessions.GetByTokenHash(ctx, token.HashSHA256(sessionToken))
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, apperr.Unauthorized("session expired")
	}
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "could not load session", err)
	}
	if !session.Active(time.Now()) {
		return TokenPair{}, apperr.Unauthorized("session expired")
	}

	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "could not rotate session", err)
	}
	return s.openSession(ctx, session.ContractorID)
}

// Logout revokes the session behind the given token. Unknown tokens are a
// no-op so logout is idempotent.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	session, err := s.sessions.GetByTokenHash(ctx, token.HashSHA256(sessionToken))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not load session", err)
	}
	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not revoke session", err)
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, contractorID uuid.UUID) (TokenPair, error) {
	sessionToken, err := token.GenerateRandom()
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "could not create session", err)
	}
	expiresAt := time.Now().Add(s.cfg.GetSessionTokenTTL())
	if _, err := s.sessions.Create(ctx, contractorID, token.HashSHA256(sessionToken), expiresAt); err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "could not create session", err)
	}

	accessToken, err := token.SignAccess(
		s.jwtCfg.GetJWTAccessSecret(),
		contractorID,
		[]string{httpkit.RoleContractor},
		s.cfg.GetAccessTokenTTL(),
	)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "could not sign access token", err)
	}
	return TokenPair{
		AccessToken:  accessToken,
		SessionToken: sessionToken,
		ContractorID: contractorID,
	}, nil
}
