package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadmarket_backend/internal/admin/repository"
	"leadmarket_backend/internal/auth/password"
	"leadmarket_backend/internal/auth/token"
	"leadmarket_backend/internal/billing"
	contractorrepo "leadmarket_backend/internal/contractors/repository"
	contractorsvc "leadmarket_backend/internal/contractors/service"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
)

// revenueFanOut caps the concurrent per-contractor aggregate queries.
const revenueFanOut = 8

// BillingTotals is the slice of the billing store the revenue report needs.
type BillingTotals interface {
	TotalsForContractor(ctx context.Context, contractorID uuid.UUID) (billing.ContractorTotals, error)
}

// BillingRunner triggers a reconciliation sweep on demand.
type BillingRunner interface {
	Run(ctx context.Context, runDate time.Time, force bool) (billing.Summary, error)
}

type Service struct {
	admins      *repository.Repository
	contractors *contractorrepo.Repository
	accounts    *contractorsvc.Service
	totals      BillingTotals
	runner      BillingRunner
	cfg         config.AuthServiceConfig
	log         *logger.Logger
}

func New(
	admins *repository.Repository,
	contractors *contractorrepo.Repository,
	accounts *contractorsvc.Service,
	totals BillingTotals,
	runner BillingRunner,
	cfg config.AuthServiceConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		admins:      admins,
		contractors: contractors,
		accounts:    accounts,
		totals:      totals,
		runner:      runner,
		cfg:         cfg,
		log:         log,
	}
}

// Login verifies operator credentials and issues an admin access token.
// Admins get no refresh session; they log in again when the token expires.
func (s *Service) Login(ctx context.Context, username, plainPassword string) (string, error) {
	admin, err := s.admins.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		password.Verify("$2a$12$000000000000000000000uHhRZXeTT1d2u0YcLmTQwNVYfPCBuqaa", plainPassword)
		s.log.AuthEvent("admin_login", username, false, "unknown username")
		return "", apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "could not load admin", err)
	}
	if !password.Verify(admin.PasswordHash, plainPassword) {
		s.log.AuthEvent("admin_login", username, false, "wrong password")
		return "", apperr.Unauthorized("invalid credentials")
	}

	accessToken, err := token.SignAccess(
		s.cfg.GetJWTAccessSecret(),
		admin.ID,
		[]string{httpkit.RoleAdmin},
		s.cfg.GetAccessTokenTTL(),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "could not sign token", err)
	}
	s.log.AuthEvent("admin_login", username, true, "")
	return accessToken, nil
}

func (s *Service) ListContractors(ctx context.Context) ([]contractorrepo.Contractor, error) {
	contractors, err := s.contractors.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not list contractors", err)
	}
	return contractors, nil
}

func (s *Service) SetPrice(ctx context.Context, contractorID uuid.UUID, pricePerLeadCents int64) error {
	if pricePerLeadCents < 0 {
		return apperr.Validation("price must not be negative")
	}
	err := s.contractors.UpdatePrice(ctx, contractorID, pricePerLeadCents)
	if errors.Is(err, contractorrepo.ErrNotFound) {
		return apperr.NotFound("contractor not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "could not update price", err)
	}
	return nil
}

// DeleteContractor removes a contractor account, processor customer first.
func (s *Service) DeleteContractor(ctx context.Context, contractorID uuid.UUID) error {
	return s.accounts.Delete(ctx, contractorID)
}

// ContractorRevenue is one row of the revenue report.
type ContractorRevenue struct {
	ContractorID uuid.UUID
	Name         string
	Company      string
	LeadCount    int64
	AmountCents  int64
}

// RevenueReport aggregates billed leads and revenue across all contractors.
type RevenueReport struct {
	Contractors      []ContractorRevenue
	TotalLeads       int64
	TotalAmountCents int64
}

// Revenue fans out one totals query per contractor with bounded concurrency
// and folds the results into a stable, registration-ordered report.
func (s *Service) Revenue(ctx context.Context) (RevenueReport, error) {
	contractors, err := s.contractors.List(ctx)
	if err != nil {
		return RevenueReport{}, apperr.Wrap(apperr.KindInternal, "could not list contractors", err)
	}

	rows := make([]ContractorRevenue, len(contractors))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(revenueFanOut)
	for i, contractor := range contractors {
		group.Go(func() error {
			totals, err := s.totals.TotalsForContractor(groupCtx, contractor.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			rows[i] = ContractorRevenue{
				ContractorID: contractor.ID,
				Name:         contractor.Name,
				Company:      contractor.Company,
				LeadCount:    totals.LeadCount,
				AmountCents:  totals.AmountCents,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return RevenueReport{}, apperr.Wrap(apperr.KindInternal, "could not aggregate revenue", err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].AmountCents > rows[j].AmountCents })

	report := RevenueReport{Contractors: rows}
	for _, row := range rows {
		report.TotalLeads += row.LeadCount
		report.TotalAmountCents += row.AmountCents
	}
	return report, nil
}

// TriggerBillingRun forces a reconciliation sweep for today.
func (s *Service) TriggerBillingRun(ctx context.Context) (billing.Summary, error) {
	summary, err := s.runner.Run(ctx, time.Now().UTC(), true)
	if err != nil {
		return billing.Summary{}, apperr.Wrap(apperr.KindInternal, "billing run failed", err)
	}
	return summary, nil
}
