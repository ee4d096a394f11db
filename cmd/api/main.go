// The api binary runs the HTTP server: contractor onboarding, auth, lead
// intake and the admin portal.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	adminhandler "leadmarket_backend/internal/admin/handler"
	adminrepo "leadmarket_backend/internal/admin/repository"
	adminsvc "leadmarket_backend/internal/admin/service"
	"leadmarket_backend/internal/adapters"
	"leadmarket_backend/internal/admin"
	"leadmarket_backend/internal/auth"
	authhandler "leadmarket_backend/internal/auth/handler"
	authrepo "leadmarket_backend/internal/auth/repository"
	authsvc "leadmarket_backend/internal/auth/service"
	"leadmarket_backend/internal/billing"
	"leadmarket_backend/internal/config"
	"leadmarket_backend/internal/contractors"
	contractorhandler "leadmarket_backend/internal/contractors/handler"
	contractorrepo "leadmarket_backend/internal/contractors/repository"
	contractorsvc "leadmarket_backend/internal/contractors/service"
	"leadmarket_backend/internal/crm"
	"leadmarket_backend/internal/email"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/http/router"
	"leadmarket_backend/internal/leads"
	leadhandler "leadmarket_backend/internal/leads/handler"
	leadsvc "leadmarket_backend/internal/leads/service"
	"leadmarket_backend/internal/notification"
	"leadmarket_backend/internal/payments"
	"leadmarket_backend/internal/pipeline"
	"leadmarket_backend/internal/twilio"
	"leadmarket_backend/platform/db"
	"leadmarket_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := withRetry(ctx, log, func(ctx context.Context) (*pgxpool.Pool, error) {
		return db.NewPool(ctx, cfg)
	})
	if err != nil {
		log.Error("database unreachable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, "migrations"); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	bus := events.NewInMemoryBus(log)

	// Provider clients.
	crmClient := crm.New(cfg)
	paymentsClient := payments.New(cfg)
	pipelineClient := pipeline.New(cfg)
	twilioClient := twilio.New(cfg, log)

	emailSender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("email sender init failed", "error", err)
		os.Exit(1)
	}

	paymentsAdapter := adapters.NewPaymentsAdapter(paymentsClient, cfg)

	// Repositories.
	contractorRepo := contractorrepo.New(pool)
	sessionRepo := authrepo.New(pool)
	adminRepo := adminrepo.New(pool)
	billingRepo := billing.NewRepository(pool)

	// Services.
	contractorService := contractorsvc.New(contractorRepo, paymentsAdapter, cfg, bus, log)
	authService := authsvc.New(sessionRepo, contractorRepo, cfg, cfg, log)
	leadService := leadsvc.New(crmClient, contractorRepo, bus, log)
	billingService := billing.NewService(
		crmClient,
		contractorRepo,
		twilioClient,
		paymentsAdapter,
		pipelineClient,
		func(apiKey string) billing.LeadMirror { return crm.NewWithKey(apiKey) },
		billingRepo,
		bus,
		cfg,
		log,
	)
	adminService := adminsvc.New(adminRepo, contractorRepo, contractorService, billingRepo, billingService, cfg, log)

	notificationService := notification.New(emailSender, smsSender(twilioClient, cfg.IsSMSEnabled()), log)
	notificationService.Subscribe(bus)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: bus,
		Modules: []apphttp.Module{
			auth.NewModule(authhandler.New(authService, cfg, log)),
			contractors.NewModule(contractorhandler.New(contractorService, log)),
			leads.NewModule(leadhandler.New(leadService, log)),
			admin.NewModule(adminhandler.New(adminService, log)),
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// smsSender returns the twilio client as an SMS port, or nil when SMS is off.
func smsSender(client *twilio.Client, enabled bool) notification.SMSSender {
	if client == nil || !enabled {
		return nil
	}
	return client
}

// withRetry retries startup dependencies with quadratic backoff, giving
// sibling containers time to come up.
func withRetry[T any](ctx context.Context, log *logger.Logger, connect func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	const attempts = 5
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := connect(ctx)
		if err == nil {
			return value, nil
		}
		if attempt == attempts {
			return zero, err
		}
		delay := time.Duration(attempt*attempt) * time.Second
		log.Warn("startup dependency not ready, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, nil
}
