// The scheduler binary runs the asynq worker and the cron entry that fires
// the daily billing reconciliation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadmarket_backend/internal/adapters"
	"leadmarket_backend/internal/billing"
	"leadmarket_backend/internal/config"
	contractorrepo "leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/crm"
	"leadmarket_backend/internal/email"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/notification"
	"leadmarket_backend/internal/payments"
	"leadmarket_backend/internal/pipeline"
	"leadmarket_backend/internal/scheduler"
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

	bus := events.NewInMemoryBus(log)

	crmClient := crm.New(cfg)
	paymentsClient := payments.New(cfg)
	pipelineClient := pipeline.New(cfg)
	twilioClient := twilio.New(cfg, log)

	emailSender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("email sender init failed", "error", err)
		os.Exit(1)
	}
	notificationService := notification.New(emailSender, smsSender(twilioClient, cfg.IsSMSEnabled()), log)
	notificationService.Subscribe(bus)

	contractorRepo := contractorrepo.New(pool)
	billingRepo := billing.NewRepository(pool)
	paymentsAdapter := adapters.NewPaymentsAdapter(paymentsClient, cfg)

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

	connOpt, err := scheduler.RedisConnOpt(cfg)
	if err != nil {
		log.Error("redis config invalid", "error", err)
		os.Exit(1)
	}

	worker, err := scheduler.NewWorker(connOpt, cfg, billingService, log)
	if err != nil {
		log.Error("worker init failed", "error", err)
		os.Exit(1)
	}

	log.Info("scheduler worker starting", "queue", cfg.AsynqQueueName, "cron", cfg.BillingCronSpec)
	if err := worker.Run(ctx); err != nil {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
}

func smsSender(client *twilio.Client, enabled bool) notification.SMSSender {
	if client == nil || !enabled {
		return nil
	}
	return client
}

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
