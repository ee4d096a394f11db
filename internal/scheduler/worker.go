package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"leadmarket_backend/internal/billing"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

// BillingRunner is the reconciliation entry point the worker invokes.
type BillingRunner interface {
	Run(ctx context.Context, runDate time.Time, force bool) (billing.Summary, error)
}

// Worker consumes reconciliation tasks and a periodic scheduler entry that
// enqueues one run per day.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	log       *logger.Logger
}

func NewWorker(connOpt asynq.RedisConnOpt, cfg config.SchedulerConfig, runner BillingRunner, log *logger.Logger) (*Worker, error) {
	queue := cfg.GetAsynqQueueName()

	server := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{queue: 1},
		Logger:      asynqLogger{log: log},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBillingReconcile, func(ctx context.Context, task *asynq.Task) error {
		runDate, force, err := ParseBillingReconcilePayload(task)
		if err != nil {
			// Malformed payloads never succeed; do not retry.
			log.Error("invalid billing task payload", "error", err)
			return nil
		}
		summary, err := runner.Run(ctx, runDate, force)
		if errors.Is(err, billing.ErrNotProduction) {
			log.Info("skipping billing run outside production", "run_date", runDate.Format("2006-01-02"))
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("scheduled billing run finished",
			"run_date", runDate.Format("2006-01-02"),
			"charged_contractors", summary.ContractorsCharged,
			"total_amount_cents", summary.TotalAmountCents,
		)
		return nil
	})

	sched := asynq.NewScheduler(connOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   asynqLogger{log: log},
	})
	// Zero run date: the handler resolves the date when the task executes.
	task, err := NewBillingReconcileTask(time.Time{}, false)
	if err != nil {
		return nil, err
	}
	if _, err := sched.Register(cfg.GetBillingCronSpec(), task, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Worker{server: server, scheduler: sched, mux: mux, log: log}, nil
}

// Run starts the worker and periodic scheduler and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	if err := w.server.Start(w.mux); err != nil {
		w.scheduler.Shutdown()
		return err
	}

	<-ctx.Done()
	w.log.Info("shutting down scheduler worker")
	w.scheduler.Shutdown()
	w.server.Shutdown()
	return nil
}

// asynqLogger adapts the structured logger to asynq's logging interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug("asynq", "message", args) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info("asynq", "message", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn("asynq", "message", args) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error("asynq", "message", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error("asynq", "message", args) }
