package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

// RedisConnOpt builds the asynq connection options from a redis URL.
func RedisConnOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	connOpt := asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}
	if connOpt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		connOpt.TLSConfig.InsecureSkipVerify = true
	}
	return connOpt, nil
}

// Client enqueues reconciliation tasks.
type Client struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

func NewClient(connOpt asynq.RedisConnOpt, cfg config.SchedulerConfig, log *logger.Logger) *Client {
	return &Client{
		client: asynq.NewClient(connOpt),
		queue:  cfg.GetAsynqQueueName(),
		log:    log,
	}
}

// EnqueueBillingRun queues a reconciliation for runDate.
func (c *Client) EnqueueBillingRun(ctx context.Context, runDate time.Time, force bool) error {
	task, err := NewBillingReconcileTask(runDate, force)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	if err != nil {
		return fmt.Errorf("enqueue billing run: %w", err)
	}
	c.log.Info("billing run enqueued", "task_id", info.ID, "run_date", runDate.Format("2006-01-02"), "force", force)
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
