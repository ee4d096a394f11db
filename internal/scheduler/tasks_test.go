package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"

	"leadmarket_backend/platform/logger"
)

func TestBillingReconcilePayloadRoundTrip(t *testing.T) {
	runDate := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	task, err := NewBillingReconcileTask(runDate, true)
	if err != nil {
		t.Fatalf("NewBillingReconcileTask: %v", err)
	}
	if task.Type() != TaskBillingReconcile {
		t.Errorf("task type = %q, want %q", task.Type(), TaskBillingReconcile)
	}

	parsedDate, force, err := ParseBillingReconcilePayload(task)
	if err != nil {
		t.Fatalf("ParseBillingReconcilePayload: %v", err)
	}
	if !parsedDate.Equal(runDate) {
		t.Errorf("run date = %v, want %v", parsedDate, runDate)
	}
	if !force {
		t.Error("force flag lost in round trip")
	}
}

func TestZeroRunDateResolvesAtExecution(t *testing.T) {
	task, err := NewBillingReconcileTask(time.Time{}, false)
	if err != nil {
		t.Fatalf("NewBillingReconcileTask: %v", err)
	}
	runDate, force, err := ParseBillingReconcilePayload(task)
	if err != nil {
		t.Fatalf("ParseBillingReconcilePayload: %v", err)
	}
	if force {
		t.Error("scheduled task must not force")
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !runDate.Equal(today) {
		t.Errorf("resolved run date = %v, want %v", runDate, today)
	}
}

func TestParseRejectsGarbagePayload(t *testing.T) {
	task := asynq.NewTask(TaskBillingReconcile, []byte("{not json"))
	if _, _, err := ParseBillingReconcilePayload(task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	task = asynq.NewTask(TaskBillingReconcile, []byte(`{"runDate":"28-08-2026"}`))
	if _, _, err := ParseBillingReconcilePayload(task); err == nil {
		t.Fatal("expected error for malformed run date")
	}
}

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "billing" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }
func (c testSchedulerConfig) GetBillingCronSpec() string {
	return "0 6 * * *"
}

func TestEnqueueBillingRun(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := testSchedulerConfig{redisURL: "redis://" + srv.Addr()}

	connOpt, err := RedisConnOpt(cfg)
	if err != nil {
		t.Fatalf("RedisConnOpt: %v", err)
	}

	client := NewClient(connOpt, cfg, logger.New("test"))
	defer func() {
		_ = client.Close()
	}()

	runDate := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if err := client.EnqueueBillingRun(context.Background(), runDate, false); err != nil {
		t.Fatalf("EnqueueBillingRun: %v", err)
	}

	inspector := asynq.NewInspector(connOpt)
	defer func() {
		_ = inspector.Close()
	}()
	tasks, err := inspector.ListPendingTasks("billing")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(tasks))
	}
	if tasks[0].Type != TaskBillingReconcile {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskBillingReconcile)
	}
}

func TestRedisConnOptRejectsBadURL(t *testing.T) {
	if _, err := RedisConnOpt(testSchedulerConfig{redisURL: "://bad"}); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}
