// Package scheduler wires the reconciliation job into asynq: task payloads,
// queue client and the worker that executes scheduled and forced runs.
package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TaskBillingReconcile is the daily billing reconciliation task type.
const TaskBillingReconcile = "billing:reconcile"

// BillingReconcilePayload carries one reconciliation request. RunDate is a
// 2006-01-02 date, or empty for "the day the task executes"; Force bypasses
// the production guard.
type BillingReconcilePayload struct {
	RunDate string `json:"runDate,omitempty"`
	Force   bool   `json:"force"`
}

// NewBillingReconcileTask builds the asynq task for one run date. A zero
// runDate produces a task that resolves its date at execution time, which is
// what the periodic scheduler entry registers.
func NewBillingReconcileTask(runDate time.Time, force bool) (*asynq.Task, error) {
	payload := BillingReconcilePayload{Force: force}
	if !runDate.IsZero() {
		payload.RunDate = runDate.Format("2006-01-02")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal billing payload: %w", err)
	}
	return asynq.NewTask(TaskBillingReconcile, raw, asynq.MaxRetry(3)), nil
}

// ParseBillingReconcilePayload decodes and validates a task payload.
func ParseBillingReconcilePayload(task *asynq.Task) (time.Time, bool, error) {
	var payload BillingReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return time.Time{}, false, fmt.Errorf("unmarshal billing payload: %w", err)
	}
	if payload.RunDate == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), payload.Force, nil
	}
	runDate, err := time.Parse("2006-01-02", payload.RunDate)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse run date %q: %w", payload.RunDate, err)
	}
	return runDate, payload.Force, nil
}
