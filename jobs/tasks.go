package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/fincore/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportInvalidate re-broadcasts a report invalidation that failed to publish.
	TaskReportInvalidate = "reports:invalidate"
	// TaskLedgerIntegrityScan inspects ledger entries and documents for inconsistencies.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskIdempotencyPurge removes expired idempotency keys.
	TaskIdempotencyPurge = "idempotency:purge"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityScanPayload bounds a single scan.
type IntegrityScanPayload struct {
	Limit int `json:"limit"`
}

// IdempotencyPurgePayload overrides the configured retention.
type IdempotencyPurgePayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewReportInvalidateTask constructs an invalidation retry task.
func NewReportInvalidateTask() *asynq.Task {
	return asynq.NewTask(TaskReportInvalidate, nil, asynq.MaxRetry(5), asynq.Timeout(10*time.Second))
}

// NewIntegrityScanTask constructs an integrity scan task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// NewIdempotencyPurgeTask constructs a purge task.
func NewIdempotencyPurgeTask(payload IdempotencyPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyPurge, data), nil
}
