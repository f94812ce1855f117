package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/fincore/internal/jobs"
)

// KeyPurger deletes idempotency keys older than the retention.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyPurgeJob removes expired idempotency keys.
type IdempotencyPurgeJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyPurgeJob wires the purge handler.
func NewIdempotencyPurgeJob(store KeyPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPurgeJob {
	return &IdempotencyPurgeJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle purges keys older than the payload or configured retention.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency purge: handler not configured")
	}
	var payload IdempotencyPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyPurge)
	deleted, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		j.logger().Error("purge idempotency keys", slog.Any("error", err))
		return tracker.End(err)
	}
	metrics.AddPurged(deleted)
	j.logger().Info("purged idempotency keys", slog.Int64("deleted", deleted), slog.Duration("retention", retention))
	return tracker.End(nil)
}

func (j *IdempotencyPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIdempotencyPurge))
	}
	return slog.Default().With(slog.String("job", TaskIdempotencyPurge))
}
