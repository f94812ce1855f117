package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/fincore/internal/jobs"
	"github.com/odyssey-erp/fincore/internal/report"
)

// ReportInvalidateJob re-publishes an invalidation that the API failed to broadcast.
type ReportInvalidateJob struct {
	Publisher report.Publisher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReportInvalidateJob wires the retry handler.
func NewReportInvalidateJob(publisher report.Publisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportInvalidateJob {
	return &ReportInvalidateJob{Publisher: publisher, Logger: logger, Metrics: metrics}
}

// Handle publishes once. A failure is returned so asynq retries with backoff.
func (j *ReportInvalidateJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Publisher == nil {
		return errors.New("report invalidate: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReportInvalidate)
	err := j.Publisher.Publish(ctx)
	if err != nil {
		j.logger().Warn("report invalidation retry failed", slog.Any("error", err))
	}
	return tracker.End(err)
}

func (j *ReportInvalidateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportInvalidate))
	}
	return slog.Default().With(slog.String("job", TaskReportInvalidate))
}
