package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// invalidationDedupWindow collapses retries enqueued by concurrent failures.
const invalidationDedupWindow = 30 * time.Second

// Enqueuer is the subset of asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits fincore tasks to the queue.
type Client struct {
	client Enqueuer
}

// NewClient dials redis through asynq.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// NewClientWith wraps an existing enqueuer.
func NewClientWith(enqueuer Enqueuer) *Client {
	return &Client{client: enqueuer}
}

// EnqueueInvalidation schedules a re-broadcast of the report invalidation.
func (c *Client) EnqueueInvalidation(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewReportInvalidateTask(),
		asynq.Queue(QueueDefault),
		asynq.Unique(invalidationDedupWindow),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
