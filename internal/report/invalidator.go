package report

import (
	"context"
	"log/slog"
)

// Publisher broadcasts invalidations to other processes.
type Publisher interface {
	Publish(ctx context.Context) error
}

// RetryQueue schedules a later re-broadcast when publishing fails.
type RetryQueue interface {
	EnqueueInvalidation(ctx context.Context) error
}

// InvalidationObserver counts broadcast outcomes.
type InvalidationObserver interface {
	ObserveInvalidation(outcome string)
}

// Invalidator clears the local cache and notifies peers. Failures are logged
// and never surface to the financial operation that triggered them.
type Invalidator struct {
	cache     *Cache
	publisher Publisher
	retry     RetryQueue
	observer  InvalidationObserver
	logger    *slog.Logger
}

// NewInvalidator wires the local cache with optional broadcast and retry.
func NewInvalidator(cache *Cache, publisher Publisher, retry RetryQueue, observer InvalidationObserver, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: cache, publisher: publisher, retry: retry, observer: observer, logger: logger}
}

// InvalidateAll clears everything locally first, then broadcasts.
func (i *Invalidator) InvalidateAll(ctx context.Context) {
	i.cache.InvalidateAll()
	if i.publisher == nil {
		i.observe("local")
		return
	}
	err := i.publisher.Publish(ctx)
	if err == nil {
		i.observe("broadcast")
		return
	}
	i.observe("broadcast_failed")
	i.logger.Warn("report invalidation broadcast failed", slog.Any("error", err))
	if i.retry == nil {
		return
	}
	if err := i.retry.EnqueueInvalidation(ctx); err != nil {
		i.logger.Warn("enqueue report invalidation retry", slog.Any("error", err))
	}
}

func (i *Invalidator) observe(outcome string) {
	if i.observer != nil {
		i.observer.ObserveInvalidation(outcome)
	}
}
