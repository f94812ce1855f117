package report

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel carries cross-process invalidation events.
const DefaultChannel = "fincore:reports:invalidate"

// Broadcaster fans invalidations out to every process sharing the Redis instance.
type Broadcaster struct {
	client  redis.UniversalClient
	channel string
	origin  string
	logger  *slog.Logger
}

// NewBroadcaster constructs a broadcaster. Each instance tags its own messages
// so it can ignore them when they come back.
func NewBroadcaster(client redis.UniversalClient, channel string, logger *slog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{client: client, channel: channel, origin: uuid.NewString(), logger: logger}
}

// Publish announces that every report cache must be cleared.
func (b *Broadcaster) Publish(ctx context.Context) error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Publish(ctx, b.channel, b.origin).Err()
}

// Listen subscribes to the channel and calls onInvalidate for every message
// published by another process. It returns once the subscription is confirmed.
func (b *Broadcaster) Listen(ctx context.Context, onInvalidate func()) error {
	if b == nil || b.client == nil {
		return nil
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == b.origin {
					continue
				}
				onInvalidate()
				b.logger.Debug("report cache invalidated by peer", slog.String("origin", msg.Payload))
			}
		}
	}()
	return nil
}
