package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

const (
	receiveTimeout = 1 * time.Second
	receiveYield   = 10 * time.Millisecond
)

// RedisBus implements Bus over Redis pub/sub, matching the cross-process
// invalidation fabric the running instances share.
type RedisBus struct {
	client *redis.Client

	mu       sync.RWMutex
	handlers map[string][]Handler

	logger logger.Logger
}

// NewRedisBus creates a bus on the given Redis client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{
		client:   client,
		handlers: make(map[string][]Handler),
		logger:   logger.Named("bus"),
	}
}

// Publish broadcasts v on channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, v any) error {
	payload, err := marshal(v)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		metrics.RecordExternalError("redis")
		return err
	}
	metrics.RecordBusPublished(channel)
	return nil
}

// Subscribe registers a handler for channel. Must be called before Listen.
func (b *RedisBus) Subscribe(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], h)
}

// Listen runs the single background subscriber loop. It polls for the next
// message with a bounded wait and yields between attempts so handler work
// never starves other goroutines. Handlers run sequentially per message.
func (b *RedisBus) Listen(ctx context.Context) error {
	b.mu.RLock()
	channels := make([]string, 0, len(b.handlers))
	for channel := range b.handlers {
		channels = append(channels, channel)
	}
	b.mu.RUnlock()

	if len(channels) == 0 {
		return nil
	}

	pubsub := b.client.Subscribe(ctx, channels...)
	defer func() { _ = pubsub.Close() }()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := pubsub.ReceiveTimeout(ctx, receiveTimeout)
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			b.logger.Warn(ctx, "pubsub receive failed", logger.Error(err))
			time.Sleep(receiveTimeout)
			continue
		}

		if m, ok := msg.(*redis.Message); ok {
			b.dispatch(ctx, m.Channel, []byte(m.Payload))
		}

		time.Sleep(receiveYield)
	}
}

func (b *RedisBus) dispatch(ctx context.Context, channel string, payload []byte) {
	b.mu.RLock()
	handlers := b.handlers[channel]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, payload)
	}
	metrics.RecordBusMessage(channel)
}

// Close releases the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
