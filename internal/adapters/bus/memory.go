package bus

import (
	"context"
	"sync"

	"github.com/aisuru/score-server/pkg/metrics"
)

const memoryBusBuffer = 1024

type message struct {
	channel string
	payload []byte
}

// MemoryBus is an in-process Bus for tests and single-instance runs.
// FIFO per channel; handlers run sequentially on the Listen goroutine.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	messages chan message
	closed   bool
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		messages: make(chan message, memoryBusBuffer),
	}
}

// Publish broadcasts v on channel.
func (b *MemoryBus) Publish(ctx context.Context, channel string, v any) error {
	payload, err := marshal(v)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}

	select {
	case b.messages <- message{channel: channel, payload: payload}:
		metrics.RecordBusPublished(channel)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Subscribe registers a handler for channel.
func (b *MemoryBus) Subscribe(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], h)
}

// Listen dispatches messages to handlers until ctx is canceled.
func (b *MemoryBus) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-b.messages:
			if !ok {
				return nil
			}
			b.dispatch(ctx, msg)
		}
	}
}

func (b *MemoryBus) dispatch(ctx context.Context, msg message) {
	b.mu.RLock()
	handlers := b.handlers[msg.channel]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, msg.payload)
	}
	if len(handlers) > 0 {
		metrics.RecordBusMessage(msg.channel)
	}
}

// Close shuts the bus down. Pending messages are dropped.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.messages)
	}
	return nil
}
