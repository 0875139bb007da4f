package bus

import (
	"context"
	"errors"
	"sync"
)

const subscriberBuffer = 256

var ErrClosed = errors.New("bus closed")

// InProcBus is the single-process channel binding. Each subscription owns a
// bounded queue drained by its own goroutine; a full queue drops the message,
// matching the transport's at-most-once contract.
type InProcBus struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	closed bool
}

func NewInProcBus() *InProcBus {
	return &InProcBus{subs: make(map[string][]chan []byte)}
}

func (b *InProcBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	// No subscriber means the message is simply lost.
	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *InProcBus) Subscribe(ctx context.Context, topic string, fn Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	ch := make(chan []byte, subscriberBuffer)
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				fn(ctx, payload)
			}
		}
	}()
	return nil
}

func (b *InProcBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = nil
	return nil
}
