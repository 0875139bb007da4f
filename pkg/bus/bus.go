// Package bus provides the fire-and-forget publish/subscribe transport
// carrying order commands and status events between services.
//
// Delivery is at-most-once: a publish returns as soon as the transport
// accepts the message. There is no acknowledgment, retry, or persistence
// of unconsumed messages.
package bus

import "context"

// Handler receives a raw topic payload. Decoding and validation happen
// at the consumer's channel boundary.
type Handler func(ctx context.Context, payload []byte)

type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, fn Handler) error
	Close() error
}
